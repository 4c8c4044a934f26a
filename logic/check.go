package logic

// check rejects statement placements that are only detectable from
// structure: await outside async functions, break/continue outside loops
// and return at module level.
func check(body []stmt, inFunc, inAsync, inLoop bool) error {
	for _, s := range body {
		if err := checkStmt(s, inFunc, inAsync, inLoop); err != nil {
			return err
		}
	}
	return nil
}

func checkStmt(s stmt, inFunc, inAsync, inLoop bool) error {
	bad := func(msg string) error { return syntaxErr(s.line(), msg) }
	switch s := s.(type) {
	case *breakStmt:
		if !inLoop {
			return bad("'break' outside loop")
		}
	case *contStmt:
		if !inLoop {
			return bad("'continue' not properly in loop")
		}
	case *returnStmt:
		if !inFunc {
			return bad("'return' outside function")
		}
		return checkExpr(s.line(), s.x, inAsync)
	case *exprStmt:
		return checkExpr(s.line(), s.x, inAsync)
	case *assignStmt:
		if err := checkExpr(s.line(), s.target, inAsync); err != nil {
			return err
		}
		return checkExpr(s.line(), s.x, inAsync)
	case *defStmt:
		return check(s.body, true, s.async, false)
	case *whileStmt:
		if err := checkExpr(s.line(), s.cond, inAsync); err != nil {
			return err
		}
		return check(s.body, inFunc, inAsync, true)
	case *forStmt:
		if err := checkExpr(s.line(), s.iter, inAsync); err != nil {
			return err
		}
		return check(s.body, inFunc, inAsync, true)
	case *ifStmt:
		for i, c := range s.conds {
			if err := checkExpr(s.line(), c, inAsync); err != nil {
				return err
			}
			if err := check(s.bodies[i], inFunc, inAsync, inLoop); err != nil {
				return err
			}
		}
		return check(s.orelse, inFunc, inAsync, inLoop)
	}
	return nil
}

func checkExpr(line int, e expr, inAsync bool) error {
	var walk func(e expr) error
	walk = func(e expr) error {
		switch e := e.(type) {
		case *awaitExpr:
			if !inAsync {
				return syntaxErr(line, "'await' outside async function")
			}
			return walk(e.x)
		case *attrExpr:
			return walk(e.x)
		case *indexExpr:
			if err := walk(e.x); err != nil {
				return err
			}
			return walk(e.idx)
		case *callExpr:
			if err := walk(e.fn); err != nil {
				return err
			}
			for _, a := range e.args {
				if err := walk(a); err != nil {
					return err
				}
			}
			for _, k := range e.kw {
				if err := walk(k.x); err != nil {
					return err
				}
			}
		case *listExpr:
			for _, it := range e.items {
				if err := walk(it); err != nil {
					return err
				}
			}
		case *tupleExpr:
			for _, it := range e.items {
				if err := walk(it); err != nil {
					return err
				}
			}
		case *unaryExpr:
			return walk(e.x)
		case *binExpr:
			if err := walk(e.l); err != nil {
				return err
			}
			return walk(e.r)
		}
		return nil
	}
	if e == nil {
		return nil
	}
	return walk(e)
}
