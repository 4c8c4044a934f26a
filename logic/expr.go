package logic

var reserved = map[string]bool{
	"and": true, "or": true, "not": true, "in": true, "is": true, "await": true,
	"def": true, "async": true, "if": true, "elif": true, "else": true, "while": true,
	"for": true, "return": true, "import": true, "from": true, "as": true, "pass": true,
	"break": true, "continue": true, "global": true, "lambda": true, "class": true,
	"try": true, "except": true, "with": true, "yield": true,
}

func isReserved(s string) bool { return reserved[s] }

// parseExpr parses toks as a single expression (a bare tuple is allowed).
func parseExpr(toks []token, line int) (expr, error) {
	if len(toks) == 0 {
		return nil, syntaxErr(line, "expected expression")
	}
	ep := &exprParser{toks: toks, line: line}
	x, err := ep.tuple()
	if err != nil {
		return nil, err
	}
	if ep.i != len(toks) {
		return nil, syntaxErr(line, "unexpected "+describe(toks[ep.i]))
	}
	return x, nil
}

func describe(t token) string {
	switch t.kind {
	case tEOF:
		return "end of line"
	case tString:
		return "string"
	}
	return "'" + t.text + "'"
}

type exprParser struct {
	toks []token
	i    int
	line int
}

func (p *exprParser) peek() token {
	if p.i < len(p.toks) {
		return p.toks[p.i]
	}
	return token{kind: tEOF}
}

func (p *exprParser) keyword(s string) bool {
	t := p.peek()
	return t.kind == tName && t.text == s
}

func (p *exprParser) op(s string) bool { return p.peek().is(s) }

func (p *exprParser) expect(s string) error {
	if !p.op(s) {
		return syntaxErr(p.line, "expected '"+s+"', got "+describe(p.peek()))
	}
	p.i++
	return nil
}

// closes reports whether the current token ends an expression list.
func (p *exprParser) closes() bool {
	t := p.peek()
	return t.kind == tEOF || t.is(")") || t.is("]") || t.is("=")
}

func (p *exprParser) tuple() (expr, error) {
	x, err := p.test()
	if err != nil || !p.op(",") {
		return x, err
	}
	items := []expr{x}
	for p.op(",") {
		p.i++
		if p.closes() {
			break
		}
		x, err := p.test()
		if err != nil {
			return nil, err
		}
		items = append(items, x)
	}
	return &tupleExpr{items: items}, nil
}

func (p *exprParser) test() (expr, error) {
	l, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.keyword("or") {
		p.i++
		r, err := p.and()
		if err != nil {
			return nil, err
		}
		l = &binExpr{op: "or", l: l, r: r}
	}
	return l, nil
}

func (p *exprParser) and() (expr, error) {
	l, err := p.not()
	if err != nil {
		return nil, err
	}
	for p.keyword("and") {
		p.i++
		r, err := p.not()
		if err != nil {
			return nil, err
		}
		l = &binExpr{op: "and", l: l, r: r}
	}
	return l, nil
}

func (p *exprParser) not() (expr, error) {
	if p.keyword("not") {
		p.i++
		x, err := p.not()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{op: "not", x: x}, nil
	}
	return p.comparison()
}

var compareOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *exprParser) comparison() (expr, error) {
	l, err := p.arith()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		var op string
		switch {
		case t.kind == tOp && compareOps[t.text]:
			op = t.text
			p.i++
		case t.kind == tName && t.text == "in":
			op = "in"
			p.i++
		case t.kind == tName && t.text == "not" && p.i+1 < len(p.toks) &&
			p.toks[p.i+1].kind == tName && p.toks[p.i+1].text == "in":
			op = "not in"
			p.i += 2
		default:
			return l, nil
		}
		r, err := p.arith()
		if err != nil {
			return nil, err
		}
		l = &binExpr{op: op, l: l, r: r}
	}
}

func (p *exprParser) arith() (expr, error) {
	l, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.op("+") || p.op("-") {
		op := p.peek().text
		p.i++
		r, err := p.term()
		if err != nil {
			return nil, err
		}
		l = &binExpr{op: op, l: l, r: r}
	}
	return l, nil
}

func (p *exprParser) term() (expr, error) {
	l, err := p.factor()
	if err != nil {
		return nil, err
	}
	for p.op("*") || p.op("/") || p.op("//") || p.op("%") {
		op := p.peek().text
		p.i++
		r, err := p.factor()
		if err != nil {
			return nil, err
		}
		l = &binExpr{op: op, l: l, r: r}
	}
	return l, nil
}

func (p *exprParser) factor() (expr, error) {
	if p.op("-") || p.op("+") {
		op := p.peek().text
		p.i++
		x, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{op: op, x: x}, nil
	}
	if p.keyword("await") {
		p.i++
		x, err := p.postfix()
		if err != nil {
			return nil, err
		}
		return &awaitExpr{x: x}, nil
	}
	return p.postfix()
}

func (p *exprParser) postfix() (expr, error) {
	x, err := p.atom()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.op("("):
			p.i++
			call := &callExpr{fn: x}
			if err := p.args(call); err != nil {
				return nil, err
			}
			x = call
		case p.op("["):
			p.i++
			idx, err := p.tuple()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			x = &indexExpr{x: x, idx: idx}
		case p.op("."):
			p.i++
			t := p.peek()
			if t.kind != tName {
				return nil, syntaxErr(p.line, "expected attribute name")
			}
			p.i++
			x = &attrExpr{x: x, name: t.text}
		default:
			return x, nil
		}
	}
}

func (p *exprParser) args(call *callExpr) error {
	for !p.op(")") {
		if t := p.peek(); t.kind == tName && p.i+1 < len(p.toks) && p.toks[p.i+1].is("=") {
			p.i += 2
			x, err := p.test()
			if err != nil {
				return err
			}
			call.kw = append(call.kw, kwArg{name: t.text, x: x})
		} else {
			if len(call.kw) > 0 {
				return syntaxErr(p.line, "positional argument follows keyword argument")
			}
			x, err := p.test()
			if err != nil {
				return err
			}
			call.args = append(call.args, x)
		}
		if p.op(",") {
			p.i++
			continue
		}
		if !p.op(")") {
			return syntaxErr(p.line, "expected ',' or ')', got "+describe(p.peek()))
		}
	}
	p.i++
	return nil
}

func (p *exprParser) atom() (expr, error) {
	t := p.peek()
	switch t.kind {
	case tInt:
		p.i++
		return &constExpr{v: t.ival}, nil
	case tFloat:
		p.i++
		return &constExpr{v: t.fval}, nil
	case tString:
		s := ""
		for p.peek().kind == tString {
			s += p.peek().text
			p.i++
		}
		return &constExpr{v: s}, nil
	case tName:
		p.i++
		switch t.text {
		case "True":
			return &constExpr{v: true}, nil
		case "False":
			return &constExpr{v: false}, nil
		case "None":
			return &constExpr{v: nil}, nil
		}
		if isReserved(t.text) {
			return nil, syntaxErr(p.line, "unexpected '"+t.text+"'")
		}
		return &nameExpr{name: t.text}, nil
	case tOp:
		switch t.text {
		case "(":
			p.i++
			if p.op(")") {
				p.i++
				return &tupleExpr{}, nil
			}
			x, err := p.tuple()
			if err != nil {
				return nil, err
			}
			return x, p.expect(")")
		case "[":
			p.i++
			l := &listExpr{}
			for !p.op("]") {
				x, err := p.test()
				if err != nil {
					return nil, err
				}
				l.items = append(l.items, x)
				if p.op(",") {
					p.i++
					continue
				}
				if !p.op("]") {
					return nil, syntaxErr(p.line, "expected ',' or ']'")
				}
			}
			p.i++
			return l, nil
		}
	}
	return nil, syntaxErr(p.line, "unexpected "+describe(t))
}
