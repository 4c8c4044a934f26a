package logic

// parse turns source text into a statement tree. Blocks follow indentation;
// every line of a block must share the indentation of its first line.
func parse(src string) ([]stmt, error) {
	lines, err := splitLines(src)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}
	p := &parser{lines: lines}
	if lines[0].indent != 0 {
		return nil, syntaxErr(lines[0].no, "unexpected indent")
	}
	body, err := p.block(0)
	if err != nil {
		return nil, err
	}
	if p.i < len(p.lines) {
		return nil, syntaxErr(p.lines[p.i].no, "unindent does not match any outer level")
	}
	return body, nil
}

func syntaxErr(line int, msg string) *SyntaxError { return &SyntaxError{Line: line, Msg: msg} }

type parser struct {
	lines []srcLine
	i     int
}

func (p *parser) block(indent int) ([]stmt, error) {
	var out []stmt
	for p.i < len(p.lines) {
		ln := p.lines[p.i]
		if ln.indent < indent {
			break
		}
		if ln.indent > indent {
			return nil, syntaxErr(ln.no, "unexpected indent")
		}
		p.i++
		st, err := p.statement(ln)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// suite parses the body of a compound statement. rest holds any tokens
// after the header colon (single-line form).
func (p *parser) suite(hdr srcLine, rest []token) ([]stmt, error) {
	if len(rest) > 0 {
		st, err := p.simple(srcLine{no: hdr.no, indent: hdr.indent, toks: rest})
		if err != nil {
			return nil, err
		}
		return []stmt{st}, nil
	}
	if p.i >= len(p.lines) || p.lines[p.i].indent <= hdr.indent {
		return nil, syntaxErr(hdr.no, "expected an indented block")
	}
	return p.block(p.lines[p.i].indent)
}

// header splits "kw ... : rest" at the first top-level colon.
func header(ln srcLine, skip int) (head, rest []token, err error) {
	depth := 0
	for i := skip; i < len(ln.toks); i++ {
		t := ln.toks[i]
		if t.kind != tOp {
			continue
		}
		switch t.text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case ":":
			if depth == 0 {
				return ln.toks[skip:i], ln.toks[i+1:], nil
			}
		}
	}
	return nil, nil, syntaxErr(ln.no, "expected ':'")
}

func (p *parser) statement(ln srcLine) (stmt, error) {
	first := ln.toks[0]
	if first.kind != tName {
		return p.simple(ln)
	}
	switch first.text {
	case "async":
		if len(ln.toks) < 2 || ln.toks[1].kind != tName || ln.toks[1].text != "def" {
			return nil, syntaxErr(ln.no, "expected def after async")
		}
		return p.def(ln, 2, true)
	case "def":
		return p.def(ln, 1, false)
	case "while":
		head, rest, err := header(ln, 1)
		if err != nil {
			return nil, err
		}
		cond, err := parseExpr(head, ln.no)
		if err != nil {
			return nil, err
		}
		body, err := p.suite(ln, rest)
		if err != nil {
			return nil, err
		}
		return &whileStmt{pos: pos{ln.no}, cond: cond, body: body}, nil
	case "for":
		head, rest, err := header(ln, 1)
		if err != nil {
			return nil, err
		}
		if len(head) < 3 || head[0].kind != tName || head[1].kind != tName || head[1].text != "in" {
			return nil, syntaxErr(ln.no, "expected 'for NAME in ...'")
		}
		iter, err := parseExpr(head[2:], ln.no)
		if err != nil {
			return nil, err
		}
		body, err := p.suite(ln, rest)
		if err != nil {
			return nil, err
		}
		return &forStmt{pos: pos{ln.no}, name: head[0].text, iter: iter, body: body}, nil
	case "if":
		return p.ifChain(ln)
	case "elif", "else":
		return nil, syntaxErr(ln.no, first.text+" without if")
	}
	return p.simple(ln)
}

func (p *parser) def(ln srcLine, skip int, async bool) (stmt, error) {
	head, rest, err := header(ln, skip)
	if err != nil {
		return nil, err
	}
	if len(head) < 3 || head[0].kind != tName || !head[1].is("(") || !head[len(head)-1].is(")") {
		return nil, syntaxErr(ln.no, "expected 'def NAME(...)'")
	}
	var params []string
	inner := head[2 : len(head)-1]
	for i := 0; i < len(inner); i++ {
		if inner[i].kind != tName || isReserved(inner[i].text) {
			return nil, syntaxErr(ln.no, "bad parameter list")
		}
		params = append(params, inner[i].text)
		if i+1 < len(inner) {
			if !inner[i+1].is(",") {
				return nil, syntaxErr(ln.no, "bad parameter list")
			}
			i++
		}
	}
	body, err := p.suite(ln, rest)
	if err != nil {
		return nil, err
	}
	return &defStmt{pos: pos{ln.no}, name: head[0].text, params: params, async: async, body: body}, nil
}

func (p *parser) ifChain(ln srcLine) (stmt, error) {
	st := &ifStmt{pos: pos{ln.no}}
	cur := ln
	for {
		head, rest, err := header(cur, 1)
		if err != nil {
			return nil, err
		}
		cond, err := parseExpr(head, cur.no)
		if err != nil {
			return nil, err
		}
		body, err := p.suite(cur, rest)
		if err != nil {
			return nil, err
		}
		st.conds = append(st.conds, cond)
		st.bodies = append(st.bodies, body)

		if p.i >= len(p.lines) {
			return st, nil
		}
		next := p.lines[p.i]
		if next.indent != ln.indent || next.toks[0].kind != tName {
			return st, nil
		}
		switch next.toks[0].text {
		case "elif":
			p.i++
			cur = next
			continue
		case "else":
			p.i++
			head, rest, err := header(next, 1)
			if err != nil {
				return nil, err
			}
			if len(head) != 0 {
				return nil, syntaxErr(next.no, "unexpected tokens after else")
			}
			st.orelse, err = p.suite(next, rest)
			if err != nil {
				return nil, err
			}
		}
		return st, nil
	}
}

func (p *parser) simple(ln srcLine) (stmt, error) {
	toks := ln.toks
	at := pos{ln.no}
	if toks[0].kind == tName {
		switch toks[0].text {
		case "import":
			return parseImport(ln, "", toks[1:])
		case "from":
			if len(toks) < 4 || toks[1].kind != tName {
				return nil, syntaxErr(ln.no, "expected 'from MODULE import ...'")
			}
			mod, k := dotted(toks, 1)
			if k >= len(toks) || toks[k].kind != tName || toks[k].text != "import" {
				return nil, syntaxErr(ln.no, "expected import")
			}
			return parseImport(ln, mod, toks[k+1:])
		case "global":
			var names []string
			for i := 1; i < len(toks); i++ {
				if toks[i].kind == tName {
					names = append(names, toks[i].text)
				} else if !toks[i].is(",") {
					return nil, syntaxErr(ln.no, "bad global statement")
				}
			}
			return &globalStmt{pos: at, names: names}, nil
		case "pass":
			return &passStmt{at}, only(ln)
		case "break":
			return &breakStmt{at}, only(ln)
		case "continue":
			return &contStmt{at}, only(ln)
		case "return":
			if len(toks) == 1 {
				return &returnStmt{pos: at}, nil
			}
			x, err := parseExpr(toks[1:], ln.no)
			if err != nil {
				return nil, err
			}
			return &returnStmt{pos: at, x: x}, nil
		}
	}

	depth := 0
	for i, t := range toks {
		if t.kind != tOp {
			continue
		}
		switch t.text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case "=", "+=", "-=", "*=", "/=":
			if depth != 0 {
				continue
			}
			target, err := parseExpr(toks[:i], ln.no)
			if err != nil {
				return nil, err
			}
			switch target.(type) {
			case *nameExpr, *indexExpr, *attrExpr:
			default:
				return nil, syntaxErr(ln.no, "cannot assign to expression")
			}
			x, err := parseExpr(toks[i+1:], ln.no)
			if err != nil {
				return nil, err
			}
			op := ""
			if t.text != "=" {
				op = t.text[:1]
			}
			return &assignStmt{pos: at, target: target, op: op, x: x}, nil
		}
	}

	x, err := parseExpr(toks, ln.no)
	if err != nil {
		return nil, err
	}
	return &exprStmt{pos: at, x: x}, nil
}

func only(ln srcLine) error {
	if len(ln.toks) != 1 {
		return syntaxErr(ln.no, "unexpected tokens after "+ln.toks[0].text)
	}
	return nil
}

// dotted reads NAME(.NAME)* starting at i.
func dotted(toks []token, i int) (string, int) {
	s := toks[i].text
	i++
	for i+1 < len(toks) && toks[i].is(".") && toks[i+1].kind == tName {
		s += "." + toks[i+1].text
		i += 2
	}
	return s, i
}

func parseImport(ln srcLine, from string, toks []token) (stmt, error) {
	st := &importStmt{pos: pos{ln.no}, from: from}
	i := 0
	for i < len(toks) {
		if toks[i].kind != tName && !(from != "" && toks[i].is("*")) {
			return nil, syntaxErr(ln.no, "bad import")
		}
		var it importItem
		if from == "" {
			it.name, i = dotted(toks, i)
		} else {
			it.name = toks[i].text
			i++
		}
		if i+1 < len(toks) && toks[i].kind == tName && toks[i].text == "as" && toks[i+1].kind == tName {
			it.alias = toks[i+1].text
			i += 2
		}
		st.items = append(st.items, it)
		if i < len(toks) {
			if !toks[i].is(",") {
				return nil, syntaxErr(ln.no, "bad import")
			}
			i++
		}
	}
	if len(st.items) == 0 {
		return nil, syntaxErr(ln.no, "empty import")
	}
	return st, nil
}
