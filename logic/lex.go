package logic

import (
	"strconv"
	"strings"
)

type tokKind uint8

const (
	tEOF tokKind = iota
	tName
	tInt
	tFloat
	tString
	tOp
)

type token struct {
	kind tokKind
	text string
	ival int
	fval float64
}

func (t token) is(op string) bool { return t.kind == tOp && t.text == op }

// srcLine is one logical line: comments stripped, bracketed continuations joined.
type srcLine struct {
	no     int // 1-based physical line of the first token
	indent int
	toks   []token
}

// Two-character operators are matched before single characters.
var twoOps = []string{"==", "!=", "<=", ">=", "//", "+=", "-=", "*=", "/="}

const oneOps = "()[]{},:.=<>+-*/%"

// splitLines tokenizes src into logical lines.
func splitLines(src string) ([]srcLine, error) {
	var out []srcLine
	var cur *srcLine
	depth := 0
	for i, raw := range strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n") {
		no := i + 1
		if depth == 0 {
			body := strings.TrimLeft(raw, " \t")
			if body == "" || body[0] == '#' {
				continue
			}
			cur = &srcLine{no: no, indent: indentOf(raw)}
		}
		toks, d, err := tokenize(raw, no, depth)
		if err != nil {
			return nil, err
		}
		cur.toks = append(cur.toks, toks...)
		depth = d
		if depth == 0 {
			if len(cur.toks) > 0 {
				out = append(out, *cur)
			}
			cur = nil
		}
	}
	if depth != 0 && cur != nil {
		return nil, &SyntaxError{Line: cur.no, Msg: "unclosed bracket"}
	}
	return out, nil
}

func indentOf(s string) int {
	n := 0
	for _, c := range s {
		switch c {
		case ' ':
			n++
		case '\t':
			n += 4 - n%4
		default:
			return n
		}
	}
	return n
}

func tokenize(s string, no, depth int) ([]token, int, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '#':
			return toks, depth, nil
		case isIdentStart(c):
			j := i + 1
			for j < len(s) && isIdent(s[j]) {
				j++
			}
			toks = append(toks, token{kind: tName, text: s[i:j]})
			i = j
		case isDigit(c) || (c == '.' && i+1 < len(s) && isDigit(s[i+1])):
			tok, n, err := readNumber(s[i:])
			if err != nil {
				return nil, depth, &SyntaxError{Line: no, Msg: err.Error()}
			}
			toks = append(toks, tok)
			i += n
		case c == '"' || c == '\'':
			str, n, err := readString(s[i:])
			if err != nil {
				return nil, depth, &SyntaxError{Line: no, Msg: err.Error()}
			}
			toks = append(toks, token{kind: tString, text: str})
			i += n
		default:
			op := ""
			for _, two := range twoOps {
				if strings.HasPrefix(s[i:], two) {
					op = two
					break
				}
			}
			if op == "" {
				if strings.IndexByte(oneOps, c) < 0 {
					return nil, depth, &SyntaxError{Line: no, Msg: "unexpected character " + strconv.QuoteRune(rune(c))}
				}
				op = s[i : i+1]
			}
			switch op {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
				if depth < 0 {
					return nil, depth, &SyntaxError{Line: no, Msg: "unbalanced " + op}
				}
			}
			toks = append(toks, token{kind: tOp, text: op})
			i += len(op)
		}
	}
	return toks, depth, nil
}

func readNumber(s string) (token, int, error) {
	j := 0
	if len(s) > 2 && s[0] == '0' && (s[1]|0x20) == 'x' {
		j = 2
		for j < len(s) && (isHex(s[j]) || s[j] == '_') {
			j++
		}
		v, err := strconv.ParseInt(strings.ReplaceAll(s[2:j], "_", ""), 16, 64)
		if err != nil {
			return token{}, 0, errString("bad number " + s[:j])
		}
		return token{kind: tInt, text: s[:j], ival: int(v)}, j, nil
	}
	float := false
	digits := func() {
		for j < len(s) && (isDigit(s[j]) || s[j] == '_') {
			j++
		}
	}
	digits()
	if j < len(s) && s[j] == '.' {
		float = true
		j++
		digits()
	}
	if j < len(s) && (s[j]|0x20) == 'e' {
		k := j + 1
		if k < len(s) && (s[k] == '+' || s[k] == '-') {
			k++
		}
		if k < len(s) && isDigit(s[k]) {
			float = true
			j = k
			digits()
		}
	}
	lit := strings.ReplaceAll(s[:j], "_", "")
	if float {
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return token{}, 0, errString("bad number " + lit)
		}
		return token{kind: tFloat, text: lit, fval: f}, j, nil
	}
	v, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		return token{}, 0, errString("bad number " + lit)
	}
	return token{kind: tInt, text: lit, ival: int(v)}, j, nil
}

func readString(s string) (string, int, error) {
	q := s[0]
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == q:
			return b.String(), i + 1, nil
		case c == '\\' && i+1 < len(s):
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '0':
				b.WriteByte(0)
			default:
				b.WriteByte(s[i])
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, errString("unterminated string")
}

type errString string

func (e errString) Error() string { return string(e) }

func isIdentStart(c byte) bool { return c == '_' || (c|0x20 >= 'a' && c|0x20 <= 'z') }
func isIdent(c byte) bool      { return isIdentStart(c) || isDigit(c) }
func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isHex(c byte) bool        { return isDigit(c) || (c|0x20 >= 'a' && c|0x20 <= 'f') }
