package logic

import (
	"strconv"
)

// SyntaxError reports a line the loader cannot accept.
type SyntaxError struct {
	Unit string // artifact name, filled in by Load
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	s := ""
	if e.Unit != "" {
		s = e.Unit + ":"
	}
	return s + strconv.Itoa(e.Line) + ": " + e.Msg
}

// RuntimeError is raised while executing a statement.
type RuntimeError struct {
	Line int
	Msg  string
	Err  error
}

func (e *RuntimeError) Error() string {
	s := "line " + strconv.Itoa(e.Line) + ": " + e.Msg
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *RuntimeError) Unwrap() error { return e.Err }
