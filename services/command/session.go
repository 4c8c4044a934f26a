package command

import "strings"

// Session accumulates one start..end upload. Only the command loop
// mutates it.
type Session struct {
	active bool
	buf    strings.Builder
	chunks int
}

// Start begins a session, discarding anything already buffered.
func (s *Session) Start() {
	s.buf.Reset()
	s.chunks = 0
	s.active = true
}

// Append adds data plus a newline. It is a no-op outside a session and
// reports whether the data was kept.
func (s *Session) Append(data string) bool {
	if !s.active {
		return false
	}
	s.buf.WriteString(data)
	s.buf.WriteByte('\n')
	s.chunks++
	return true
}

// End returns the buffered source and clears the session.
func (s *Session) End() string {
	src := s.buf.String()
	s.buf.Reset()
	s.chunks = 0
	s.active = false
	return src
}

func (s *Session) Active() bool { return s.active }
func (s *Session) Chunks() int  { return s.chunks }
func (s *Session) Len() int     { return s.buf.Len() }
