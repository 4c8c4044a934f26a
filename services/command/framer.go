package command

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"

	"neolink-go/errcode"
)

// DefaultMaxLine bounds the unterminated tail the Framer will hold.
const DefaultMaxLine = 8 * 1024

// Framer splits a byte stream into newline-terminated text records.
//
// A rune split across two Feed calls is carried over. A chunk that is not
// valid UTF-8 is rejected whole and the buffered tail is left as it was,
// except that a carried partial rune the chunk fails to complete is dropped.
type Framer struct {
	buf   []byte
	carry []byte
	max   int
	// skip discards input up to the next newline after a gap.
	skip bool
}

func NewFramer(max int) *Framer {
	if max <= 0 {
		max = DefaultMaxLine
	}
	return &Framer{max: max}
}

// Feed appends p and returns every complete non-blank record, trimmed.
// It reports errcode.InvalidText for undecodable input and
// errcode.BufferOverflow when the unterminated tail exceeds the cap, in
// which case the tail is dropped and any records already complete are
// still returned.
func (f *Framer) Feed(p []byte) ([]string, error) {
	if f.skip {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			return nil, nil
		}
		f.skip = false
		p = p[i+1:]
	}

	var ferr error
	data := p
	if len(f.carry) > 0 {
		data = append(append([]byte(nil), f.carry...), p...)
	}
	cut := incompleteTail(data)
	if !utf8.Valid(data[:cut]) {
		if len(f.carry) == 0 || completes(f.carry, p) {
			return nil, &errcode.E{C: errcode.InvalidText, Op: "feed", Msg: "chunk is not valid utf-8"}
		}
		// The carried rune was never completed. Drop it and retry p alone.
		f.carry = nil
		ferr = &errcode.E{C: errcode.InvalidText, Op: "feed", Msg: "incomplete rune dropped"}
		data = p
		cut = incompleteTail(data)
		if !utf8.Valid(data[:cut]) {
			return nil, &errcode.E{C: errcode.InvalidText, Op: "feed", Msg: "chunk is not valid utf-8"}
		}
	}
	f.buf = append(f.buf, data[:cut]...)
	f.carry = append(f.carry[:0], data[cut:]...)

	var out []string
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			break
		}
		if rec := strings.TrimSpace(string(f.buf[:i])); rec != "" {
			out = append(out, rec)
		}
		f.buf = f.buf[i+1:]
	}
	if len(f.buf) == 0 {
		f.buf = nil
	}

	if len(f.buf)+len(f.carry) > f.max {
		n := len(f.buf) + len(f.carry)
		f.Reset()
		return out, &errcode.E{C: errcode.BufferOverflow, Op: "feed", Msg: "unterminated record of " + strconv.Itoa(n) + " bytes dropped"}
	}
	return out, ferr
}

// Gap marks lost input at the current position. The unterminated tail is
// discarded, and with midLine so is everything up to the next newline, so
// bytes from either side of the gap never join into one record. It returns
// the number of buffered bytes dropped.
func (f *Framer) Gap(midLine bool) int {
	n := f.Pending()
	f.Reset()
	f.skip = midLine
	return n
}

// Pending is the number of buffered bytes not yet part of a record.
func (f *Framer) Pending() int { return len(f.buf) + len(f.carry) }

func (f *Framer) Reset() {
	f.buf = nil
	f.carry = nil
	f.skip = false
}

// incompleteTail returns the length of data without a trailing rune that
// is cut short.
func incompleteTail(data []byte) int {
	for k := 1; k <= utf8.UTFMax-1 && k <= len(data); k++ {
		i := len(data) - k
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				return i
			}
			break
		}
	}
	return len(data)
}

// completes reports whether the leading bytes of p finish the partial
// rune in carry.
func completes(carry, p []byte) bool {
	k := min(len(p), utf8.UTFMax-len(carry))
	b := append(append([]byte(nil), carry...), p[:k]...)
	_, n := utf8.DecodeRune(b)
	return n > len(carry)
}
