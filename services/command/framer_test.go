package command

import (
	"errors"
	"strings"
	"testing"

	"neolink-go/errcode"
)

func feedAll(t *testing.T, f *Framer, chunks ...string) []string {
	t.Helper()
	var out []string
	for _, c := range chunks {
		recs, err := f.Feed([]byte(c))
		if err != nil {
			t.Fatalf("Feed(%q): %v", c, err)
		}
		out = append(out, recs...)
	}
	return out
}

func TestFramerChunkBoundaryInsensitive(t *testing.T) {
	stream := "{\"mode\":\"start\"}\n{\"mode\":\"upload\",\"data\":\"print('é')\"}\r\n\n   \n{\"mode\":\"end\"}\n"
	want := feedAll(t, NewFramer(0), stream)
	if len(want) != 3 {
		t.Fatalf("records = %q", want)
	}
	b := []byte(stream)
	for size := 1; size <= len(b); size++ {
		var chunks []string
		for i := 0; i < len(b); i += size {
			end := min(i+size, len(b))
			chunks = append(chunks, string(b[i:end]))
		}
		got := feedAll(t, NewFramer(0), chunks...)
		if strings.Join(got, "|") != strings.Join(want, "|") {
			t.Fatalf("chunk size %d: got %q, want %q", size, got, want)
		}
	}
}

func TestFramerInvalidTextKeepsState(t *testing.T) {
	f := NewFramer(0)
	if recs, err := f.Feed([]byte("abc")); err != nil || len(recs) != 0 {
		t.Fatalf("Feed: %v %v", recs, err)
	}
	_, err := f.Feed([]byte{0xff, 0xfe, '\n'})
	if !errors.Is(err, errcode.InvalidText) {
		t.Fatalf("err = %v, want invalid_text", err)
	}
	recs, err := f.Feed([]byte("def\n"))
	if err != nil || len(recs) != 1 || recs[0] != "abcdef" {
		t.Fatalf("after bad chunk: %q %v", recs, err)
	}
}

func TestFramerOverflowFailsClosed(t *testing.T) {
	f := NewFramer(8)
	recs, err := f.Feed([]byte("ok\n0123456789"))
	if !errors.Is(err, errcode.BufferOverflow) {
		t.Fatalf("err = %v, want buffer_overflow", err)
	}
	if len(recs) != 1 || recs[0] != "ok" {
		t.Fatalf("complete records before overflow = %q", recs)
	}
	if f.Pending() != 0 {
		t.Fatalf("Pending = %d after overflow", f.Pending())
	}
	recs, err = f.Feed([]byte("next\n"))
	if err != nil || len(recs) != 1 || recs[0] != "next" {
		t.Fatalf("after overflow: %q %v", recs, err)
	}
}

func TestSession(t *testing.T) {
	var s Session
	if s.Append("lost") {
		t.Fatal("append outside a session kept data")
	}
	s.Start()
	s.Append("a")
	s.Start()
	s.Append("b")
	s.Append("")
	if s.Chunks() != 2 {
		t.Fatalf("Chunks = %d", s.Chunks())
	}
	if got := s.End(); got != "b\n\n" {
		t.Fatalf("End = %q", got)
	}
	if s.Active() || s.Len() != 0 {
		t.Fatal("session not cleared")
	}
}

func TestDecodeCommand(t *testing.T) {
	cases := []struct {
		in   string
		mode string
		data string
		code errcode.Code
	}{
		{`{"mode":"start"}`, "start", "", errcode.OK},
		{`{"mode":"upload","data":"x = 1"}`, "upload", "x = 1", errcode.OK},
		{`{"mode":"upload","data":null}`, "upload", "", errcode.OK},
		{`{"mode":"future","extra":[1,2]}`, "future", "", errcode.OK},
		{`{"data":"x"}`, "", "", errcode.MissingMode},
		{`{"mode":5}`, "", "", errcode.MissingMode},
		{`{"mode":"keypress","data":7}`, "", "", errcode.InvalidRecord},
		{`not json`, "", "", errcode.InvalidRecord},
		{`[1,2]`, "", "", errcode.InvalidRecord},
	}
	for _, tc := range cases {
		cmd, err := DecodeCommand(tc.in)
		if tc.code == errcode.OK {
			if err != nil {
				t.Fatalf("%s: %v", tc.in, err)
			}
			if string(cmd.Mode) != tc.mode || cmd.Data != tc.data {
				t.Fatalf("%s: got %+v", tc.in, cmd)
			}
			continue
		}
		if errcode.Of(err) != tc.code {
			t.Fatalf("%s: code = %s, want %s", tc.in, errcode.Of(err), tc.code)
		}
	}
}

func TestFramerDropsUncompletedRune(t *testing.T) {
	f := NewFramer(0)
	recs, err := f.Feed([]byte("{\"mode\":\"start\"}\n\xe2\x82"))
	if err != nil || len(recs) != 1 {
		t.Fatalf("first feed: %q %v", recs, err)
	}
	recs, err = f.Feed([]byte("x\n"))
	if !errors.Is(err, errcode.InvalidText) {
		t.Fatalf("err = %v, want invalid_text", err)
	}
	if len(recs) != 1 || recs[0] != "x" {
		t.Fatalf("records after dropped rune = %q", recs)
	}
	for i := 0; i < 3; i++ {
		recs, err = f.Feed([]byte("{\"mode\":\"end\"}\n"))
		if err != nil || len(recs) != 1 {
			t.Fatalf("feed %d after dropped rune: %q %v", i, recs, err)
		}
		if _, err := DecodeCommand(recs[0]); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
}

func TestFramerRejectsBadChunkAfterCompletedRune(t *testing.T) {
	f := NewFramer(0)
	if _, err := f.Feed([]byte("a\xc3")); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	// \xa9 completes é; the stray \xff makes the chunk invalid on its own.
	if _, err := f.Feed([]byte("\xa9\xff\n")); !errors.Is(err, errcode.InvalidText) {
		t.Fatalf("err = %v, want invalid_text", err)
	}
	recs, err := f.Feed([]byte("\xa9b\n"))
	if err != nil || len(recs) != 1 || recs[0] != "aéb" {
		t.Fatalf("carried rune lost: %q %v", recs, err)
	}
}

func TestFramerGap(t *testing.T) {
	f := NewFramer(0)
	feedAll(t, f, `{"mode":"upload","data":"pri`)
	if n := f.Gap(true); n == 0 {
		t.Fatal("Gap dropped nothing")
	}
	got := feedAll(t, f, `nt(1)"}`+"\n", `{"mode":"end"}`+"\n")
	if len(got) != 1 || got[0] != `{"mode":"end"}` {
		t.Fatalf("after mid-line gap = %q", got)
	}

	feedAll(t, f, `{"mode":"up`)
	f.Gap(false)
	got = feedAll(t, f, `{"mode":"start"}`+"\n")
	if len(got) != 1 || got[0] != `{"mode":"start"}` {
		t.Fatalf("after line-aligned gap = %q", got)
	}
}
