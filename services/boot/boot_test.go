package boot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"neolink-go/logic"
	"neolink-go/services/store"
	"neolink-go/types"
)

var paths = types.StorageConfig{Main: "main.py", Handlers: "keyboardhandler.py", ResetFlag: "reset.txt"}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type restarts struct{ n int }

func (r *restarts) Restart() { r.n++ }

func TestResetFlag(t *testing.T) {
	cases := []struct {
		content string
		want    bool
	}{
		{"1", true},
		{"1\n", true},
		{"0", false},
		{"", false},
	}
	for _, c := range cases {
		s := store.NewRAM()
		_ = s.WriteFile(paths.ResetFlag, []byte(c.content))
		var r restarts
		if got := Check(s, paths, &r, quiet); got != c.want {
			t.Errorf("%q: Check = %v", c.content, got)
		}
		if c.want && (r.n != 1 || s.Exists(paths.ResetFlag)) {
			t.Errorf("%q: restarts=%d flag kept=%v", c.content, r.n, s.Exists(paths.ResetFlag))
		}
		if !c.want && r.n != 0 {
			t.Errorf("%q: unexpected restart", c.content)
		}
	}

	var r restarts
	if Check(store.NewRAM(), paths, &r, quiet) || r.n != 0 {
		t.Fatal("absent flag triggered a restart")
	}
}

func TestEnsureArtifactsKeepsExisting(t *testing.T) {
	s := store.NewRAM()
	_ = s.WriteFile(paths.Main, []byte("user"))
	if err := EnsureArtifacts(s, paths); err != nil {
		t.Fatalf("EnsureArtifacts: %v", err)
	}
	if b, _ := s.ReadFile(paths.Main); string(b) != "user" {
		t.Fatalf("main overwritten: %q", b)
	}
	if b, _ := s.ReadFile(paths.Handlers); string(b) != DefaultHandlers {
		t.Fatalf("handlers = %q", b)
	}
}

func TestDefaultsLoad(t *testing.T) {
	pair, err := logic.New(logic.Env{Log: quiet}).Load(context.Background(), DefaultMain, DefaultHandlers)
	if err != nil {
		t.Fatalf("defaults do not load: %v", err)
	}
	if pair.Handlers.Len() != 0 {
		t.Fatalf("default handlers = %v", pair.Handlers.Names())
	}
}

func TestRecoverWritesDefaultsAndRestarts(t *testing.T) {
	s := store.NewRAM()
	_ = s.WriteFile(paths.Main, []byte("broken("))
	var r restarts
	Recovery{Store: s, Paths: paths, Board: &r, Log: quiet}.Recover(errors.New("load failed"))
	if r.n != 1 {
		t.Fatalf("restarts = %d", r.n)
	}
	if b, _ := s.ReadFile(paths.Main); string(b) != DefaultMain {
		t.Fatalf("main = %q", b)
	}
}
