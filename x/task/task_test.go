package task

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStopWaitsForTermination(t *testing.T) {
	exited := make(chan struct{})
	tk := Go(context.Background(), "loop", func(ctx context.Context) error {
		defer close(exited)
		<-ctx.Done()
		time.Sleep(5 * time.Millisecond) // cleanup after observing cancel
		return ctx.Err()
	})

	if err := tk.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-exited:
	default:
		t.Fatal("Stop returned before the body exited")
	}
	if !tk.Finished() {
		t.Fatal("task not marked finished")
	}
}

func TestStopFinishedTaskIsNoop(t *testing.T) {
	tk := Go(context.Background(), "once", func(ctx context.Context) error { return nil })
	<-tk.Done()
	if err := tk.Stop(); err != nil {
		t.Fatalf("Stop on finished task: %v", err)
	}
	var nilTask *Task
	if err := nilTask.Stop(); err != nil {
		t.Fatalf("Stop on nil task: %v", err)
	}
}

func TestErrorAndPanicSurface(t *testing.T) {
	boom := errors.New("boom")
	tk := Go(context.Background(), "err", func(ctx context.Context) error { return boom })
	if err := tk.Wait(); !errors.Is(err, boom) {
		t.Fatalf("Wait = %v, want boom", err)
	}

	tp := Go(context.Background(), "panic", func(ctx context.Context) error { panic("bad") })
	if err := tp.Wait(); err == nil {
		t.Fatal("expected panic to surface as error")
	}
}
