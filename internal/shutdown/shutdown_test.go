package shutdown

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"
)

func TestBind_CancelsOnSIGTERM(t *testing.T) {
	ctx, cancel := Bind(context.Background())
	defer cancel()

	if err := ctx.Err(); err != nil {
		t.Fatalf("context already done before signal: %v", err)
	}

	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatalf("FindProcess: %v", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("Signal: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("context not cancelled after SIGTERM")
	}
}

func TestBind_CancelsOnParentCancel(t *testing.T) {
	parent, parentCancel := context.WithCancel(context.Background())
	ctx, cancel := Bind(parent)
	defer cancel()

	parentCancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("context not cancelled after parent cancellation")
	}
}
