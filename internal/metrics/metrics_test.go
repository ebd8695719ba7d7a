package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fiuba-distribuidos/lottery-server/internal/bet"
	"github.com/fiuba-distribuidos/lottery-server/internal/protocol"
	"github.com/fiuba-distribuidos/lottery-server/internal/store"
	"github.com/fiuba-distribuidos/lottery-server/internal/wire"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"peer closed", fmt.Errorf("wrap: %w", wire.ErrPeerClosed), ErrPeerClosed},
		{"transport", fmt.Errorf("wrap: %w", wire.ErrTransport), ErrTransport},
		{"malformed bet", fmt.Errorf("wrap: %w", bet.ErrMalformedBet), ErrMalformedBet},
		{"malformed batch", fmt.Errorf("wrap: %w", protocol.ErrMalformedBatch), ErrMalformedBatch},
		{"store", fmt.Errorf("wrap: %w", store.ErrStore), ErrStore},
		{"unclassified", errors.New("something else"), ErrOther},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ClassifyError(c.err); got != c.want {
				t.Fatalf("ClassifyError(%v) = %q, want %q", c.err, got, c.want)
			}
		})
	}
}

func TestSnap_ReflectsIncrements(t *testing.T) {
	pre := Snap()
	AddBetsReceived(3)
	IncBatchAccepted()
	IncBatchRejected()
	IncAgencyParked()
	IncWinnersAnnounced()
	IncError(ErrOther)
	post := Snap()

	if d := post.BetsReceived - pre.BetsReceived; d != 3 {
		t.Fatalf("BetsReceived delta = %d, want 3", d)
	}
	if d := post.BatchesAccepted - pre.BatchesAccepted; d != 1 {
		t.Fatalf("BatchesAccepted delta = %d, want 1", d)
	}
	if d := post.BatchesRejected - pre.BatchesRejected; d != 1 {
		t.Fatalf("BatchesRejected delta = %d, want 1", d)
	}
	if d := post.AgenciesParked - pre.AgenciesParked; d != 1 {
		t.Fatalf("AgenciesParked delta = %d, want 1", d)
	}
	if d := post.WinnersAnnounced - pre.WinnersAnnounced; d != 1 {
		t.Fatalf("WinnersAnnounced delta = %d, want 1", d)
	}
	if d := post.Errors - pre.Errors; d != 1 {
		t.Fatalf("Errors delta = %d, want 1", d)
	}
}

func TestIsReady_DefaultsTrueThenHonorsRegisteredFunc(t *testing.T) {
	SetReadinessFunc(nil)
	if !IsReady() {
		t.Fatalf("IsReady() = false with no registered function, want true")
	}
	SetReadinessFunc(func() bool { return false })
	t.Cleanup(func() { SetReadinessFunc(nil) })
	if IsReady() {
		t.Fatalf("IsReady() = true, want false after registering a false-returning function")
	}
}
