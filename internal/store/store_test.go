package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/fiuba-distribuidos/lottery-server/internal/bet"
)

func mkBet(agency uint8, document uint32, number uint16) bet.Bet {
	return bet.Bet{
		Agency:    agency,
		FirstName: "Juan",
		LastName:  "Perez",
		Document:  document,
		Birthdate: time.Date(1985, 6, 20, 0, 0, 0, 0, time.UTC),
		Number:    number,
	}
}

func collect(t *testing.T, s *Store) []bet.Bet {
	t.Helper()
	var out []bet.Bet
	for b, err := range s.Load() {
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		out = append(out, b)
	}
	return out
}

func TestLoad_MissingFileYieldsNothing(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing.csv"))
	if got := collect(t, s); len(got) != 0 {
		t.Fatalf("got %d bets, want 0", len(got))
	}
}

func TestAppendThenLoad_PreservesInsertionOrder(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "bets.csv"))
	in := []bet.Bet{mkBet(1, 100, 7574), mkBet(2, 200, 4011), mkBet(1, 300, 7574)}

	if err := s.Append(in[:2]); err != nil {
		t.Fatalf("Append batch 1: %v", err)
	}
	if err := s.Append(in[2:]); err != nil {
		t.Fatalf("Append batch 2: %v", err)
	}

	got := collect(t, s)
	if len(got) != len(in) {
		t.Fatalf("got %d bets, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Fatalf("bet %d = %+v, want %+v", i, got[i], in[i])
		}
	}
}

func TestLoad_IsRestartable(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "bets.csv"))
	if err := s.Append([]bet.Bet{mkBet(1, 1, 1)}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	first := collect(t, s)
	second := collect(t, s)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected both passes to yield 1 bet, got %d and %d", len(first), len(second))
	}
}

func TestLoad_EarlyBreakStopsIteration(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "bets.csv"))
	in := []bet.Bet{mkBet(1, 1, 1), mkBet(2, 2, 2), mkBet(3, 3, 3)}
	if err := s.Append(in); err != nil {
		t.Fatalf("Append: %v", err)
	}

	var seen int
	for range s.Load() {
		seen++
		if seen == 1 {
			break
		}
	}
	if seen != 1 {
		t.Fatalf("seen = %d, want 1", seen)
	}
}

func TestHasWon(t *testing.T) {
	cases := []struct {
		number uint16
		want   bool
	}{
		{7574, true},
		{4011, false},
	}
	b := mkBet(1, 1, 7574)
	for _, c := range cases {
		if got := HasWon(b, c.number); got != c.want {
			t.Fatalf("HasWon(bet with number %d, winning %d) = %v, want %v", b.Number, c.number, got, c.want)
		}
	}
}
