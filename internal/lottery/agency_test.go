package lottery

import (
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/fiuba-distribuidos/lottery-server/internal/bet"
	"github.com/fiuba-distribuidos/lottery-server/internal/store"
)

func mkBet(agency uint8, document uint32, number uint16) bet.Bet {
	return bet.Bet{
		Agency:    agency,
		FirstName: "Maria",
		LastName:  "Gomez",
		Document:  document,
		Birthdate: time.Date(1992, 8, 4, 0, 0, 0, 0, time.UTC),
		Number:    number,
	}
}

func TestDetermineWinners_GroupsByAgencyAndDeduplicates(t *testing.T) {
	st := store.New(filepath.Join(t.TempDir(), "bets.csv"))
	winning := uint16(7574)
	bets := []bet.Bet{
		mkBet(1, 100, winning),
		mkBet(1, 100, winning), // duplicate document, same agency
		mkBet(1, 200, 1),       // loser
		mkBet(2, 300, winning),
	}
	if err := st.Append(bets); err != nil {
		t.Fatalf("Append: %v", err)
	}

	a := New(winning)
	if err := a.DetermineWinners(st); err != nil {
		t.Fatalf("DetermineWinners: %v", err)
	}

	got1 := a.WinnersOf(1)
	if len(got1) != 1 || got1[0] != 100 {
		t.Fatalf("WinnersOf(1) = %v, want [100]", got1)
	}

	got2 := a.WinnersOf(2)
	if len(got2) != 1 || got2[0] != 300 {
		t.Fatalf("WinnersOf(2) = %v, want [300]", got2)
	}

	if got3 := a.WinnersOf(3); len(got3) != 0 {
		t.Fatalf("WinnersOf(3) = %v, want empty", got3)
	}
}

func TestDetermineWinners_MultipleWinnersSameAgency(t *testing.T) {
	st := store.New(filepath.Join(t.TempDir(), "bets.csv"))
	winning := uint16(4011)
	if err := st.Append([]bet.Bet{
		mkBet(5, 1, winning),
		mkBet(5, 2, winning),
		mkBet(5, 3, winning),
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	a := New(winning)
	if err := a.DetermineWinners(st); err != nil {
		t.Fatalf("DetermineWinners: %v", err)
	}

	got := a.WinnersOf(5)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	want := []uint32{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("WinnersOf(5) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("WinnersOf(5) = %v, want %v", got, want)
		}
	}
}

func TestDetermineWinners_EmptyStore(t *testing.T) {
	st := store.New(filepath.Join(t.TempDir(), "bets.csv"))
	a := New(123)
	if err := a.DetermineWinners(st); err != nil {
		t.Fatalf("DetermineWinners: %v", err)
	}
	if got := a.WinnersOf(1); len(got) != 0 {
		t.Fatalf("WinnersOf(1) = %v, want empty", got)
	}
}
