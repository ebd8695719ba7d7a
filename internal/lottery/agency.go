// Package lottery aggregates, per agency, the documents of bets that
// matched the winning number.
package lottery

import (
	"fmt"

	"github.com/fiuba-distribuidos/lottery-server/internal/store"
)

// Agency holds the winners determined from a single pass over the
// store. It is not safe for concurrent use; the server loop owns one
// instance per lottery run.
type Agency struct {
	winningNumber uint16
	winners       map[uint8]map[uint32]struct{}
}

// New returns an Agency scoring against winningNumber, empty until
// DetermineWinners runs.
func New(winningNumber uint16) *Agency {
	return &Agency{
		winningNumber: winningNumber,
		winners:       make(map[uint8]map[uint32]struct{}),
	}
}

// DetermineWinners iterates st.Load() once, inserting bet.Document into
// the winning set for bet.Agency whenever the bet's number matches the
// winning number. Idempotent against duplicate stored bets: documents
// are deduplicated per agency.
func (a *Agency) DetermineWinners(st *store.Store) error {
	for b, err := range st.Load() {
		if err != nil {
			return fmt.Errorf("determine winners: %w", err)
		}
		if store.HasWon(b, a.winningNumber) {
			a.addWinner(b.Agency, b.Document)
		}
	}
	return nil
}

func (a *Agency) addWinner(agency uint8, document uint32) {
	set, ok := a.winners[agency]
	if !ok {
		set = make(map[uint32]struct{})
		a.winners[agency] = set
	}
	set[document] = struct{}{}
}

// WinnersOf returns the winning documents for agency as an unordered
// slice; callers must treat the result as a set.
func (a *Agency) WinnersOf(agency uint8) []uint32 {
	set := a.winners[agency]
	docs := make([]uint32, 0, len(set))
	for d := range set {
		docs = append(docs, d)
	}
	return docs
}
