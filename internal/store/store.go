// Package store persists bets to an append-only CSV log and streams
// them back in insertion order for lottery scoring.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"time"

	"github.com/fiuba-distribuidos/lottery-server/internal/bet"
)

const dateLayout = "2006-01-02"

// ErrStore wraps any I/O failure encountered while appending to or
// reading from the persisted log.
var ErrStore = errors.New("store error")

// Store is an append-only CSV log of bets, keyed by insertion order.
// It is never truncated during a run and is retained across runs.
// Callers must serialize concurrent Append calls externally (see
// internal/pool, which guards Append with a single mutex).
type Store struct {
	path string
}

// New returns a Store backed by the CSV file at path. The file is
// created on first Append if it does not already exist.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Append writes each bet as one CSV row (agency,first,last,document,
// YYYY-MM-DD,number) with minimal quoting, flushed and synced before
// return. Append does not make the batch atomic: a large batch may
// reach the file in several writes, and a failure part-way can leave
// some of its rows behind. Readers see whole batches only when they
// hold the same lock that serializes Append (see pool.Barrier).
func (s *Store) Append(bets []bet.Bet) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open for append: %v", ErrStore, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, b := range bets {
		row := []string{
			strconv.FormatUint(uint64(b.Agency), 10),
			b.FirstName,
			b.LastName,
			strconv.FormatUint(uint64(b.Document), 10),
			b.Birthdate.Format(dateLayout),
			strconv.FormatUint(uint64(b.Number), 10),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("%w: write row: %v", ErrStore, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: flush: %v", ErrStore, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", ErrStore, err)
	}
	return nil
}

// Load yields the full sequence of persisted bets in insertion order.
// It is restartable: each call reopens the file from the beginning, so
// concurrent or repeated calls never share cursor state.
func (s *Store) Load() iter.Seq2[bet.Bet, error] {
	return func(yield func(bet.Bet, error) bool) {
		f, err := os.Open(s.path)
		if err != nil {
			if os.IsNotExist(err) {
				return
			}
			yield(bet.Bet{}, fmt.Errorf("%w: open for read: %v", ErrStore, err))
			return
		}
		defer f.Close()

		r := csv.NewReader(f)
		for {
			row, err := r.Read()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				if !yield(bet.Bet{}, fmt.Errorf("%w: read row: %v", ErrStore, err)) {
					return
				}
				return
			}
			b, err := rowToBet(row)
			if err != nil {
				if !yield(bet.Bet{}, err) {
					return
				}
				continue
			}
			if !yield(b, nil) {
				return
			}
		}
	}
}

func rowToBet(row []string) (bet.Bet, error) {
	if len(row) != 6 {
		return bet.Bet{}, fmt.Errorf("%w: expected 6 fields, got %d", ErrStore, len(row))
	}
	agency, err := strconv.ParseUint(row[0], 10, 8)
	if err != nil {
		return bet.Bet{}, fmt.Errorf("%w: agency: %v", ErrStore, err)
	}
	document, err := strconv.ParseUint(row[3], 10, 32)
	if err != nil {
		return bet.Bet{}, fmt.Errorf("%w: document: %v", ErrStore, err)
	}
	birthdate, err := time.Parse(dateLayout, row[4])
	if err != nil {
		return bet.Bet{}, fmt.Errorf("%w: birthdate: %v", ErrStore, err)
	}
	number, err := strconv.ParseUint(row[5], 10, 16)
	if err != nil {
		return bet.Bet{}, fmt.Errorf("%w: number: %v", ErrStore, err)
	}
	return bet.Bet{
		Agency:    uint8(agency),
		FirstName: row[1],
		LastName:  row[2],
		Document:  uint32(document),
		Birthdate: birthdate,
		Number:    uint16(number),
	}, nil
}

// HasWon reports whether a bet's number matches the configured winning
// number. winningNumber is injected configuration, never read from the
// wire.
func HasWon(b bet.Bet, winningNumber uint16) bool {
	return b.Number == winningNumber
}
