// Package protocol classifies an inbound frame payload as a bet
// submission or a wait-for-lottery request. Decoding is pure: no I/O,
// no shared state.
package protocol

import (
	"errors"
	"fmt"

	"github.com/fiuba-distribuidos/lottery-server/internal/bet"
)

// ErrMalformedBatch is returned when a SubmitBets payload cannot be
// split into its per-bet records: an empty payload, a zero-length bet
// record, or a bet length exceeding the remaining bytes.
var ErrMalformedBatch = errors.New("malformed batch")

// Message is the decoded shape of one inbound frame payload.
type Message struct {
	// Kind distinguishes SubmitBets from WaitingForLottery.
	Kind MessageKind
	// Bets is populated for KindSubmitBets.
	Bets []bet.Bet
	// Agency is populated for KindWaitingForLottery.
	Agency uint8
}

// MessageKind tags the decoded Message variant.
type MessageKind int

const (
	KindSubmitBets MessageKind = iota
	KindWaitingForLottery
)

// Decode classifies and parses a frame payload per the bit-exact rule:
// length 1 is WaitingForLottery(payload[0]); length > 1 is SubmitBets,
// a sequence of <uint8 bet_len, bet_len bytes> records covering the
// payload exactly; length 0 is rejected.
func Decode(payload []byte) (Message, error) {
	switch {
	case len(payload) == 0:
		return Message{}, fmt.Errorf("%w: empty payload", ErrMalformedBatch)
	case len(payload) == 1:
		return Message{Kind: KindWaitingForLottery, Agency: payload[0]}, nil
	default:
		return decodeSubmitBets(payload)
	}
}

func decodeSubmitBets(payload []byte) (Message, error) {
	var bets []bet.Bet
	pos := 0
	for pos < len(payload) {
		betLen := int(payload[pos])
		pos++
		if betLen == 0 {
			return Message{}, fmt.Errorf("%w: zero-length bet record", ErrMalformedBatch)
		}
		if pos+betLen > len(payload) {
			return Message{}, fmt.Errorf("%w: bet length %d exceeds remaining payload", ErrMalformedBatch, betLen)
		}
		b, err := bet.Decode(payload[pos : pos+betLen])
		if err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
		}
		bets = append(bets, b)
		pos += betLen
	}
	return Message{Kind: KindSubmitBets, Bets: bets}, nil
}
