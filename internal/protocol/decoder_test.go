package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/fiuba-distribuidos/lottery-server/internal/bet"
)

func mkBet(agency uint8) bet.Bet {
	return bet.Bet{
		Agency:    agency,
		FirstName: "Ana",
		LastName:  "Diaz",
		Document:  12345678,
		Birthdate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Number:    4011,
	}
}

func TestDecode_EmptyPayloadRejected(t *testing.T) {
	if _, err := Decode(nil); !errors.Is(err, ErrMalformedBatch) {
		t.Fatalf("Decode(nil) error = %v, want ErrMalformedBatch", err)
	}
	if _, err := Decode([]byte{}); !errors.Is(err, ErrMalformedBatch) {
		t.Fatalf("Decode([]byte{}) error = %v, want ErrMalformedBatch", err)
	}
}

func TestDecode_SingleByteIsWaitingForLottery(t *testing.T) {
	msg, err := Decode([]byte{42})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Kind != KindWaitingForLottery || msg.Agency != 42 {
		t.Fatalf("got %+v, want WaitingForLottery(42)", msg)
	}
}

func TestDecode_SubmitBetsSingleRecord(t *testing.T) {
	b := mkBet(7)
	enc := bet.Encode(b)
	payload := append([]byte{byte(len(enc))}, enc...)

	msg, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Kind != KindSubmitBets || len(msg.Bets) != 1 || msg.Bets[0] != b {
		t.Fatalf("got %+v, want single bet %+v", msg, b)
	}
}

func TestDecode_SubmitBetsMultipleRecords(t *testing.T) {
	b1, b2 := mkBet(1), mkBet(2)
	var payload []byte
	for _, b := range []bet.Bet{b1, b2} {
		enc := bet.Encode(b)
		payload = append(payload, byte(len(enc)))
		payload = append(payload, enc...)
	}

	msg, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(msg.Bets) != 2 || msg.Bets[0] != b1 || msg.Bets[1] != b2 {
		t.Fatalf("got %+v, want [%+v %+v]", msg.Bets, b1, b2)
	}
}

func TestDecode_ZeroLengthBetRecordRejected(t *testing.T) {
	payload := []byte{0, 5} // zero-length record, then a trailing byte
	if _, err := Decode(payload); !errors.Is(err, ErrMalformedBatch) {
		t.Fatalf("error = %v, want ErrMalformedBatch", err)
	}
}

func TestDecode_BetLengthExceedsBufferRejected(t *testing.T) {
	payload := []byte{10, 1, 2, 3} // declares 10 bytes, only 3 follow
	if _, err := Decode(payload); !errors.Is(err, ErrMalformedBatch) {
		t.Fatalf("error = %v, want ErrMalformedBatch", err)
	}
}

func TestDecode_MalformedBetRecordRejected(t *testing.T) {
	enc := bet.Encode(mkBet(1))
	truncated := enc[:len(enc)-1]
	payload := append([]byte{byte(len(truncated))}, truncated...)
	if _, err := Decode(payload); !errors.Is(err, ErrMalformedBatch) {
		t.Fatalf("error = %v, want ErrMalformedBatch", err)
	}
}
