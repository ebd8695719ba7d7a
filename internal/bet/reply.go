package bet

// RejectedAck is the sentinel acknowledgement count (encoded as 0xFFFF)
// signalling that a submitted batch was rejected.
const RejectedAck = -1

// EncodeBetsAck builds the server's acknowledgement payload for a
// SubmitBets message: uint16 LE length (always 2) followed by uint16 LE
// count, where count is RejectedAck (encoded as 0xFFFF) on rejection.
func EncodeBetsAck(n int32) []byte {
	var count uint16
	if n == RejectedAck {
		count = 0xFFFF
	} else {
		count = uint16(n)
	}
	out := make([]byte, 0, 4)
	out = appendUint16LE(out, 2)
	out = appendUint16LE(out, count)
	return out
}

// EncodeWinners builds the payload sent to a parked agency after the
// barrier: uint16 LE length, uint16 LE count, then count uint32 LE
// documents.
func EncodeWinners(docs []uint32) []byte {
	inner := make([]byte, 0, 2+4*len(docs))
	inner = appendUint16LE(inner, uint16(len(docs)))
	for _, d := range docs {
		inner = appendUint32LE(inner, d)
	}
	out := make([]byte, 0, 2+len(inner))
	out = appendUint16LE(out, uint16(len(inner)))
	out = append(out, inner...)
	return out
}
