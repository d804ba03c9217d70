// Package chunk frames binary stream chunks.
//
// Layout: one byte holding the id length, the stream id as ASCII decimal
// (sign included), then the payload.
package chunk

import (
	"errors"
	"strconv"
)

const maxIDLen = 20

var (
	ErrEmptyFrame = errors.New("chunk: empty frame")
	ErrShortFrame = errors.New("chunk: frame shorter than id length")
	ErrInvalidID  = errors.New("chunk: invalid stream id")
)

// Encode frames payload for stream id.
func Encode(id int64, payload []byte) []byte {
	idText := strconv.FormatInt(id, 10)
	buf := make([]byte, 0, 1+len(idText)+len(payload))
	buf = append(buf, byte(len(idText)))
	buf = append(buf, idText...)
	buf = append(buf, payload...)
	return buf
}

// Decode splits a frame into stream id and payload. The payload aliases frame.
func Decode(frame []byte) (int64, []byte, error) {
	if len(frame) == 0 {
		return 0, nil, ErrEmptyFrame
	}
	idLen := int(frame[0])
	if idLen == 0 || idLen > maxIDLen {
		return 0, nil, ErrInvalidID
	}
	if len(frame) < 1+idLen {
		return 0, nil, ErrShortFrame
	}
	id, err := strconv.ParseInt(string(frame[1:1+idLen]), 10, 64)
	if err != nil {
		return 0, nil, ErrInvalidID
	}
	return id, frame[1+idLen:], nil
}
