package netx

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"arcadehub/internal/apperr"
)

// length-prefixed codec: [u32 big-endian len][payload bytes]

const (
	// MaxFrameSize bounds a single payload in either framing.
	MaxFrameSize = 64 * 1024
	headerSize   = 4
)

// Encode marshals v to JSON and frames it with a length prefix.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal frame: %w", err)
	}
	return EncodeFrame(b)
}

// EncodeFrame prefixes payload with its length.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, apperr.Framing("empty frame")
	}
	if len(payload) > MaxFrameSize {
		return nil, apperr.Framing(fmt.Sprintf("frame too large: %d", len(payload)))
	}
	buf := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[headerSize:], payload)
	return buf, nil
}

// ReadFrame blocks until one whole frame is available and returns its
// payload. A stream that ends exactly on a frame boundary yields io.EOF.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, apperr.Wrap(apperr.CodeFraming, "truncated length prefix", err)
		}
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n == 0 {
		return nil, apperr.Framing("empty frame")
	}
	if n > MaxFrameSize {
		return nil, apperr.Framing(fmt.Sprintf("frame too large: %d", n))
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, apperr.Wrap(apperr.CodeFraming, "truncated payload", err)
		}
		return nil, err
	}
	return buf, nil
}

// Decode reads one frame and unmarshals it into v.
func Decode(r io.Reader, v any) error {
	b, err := ReadFrame(r)
	if err != nil {
		return err
	}
	return Unmarshal(b, v)
}

// Unmarshal decodes a structured payload, reporting bad JSON as a framing
// error.
func Unmarshal(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return apperr.Wrap(apperr.CodeFraming, "malformed payload", err)
	}
	return nil
}
