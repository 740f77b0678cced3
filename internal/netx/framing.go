package netx

import (
	"bufio"
	"bytes"

	"arcadehub/internal/protocol"
)

// Frame is one unit read from or written to a stream. Raw frames carry a
// pass-through line verbatim and never reach the JSON decoder.
type Frame struct {
	Raw     bool
	Payload []byte
}

// RawFrame wraps a pass-through line.
func RawFrame(line []byte) Frame { return Frame{Raw: true, Payload: line} }

// IsRaw reports whether payload starts with a reserved raw-command prefix.
func IsRaw(payload []byte) bool {
	for _, p := range protocol.RawPrefixes {
		if bytes.HasPrefix(payload, []byte(p)) {
			return true
		}
	}
	return false
}

// Framer turns frames into bytes on the wire and back. Both framings
// multiplex structured JSON payloads with raw lines on the same stream.
type Framer interface {
	Name() string
	ReadFrame(r *bufio.Reader) (Frame, error)
	EncodeFrame(f Frame) ([]byte, error)
}

var (
	// LengthPrefixed is the default framing for lobby and match traffic.
	LengthPrefixed Framer = lengthPrefixed{}
	// Lines is the newline-delimited framing used by line-oriented engines.
	Lines Framer = lines{}
)

// FramerByName resolves "length" or "lines"; anything else is length-prefixed.
func FramerByName(name string) Framer {
	if name == Lines.Name() {
		return Lines
	}
	return LengthPrefixed
}

type lengthPrefixed struct{}

func (lengthPrefixed) Name() string { return "length" }

func (lengthPrefixed) ReadFrame(r *bufio.Reader) (Frame, error) {
	b, err := ReadFrame(r)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Raw: IsRaw(b), Payload: b}, nil
}

func (lengthPrefixed) EncodeFrame(f Frame) ([]byte, error) {
	return EncodeFrame(f.Payload)
}

type lines struct{}

func (lines) Name() string { return "lines" }

func (lines) ReadFrame(r *bufio.Reader) (Frame, error) {
	b, err := ReadLine(r)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Raw: IsRaw(b), Payload: b}, nil
}

func (lines) EncodeFrame(f Frame) ([]byte, error) {
	return EncodeLine(f.Payload)
}
