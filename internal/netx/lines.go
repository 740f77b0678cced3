package netx

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"arcadehub/internal/apperr"
)

// newline-delimited codec: payload terminated by '\n', no prefix.

// EncodeLine terminates payload with a newline.
func EncodeLine(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, apperr.Framing("empty line")
	}
	if len(payload) > MaxFrameSize {
		return nil, apperr.Framing(fmt.Sprintf("line too large: %d", len(payload)))
	}
	if bytes.IndexByte(payload, '\n') >= 0 {
		return nil, apperr.Framing("embedded newline")
	}
	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, payload...)
	return append(buf, '\n'), nil
}

// ReadLine returns the next non-empty line without its terminator. Lines
// longer than MaxFrameSize and a final unterminated line are framing errors.
func ReadLine(r *bufio.Reader) ([]byte, error) {
	for {
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(line)) > 0 {
			return line, nil
		}
	}
}

func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(line)+len(chunk) > MaxFrameSize+1 {
			return nil, apperr.Framing(fmt.Sprintf("line exceeds %d bytes", MaxFrameSize))
		}
		line = append(line, chunk...)
		switch {
		case err == nil:
			return bytes.TrimRight(line, "\r\n"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(line) == 0 {
				return nil, io.EOF
			}
			return nil, apperr.Wrap(apperr.CodeFraming, "truncated line", io.ErrUnexpectedEOF)
		default:
			return nil, err
		}
	}
}
