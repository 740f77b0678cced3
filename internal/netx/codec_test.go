package netx

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcadehub/internal/apperr"
)

type sample struct {
	Type string `json:"type"`
	N    int    `json:"n"`
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	for i := 0; i < 3; i++ {
		b, err := Encode(sample{Type: "X", N: i})
		require.NoError(t, err)
		assert.Equal(t, uint32(len(b)-headerSize), binary.BigEndian.Uint32(b))
		buf.Write(b)
	}
	for i := 0; i < 3; i++ {
		var got sample
		require.NoError(t, Decode(&buf, &got))
		assert.Equal(t, sample{Type: "X", N: i}, got)
	}
	var got sample
	assert.ErrorIs(t, Decode(&buf, &got), io.EOF)
}

func TestReadFrameFailures(t *testing.T) {
	oversize := make([]byte, headerSize)
	binary.BigEndian.PutUint32(oversize, MaxFrameSize+1)

	cases := map[string][]byte{
		"truncated prefix":  {0, 0},
		"zero length":       {0, 0, 0, 0},
		"oversize":          oversize,
		"truncated payload": append([]byte{0, 0, 0, 10}, []byte(`{"a"`)...),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(in))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrFraming)
		})
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	b, err := EncodeFrame([]byte("{not json"))
	require.NoError(t, err)
	var v sample
	assert.ErrorIs(t, Decode(bytes.NewReader(b), &v), apperr.ErrFraming)
}

func TestEncodeFrameLimits(t *testing.T) {
	_, err := EncodeFrame(nil)
	assert.ErrorIs(t, err, apperr.ErrFraming)
	_, err = EncodeFrame(make([]byte, MaxFrameSize+1))
	assert.ErrorIs(t, err, apperr.ErrFraming)
	_, err = EncodeFrame(make([]byte, MaxFrameSize))
	assert.NoError(t, err)
}

func TestReadLine(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("{\"type\":\"CHAT\"}\r\n\n  \nD:1,2,3\nCLR\n"))

	line, err := ReadLine(r)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"CHAT"}`, string(line))

	line, err = ReadLine(r)
	require.NoError(t, err)
	assert.Equal(t, "D:1,2,3", string(line))

	line, err = ReadLine(r)
	require.NoError(t, err)
	assert.Equal(t, "CLR", string(line))

	_, err = ReadLine(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadLineFailures(t *testing.T) {
	_, err := ReadLine(bufio.NewReader(strings.NewReader("no newline")))
	assert.ErrorIs(t, err, apperr.ErrFraming)

	long := strings.Repeat("x", MaxFrameSize+10) + "\n"
	_, err = ReadLine(bufio.NewReader(strings.NewReader(long)))
	assert.ErrorIs(t, err, apperr.ErrFraming)
}

func TestFramersClassifyRawLines(t *testing.T) {
	for _, f := range []Framer{LengthPrefixed, Lines} {
		t.Run(f.Name(), func(t *testing.T) {
			var buf bytes.Buffer
			for _, fr := range []Frame{{Payload: []byte(`{"type":"CHAT"}`)}, RawFrame([]byte("D:10,20,#000,2"))} {
				b, err := f.EncodeFrame(fr)
				require.NoError(t, err)
				buf.Write(b)
			}
			r := bufio.NewReader(&buf)

			got, err := f.ReadFrame(r)
			require.NoError(t, err)
			assert.False(t, got.Raw)

			got, err = f.ReadFrame(r)
			require.NoError(t, err)
			assert.True(t, got.Raw)
			assert.Equal(t, "D:10,20,#000,2", string(got.Payload))
		})
	}
}

func TestFramerByName(t *testing.T) {
	assert.Equal(t, Lines, FramerByName("lines"))
	assert.Equal(t, LengthPrefixed, FramerByName("length"))
	assert.Equal(t, LengthPrefixed, FramerByName(""))
}
