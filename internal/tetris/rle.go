package tetris

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodeRLE flattens the board row by row into "value:count" runs joined by
// ';'.
func EncodeRLE(b *Board) string {
	var sb strings.Builder
	last, count := b[0][0], 0
	flush := func() {
		if sb.Len() > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(strconv.Itoa(int(last)))
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(count))
	}
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			v := b[y][x]
			if v == last {
				count++
				continue
			}
			flush()
			last, count = v, 1
		}
	}
	flush()
	return sb.String()
}

// DecodeRLE is the inverse of EncodeRLE.
func DecodeRLE(s string) (Board, error) {
	var b Board
	i := 0
	for _, run := range strings.Split(s, ";") {
		val, cnt, ok := strings.Cut(run, ":")
		if !ok {
			return Board{}, fmt.Errorf("rle: malformed run %q", run)
		}
		v, err := strconv.ParseUint(val, 10, 8)
		if err != nil {
			return Board{}, fmt.Errorf("rle: value %q: %w", val, err)
		}
		n, err := strconv.Atoi(cnt)
		if err != nil || n <= 0 {
			return Board{}, fmt.Errorf("rle: count %q", cnt)
		}
		if i+n > Width*Height {
			return Board{}, fmt.Errorf("rle: runs exceed %d cells", Width*Height)
		}
		for ; n > 0; n-- {
			b[i/Width][i%Width] = uint8(v)
			i++
		}
	}
	if i != Width*Height {
		return Board{}, fmt.Errorf("rle: %d cells, want %d", i, Width*Height)
	}
	return b, nil
}
