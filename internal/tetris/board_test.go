package tetris

import (
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillRow(b *Board, y int, gaps ...int) {
	for x := 0; x < Width; x++ {
		b[y][x] = uint8(KindO)
	}
	for _, x := range gaps {
		b[y][x] = 0
	}
}

func TestBoardFits(t *testing.T) {
	var b Board
	assert.True(t, b.Fits(Spawn(KindT)))
	assert.False(t, b.Fits(Piece{}), "no piece never fits")
	assert.False(t, b.Fits(Spawn(KindI).Moved(-4, 0)))
	assert.False(t, b.Fits(Spawn(KindI).Moved(0, Height)))

	b[1][4] = uint8(KindZ)
	assert.False(t, b.Fits(Spawn(KindT)))
}

func TestBoardClearLines(t *testing.T) {
	var b Board
	fillRow(&b, Height-1)
	fillRow(&b, Height-2, 3)
	fillRow(&b, Height-3)
	b[Height-4][0] = uint8(KindL)

	n := b.ClearLines()
	require.Equal(t, 2, n)

	var want Board
	fillRow(&want, Height-1, 3)
	want[Height-2][0] = uint8(KindL)
	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("board mismatch (-want +got):\n%s", diff)
	}
	assert.Zero(t, b.ClearLines())
}

func TestLineScore(t *testing.T) {
	for n, want := range map[int]int{0: 0, 1: 100, 2: 300, 3: 500, 4: 800, 5: 1200} {
		assert.Equal(t, want, lineScore(n), "n=%d", n)
	}
}

func TestRLE(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var b Board
		assert.Equal(t, "0:200", EncodeRLE(&b))
	})
	t.Run("full", func(t *testing.T) {
		var b Board
		for y := range Height {
			fillRow(&b, y)
		}
		assert.Equal(t, "2:200", EncodeRLE(&b))
	})
	t.Run("round trip", func(t *testing.T) {
		r := rand.New(rand.NewPCG(7, 11))
		for range 50 {
			var b Board
			for y := range Height {
				for x := range Width {
					if r.IntN(3) == 0 {
						b[y][x] = uint8(r.IntN(7) + 1)
					}
				}
			}
			got, err := DecodeRLE(EncodeRLE(&b))
			require.NoError(t, err)
			if diff := cmp.Diff(b, got); diff != "" {
				t.Fatalf("round trip (-want +got):\n%s", diff)
			}
		}
	})
	t.Run("malformed", func(t *testing.T) {
		for _, s := range []string{"", "0:199", "0:201", "x:200", "0-200", "0:0;0:200"} {
			_, err := DecodeRLE(s)
			assert.Error(t, err, s)
		}
	})
}
