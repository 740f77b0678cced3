package tetris

// Board dimensions.
const (
	Width  = 10
	Height = 20
)

// Board is the locked-cell grid, row-major from the top. Zero is empty; a
// locked cell holds the Kind that filled it.
type Board [Height][Width]uint8

// Fits reports whether p lies within bounds over empty cells only.
func (b *Board) Fits(p Piece) bool {
	if p.Kind == KindNone {
		return false
	}
	for _, c := range p.Cells() {
		if c.X < 0 || c.X >= Width || c.Y < 0 || c.Y >= Height {
			return false
		}
		if b[c.Y][c.X] != 0 {
			return false
		}
	}
	return true
}

// Lock writes p into the grid.
func (b *Board) Lock(p Piece) {
	for _, c := range p.Cells() {
		if c.X >= 0 && c.X < Width && c.Y >= 0 && c.Y < Height {
			b[c.Y][c.X] = uint8(p.Kind)
		}
	}
}

// ClearLines removes every full row, shifting rows above down and inserting
// empty rows at the top. It returns the number of rows removed.
func (b *Board) ClearLines() int {
	var next Board
	dst := Height - 1
	for y := Height - 1; y >= 0; y-- {
		if b.full(y) {
			continue
		}
		next[dst] = b[y]
		dst--
	}
	*b = next
	return dst + 1
}

func (b *Board) full(y int) bool {
	for x := 0; x < Width; x++ {
		if b[y][x] == 0 {
			return false
		}
	}
	return true
}

// lineScore is the score awarded for clearing n rows at once.
func lineScore(n int) int {
	switch {
	case n <= 0:
		return 0
	case n == 1:
		return 100
	case n == 2:
		return 300
	case n == 3:
		return 500
	case n == 4:
		return 800
	default:
		return 1200
	}
}
