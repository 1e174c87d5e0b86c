// Package game is the authoritative turn function run by the MASTER:
// snake movement on a torus, collisions, food and scoring, snake placement
// and deputy succession.
//
// The outermost ring of cells is reserved. A head leaving the interior on
// one side re-enters on the opposite interior edge.
package game

import pb "github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/proto"

// Board is the playing field of a game configuration.
type Board struct {
	Width  int32
	Height int32
}

func NewBoard(cfg pb.GameConfig) Board {
	return Board{Width: cfg.Width, Height: cfg.Height}
}

// InteriorWidth is the number of playable columns.
func (b Board) InteriorWidth() int32 { return b.Width - 2 }

// InteriorHeight is the number of playable rows.
func (b Board) InteriorHeight() int32 { return b.Height - 2 }

// Interior reports whether c lies inside the playable area.
func (b Board) Interior(c pb.Coord) bool {
	return c.X >= 1 && c.X <= b.Width-2 && c.Y >= 1 && c.Y <= b.Height-2
}

// Step moves c by n cells in direction dir, wrapping over the interior.
func (b Board) Step(c pb.Coord, dir pb.Direction, n int32) pb.Coord {
	d := Delta(dir)
	return pb.Coord{
		X: 1 + mod(c.X-1+d.X*n, b.InteriorWidth()),
		Y: 1 + mod(c.Y-1+d.Y*n, b.InteriorHeight()),
	}
}

func mod(a, m int32) int32 {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

// Delta is the unit offset of dir. UP decreases y.
func Delta(dir pb.Direction) pb.Coord {
	switch dir {
	case pb.Direction_UP:
		return pb.Coord{Y: -1}
	case pb.Direction_DOWN:
		return pb.Coord{Y: 1}
	case pb.Direction_LEFT:
		return pb.Coord{X: -1}
	case pb.Direction_RIGHT:
		return pb.Coord{X: 1}
	}
	return pb.Coord{}
}

func Opposite(dir pb.Direction) pb.Direction {
	switch dir {
	case pb.Direction_UP:
		return pb.Direction_DOWN
	case pb.Direction_DOWN:
		return pb.Direction_UP
	case pb.Direction_LEFT:
		return pb.Direction_RIGHT
	case pb.Direction_RIGHT:
		return pb.Direction_LEFT
	}
	return dir
}

// runDirection returns the direction and length of a body run.
func runDirection(run pb.Coord) (pb.Direction, int32) {
	switch {
	case run.X > 0:
		return pb.Direction_RIGHT, run.X
	case run.X < 0:
		return pb.Direction_LEFT, -run.X
	case run.Y > 0:
		return pb.Direction_DOWN, run.Y
	case run.Y < 0:
		return pb.Direction_UP, -run.Y
	}
	return 0, 0
}
