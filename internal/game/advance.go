package game

import (
	"errors"
	"sort"

	pb "github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/proto"
)

var (
	ErrNoRoom    = errors.New("no free 5x5 square for a new snake")
	ErrBoardFull = errors.New("no free cell for food")
)

// Rand is the randomness Advance and PlaceSnake need. *math/rand.Rand
// satisfies it.
type Rand interface {
	Int31n(n int32) int32
}

// Outcome reports what a turn changed besides the state itself.
type Outcome struct {
	// Dead lists players whose snake died this turn, in snake order.
	Dead []int32
	// NewDeputy is set when a NORMAL player was promoted this turn.
	NewDeputy int32
	Promoted  bool
	// Err is ErrBoardFull when the food restock could not complete.
	Err error
}

// Advance computes the next turn from prev. prev is not modified.
// Directions in steers must already be validated with ValidSteer; an
// invalid or reversing direction is still ignored here.
func Advance(prev *pb.GameState, steers map[int32]pb.Direction, cfg pb.GameConfig, rng Rand) (*pb.GameState, Outcome) {
	b := NewBoard(cfg)
	next := prev.Clone()
	next.StateOrder++
	var out Outcome

	for i := range next.Snakes {
		s := &next.Snakes[i]
		dir := s.HeadDirection
		if d, ok := steers[s.PlayerId]; ok && d.Valid() && d != Opposite(s.HeadDirection) {
			dir = d
		}
		Move(b, s, dir)

		if idx := indexOf(next.Foods, s.Points[0]); idx >= 0 {
			next.Foods = append(next.Foods[:idx], next.Foods[idx+1:]...)
			if p, ok := next.Player(s.PlayerId); ok {
				p.Score++
			}
			continue
		}
		Retract(s)
	}

	occupied := make(map[pb.Coord]int)
	for i := range next.Snakes {
		for _, c := range Cells(b, &next.Snakes[i]) {
			occupied[c]++
		}
	}
	alive := next.Snakes[:0]
	for _, s := range next.Snakes {
		if occupied[s.Points[0]] > 1 {
			out.Dead = append(out.Dead, s.PlayerId)
			continue
		}
		alive = append(alive, s)
	}
	next.Snakes = alive
	if len(next.Snakes) == 0 {
		next.Snakes = nil
	}
	for _, id := range out.Dead {
		if p, ok := next.Player(id); ok && p.Role != pb.NodeRole_MASTER {
			p.Role = pb.NodeRole_VIEWER
		}
	}

	if err := restockFood(b, next, cfg.FoodStatic, rng); err != nil {
		out.Err = err
	}

	if id, ok := PromoteDeputy(next); ok {
		out.NewDeputy = id
		out.Promoted = true
	}
	return next, out
}

func indexOf(cells []pb.Coord, c pb.Coord) int {
	for i, f := range cells {
		if f == c {
			return i
		}
	}
	return -1
}

// occupancy returns every cell covered by a snake.
func occupancy(b Board, state *pb.GameState) map[pb.Coord]struct{} {
	cells := make(map[pb.Coord]struct{})
	for i := range state.Snakes {
		for _, c := range Cells(b, &state.Snakes[i]) {
			cells[c] = struct{}{}
		}
	}
	return cells
}

const foodRandomTries = 64

// restockFood tops the food list up to target. Cells are sampled at random
// first, then the interior is scanned in order.
func restockFood(b Board, state *pb.GameState, target int32, rng Rand) error {
	if int32(len(state.Foods)) >= target {
		return nil
	}
	taken := occupancy(b, state)
	for _, f := range state.Foods {
		taken[f] = struct{}{}
	}

	for int32(len(state.Foods)) < target {
		c, ok := freeCell(b, taken, rng)
		if !ok {
			return ErrBoardFull
		}
		taken[c] = struct{}{}
		state.Foods = append(state.Foods, c)
	}
	return nil
}

func freeCell(b Board, taken map[pb.Coord]struct{}, rng Rand) (pb.Coord, bool) {
	for i := 0; i < foodRandomTries; i++ {
		c := pb.Coord{
			X: 1 + rng.Int31n(b.InteriorWidth()),
			Y: 1 + rng.Int31n(b.InteriorHeight()),
		}
		if _, ok := taken[c]; !ok {
			return c, true
		}
	}
	for y := int32(1); y <= b.Height-2; y++ {
		for x := int32(1); x <= b.Width-2; x++ {
			c := pb.Coord{X: x, Y: y}
			if _, ok := taken[c]; !ok {
				return c, true
			}
		}
	}
	return pb.Coord{}, false
}

// Scores returns the players ordered by score, best first.
func Scores(state *pb.GameState) []pb.GamePlayer {
	players := append([]pb.GamePlayer(nil), state.Players...)
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Score > players[j].Score
	})
	return players
}
