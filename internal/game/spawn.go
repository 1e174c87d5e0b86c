package game

import pb "github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/proto"

const spawnSquare = 5

var directions = [...]pb.Direction{pb.Direction_UP, pb.Direction_DOWN, pb.Direction_LEFT, pb.Direction_RIGHT}

// PlaceSnake adds a two-cell snake for playerID in the centre of a free 5x5
// interior square. The head and the tail are never placed on food.
func PlaceSnake(state *pb.GameState, cfg pb.GameConfig, playerID int32, rng Rand) error {
	b := NewBoard(cfg)
	snake, ok := findSpawn(b, state, rng)
	if !ok {
		return ErrNoRoom
	}
	snake.PlayerId = playerID
	state.Snakes = append(state.Snakes, snake)
	return nil
}

// HasRoom reports whether PlaceSnake would succeed.
func HasRoom(state *pb.GameState, cfg pb.GameConfig) bool {
	_, ok := findSpawn(NewBoard(cfg), state, nil)
	return ok
}

// findSpawn scans candidate squares starting at a random one. A nil rng
// starts at the top-left square and tries directions in order.
func findSpawn(b Board, state *pb.GameState, rng Rand) (pb.Snake, bool) {
	cols := b.InteriorWidth() - spawnSquare + 1
	rows := b.InteriorHeight() - spawnSquare + 1
	if cols <= 0 || rows <= 0 {
		return pb.Snake{}, false
	}

	taken := occupancy(b, state)
	food := make(map[pb.Coord]struct{}, len(state.Foods))
	for _, f := range state.Foods {
		food[f] = struct{}{}
	}

	total := cols * rows
	var start, dirStart int32
	if rng != nil {
		start = rng.Int31n(total)
		dirStart = rng.Int31n(int32(len(directions)))
	}

	for i := int32(0); i < total; i++ {
		k := (start + i) % total
		x0, y0 := 1+k%cols, 1+k/cols
		if !squareFree(taken, x0, y0) {
			continue
		}
		head := pb.Coord{X: x0 + spawnSquare/2, Y: y0 + spawnSquare/2}
		if _, ok := food[head]; ok {
			continue
		}
		for j := range directions {
			dir := directions[(int(dirStart)+j)%len(directions)]
			back := Delta(Opposite(dir))
			tail := pb.Coord{X: head.X + back.X, Y: head.Y + back.Y}
			if _, ok := food[tail]; ok {
				continue
			}
			return pb.Snake{
				Points:        []pb.Coord{head, back},
				State:         pb.SnakeState_ALIVE,
				HeadDirection: dir,
			}, true
		}
	}
	return pb.Snake{}, false
}

func squareFree(taken map[pb.Coord]struct{}, x0, y0 int32) bool {
	for y := y0; y < y0+spawnSquare; y++ {
		for x := x0; x < x0+spawnSquare; x++ {
			if _, ok := taken[pb.Coord{X: x, Y: y}]; ok {
				return false
			}
		}
	}
	return true
}
