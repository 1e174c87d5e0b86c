package game

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	pb "github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/proto"
)

func cfg(w, h, food int32) pb.GameConfig {
	return pb.GameConfig{Width: w, Height: h, FoodStatic: food, StateDelayMs: 100}
}

func newRand() *rand.Rand {
	return rand.New(rand.NewSource(7))
}

func TestStepWrapsOverInterior(t *testing.T) {
	b := Board{Width: 20, Height: 20}
	tests := []struct {
		from pb.Coord
		dir  pb.Direction
		want pb.Coord
	}{
		{pb.Coord{X: 18, Y: 5}, pb.Direction_RIGHT, pb.Coord{X: 1, Y: 5}},
		{pb.Coord{X: 1, Y: 5}, pb.Direction_LEFT, pb.Coord{X: 18, Y: 5}},
		{pb.Coord{X: 3, Y: 1}, pb.Direction_UP, pb.Coord{X: 3, Y: 18}},
		{pb.Coord{X: 3, Y: 18}, pb.Direction_DOWN, pb.Coord{X: 3, Y: 1}},
		{pb.Coord{X: 4, Y: 2}, pb.Direction_RIGHT, pb.Coord{X: 5, Y: 2}},
	}
	for _, tt := range tests {
		if got := b.Step(tt.from, tt.dir, 1); got != tt.want {
			t.Errorf("Step(%v, %v) = %v, want %v", tt.from, tt.dir, got, tt.want)
		}
	}
}

func scenario(food []pb.Coord) *pb.GameState {
	return &pb.GameState{
		StateOrder: 1,
		Snakes: []pb.Snake{{
			PlayerId:      1,
			Points:        []pb.Coord{{X: 4, Y: 2}, {X: -1, Y: 0}},
			HeadDirection: pb.Direction_RIGHT,
		}},
		Foods:   food,
		Players: []pb.GamePlayer{{Name: "a", Id: 1, Role: pb.NodeRole_MASTER}},
	}
}

func TestAdvanceMovesAndRetracts(t *testing.T) {
	prev := scenario(nil)
	next, out := Advance(prev, nil, cfg(20, 20, 1), newRand())

	if next.StateOrder != 2 {
		t.Errorf("state order = %d, want 2", next.StateOrder)
	}
	got := Cells(NewBoard(cfg(20, 20, 1)), &next.Snakes[0])
	want := []pb.Coord{{X: 5, Y: 2}, {X: 4, Y: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("cells = %v, want %v", got, want)
	}
	if len(next.Foods) != 1 {
		t.Errorf("foods = %d, want 1", len(next.Foods))
	}
	if out.Err != nil || len(out.Dead) != 0 {
		t.Errorf("unexpected outcome %+v", out)
	}
	if prev.StateOrder != 1 || prev.Snakes[0].Points[0] != (pb.Coord{X: 4, Y: 2}) {
		t.Error("Advance modified its input")
	}
}

func TestAdvanceEatsFood(t *testing.T) {
	prev := scenario([]pb.Coord{{X: 5, Y: 2}})
	c := cfg(20, 20, 1)
	next, _ := Advance(prev, nil, c, newRand())

	s := &next.Snakes[0]
	if Length(s) != 3 {
		t.Errorf("length = %d, want 3", Length(s))
	}
	want := []pb.Coord{{X: 5, Y: 2}, {X: 4, Y: 2}, {X: 3, Y: 2}}
	if got := Cells(NewBoard(c), s); !reflect.DeepEqual(got, want) {
		t.Errorf("cells = %v, want %v", got, want)
	}
	if next.Players[0].Score != 1 {
		t.Errorf("score = %d, want 1", next.Players[0].Score)
	}
	for _, f := range next.Foods {
		if f == (pb.Coord{X: 5, Y: 2}) {
			t.Error("eaten food still on the board")
		}
	}
}

func TestAdvanceSteering(t *testing.T) {
	c := cfg(20, 20, 0)

	next, _ := Advance(scenario(nil), map[int32]pb.Direction{1: pb.Direction_DOWN}, c, newRand())
	if head := next.Snakes[0].Points[0]; head != (pb.Coord{X: 4, Y: 3}) {
		t.Errorf("head after DOWN = %v", head)
	}
	if next.Snakes[0].HeadDirection != pb.Direction_DOWN {
		t.Errorf("heading = %v", next.Snakes[0].HeadDirection)
	}

	next, _ = Advance(scenario(nil), map[int32]pb.Direction{1: pb.Direction_LEFT}, c, newRand())
	if head := next.Snakes[0].Points[0]; head != (pb.Coord{X: 5, Y: 2}) {
		t.Errorf("reverse steer applied, head = %v", head)
	}
}

func TestAdvanceHeadIntoBodyKills(t *testing.T) {
	state := &pb.GameState{
		Snakes: []pb.Snake{
			{PlayerId: 1, Points: []pb.Coord{{X: 5, Y: 5}, {X: -1, Y: 0}}, HeadDirection: pb.Direction_RIGHT},
			{PlayerId: 2, Points: []pb.Coord{{X: 6, Y: 4}, {X: 0, Y: 2}}, HeadDirection: pb.Direction_UP},
		},
		Players: []pb.GamePlayer{
			{Id: 1, Role: pb.NodeRole_NORMAL},
			{Id: 2, Role: pb.NodeRole_MASTER},
		},
	}
	next, out := Advance(state, nil, cfg(20, 20, 0), newRand())

	if !reflect.DeepEqual(out.Dead, []int32{1}) {
		t.Fatalf("dead = %v, want [1]", out.Dead)
	}
	if len(next.Snakes) != 1 || next.Snakes[0].PlayerId != 2 {
		t.Fatalf("snakes = %+v", next.Snakes)
	}
	p, _ := next.Player(1)
	if p.Role != pb.NodeRole_VIEWER {
		t.Errorf("dead player role = %v, want VIEWER", p.Role)
	}
}

// The MASTER keeps leading without a snake, so its record stays MASTER.
func TestAdvanceMasterSnakeDiesKeepsRole(t *testing.T) {
	state := &pb.GameState{
		Snakes: []pb.Snake{
			{PlayerId: 1, Points: []pb.Coord{{X: 5, Y: 5}, {X: -1, Y: 0}}, HeadDirection: pb.Direction_RIGHT},
			{PlayerId: 2, Points: []pb.Coord{{X: 6, Y: 4}, {X: 0, Y: 2}}, HeadDirection: pb.Direction_UP},
		},
		Players: []pb.GamePlayer{
			{Id: 1, Role: pb.NodeRole_MASTER},
			{Id: 2, Role: pb.NodeRole_NORMAL},
		},
	}
	next, out := Advance(state, nil, cfg(20, 20, 0), newRand())

	if !reflect.DeepEqual(out.Dead, []int32{1}) {
		t.Fatalf("dead = %v, want [1]", out.Dead)
	}
	if _, ok := next.Snake(1); ok {
		t.Error("dead master snake kept")
	}
	master, _ := next.Player(1)
	if master.Role != pb.NodeRole_MASTER {
		t.Errorf("master role = %v, want MASTER", master.Role)
	}
	if leader, ok := next.PlayerWithRole(pb.NodeRole_MASTER); !ok || leader.Id != 1 {
		t.Error("state lost its MASTER")
	}
	if !out.Promoted || out.NewDeputy != 2 {
		t.Errorf("promotion = %v %d, want player 2", out.Promoted, out.NewDeputy)
	}
}

func TestAdvanceHeadOnBothDie(t *testing.T) {
	state := &pb.GameState{
		Snakes: []pb.Snake{
			{PlayerId: 1, Points: []pb.Coord{{X: 4, Y: 5}, {X: -1, Y: 0}}, HeadDirection: pb.Direction_RIGHT},
			{PlayerId: 2, Points: []pb.Coord{{X: 6, Y: 5}, {X: 1, Y: 0}}, HeadDirection: pb.Direction_LEFT},
		},
		Players: []pb.GamePlayer{
			{Id: 1, Role: pb.NodeRole_MASTER},
			{Id: 2, Role: pb.NodeRole_DEPUTY},
		},
	}
	next, out := Advance(state, nil, cfg(20, 20, 0), newRand())
	if len(out.Dead) != 2 || len(next.Snakes) != 0 {
		t.Fatalf("dead = %v, snakes = %d", out.Dead, len(next.Snakes))
	}
	master, _ := next.Player(1)
	if master.Role != pb.NodeRole_MASTER {
		t.Errorf("master role = %v, should stay MASTER", master.Role)
	}
	deputy, _ := next.Player(2)
	if deputy.Role != pb.NodeRole_VIEWER {
		t.Errorf("deputy role = %v, want VIEWER", deputy.Role)
	}
}

func TestAdvanceChasingOwnTailSurvives(t *testing.T) {
	state := &pb.GameState{
		Snakes: []pb.Snake{{
			PlayerId:      1,
			Points:        []pb.Coord{{X: 5, Y: 5}, {X: 0, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: -1}},
			HeadDirection: pb.Direction_UP,
		}},
		Players: []pb.GamePlayer{{Id: 1, Role: pb.NodeRole_MASTER}},
	}
	next, out := Advance(state, map[int32]pb.Direction{1: pb.Direction_RIGHT}, cfg(20, 20, 0), newRand())
	if len(out.Dead) != 0 {
		t.Fatalf("snake died chasing its vacated tail")
	}
	if Length(&next.Snakes[0]) != 4 {
		t.Errorf("length = %d, want 4", Length(&next.Snakes[0]))
	}
}

func TestAdvancePromotesDeputyAfterDeath(t *testing.T) {
	state := &pb.GameState{
		Snakes: []pb.Snake{
			{PlayerId: 2, Points: []pb.Coord{{X: 4, Y: 5}, {X: -1, Y: 0}}, HeadDirection: pb.Direction_RIGHT},
			{PlayerId: 3, Points: []pb.Coord{{X: 6, Y: 5}, {X: 1, Y: 0}}, HeadDirection: pb.Direction_LEFT},
			{PlayerId: 4, Points: []pb.Coord{{X: 10, Y: 10}, {X: 1, Y: 0}}, HeadDirection: pb.Direction_LEFT},
		},
		Players: []pb.GamePlayer{
			{Id: 1, Role: pb.NodeRole_MASTER},
			{Id: 2, Role: pb.NodeRole_DEPUTY},
			{Id: 3, Role: pb.NodeRole_NORMAL},
			{Id: 4, Role: pb.NodeRole_NORMAL},
		},
	}
	next, out := Advance(state, nil, cfg(20, 20, 0), newRand())
	if !out.Promoted || out.NewDeputy != 4 {
		t.Fatalf("outcome = %+v, want player 4 promoted", out)
	}
	p, _ := next.Player(4)
	if p.Role != pb.NodeRole_DEPUTY {
		t.Errorf("role = %v", p.Role)
	}
}

func TestAdvanceKeepsOuterRingFree(t *testing.T) {
	c := cfg(12, 10, 3)
	b := NewBoard(c)
	rng := newRand()
	state := &pb.GameState{
		Snakes: []pb.Snake{{
			PlayerId:      1,
			Points:        []pb.Coord{{X: 8, Y: 1}, {X: -1, Y: 0}},
			HeadDirection: pb.Direction_RIGHT,
		}},
		Players: []pb.GamePlayer{{Id: 1, Role: pb.NodeRole_MASTER}},
	}

	for turn := 0; turn < 200 && len(state.Snakes) > 0; turn++ {
		steers := map[int32]pb.Direction{1: directions[rng.Intn(len(directions))]}
		state, _ = Advance(state, steers, c, rng)
		for i := range state.Snakes {
			for _, cell := range Cells(b, &state.Snakes[i]) {
				if !b.Interior(cell) {
					t.Fatalf("turn %d: cell %v in the outer ring", turn, cell)
				}
			}
		}
		for _, f := range state.Foods {
			if !b.Interior(f) {
				t.Fatalf("turn %d: food %v in the outer ring", turn, f)
			}
		}
	}
}

func TestRestockBoardFull(t *testing.T) {
	c := cfg(10, 10, 65)
	state := &pb.GameState{}
	for y := int32(1); y <= 8; y++ {
		for x := int32(1); x <= 8; x++ {
			if x == 8 && y == 8 {
				continue
			}
			state.Foods = append(state.Foods, pb.Coord{X: x, Y: y})
		}
	}

	next, out := Advance(state, nil, c, newRand())
	if !errors.Is(out.Err, ErrBoardFull) {
		t.Fatalf("err = %v, want ErrBoardFull", out.Err)
	}
	if len(next.Foods) != 64 {
		t.Errorf("foods = %d, want 64", len(next.Foods))
	}
}

func TestPlaceSnake(t *testing.T) {
	c := cfg(10, 10, 0)
	b := NewBoard(c)
	state := &pb.GameState{Foods: []pb.Coord{{X: 3, Y: 3}}}

	if err := PlaceSnake(state, c, 9, newRand()); err != nil {
		t.Fatal(err)
	}
	s, ok := state.Snake(9)
	if !ok {
		t.Fatal("snake not added")
	}
	cells := Cells(b, s)
	if len(cells) != 2 {
		t.Fatalf("cells = %v, want two", cells)
	}
	for _, cell := range cells {
		if !b.Interior(cell) {
			t.Errorf("cell %v outside interior", cell)
		}
		if cell == (pb.Coord{X: 3, Y: 3}) {
			t.Errorf("snake placed on food")
		}
	}
	if cells[1] != b.Step(cells[0], Opposite(s.HeadDirection), 1) {
		t.Errorf("tail %v is not behind head %v heading %v", cells[1], cells[0], s.HeadDirection)
	}
}

func TestPlaceSnakeNoRoom(t *testing.T) {
	c := cfg(10, 10, 0)
	state := &pb.GameState{
		Snakes: []pb.Snake{{PlayerId: 1, Points: []pb.Coord{{X: 5, Y: 1}, {X: 0, Y: 7}}, HeadDirection: pb.Direction_UP}},
	}
	if HasRoom(state, c) {
		t.Error("HasRoom = true with every square blocked")
	}
	if err := PlaceSnake(state, c, 2, newRand()); !errors.Is(err, ErrNoRoom) {
		t.Errorf("err = %v, want ErrNoRoom", err)
	}
}

func TestValidSteer(t *testing.T) {
	state := scenario(nil)
	state.Players = append(state.Players, pb.GamePlayer{Id: 2, Role: pb.NodeRole_VIEWER})

	tests := []struct {
		name string
		id   int32
		dir  pb.Direction
		want bool
	}{
		{"turn", 1, pb.Direction_UP, true},
		{"same heading", 1, pb.Direction_RIGHT, true},
		{"reverse", 1, pb.Direction_LEFT, false},
		{"viewer", 2, pb.Direction_UP, false},
		{"unknown player", 7, pb.Direction_UP, false},
		{"bad direction", 1, pb.Direction(9), false},
	}
	for _, tt := range tests {
		if got := ValidSteer(state, tt.id, tt.dir); got != tt.want {
			t.Errorf("%s: ValidSteer = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDemoteAndNextID(t *testing.T) {
	state := scenario(nil)
	state.Players[0].Role = pb.NodeRole_NORMAL
	state.Players = append(state.Players, pb.GamePlayer{Id: 5})

	if got := NextPlayerID(state); got != 6 {
		t.Errorf("NextPlayerID = %d, want 6", got)
	}
	if !Demote(state, 1) {
		t.Fatal("Demote reported no change")
	}
	if _, ok := state.Snake(1); ok {
		t.Error("snake kept after demotion")
	}
	if Demote(state, 1) {
		t.Error("second Demote should be a no-op")
	}
	if got := NextPlayerID(&pb.GameState{}); got != 1 {
		t.Errorf("NextPlayerID on empty state = %d, want 1", got)
	}
}
