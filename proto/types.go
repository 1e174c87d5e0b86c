// Package proto holds the replicated game model and the GameMessage
// envelope exchanged between nodes, together with their wire codec.
//
// Field numbers and enum values follow snakes.proto, so any protobuf peer
// speaking that schema can decode what this package encodes.
package proto

import (
	"strconv"
	"time"
)

type NodeRole int32

const (
	NodeRole_NORMAL NodeRole = 0
	NodeRole_MASTER NodeRole = 1
	NodeRole_DEPUTY NodeRole = 2
	NodeRole_VIEWER NodeRole = 3
)

var nodeRoleNames = map[NodeRole]string{
	NodeRole_NORMAL: "NORMAL",
	NodeRole_MASTER: "MASTER",
	NodeRole_DEPUTY: "DEPUTY",
	NodeRole_VIEWER: "VIEWER",
}

func (r NodeRole) String() string {
	if s, ok := nodeRoleNames[r]; ok {
		return s
	}
	return "NodeRole(" + strconv.Itoa(int(r)) + ")"
}

// Enum returns a pointer to a copy of r, for optional fields.
func (r NodeRole) Enum() *NodeRole {
	return &r
}

type PlayerType int32

const (
	PlayerType_HUMAN PlayerType = 0
	PlayerType_ROBOT PlayerType = 1
)

func (t PlayerType) String() string {
	switch t {
	case PlayerType_HUMAN:
		return "HUMAN"
	case PlayerType_ROBOT:
		return "ROBOT"
	}
	return "PlayerType(" + strconv.Itoa(int(t)) + ")"
}

type Direction int32

const (
	Direction_UP    Direction = 1
	Direction_DOWN  Direction = 2
	Direction_LEFT  Direction = 3
	Direction_RIGHT Direction = 4
)

func (d Direction) String() string {
	switch d {
	case Direction_UP:
		return "UP"
	case Direction_DOWN:
		return "DOWN"
	case Direction_LEFT:
		return "LEFT"
	case Direction_RIGHT:
		return "RIGHT"
	}
	return "Direction(" + strconv.Itoa(int(d)) + ")"
}

// Valid reports whether d is one of the four cardinal directions.
func (d Direction) Valid() bool {
	return d >= Direction_UP && d <= Direction_RIGHT
}

type SnakeState int32

const (
	SnakeState_ALIVE  SnakeState = 0
	SnakeState_ZOMBIE SnakeState = 1
)

func (s SnakeState) String() string {
	switch s {
	case SnakeState_ALIVE:
		return "ALIVE"
	case SnakeState_ZOMBIE:
		return "ZOMBIE"
	}
	return "SnakeState(" + strconv.Itoa(int(s)) + ")"
}

// GameConfig is the board and pacing configuration announced by a MASTER.
type GameConfig struct {
	Width        int32
	Height       int32
	FoodStatic   int32
	StateDelayMs int32
}

// DefaultGameConfig returns the values a peer assumes for absent fields.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		Width:        40,
		Height:       30,
		FoodStatic:   1,
		StateDelayMs: 1000,
	}
}

func (c GameConfig) StateDelay() time.Duration {
	return time.Duration(c.StateDelayMs) * time.Millisecond
}

// RetryInterval is the wait between two transmissions of a reliable send.
func (c GameConfig) RetryInterval() time.Duration {
	return c.StateDelay() / 10
}

// LivenessWindow is how long a peer may stay silent before it is considered gone.
func (c GameConfig) LivenessWindow() time.Duration {
	return 2 * c.StateDelay()
}

// Coord is an absolute cell when it is a snake head or a food item, and a
// signed straight run (only one of X, Y non-zero) inside a snake body.
type Coord struct {
	X int32
	Y int32
}

// Snake keeps its body as Points[0] = head cell followed by runs pointing
// from the head towards the tail.
type Snake struct {
	PlayerId      int32
	Points        []Coord
	State         SnakeState
	HeadDirection Direction
}

type GamePlayer struct {
	Name      string
	Id        int32
	IpAddress string
	Port      int32
	Role      NodeRole
	Type      PlayerType
	Score     int32
}

// GameState is the unit of replication. Only the MASTER writes it.
type GameState struct {
	StateOrder int32
	Snakes     []Snake
	Foods      []Coord
	Players    []GamePlayer
}

type GameAnnouncement struct {
	Players  []GamePlayer
	Config   GameConfig
	CanJoin  bool
	GameName string
}

// Clone returns a deep copy of s.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}
	c := &GameState{StateOrder: s.StateOrder}
	if s.Snakes != nil {
		c.Snakes = make([]Snake, len(s.Snakes))
		for i, sn := range s.Snakes {
			c.Snakes[i] = sn
			c.Snakes[i].Points = append([]Coord(nil), sn.Points...)
		}
	}
	if s.Foods != nil {
		c.Foods = append([]Coord(nil), s.Foods...)
	}
	if s.Players != nil {
		c.Players = append([]GamePlayer(nil), s.Players...)
	}
	return c
}

// Player returns the player record with the given id.
func (s *GameState) Player(id int32) (*GamePlayer, bool) {
	for i := range s.Players {
		if s.Players[i].Id == id {
			return &s.Players[i], true
		}
	}
	return nil, false
}

// Snake returns the live snake owned by the given player.
func (s *GameState) Snake(playerID int32) (*Snake, bool) {
	for i := range s.Snakes {
		if s.Snakes[i].PlayerId == playerID {
			return &s.Snakes[i], true
		}
	}
	return nil, false
}

// PlayerWithRole returns the first player holding role.
func (s *GameState) PlayerWithRole(role NodeRole) (*GamePlayer, bool) {
	for i := range s.Players {
		if s.Players[i].Role == role {
			return &s.Players[i], true
		}
	}
	return nil, false
}
