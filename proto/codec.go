package proto

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformedMessage is returned by Unmarshal for truncated input, wire
// type mismatches and envelopes without a payload.
var ErrMalformedMessage = errors.New("malformed message")

// GameMessage field numbers.
const (
	fieldMsgSeq       protowire.Number = 1
	fieldPing         protowire.Number = 2
	fieldSteer        protowire.Number = 3
	fieldAck          protowire.Number = 4
	fieldState        protowire.Number = 5
	fieldAnnouncement protowire.Number = 6
	fieldJoin         protowire.Number = 7
	fieldError        protowire.Number = 8
	fieldRoleChange   protowire.Number = 9
	fieldSenderID     protowire.Number = 10
	fieldReceiverID   protowire.Number = 11
	fieldDiscover     protowire.Number = 12
)

// Marshal encodes m in protobuf wire format.
func Marshal(m *GameMessage) ([]byte, error) {
	if m == nil {
		return nil, errors.New("marshal: nil message")
	}
	b := make([]byte, 0, 64)
	b = appendInt64(b, fieldMsgSeq, m.MsgSeq)
	if m.SenderId != nil {
		b = appendInt32(b, fieldSenderID, *m.SenderId)
	}
	if m.ReceiverId != nil {
		b = appendInt32(b, fieldReceiverID, *m.ReceiverId)
	}

	switch t := m.Type.(type) {
	case *GameMessage_Ping:
		b = appendMessage(b, fieldPing, nil)
	case *GameMessage_Steer:
		var inner []byte
		if t.Steer != nil {
			inner = appendEnum(inner, 1, int32(t.Steer.Direction))
		}
		b = appendMessage(b, fieldSteer, inner)
	case *GameMessage_Ack:
		b = appendMessage(b, fieldAck, nil)
	case *GameMessage_State:
		var inner []byte
		if t.State != nil {
			inner = appendMessage(inner, 1, encodeGameState(t.State.State))
		}
		b = appendMessage(b, fieldState, inner)
	case *GameMessage_Announcement:
		var inner []byte
		if t.Announcement != nil {
			for i := range t.Announcement.Games {
				inner = appendMessage(inner, 1, encodeAnnouncement(&t.Announcement.Games[i]))
			}
		}
		b = appendMessage(b, fieldAnnouncement, inner)
	case *GameMessage_Discover:
		b = appendMessage(b, fieldDiscover, nil)
	case *GameMessage_Join:
		var inner []byte
		if j := t.Join; j != nil {
			inner = appendEnum(inner, 1, int32(j.PlayerType))
			inner = appendString(inner, 3, j.PlayerName)
			inner = appendString(inner, 4, j.GameName)
			inner = appendEnum(inner, 5, int32(j.RequestedRole))
		}
		b = appendMessage(b, fieldJoin, inner)
	case *GameMessage_Error:
		var inner []byte
		if t.Error != nil {
			inner = appendString(inner, 1, t.Error.ErrorMessage)
		}
		b = appendMessage(b, fieldError, inner)
	case *GameMessage_RoleChange:
		var inner []byte
		if rc := t.RoleChange; rc != nil {
			if rc.SenderRole != nil {
				inner = appendEnum(inner, 1, int32(*rc.SenderRole))
			}
			if rc.ReceiverRole != nil {
				inner = appendEnum(inner, 2, int32(*rc.ReceiverRole))
			}
		}
		b = appendMessage(b, fieldRoleChange, inner)
	default:
		return nil, fmt.Errorf("marshal: unsupported payload %T", m.Type)
	}
	return b, nil
}

// Unmarshal decodes b into m, replacing its contents.
func Unmarshal(b []byte, m *GameMessage) error {
	*m = GameMessage{}
	seenSeq := false
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldMsgSeq:
			v, n, err := consumeVarint(typ, b)
			m.MsgSeq = int64(v)
			seenSeq = true
			return n, err
		case fieldSenderID:
			v, n, err := consumeVarint(typ, b)
			m.SenderId = Int32(int32(v))
			return n, err
		case fieldReceiverID:
			v, n, err := consumeVarint(typ, b)
			m.ReceiverId = Int32(int32(v))
			return n, err
		case fieldPing, fieldSteer, fieldAck, fieldState, fieldAnnouncement,
			fieldJoin, fieldError, fieldRoleChange, fieldDiscover:
			inner, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			t, err := decodePayload(num, inner)
			if err != nil {
				return 0, err
			}
			m.Type = t
			return n, nil
		}
		return skipField(num, typ, b)
	})
	if err != nil {
		return err
	}
	if !seenSeq {
		return fmt.Errorf("%w: missing msg_seq", ErrMalformedMessage)
	}
	if m.Type == nil {
		return fmt.Errorf("%w: missing payload", ErrMalformedMessage)
	}
	return nil
}

func decodePayload(num protowire.Number, b []byte) (isGameMessage_Type, error) {
	switch num {
	case fieldPing:
		return &GameMessage_Ping{Ping: &GameMessage_PingMsg{}}, skipAll(b)
	case fieldAck:
		return &GameMessage_Ack{Ack: &GameMessage_AckMsg{}}, skipAll(b)
	case fieldDiscover:
		return &GameMessage_Discover{Discover: &GameMessage_DiscoverMsg{}}, skipAll(b)
	case fieldSteer:
		steer := &GameMessage_SteerMsg{}
		err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num == 1 {
				v, n, err := consumeVarint(typ, b)
				steer.Direction = Direction(int32(v))
				return n, err
			}
			return skipField(num, typ, b)
		})
		return &GameMessage_Steer{Steer: steer}, err
	case fieldState:
		msg := &GameMessage_StateMsg{}
		err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num == 1 {
				inner, n, err := consumeBytes(typ, b)
				if err != nil {
					return 0, err
				}
				msg.State, err = decodeGameState(inner)
				return n, err
			}
			return skipField(num, typ, b)
		})
		if err == nil && msg.State == nil {
			err = fmt.Errorf("%w: state payload without state", ErrMalformedMessage)
		}
		return &GameMessage_State{State: msg}, err
	case fieldAnnouncement:
		msg := &GameMessage_AnnouncementMsg{}
		err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num == 1 {
				inner, n, err := consumeBytes(typ, b)
				if err != nil {
					return 0, err
				}
				game, err := decodeAnnouncement(inner)
				if err != nil {
					return 0, err
				}
				msg.Games = append(msg.Games, game)
				return n, nil
			}
			return skipField(num, typ, b)
		})
		return &GameMessage_Announcement{Announcement: msg}, err
	case fieldJoin:
		join := &GameMessage_JoinMsg{PlayerType: PlayerType_HUMAN}
		err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case 1:
				v, n, err := consumeVarint(typ, b)
				join.PlayerType = PlayerType(int32(v))
				return n, err
			case 3:
				s, n, err := consumeString(typ, b)
				join.PlayerName = s
				return n, err
			case 4:
				s, n, err := consumeString(typ, b)
				join.GameName = s
				return n, err
			case 5:
				v, n, err := consumeVarint(typ, b)
				join.RequestedRole = NodeRole(int32(v))
				return n, err
			}
			return skipField(num, typ, b)
		})
		return &GameMessage_Join{Join: join}, err
	case fieldError:
		msg := &GameMessage_ErrorMsg{}
		err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num == 1 {
				s, n, err := consumeString(typ, b)
				msg.ErrorMessage = s
				return n, err
			}
			return skipField(num, typ, b)
		})
		return &GameMessage_Error{Error: msg}, err
	case fieldRoleChange:
		msg := &GameMessage_RoleChangeMsg{}
		err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case 1:
				v, n, err := consumeVarint(typ, b)
				msg.SenderRole = NodeRole(int32(v)).Enum()
				return n, err
			case 2:
				v, n, err := consumeVarint(typ, b)
				msg.ReceiverRole = NodeRole(int32(v)).Enum()
				return n, err
			}
			return skipField(num, typ, b)
		})
		return &GameMessage_RoleChange{RoleChange: msg}, err
	}
	return nil, fmt.Errorf("%w: unknown payload field %d", ErrMalformedMessage, num)
}

func encodeGameState(s *GameState) []byte {
	if s == nil {
		return nil
	}
	var b []byte
	b = appendInt32(b, 1, s.StateOrder)
	for i := range s.Snakes {
		b = appendMessage(b, 2, encodeSnake(&s.Snakes[i]))
	}
	for _, food := range s.Foods {
		b = appendMessage(b, 3, encodeCoord(food))
	}
	b = appendMessage(b, 4, encodePlayers(s.Players))
	return b
}

func decodeGameState(b []byte) (*GameState, error) {
	s := &GameState{}
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(typ, b)
			s.StateOrder = int32(v)
			return n, err
		case 2:
			inner, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			snake, err := decodeSnake(inner)
			if err != nil {
				return 0, err
			}
			s.Snakes = append(s.Snakes, snake)
			return n, nil
		case 3:
			inner, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			c, err := decodeCoord(inner)
			if err != nil {
				return 0, err
			}
			s.Foods = append(s.Foods, c)
			return n, nil
		case 4:
			inner, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			s.Players, err = decodePlayers(inner, s.Players)
			return n, err
		}
		return skipField(num, typ, b)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func encodeSnake(s *Snake) []byte {
	var b []byte
	b = appendInt32(b, 1, s.PlayerId)
	for _, p := range s.Points {
		b = appendMessage(b, 2, encodeCoord(p))
	}
	b = appendEnum(b, 3, int32(s.State))
	b = appendEnum(b, 4, int32(s.HeadDirection))
	return b
}

func decodeSnake(b []byte) (Snake, error) {
	var s Snake
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(typ, b)
			s.PlayerId = int32(v)
			return n, err
		case 2:
			inner, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			c, err := decodeCoord(inner)
			if err != nil {
				return 0, err
			}
			s.Points = append(s.Points, c)
			return n, nil
		case 3:
			v, n, err := consumeVarint(typ, b)
			s.State = SnakeState(int32(v))
			return n, err
		case 4:
			v, n, err := consumeVarint(typ, b)
			s.HeadDirection = Direction(int32(v))
			return n, err
		}
		return skipField(num, typ, b)
	})
	return s, err
}

func encodeCoord(c Coord) []byte {
	var b []byte
	b = appendSint32(b, 1, c.X)
	b = appendSint32(b, 2, c.Y)
	return b
}

func decodeCoord(b []byte) (Coord, error) {
	var c Coord
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(typ, b)
			c.X = int32(protowire.DecodeZigZag(v))
			return n, err
		case 2:
			v, n, err := consumeVarint(typ, b)
			c.Y = int32(protowire.DecodeZigZag(v))
			return n, err
		}
		return skipField(num, typ, b)
	})
	return c, err
}

// encodePlayers writes the GamePlayers wrapper message body.
func encodePlayers(players []GamePlayer) []byte {
	var b []byte
	for i := range players {
		b = appendMessage(b, 1, encodePlayer(&players[i]))
	}
	return b
}

func decodePlayers(b []byte, dst []GamePlayer) ([]GamePlayer, error) {
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			inner, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			p, err := decodePlayer(inner)
			if err != nil {
				return 0, err
			}
			dst = append(dst, p)
			return n, nil
		}
		return skipField(num, typ, b)
	})
	return dst, err
}

func encodePlayer(p *GamePlayer) []byte {
	var b []byte
	b = appendString(b, 1, p.Name)
	b = appendInt32(b, 2, p.Id)
	if p.IpAddress != "" {
		b = appendString(b, 3, p.IpAddress)
	}
	if p.Port != 0 {
		b = appendInt32(b, 4, p.Port)
	}
	b = appendEnum(b, 5, int32(p.Role))
	b = appendEnum(b, 6, int32(p.Type))
	b = appendInt32(b, 7, p.Score)
	return b
}

func decodePlayer(b []byte) (GamePlayer, error) {
	p := GamePlayer{Type: PlayerType_HUMAN}
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			s, n, err := consumeString(typ, b)
			p.Name = s
			return n, err
		case 2:
			v, n, err := consumeVarint(typ, b)
			p.Id = int32(v)
			return n, err
		case 3:
			s, n, err := consumeString(typ, b)
			p.IpAddress = s
			return n, err
		case 4:
			v, n, err := consumeVarint(typ, b)
			p.Port = int32(v)
			return n, err
		case 5:
			v, n, err := consumeVarint(typ, b)
			p.Role = NodeRole(int32(v))
			return n, err
		case 6:
			v, n, err := consumeVarint(typ, b)
			p.Type = PlayerType(int32(v))
			return n, err
		case 7:
			v, n, err := consumeVarint(typ, b)
			p.Score = int32(v)
			return n, err
		}
		return skipField(num, typ, b)
	})
	return p, err
}

func encodeConfig(c GameConfig) []byte {
	var b []byte
	b = appendInt32(b, 1, c.Width)
	b = appendInt32(b, 2, c.Height)
	b = appendInt32(b, 3, c.FoodStatic)
	b = appendInt32(b, 5, c.StateDelayMs)
	return b
}

func decodeConfig(b []byte) (GameConfig, error) {
	c := DefaultGameConfig()
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(typ, b)
			c.Width = int32(v)
			return n, err
		case 2:
			v, n, err := consumeVarint(typ, b)
			c.Height = int32(v)
			return n, err
		case 3:
			v, n, err := consumeVarint(typ, b)
			c.FoodStatic = int32(v)
			return n, err
		case 5:
			v, n, err := consumeVarint(typ, b)
			c.StateDelayMs = int32(v)
			return n, err
		}
		return skipField(num, typ, b)
	})
	return c, err
}

func encodeAnnouncement(a *GameAnnouncement) []byte {
	var b []byte
	b = appendMessage(b, 1, encodePlayers(a.Players))
	b = appendMessage(b, 2, encodeConfig(a.Config))
	b = appendBool(b, 3, a.CanJoin)
	b = appendString(b, 4, a.GameName)
	return b
}

func decodeAnnouncement(b []byte) (GameAnnouncement, error) {
	a := GameAnnouncement{Config: DefaultGameConfig(), CanJoin: true}
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			inner, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			a.Players, err = decodePlayers(inner, a.Players)
			return n, err
		case 2:
			inner, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			a.Config, err = decodeConfig(inner)
			return n, err
		case 3:
			v, n, err := consumeVarint(typ, b)
			a.CanJoin = protowire.DecodeBool(v)
			return n, err
		case 4:
			s, n, err := consumeString(typ, b)
			a.GameName = s
			return n, err
		}
		return skipField(num, typ, b)
	})
	return a, err
}

// consumeFields walks every field of a message body. fn returns how many
// bytes of the field value it consumed.
func consumeFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedMessage, protowire.ParseError(n))
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		b = b[m:]
	}
	return nil
}

func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, fmt.Errorf("%w: field %d: %v", ErrMalformedMessage, num, protowire.ParseError(n))
	}
	return n, nil
}

func skipAll(b []byte) error {
	return consumeFields(b, skipField)
}

func consumeVarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("%w: want varint, got wire type %d", ErrMalformedMessage, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, fmt.Errorf("%w: %v", ErrMalformedMessage, protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("%w: want length-delimited, got wire type %d", ErrMalformedMessage, typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedMessage, protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeString(typ protowire.Type, b []byte) (string, int, error) {
	v, n, err := consumeBytes(typ, b)
	return string(v), n, err
}

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

// appendInt32 sign-extends negative values to ten bytes, as protobuf does.
func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	return appendInt64(b, num, int64(v))
}

func appendEnum(b []byte, num protowire.Number, v int32) []byte {
	return appendInt64(b, num, int64(v))
}

func appendSint32(b []byte, num protowire.Number, v int32) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(int64(v)))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendMessage(b []byte, num protowire.Number, inner []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner)
}
