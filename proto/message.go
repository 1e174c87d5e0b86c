package proto

// GameMessage is the envelope of every datagram. Exactly one payload is
// carried in Type.
type GameMessage struct {
	MsgSeq     int64
	SenderId   *int32
	ReceiverId *int32

	// Types that are assignable to Type:
	//
	//	*GameMessage_Ping
	//	*GameMessage_Steer
	//	*GameMessage_Ack
	//	*GameMessage_State
	//	*GameMessage_Announcement
	//	*GameMessage_Discover
	//	*GameMessage_Join
	//	*GameMessage_Error
	//	*GameMessage_RoleChange
	Type isGameMessage_Type
}

type isGameMessage_Type interface {
	isGameMessage_Type()
}

type GameMessage_PingMsg struct{}

type GameMessage_SteerMsg struct {
	Direction Direction
}

type GameMessage_AckMsg struct{}

type GameMessage_StateMsg struct {
	State *GameState
}

type GameMessage_AnnouncementMsg struct {
	Games []GameAnnouncement
}

type GameMessage_DiscoverMsg struct{}

type GameMessage_JoinMsg struct {
	PlayerType    PlayerType
	PlayerName    string
	GameName      string
	RequestedRole NodeRole
}

type GameMessage_ErrorMsg struct {
	ErrorMessage string
}

type GameMessage_RoleChangeMsg struct {
	SenderRole   *NodeRole
	ReceiverRole *NodeRole
}

type GameMessage_Ping struct {
	Ping *GameMessage_PingMsg
}

type GameMessage_Steer struct {
	Steer *GameMessage_SteerMsg
}

type GameMessage_Ack struct {
	Ack *GameMessage_AckMsg
}

type GameMessage_State struct {
	State *GameMessage_StateMsg
}

type GameMessage_Announcement struct {
	Announcement *GameMessage_AnnouncementMsg
}

type GameMessage_Discover struct {
	Discover *GameMessage_DiscoverMsg
}

type GameMessage_Join struct {
	Join *GameMessage_JoinMsg
}

type GameMessage_Error struct {
	Error *GameMessage_ErrorMsg
}

type GameMessage_RoleChange struct {
	RoleChange *GameMessage_RoleChangeMsg
}

func (*GameMessage_Ping) isGameMessage_Type()         {}
func (*GameMessage_Steer) isGameMessage_Type()        {}
func (*GameMessage_Ack) isGameMessage_Type()          {}
func (*GameMessage_State) isGameMessage_Type()        {}
func (*GameMessage_Announcement) isGameMessage_Type() {}
func (*GameMessage_Discover) isGameMessage_Type()     {}
func (*GameMessage_Join) isGameMessage_Type()         {}
func (*GameMessage_Error) isGameMessage_Type()        {}
func (*GameMessage_RoleChange) isGameMessage_Type()   {}

func (m *GameMessage) GetSenderId() int32 {
	if m != nil && m.SenderId != nil {
		return *m.SenderId
	}
	return 0
}

func (m *GameMessage) GetReceiverId() int32 {
	if m != nil && m.ReceiverId != nil {
		return *m.ReceiverId
	}
	return 0
}

func (m *GameMessage) GetSteer() *GameMessage_SteerMsg {
	if x, ok := m.Type.(*GameMessage_Steer); ok {
		return x.Steer
	}
	return nil
}

func (m *GameMessage) GetState() *GameMessage_StateMsg {
	if x, ok := m.Type.(*GameMessage_State); ok {
		return x.State
	}
	return nil
}

func (m *GameMessage) GetAnnouncement() *GameMessage_AnnouncementMsg {
	if x, ok := m.Type.(*GameMessage_Announcement); ok {
		return x.Announcement
	}
	return nil
}

func (m *GameMessage) GetJoin() *GameMessage_JoinMsg {
	if x, ok := m.Type.(*GameMessage_Join); ok {
		return x.Join
	}
	return nil
}

func (m *GameMessage) GetError() *GameMessage_ErrorMsg {
	if x, ok := m.Type.(*GameMessage_Error); ok {
		return x.Error
	}
	return nil
}

func (m *GameMessage) GetRoleChange() *GameMessage_RoleChangeMsg {
	if x, ok := m.Type.(*GameMessage_RoleChange); ok {
		return x.RoleChange
	}
	return nil
}

// Kind names the payload variant, for logs.
func (m *GameMessage) Kind() string {
	switch m.Type.(type) {
	case *GameMessage_Ping:
		return "ping"
	case *GameMessage_Steer:
		return "steer"
	case *GameMessage_Ack:
		return "ack"
	case *GameMessage_State:
		return "state"
	case *GameMessage_Announcement:
		return "announcement"
	case *GameMessage_Discover:
		return "discover"
	case *GameMessage_Join:
		return "join"
	case *GameMessage_Error:
		return "error"
	case *GameMessage_RoleChange:
		return "role_change"
	}
	return "unknown"
}

// Int32 returns a pointer to v, for optional fields.
func Int32(v int32) *int32 {
	return &v
}
