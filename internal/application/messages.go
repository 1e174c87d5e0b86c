package application

import (
	"net"
	"strconv"

	pb "github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/proto"
)

func ackMsg(seq int64, senderID, receiverID *int32) *pb.GameMessage {
	return &pb.GameMessage{
		MsgSeq:     seq,
		SenderId:   senderID,
		ReceiverId: receiverID,
		Type:       &pb.GameMessage_Ack{Ack: &pb.GameMessage_AckMsg{}},
	}
}

func pingMsg() *pb.GameMessage {
	return &pb.GameMessage{Type: &pb.GameMessage_Ping{Ping: &pb.GameMessage_PingMsg{}}}
}

func steerMsg(dir pb.Direction) *pb.GameMessage {
	return &pb.GameMessage{Type: &pb.GameMessage_Steer{Steer: &pb.GameMessage_SteerMsg{Direction: dir}}}
}

func stateMsg(state *pb.GameState) *pb.GameMessage {
	return &pb.GameMessage{Type: &pb.GameMessage_State{State: &pb.GameMessage_StateMsg{State: state}}}
}

func announcementMsg(games ...pb.GameAnnouncement) *pb.GameMessage {
	return &pb.GameMessage{Type: &pb.GameMessage_Announcement{Announcement: &pb.GameMessage_AnnouncementMsg{Games: games}}}
}

func discoverMsg() *pb.GameMessage {
	return &pb.GameMessage{Type: &pb.GameMessage_Discover{Discover: &pb.GameMessage_DiscoverMsg{}}}
}

func joinMsg(playerType pb.PlayerType, name, game string, role pb.NodeRole) *pb.GameMessage {
	return &pb.GameMessage{Type: &pb.GameMessage_Join{Join: &pb.GameMessage_JoinMsg{
		PlayerType:    playerType,
		PlayerName:    name,
		GameName:      game,
		RequestedRole: role,
	}}}
}

func errorMsg(text string) *pb.GameMessage {
	return &pb.GameMessage{Type: &pb.GameMessage_Error{Error: &pb.GameMessage_ErrorMsg{ErrorMessage: text}}}
}

func roleChangeMsg(sender, receiver *pb.NodeRole) *pb.GameMessage {
	return &pb.GameMessage{Type: &pb.GameMessage_RoleChange{RoleChange: &pb.GameMessage_RoleChangeMsg{
		SenderRole:   sender,
		ReceiverRole: receiver,
	}}}
}

// playerAddr resolves the address a MASTER published for a player.
func playerAddr(p *pb.GamePlayer) (*net.UDPAddr, bool) {
	if p.IpAddress == "" || p.Port == 0 {
		return nil, false
	}
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(p.IpAddress, strconv.Itoa(int(p.Port))))
	if err != nil {
		return nil, false
	}
	return addr, true
}

func sameAddr(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Port == b.Port && a.IP.Equal(b.IP)
}
