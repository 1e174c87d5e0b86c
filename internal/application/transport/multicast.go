package transport

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/internal/domain"
)

// MulticastSocket receives Announcements and Discovers sent to the group.
// Sending to the group goes through the unicast socket so replies reach it.
type MulticastSocket struct {
	Conn  *net.UDPConn
	Group *net.UDPAddr
	Log   *zap.Logger
}

func NewMulticastSocket(group string, log *zap.Logger) (*MulticastSocket, error) {
	addr, err := net.ResolveUDPAddr("udp", group)
	if err != nil {
		return nil, fmt.Errorf("resolve group %q: %w", group, err)
	}
	conn, err := net.ListenMulticastUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("join group %s: %w", addr, err)
	}
	log.Info("multicast socket open", zap.Stringer("group", addr))
	return &MulticastSocket{Conn: conn, Group: addr, Log: log}, nil
}

func (m *MulticastSocket) Listen(ctx context.Context, evChan chan<- domain.Event) error {
	return readLoop(ctx, m.Conn, domain.Multicast, evChan, m.Log)
}

func (m *MulticastSocket) Close() error {
	return m.Conn.Close()
}
