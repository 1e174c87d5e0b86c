package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/internal/domain"
	pb "github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/proto"
)

const (
	// readPoll bounds how long a blocked read ignores cancellation.
	readPoll  = 100 * time.Millisecond
	maxPacket = 64 * 1024
)

// Sender transmits one envelope. The UDP socket implements it; tests use a
// recording fake.
type Sender interface {
	Send(msg *pb.GameMessage, addr *net.UDPAddr) error
	NextSeq() int64
}

// Listener feeds decoded datagrams into the dispatcher.
type Listener interface {
	Listen(ctx context.Context, evChan chan<- domain.Event) error
}

type UnicastSocket struct {
	Conn *net.UDPConn
	Seq  atomic.Int64
	Log  *zap.Logger
}

func NewUnicastSocket(listenAddr string, log *zap.Logger) (*UnicastSocket, error) {
	addr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", listenAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen unicast: %w", err)
	}
	log.Info("unicast socket open", zap.Stringer("addr", conn.LocalAddr()))
	return &UnicastSocket{Conn: conn, Log: log}, nil
}

func (u *UnicastSocket) LocalAddr() *net.UDPAddr {
	return u.Conn.LocalAddr().(*net.UDPAddr)
}

// NextSeq returns the next outgoing sequence number, starting at 1.
func (u *UnicastSocket) NextSeq() int64 {
	return u.Seq.Add(1)
}

func (u *UnicastSocket) Send(msg *pb.GameMessage, addr *net.UDPAddr) error {
	if addr == nil {
		return ErrAddressIsEmpty
	}
	b, err := pb.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = u.Conn.WriteToUDP(b, addr)
	return err
}

func (u *UnicastSocket) Listen(ctx context.Context, evChan chan<- domain.Event) error {
	return readLoop(ctx, u.Conn, domain.Unicast, evChan, u.Log)
}

func (u *UnicastSocket) Close() error {
	return u.Conn.Close()
}

var ErrAddressIsEmpty = errors.New("address is empty")

// readLoop decodes datagrams until ctx is done. Malformed datagrams are
// dropped.
func readLoop(ctx context.Context, conn *net.UDPConn, tr domain.Transport, evChan chan<- domain.Event, log *zap.Logger) error {
	buf := make([]byte, maxPacket)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := conn.SetReadDeadline(time.Now().Add(readPoll)); err != nil {
			return err
		}
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warn("read failed", zap.Stringer("transport", tr), zap.Error(err))
			continue
		}

		message := &pb.GameMessage{}
		if err := pb.Unmarshal(buf[:n], message); err != nil {
			log.Debug("dropping datagram", zap.Stringer("from", addr), zap.Error(err))
			continue
		}

		select {
		case evChan <- domain.Event{GameMessage: message, From: addr, Transport: tr}:
		case <-ctx.Done():
			return nil
		}
	}
}
