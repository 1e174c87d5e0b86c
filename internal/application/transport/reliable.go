package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	pb "github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/proto"
)

const DefaultAttempts = 8

// Reliable retransmits an envelope until the peer acknowledges it or the
// attempts run out. Each send runs in its own goroutine.
type Reliable struct {
	Sock     Sender
	Acks     *PendingAcks
	Peers    *Peers
	Attempts int
	Log      *zap.Logger

	interval atomic.Int64
	wg       sync.WaitGroup
}

func NewReliable(sock Sender, acks *PendingAcks, peers *Peers, interval time.Duration, attempts int, log *zap.Logger) *Reliable {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	r := &Reliable{
		Sock:     sock,
		Acks:     acks,
		Peers:    peers,
		Attempts: attempts,
		Log:      log,
	}
	r.SetInterval(interval)
	return r
}

// SetInterval changes the wait between transmissions of later sends.
func (r *Reliable) SetInterval(d time.Duration) {
	r.interval.Store(int64(d))
}

func (r *Reliable) Interval() time.Duration {
	return time.Duration(r.interval.Load())
}

// Send assigns msg the next sequence number, registers it as pending and
// starts retransmitting. It returns without waiting for the ack. msg must
// not be modified afterwards.
func (r *Reliable) Send(ctx context.Context, addr *net.UDPAddr, msg *pb.GameMessage) int64 {
	msg.MsgSeq = r.Sock.NextSeq()
	r.Acks.Add(addr, msg.MsgSeq, time.Now())

	interval := r.Interval()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.retransmit(ctx, addr, msg, interval)
	}()
	return msg.MsgSeq
}

func (r *Reliable) retransmit(ctx context.Context, addr *net.UDPAddr, msg *pb.GameMessage, interval time.Duration) {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for attempt := 1; attempt <= r.Attempts; attempt++ {
		if err := r.Sock.Send(msg, addr); err != nil {
			r.Log.Debug("send failed", zap.Stringer("to", addr), zap.Int64("seq", msg.MsgSeq), zap.Error(err))
		} else if r.Peers != nil {
			r.Peers.Sent(addr, time.Now())
		}

		if attempt > 1 {
			timer.Reset(interval)
		}
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if !r.Acks.Contains(addr, msg.MsgSeq) {
			return
		}
	}
	r.Log.Debug("delivery timeout",
		zap.Stringer("to", addr),
		zap.String("kind", msg.Kind()),
		zap.Int64("seq", msg.MsgSeq),
		zap.Int("attempts", r.Attempts))
}

// SendBestEffort transmits msg once. A zero MsgSeq is replaced by the next
// sequence number; acks keep the sequence of what they acknowledge.
func (r *Reliable) SendBestEffort(addr *net.UDPAddr, msg *pb.GameMessage) error {
	if msg.MsgSeq == 0 {
		msg.MsgSeq = r.Sock.NextSeq()
	}
	if err := r.Sock.Send(msg, addr); err != nil {
		return err
	}
	if r.Peers != nil {
		r.Peers.Sent(addr, time.Now())
	}
	return nil
}

// Wait blocks until every retransmission goroutine has finished.
func (r *Reliable) Wait() {
	r.wg.Wait()
}
