package transport

import (
	"context"
	"net"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/internal/domain"
	pb "github.com/oxaxxaxaxaxaxaxxaaaxax/netsnake/proto"
)

type fakeSender struct {
	mu     sync.Mutex
	seq    atomic.Int64
	sent   []*pb.GameMessage
	onSend func(msg *pb.GameMessage, addr *net.UDPAddr)
}

func (f *fakeSender) Send(msg *pb.GameMessage, addr *net.UDPAddr) error {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	hook := f.onSend
	f.mu.Unlock()
	if hook != nil {
		hook(msg, addr)
	}
	return nil
}

func (f *fakeSender) NextSeq() int64 { return f.seq.Add(1) }

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func udpAddr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
}

func ping() *pb.GameMessage {
	return &pb.GameMessage{Type: &pb.GameMessage_Ping{Ping: &pb.GameMessage_PingMsg{}}}
}

func TestPendingAcks(t *testing.T) {
	acks := NewPendingAcks()
	a, b := udpAddr(1000), udpAddr(2000)
	now := time.Now()

	acks.Add(a, 3, now)
	acks.Add(a, 1, now)
	acks.Add(b, 1, now.Add(-time.Minute))

	if got := acks.Pending(a); !reflect.DeepEqual(got, []int64{1, 3}) {
		t.Errorf("Pending(a) = %v", got)
	}
	if !acks.Remove(a, 3) {
		t.Error("Remove(a, 3) = false")
	}
	if acks.Remove(a, 3) {
		t.Error("second Remove should report false")
	}
	if acks.Remove(udpAddr(3000), 1) {
		t.Error("Remove from unknown peer should report false")
	}
	if acks.Contains(b, 3) || !acks.Contains(b, 1) {
		t.Error("entries leaked between peers")
	}

	if n := acks.Prune(now.Add(-time.Second)); n != 1 {
		t.Errorf("Prune = %d, want 1", n)
	}
	if acks.Contains(b, 1) {
		t.Error("old entry survived Prune")
	}

	acks.Forget(a)
	if acks.Len() != 0 {
		t.Errorf("Len = %d after Forget", acks.Len())
	}
}

func TestPeers(t *testing.T) {
	peers := NewPeers()
	start := time.Now()
	peers.Register(2, udpAddr(1002), start)
	peers.Register(3, udpAddr(1003), start)

	if id, ok := peers.Lookup(udpAddr(1002)); !ok || id != 2 {
		t.Fatalf("Lookup = %d, %v", id, ok)
	}

	later := start.Add(time.Second)
	if id, ok := peers.Touch(udpAddr(1003), later); !ok || id != 3 {
		t.Fatalf("Touch = %d, %v", id, ok)
	}
	if _, ok := peers.Touch(udpAddr(9999), later); ok {
		t.Error("Touch of unknown address succeeded")
	}

	silent := peers.Silent(later.Add(500*time.Millisecond), time.Second, 0)
	if !reflect.DeepEqual(silent, []int32{2}) {
		t.Errorf("Silent = %v, want [2]", silent)
	}
	if silent := peers.Silent(later.Add(500*time.Millisecond), time.Second, 2); len(silent) != 0 {
		t.Errorf("Silent with exception = %v", silent)
	}

	// the peer moved to another port
	peers.Register(2, udpAddr(2002), later)
	if _, ok := peers.Lookup(udpAddr(1002)); ok {
		t.Error("old address still bound")
	}
	if addr, _ := peers.Addr(2); addr.Port != 2002 {
		t.Errorf("Addr(2) = %v", addr)
	}

	peers.TouchAll(later.Add(time.Hour))
	if silent := peers.Silent(later.Add(time.Hour), time.Second, 0); len(silent) != 0 {
		t.Errorf("Silent after TouchAll = %v", silent)
	}

	if _, ok := peers.Forget(3); !ok {
		t.Error("Forget(3) = false")
	}
	all := peers.All()
	if len(all) != 1 || all[0].Id != 2 {
		t.Errorf("All = %+v", all)
	}
}

func TestReliableStopsOnAck(t *testing.T) {
	acks := NewPendingAcks()
	sock := &fakeSender{}
	sock.onSend = func(msg *pb.GameMessage, addr *net.UDPAddr) {
		acks.Remove(addr, msg.MsgSeq)
	}
	r := NewReliable(sock, acks, NewPeers(), time.Millisecond, 8, zaptest.NewLogger(t))

	seq := r.Send(context.Background(), udpAddr(4000), ping())
	r.Wait()

	if seq != 1 {
		t.Errorf("seq = %d, want 1", seq)
	}
	if sock.count() != 1 {
		t.Errorf("transmissions = %d, want 1", sock.count())
	}
}

func TestReliableGivesUpAfterAttempts(t *testing.T) {
	acks := NewPendingAcks()
	sock := &fakeSender{}
	r := NewReliable(sock, acks, nil, time.Millisecond, 8, zaptest.NewLogger(t))

	addr := udpAddr(4001)
	seq := r.Send(context.Background(), addr, ping())
	r.Wait()

	if sock.count() != 8 {
		t.Errorf("transmissions = %d, want 8", sock.count())
	}
	if !acks.Contains(addr, seq) {
		t.Error("abandoned entry should stay pending until pruned")
	}
}

func TestReliableStopsOnCancel(t *testing.T) {
	sock := &fakeSender{}
	r := NewReliable(sock, NewPendingAcks(), nil, time.Hour, 8, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	r.Send(ctx, udpAddr(4002), ping())
	cancel()
	r.Wait()

	if sock.count() != 1 {
		t.Errorf("transmissions = %d, want 1", sock.count())
	}
}

func TestSendBestEffortKeepsSeq(t *testing.T) {
	sock := &fakeSender{}
	r := NewReliable(sock, NewPendingAcks(), nil, time.Millisecond, 1, zaptest.NewLogger(t))

	ack := &pb.GameMessage{MsgSeq: 42, Type: &pb.GameMessage_Ack{Ack: &pb.GameMessage_AckMsg{}}}
	if err := r.SendBestEffort(udpAddr(4003), ack); err != nil {
		t.Fatal(err)
	}
	if ack.MsgSeq != 42 {
		t.Errorf("ack seq rewritten to %d", ack.MsgSeq)
	}

	msg := ping()
	if err := r.SendBestEffort(udpAddr(4003), msg); err != nil {
		t.Fatal(err)
	}
	if msg.MsgSeq != 1 {
		t.Errorf("seq = %d, want 1", msg.MsgSeq)
	}
}

func TestUnicastRoundTrip(t *testing.T) {
	log := zaptest.NewLogger(t)
	server, err := NewUnicastSocket("127.0.0.1:0", log)
	if err != nil {
		t.Fatal(err)
	}
	defer server.Close()
	client, err := NewUnicastSocket("127.0.0.1:0", log)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan domain.Event, 1)
	done := make(chan error, 1)
	go func() { done <- server.Listen(ctx, events) }()

	if _, err := client.Conn.WriteToUDP([]byte{0xff, 0x01}, server.LocalAddr()); err != nil {
		t.Fatal(err)
	}
	msg := &pb.GameMessage{MsgSeq: client.NextSeq(), SenderId: pb.Int32(4),
		Type: &pb.GameMessage_Steer{Steer: &pb.GameMessage_SteerMsg{Direction: pb.Direction_UP}}}
	if err := client.Send(msg, server.LocalAddr()); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.Transport != domain.Unicast {
			t.Errorf("transport = %v", ev.Transport)
		}
		if ev.From.Port != client.LocalAddr().Port {
			t.Errorf("from = %v, want %v", ev.From, client.LocalAddr())
		}
		if ev.GameMessage.GetSteer().Direction != pb.Direction_UP || ev.GameMessage.GetSenderId() != 4 {
			t.Errorf("got %+v", ev.GameMessage)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Listen returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Listen did not stop after cancel")
	}
}
