package transport

import (
	"net"
	"sort"
	"sync"
	"time"
)

// PendingAcks tracks sequence numbers sent to a peer and not yet
// acknowledged. Entries are keyed by peer address because a joining node
// does not know the MASTER's id when it sends Join.
type PendingAcks struct {
	mu   sync.Mutex
	acks map[string]map[int64]time.Time
}

func NewPendingAcks() *PendingAcks {
	return &PendingAcks{acks: make(map[string]map[int64]time.Time)}
}

func (p *PendingAcks) Add(addr *net.UDPAddr, seq int64, sentAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := addr.String()
	if p.acks[key] == nil {
		p.acks[key] = make(map[int64]time.Time)
	}
	p.acks[key][seq] = sentAt
}

// Remove deletes the entry and reports whether it was pending.
func (p *PendingAcks) Remove(addr *net.UDPAddr, seq int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := addr.String()
	seqs, ok := p.acks[key]
	if !ok {
		return false
	}
	if _, ok := seqs[seq]; !ok {
		return false
	}
	delete(seqs, seq)
	if len(seqs) == 0 {
		delete(p.acks, key)
	}
	return true
}

func (p *PendingAcks) Contains(addr *net.UDPAddr, seq int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.acks[addr.String()][seq]
	return ok
}

// Pending lists the outstanding sequence numbers for addr in ascending order.
func (p *PendingAcks) Pending(addr *net.UDPAddr) []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	seqs := make([]int64, 0, len(p.acks[addr.String()]))
	for seq := range p.acks[addr.String()] {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs
}

// Forget drops every entry of a peer.
func (p *PendingAcks) Forget(addr *net.UDPAddr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.acks, addr.String())
}

// Prune drops entries sent before cutoff and returns how many went.
func (p *PendingAcks) Prune(cutoff time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	pruned := 0
	for key, seqs := range p.acks {
		for seq, sentAt := range seqs {
			if sentAt.Before(cutoff) {
				delete(seqs, seq)
				pruned++
			}
		}
		if len(seqs) == 0 {
			delete(p.acks, key)
		}
	}
	return pruned
}

// Len is the total number of outstanding entries.
func (p *PendingAcks) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, seqs := range p.acks {
		n += len(seqs)
	}
	return n
}
