package transport

import (
	"net"
	"sort"
	"sync"
	"time"
)

type PeerInfo struct {
	Id       int32
	Addr     *net.UDPAddr
	LastRecv time.Time
	LastSend time.Time
}

// Peers maps addresses to player ids and remembers when each peer was
// last heard from.
type Peers struct {
	mu     sync.RWMutex
	byAddr map[string]int32
	byId   map[int32]*PeerInfo
}

func NewPeers() *Peers {
	return &Peers{
		byAddr: make(map[string]int32),
		byId:   make(map[int32]*PeerInfo),
	}
}

// Register binds id to addr, replacing any previous binding of either.
// A new peer counts as heard from at now.
func (p *Peers) Register(id int32, addr *net.UDPAddr, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := addr.String()
	if old, ok := p.byAddr[key]; ok && old != id {
		delete(p.byId, old)
	}
	if info, ok := p.byId[id]; ok {
		if info.Addr.String() != key {
			delete(p.byAddr, info.Addr.String())
			info.Addr = addr
		}
		p.byAddr[key] = id
		return
	}
	p.byAddr[key] = id
	p.byId[id] = &PeerInfo{Id: id, Addr: addr, LastRecv: now}
}

// Forget removes the peer and returns its address.
func (p *Peers) Forget(id int32) (*net.UDPAddr, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	info, ok := p.byId[id]
	if !ok {
		return nil, false
	}
	delete(p.byId, id)
	delete(p.byAddr, info.Addr.String())
	return info.Addr, true
}

// Touch records traffic received from addr and returns the sender's id.
func (p *Peers) Touch(addr *net.UDPAddr, now time.Time) (int32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.byAddr[addr.String()]
	if !ok {
		return 0, false
	}
	p.byId[id].LastRecv = now
	return id, true
}

// Sent records traffic sent to addr.
func (p *Peers) Sent(addr *net.UDPAddr, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.byAddr[addr.String()]; ok {
		p.byId[id].LastSend = now
	}
}

// TouchAll marks every peer as heard from, opening a fresh window.
func (p *Peers) TouchAll(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, info := range p.byId {
		info.LastRecv = now
	}
}

func (p *Peers) Lookup(addr *net.UDPAddr) (int32, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.byAddr[addr.String()]
	return id, ok
}

func (p *Peers) Addr(id int32) (*net.UDPAddr, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if info, ok := p.byId[id]; ok {
		return info.Addr, true
	}
	return nil, false
}

func (p *Peers) Get(id int32) (PeerInfo, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if info, ok := p.byId[id]; ok {
		return *info, true
	}
	return PeerInfo{}, false
}

// Silent returns the ids, except the given one, not heard from within window.
func (p *Peers) Silent(now time.Time, window time.Duration, except int32) []int32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var ids []int32
	for id, info := range p.byId {
		if id == except {
			continue
		}
		if now.Sub(info.LastRecv) > window {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// All returns a copy of every peer, ordered by id.
func (p *Peers) All() []PeerInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	peers := make([]PeerInfo, 0, len(p.byId))
	for _, info := range p.byId {
		peers = append(peers, *info)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].Id < peers[j].Id })
	return peers
}
