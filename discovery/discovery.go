/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

// Package discovery implements the LAN peer discovery protocol: a
// UDP-multicast "hello" broadcaster and listener that maintains a live set
// of reachable peers with no central registry (spec §4.2).
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/la-vak/la-vak/logging"
)

const (
	// BroadcastInterval is how often this node announces itself.
	BroadcastInterval = 3 * time.Second
	// PeerTimeout is how long a peer may go unheard-from before it is
	// evicted from the peer table.
	PeerTimeout = 10 * time.Second
	// sweepInterval is how often the peer table is swept for stale
	// entries: PeerTimeout/2.
	sweepInterval = PeerTimeout / 2

	readBufferSize = 2048
)

// ErrDiscoveryBind is returned by Start when the multicast socket cannot be
// bound. It is fatal to Discovery (spec §4.2, §7 "DiscoveryBind").
var ErrDiscoveryBind = errors.New("discovery: bind failed")

// Identity is the subset of this process's device identity that Discovery
// broadcasts and uses to recognize its own hellos.
type Identity struct {
	ID            string
	DeviceName    string
	HTTPPort      uint16
	TransportPort uint16
	Platform      string
}

// Discovery owns the multicast socket and the live peer table exclusively;
// the engine glue only ever reads snapshots (spec §3 ownership invariant).
type Discovery struct {
	identity Identity
	log      logging.Logger

	recvConn *net.UDPConn
	sendConn *net.UDPConn

	peers struct {
		sync.RWMutex
		table map[string]Peer
	}

	events chan Event

	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	startOnce sync.Once
}

// New constructs a Discovery instance for the given identity. Events is a
// buffered channel the caller drains; Discovery never blocks trying to
// send on it — when the channel is full, the event being emitted is
// dropped rather than stalling the network loops.
func New(identity Identity, log logging.Logger) *Discovery {
	if log == nil {
		log = logging.NewLogger(logging.LogLevelSilent, "")
	}
	d := &Discovery{
		identity: identity,
		log:      log,
		events:   make(chan Event, 64),
		stop:     make(chan struct{}),
	}
	d.peers.table = make(map[string]Peer)
	return d
}

// Events returns the channel Discovery publishes peer-joined, peer-left,
// and peers-updated events on.
func (d *Discovery) Events() <-chan Event {
	return d.events
}

// Start binds the multicast socket, joins the discovery group on every
// usable interface, and begins broadcasting and sweeping. A bind failure
// is fatal and returned to the caller; a per-interface join failure is
// logged and skipped (spec §4.2).
func (d *Discovery) Start() error {
	groupAddr := &net.UDPAddr{IP: net.ParseIP(MulticastGroup), Port: Port}

	lc := net.ListenConfig{Control: reuseControl}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", Port))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDiscoveryBind, err)
	}
	recvConn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return fmt.Errorf("%w: unexpected packet conn type", ErrDiscoveryBind)
	}
	d.recvConn = recvConn

	p := ipv4.NewPacketConn(recvConn)
	if err := p.SetMulticastTTL(multicastTTL); err != nil {
		d.log.Errorf("discovery: set multicast ttl: %v", err)
	}
	_ = p.SetMulticastLoopback(true)

	ifaces, err := net.Interfaces()
	if err != nil {
		recvConn.Close()
		return fmt.Errorf("%w: %v", ErrDiscoveryBind, err)
	}
	joined := 0
	for i := range ifaces {
		iface := ifaces[i]
		if iface.Flags&net.FlagMulticast == 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if err := p.JoinGroup(&iface, groupAddr); err != nil {
			d.log.Debugf("discovery: join group on %s: %v", iface.Name, err)
			continue
		}
		joined++
	}
	if joined == 0 {
		recvConn.Close()
		return fmt.Errorf("%w: no interface could join the multicast group", ErrDiscoveryBind)
	}

	sendConn, err := net.DialUDP("udp4", nil, groupAddr)
	if err != nil {
		recvConn.Close()
		return fmt.Errorf("%w: %v", ErrDiscoveryBind, err)
	}
	d.sendConn = sendConn

	d.wg.Add(3)
	go d.broadcastLoop()
	go d.listenLoop()
	go d.sweepLoop()

	return nil
}

// Stop clears timers, drops group membership, closes sockets, and clears
// the peer map.
func (d *Discovery) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
		if d.recvConn != nil {
			d.recvConn.Close()
		}
		if d.sendConn != nil {
			d.sendConn.Close()
		}
	})
	d.wg.Wait()

	d.peers.Lock()
	d.peers.table = make(map[string]Peer)
	d.peers.Unlock()
}

func (d *Discovery) broadcastLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(BroadcastInterval)
	defer ticker.Stop()

	d.sendHello()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.sendHello()
		}
	}
}

func (d *Discovery) sendHello() {
	payload, err := encodeHello(hello{
		ID:            d.identity.ID,
		DeviceName:    d.identity.DeviceName,
		HTTPPort:      d.identity.HTTPPort,
		TransportPort: d.identity.TransportPort,
		Platform:      d.identity.Platform,
	})
	if err != nil {
		d.log.Errorf("discovery: encode hello: %v", err)
		return
	}
	// Send errors are per-datagram and never terminate the broadcast loop.
	if _, err := d.sendConn.Write(payload); err != nil {
		d.log.Debugf("discovery: send hello: %v", err)
	}
}

func (d *Discovery) listenLoop() {
	defer d.wg.Done()

	buf := make([]byte, readBufferSize)
	for {
		n, addr, err := d.recvConn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-d.stop:
				return
			default:
				d.log.Debugf("discovery: read: %v", err)
				continue
			}
		}
		h, ok := decodeHello(buf[:n])
		if !ok {
			continue
		}
		d.handleHello(h, addr.IP.String())
	}
}

func (d *Discovery) handleHello(h hello, sourceIP string) {
	if h.ID == d.identity.ID {
		// P5: never add ourselves to our own peer list.
		return
	}

	now := time.Now()
	peer := Peer{
		ID:            h.ID,
		DeviceName:    h.DeviceName,
		IP:            sourceIP,
		HTTPPort:      h.HTTPPort,
		TransportPort: h.TransportPort,
		Platform:      h.Platform,
		LastSeen:      now,
	}

	d.peers.Lock()
	_, existed := d.peers.table[h.ID]
	d.peers.table[h.ID] = peer
	snapshot := d.snapshotLocked()
	d.peers.Unlock()

	if !existed {
		d.emit(Event{Kind: EventPeerJoined, Peer: peer})
	}
	d.emit(Event{Kind: EventPeersUpdated, Peers: snapshot})
}

func (d *Discovery) sweepLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.sweep()
		}
	}
}

func (d *Discovery) sweep() {
	now := time.Now()
	var evicted []Peer

	d.peers.Lock()
	for id, p := range d.peers.table {
		if now.Sub(p.LastSeen) > PeerTimeout {
			evicted = append(evicted, p)
			delete(d.peers.table, id)
		}
	}
	remaining := d.snapshotLocked()
	d.peers.Unlock()

	if len(evicted) == 0 {
		return
	}
	for _, p := range evicted {
		d.emit(Event{Kind: EventPeerLeft, Peer: p})
	}
	d.emit(Event{Kind: EventPeersUpdated, Peers: remaining})
}

// Peers returns a snapshot of the current peer table.
func (d *Discovery) Peers() []Peer {
	d.peers.RLock()
	defer d.peers.RUnlock()
	return d.snapshotLocked()
}

// snapshotLocked requires peers to be locked (read or write) by the caller.
func (d *Discovery) snapshotLocked() []Peer {
	out := make([]Peer, 0, len(d.peers.table))
	for _, p := range d.peers.table {
		out = append(out, p)
	}
	return out
}

func (d *Discovery) emit(ev Event) {
	select {
	case d.events <- ev:
	default:
		d.log.Debugf("discovery: event channel full, dropping %v", ev.Kind)
	}
}
