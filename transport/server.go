/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

// Package transport implements the framed, authenticated,
// end-to-end-encrypted file-streaming protocol that runs over TLS between
// two La-Vak nodes (spec §4.3).
package transport

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync"

	"github.com/la-vak/la-vak/cryptocore"
	"github.com/la-vak/la-vak/internal/events"
	"github.com/la-vak/la-vak/logging"
)

// pendingIncoming is the spec §3 "Pending-incoming record": a receive
// waiting for the user's accept/reject decision.
type pendingIncoming struct {
	transfer *Transfer
	conn     net.Conn
	gate     *events.DecisionGate
}

// Server owns the TLS listener, every connection handle, and the
// transfers map exclusively (spec §3 ownership invariant). The engine glue
// only ever reads snapshots handed back by GetTransfers/GetPeers-style
// accessors.
type Server struct {
	log          logging.Logger
	downloadsDir string

	listener net.Listener
	port     uint16

	transfers struct {
		sync.RWMutex
		table map[string]*Transfer
	}

	pending struct {
		sync.Mutex
		table map[string]*pendingIncoming
	}

	rateLimiter *connRateLimiter

	events   chan Event
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewServer constructs a Server that will save received files under
// downloadsDir (created if missing by the caller).
func NewServer(downloadsDir string, log logging.Logger) *Server {
	if log == nil {
		log = logging.NewLogger(logging.LogLevelSilent, "")
	}
	s := &Server{
		log:          log,
		downloadsDir: downloadsDir,
		events:       make(chan Event, 256),
		stop:         make(chan struct{}),
		rateLimiter:  newConnRateLimiter(),
	}
	s.transfers.table = make(map[string]*Transfer)
	s.pending.table = make(map[string]*pendingIncoming)
	return s
}

// Events returns the channel Transport publishes transfer-progress,
// incoming-request, transfer-complete, and transfer-error events on.
func (s *Server) Events() <-chan Event {
	return s.events
}

// Start generates an ephemeral TLS server identity is NOT done here — the
// certificate is the caller's concern (spec §1: certificate generation is
// a library concern, out of Transport's contract). Start binds a TLS
// listener on bindAddr using cert and returns the OS-chosen port.
//
// TLS client verification is disabled on both this listener and every
// outbound Dial in sender.go: the security properties of this protocol
// come from the RSA/AES handshake and the post-transfer hash check, not
// from certificate trust (spec §4.3.5, §9).
func (s *Server) Start(bindAddr string, cert tls.Certificate) (uint16, error) {
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.NoClientCert,
	}

	ln, err := tls.Listen("tcp", bindAddr, tlsConfig)
	if err != nil {
		return 0, fmt.Errorf("transport: listen: %w", err)
	}
	s.listener = ln

	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		ln.Close()
		return 0, fmt.Errorf("transport: parse listener address: %w", err)
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		ln.Close()
		return 0, fmt.Errorf("transport: parse listener port: %w", err)
	}
	s.port = uint16(port)

	s.wg.Add(1)
	go s.acceptLoop()

	return s.port, nil
}

// Stop closes the listener; connections already in flight are allowed to
// finish on their own.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.listener != nil {
			s.listener.Close()
		}
		s.rateLimiter.close()
	})
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
				s.log.Debugf("transport: accept: %v", err)
				continue
			}
		}

		host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		if ip := net.ParseIP(host); ip != nil && !s.rateLimiter.allow(ip) {
			s.log.Debugf("transport: rate limiting connection from %s", host)
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleIncomingConnection(conn)
		}()
	}
}

// GetTransfers returns a snapshot of every known transfer.
func (s *Server) GetTransfers() []Transfer {
	s.transfers.RLock()
	defer s.transfers.RUnlock()
	out := make([]Transfer, 0, len(s.transfers.table))
	for _, t := range s.transfers.table {
		out = append(out, *t)
	}
	return out
}

// RespondToIncoming answers a pending receive. It returns false if the
// transfer id is unknown or has already been responded to.
func (s *Server) RespondToIncoming(transferID string, accept bool) bool {
	s.pending.Lock()
	p, ok := s.pending.table[transferID]
	if ok {
		delete(s.pending.table, transferID)
	}
	s.pending.Unlock()
	if !ok {
		return false
	}
	return p.gate.Resolve(accept)
}

func (s *Server) registerTransfer(t *Transfer) {
	s.transfers.Lock()
	s.transfers.table[t.ID] = t
	s.transfers.Unlock()
}

func (s *Server) emitProgress(t *Transfer) {
	s.emit(Event{Kind: EventTransferProgress, Transfer: *t})
}

// emitTerminal is the single emission site for both terminal events, so
// spec invariant P8 (exactly one of transfer-complete/transfer-error per
// transfer) holds by construction: every terminal path in sender.go and
// receiver.go funnels through here exactly once.
func (s *Server) emitTerminal(t *Transfer) {
	if t.Status == StatusCompleted {
		s.emit(Event{Kind: EventTransferComplete, Transfer: *t})
	} else {
		s.emit(Event{Kind: EventTransferError, Transfer: *t})
	}
}

func (s *Server) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Debugf("transport: event channel full, dropping %v", ev.Kind)
	}
}

func (s *Server) emitIncomingRequest(req IncomingRequest) {
	s.emit(Event{Kind: EventIncomingRequest, Incoming: req})
}

func (s *Server) addPending(p *pendingIncoming) {
	s.pending.Lock()
	s.pending.table[p.transfer.ID] = p
	s.pending.Unlock()
}

func (s *Server) removePending(transferID string) {
	s.pending.Lock()
	delete(s.pending.table, transferID)
	s.pending.Unlock()
}

// ownPublicKeyPEM returns this process's RSA public key PEM, generating
// the process-lifetime key pair on first use.
func ownPublicKeyPEM() ([]byte, error) {
	pub, _, err := cryptocore.GetKeyPair()
	return pub, err
}
