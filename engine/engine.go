/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

// Package engine wires Crypto, Discovery, and Transport together behind
// the single control surface external collaborators (an HTTP facade, a
// CLI, a test harness) are expected to drive (spec §6).
package engine

import (
	"crypto/tls"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/la-vak/la-vak/discovery"
	"github.com/la-vak/la-vak/logging"
	"github.com/la-vak/la-vak/transport"
)

// defaultDownloadsDirName is appended to the user's home directory to form
// the fixed downloads location (spec §6): "<home>/Downloads/la-vak/".
const defaultDownloadsDirName = "Downloads/la-vak"

// Config collects the process-lifetime parameters the engine needs to
// start. Cert is supplied by the caller (e.g. cmd/lavak's certutil helper)
// since certificate generation is deliberately outside Transport's and the
// engine's contract (spec §1, §9).
type Config struct {
	BindAddr      string
	TransportPort uint16 // 0 asks the OS for a port, per spec §6.
	HTTPPort      uint16
	DownloadsDir  string // empty uses "<home>/Downloads/la-vak/".
	Cert          tls.Certificate
	Log           logging.Logger
}

// Engine owns one Discovery instance and one Transport Server and fans
// their events into a single outward stream.
type Engine struct {
	log logging.Logger

	discovery *discovery.Discovery
	transport *transport.Server

	events chan Event
	stop   chan struct{}
	wg     sync.WaitGroup
}

// New constructs an Engine and starts it: the Transport server is bound,
// Discovery begins broadcasting, and event forwarding runs until Stop.
func New(cfg Config) (*Engine, error) {
	log := cfg.Log
	if log == nil {
		log = logging.NewLogger(logging.LogLevelSilent, "")
	}

	downloadsDir := cfg.DownloadsDir
	if downloadsDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("engine: resolve home directory: %w", err)
		}
		downloadsDir = filepath.Join(home, defaultDownloadsDirName)
	}
	if err := os.MkdirAll(downloadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("engine: create downloads directory: %w", err)
	}

	deviceID, err := newDeviceID()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		log:       log,
		transport: transport.NewServer(downloadsDir, log),
		events:    make(chan Event, 256),
		stop:      make(chan struct{}),
	}

	bindAddr := cfg.BindAddr
	if bindAddr == "" {
		bindAddr = fmt.Sprintf(":%d", cfg.TransportPort)
	}

	port, err := e.transport.Start(bindAddr, cfg.Cert)
	if err != nil {
		return nil, err
	}

	identity := discovery.Identity{
		ID:            deviceID,
		DeviceName:    deviceName(),
		HTTPPort:      cfg.HTTPPort,
		TransportPort: port,
		Platform:      platformString(),
	}
	e.discovery = discovery.New(identity, log)

	if err := e.discovery.Start(); err != nil {
		e.transport.Stop()
		return nil, err
	}

	e.wg.Add(2)
	go e.forwardDiscovery()
	go e.forwardTransport()

	return e, nil
}

func (e *Engine) forwardDiscovery() {
	defer e.wg.Done()
	ch := e.discovery.Events()
	for {
		select {
		case <-e.stop:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			e.publish(fromDiscoveryEvent(ev))
		}
	}
}

func (e *Engine) forwardTransport() {
	defer e.wg.Done()
	ch := e.transport.Events()
	for {
		select {
		case <-e.stop:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			e.publish(fromTransportEvent(ev))
		}
	}
}

func (e *Engine) publish(ev Event) {
	select {
	case e.events <- ev:
	default:
		e.log.Debugf("engine: event channel full, dropping %v", ev.Kind)
	}
}

// Events returns the unified event stream (spec §6 event subscription).
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Stop shuts down Discovery and Transport and stops event forwarding.
func (e *Engine) Stop() {
	close(e.stop)
	e.discovery.Stop()
	e.transport.Stop()
	e.wg.Wait()
}

// SendFile starts sending localPath to (peerIP, peerPort), returning the
// new transfer's id immediately (spec §6 sendFile).
func (e *Engine) SendFile(peerIP string, peerPort uint16, localPath, displayName string) (string, error) {
	return e.transport.SendFile(peerIP, peerPort, localPath, displayName)
}

// RespondToIncoming answers a pending receive (spec §6 respondToIncoming).
func (e *Engine) RespondToIncoming(transferID string, accept bool) bool {
	return e.transport.RespondToIncoming(transferID, accept)
}

// GetTransfers returns a snapshot of every known transfer (spec §6
// getTransfers).
func (e *Engine) GetTransfers() []transport.Transfer {
	return e.transport.GetTransfers()
}

// GetPeers returns a snapshot of the current peer table (spec §6
// getPeers).
func (e *Engine) GetPeers() []discovery.Peer {
	return e.discovery.Peers()
}
