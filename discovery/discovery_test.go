/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package discovery

import (
	"fmt"
	"testing"
	"time"

	"github.com/la-vak/la-vak/logging"
)

func newTestIdentity(tag string) Identity {
	return Identity{
		ID:            fmt.Sprintf("test-%s-%d", tag, time.Now().UnixNano()),
		DeviceName:    "node-" + tag,
		HTTPPort:      8080,
		TransportPort: 9090,
		Platform:      "linux",
	}
}

func waitForPeer(t *testing.T, d *Discovery, id string, timeout time.Duration) Peer {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, p := range d.Peers() {
			if p.ID == id {
				return p
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("peer %s not observed within %s", id, timeout)
	return Peer{}
}

func waitForAbsence(t *testing.T, d *Discovery, id string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		present := false
		for _, p := range d.Peers() {
			if p.ID == id {
				present = true
			}
		}
		if !present {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("peer %s still present after %s", id, timeout)
}

// TestDiscoveryChurn is scenario 6: start three nodes, stop one, and
// observe join/eviction within the spec's timing bounds. It requires a
// multicast-capable loopback and is skipped in environments without one.
func TestDiscoveryChurn(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping multicast integration test in -short mode")
	}

	idX := newTestIdentity("x")
	idY := newTestIdentity("y")
	idZ := newTestIdentity("z")

	log := logging.NewLogger(logging.LogLevelSilent, "")
	x := New(idX, log)
	y := New(idY, log)
	z := New(idZ, log)

	if err := x.Start(); err != nil {
		t.Skipf("multicast not available in this environment: %v", err)
	}
	defer x.Stop()
	if err := y.Start(); err != nil {
		t.Skipf("multicast not available in this environment: %v", err)
	}
	if err := z.Start(); err != nil {
		t.Skipf("multicast not available in this environment: %v", err)
	}
	defer z.Stop()

	// P5: a node never appears in its own peer list.
	waitForPeer(t, x, idY.ID, 2*BroadcastInterval)
	for _, p := range x.Peers() {
		if p.ID == idX.ID {
			t.Fatal("node X observed itself in its own peer list")
		}
	}

	waitForPeer(t, z, idY.ID, 2*BroadcastInterval)

	y.Stop()

	waitForAbsence(t, x, idY.ID, PeerTimeout+sweepInterval+2*time.Second)
	waitForAbsence(t, z, idY.ID, PeerTimeout+sweepInterval+2*time.Second)
}

func TestDecodeHelloRejectsMalformed(t *testing.T) {
	if _, ok := decodeHello([]byte("not json")); ok {
		t.Fatal("decodeHello accepted malformed JSON")
	}
	if _, ok := decodeHello([]byte(`{"type":"SOMETHING_ELSE"}`)); ok {
		t.Fatal("decodeHello accepted a non-LAVAK_HELLO type")
	}
	h, ok := decodeHello([]byte(`{"type":"LAVAK_HELLO","id":"abc","deviceName":"n","httpPort":1,"transportPort":2,"platform":"linux"}`))
	if !ok || h.ID != "abc" {
		t.Fatalf("decodeHello rejected a valid hello: %+v, %v", h, ok)
	}
}
