/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package transport

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/la-vak/la-vak/logging"
)

const testTimeout = 5 * time.Second

func newTestServer(t *testing.T) (*Server, uint16) {
	t.Helper()
	dir := t.TempDir()
	s := NewServer(dir, logging.NewLogger(logging.LogLevelSilent, ""))
	port, err := s.Start("127.0.0.1:0", testCert(t))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Stop)
	return s, port
}

// autoAccept answers every incoming request on s with accept, until stop
// is closed. Every other event from s is forwarded on the returned
// channel, which tests wait on instead of s.Events().
func autoAccept(s *Server, stop <-chan struct{}) <-chan Event {
	out := make(chan Event, 256)
	go func() {
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-s.Events():
				if !ok {
					return
				}
				if ev.Kind == EventIncomingRequest {
					s.RespondToIncoming(ev.Incoming.TransferID, true)
					continue
				}
				out <- ev
			}
		}
	}()
	return out
}

// autoReject answers every incoming request on s with reject. Every other
// event from s is forwarded on the returned channel.
func autoReject(s *Server, stop <-chan struct{}) <-chan Event {
	out := make(chan Event, 256)
	go func() {
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-s.Events():
				if !ok {
					return
				}
				if ev.Kind == EventIncomingRequest {
					s.RespondToIncoming(ev.Incoming.TransferID, false)
					continue
				}
				out <- ev
			}
		}
	}()
	return out
}

func waitForEvent(t *testing.T, events <-chan Event, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case ev := <-events:
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for matching event")
		}
	}
}

func writeTempFile(t *testing.T, contents []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.bin")
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

// TestLoopbackSuccess covers end-to-end scenario 1.
func TestLoopbackSuccess(t *testing.T) {
	a, _ := newTestServer(t)
	b, bPort := newTestServer(t)

	stop := make(chan struct{})
	defer close(stop)
	bEvents := autoAccept(b, stop)

	payload := append([]byte("La-Vak E2E Test"), randomPayload(t, 256)...)
	localPath := writeTempFile(t, payload)

	id, err := a.SendFile("127.0.0.1", bPort, localPath, "hello.bin")
	if err != nil {
		t.Fatalf("SendFile: %v", err)
	}

	completeOnA := waitForEvent(t, a.Events(), func(ev Event) bool {
		return ev.Kind == EventTransferComplete && ev.Transfer.ID == id
	})
	if completeOnA.Transfer.Status != StatusCompleted {
		t.Fatalf("sender status = %v, want completed", completeOnA.Transfer.Status)
	}

	completeOnB := waitForEvent(t, bEvents, func(ev Event) bool {
		return ev.Kind == EventTransferComplete
	})
	if completeOnB.Transfer.Status != StatusCompleted {
		t.Fatalf("receiver status = %v, want completed", completeOnB.Transfer.Status)
	}

	got, err := os.ReadFile(completeOnB.Transfer.DestPath)
	if err != nil {
		t.Fatalf("read received file: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("received content mismatch")
	}
	if filepath.Base(completeOnB.Transfer.DestPath) != "hello.bin" {
		t.Fatalf("dest path = %s, want basename hello.bin", completeOnB.Transfer.DestPath)
	}
}

// TestReceiverRejects covers end-to-end scenario 2.
func TestReceiverRejects(t *testing.T) {
	a, _ := newTestServer(t)
	b, bPort := newTestServer(t)

	stop := make(chan struct{})
	defer close(stop)
	bEvents := autoReject(b, stop)

	localPath := writeTempFile(t, []byte("irrelevant"))

	id, err := a.SendFile("127.0.0.1", bPort, localPath, "rejected.bin")
	if err != nil {
		t.Fatalf("SendFile: %v", err)
	}

	errOnA := waitForEvent(t, a.Events(), func(ev Event) bool {
		return ev.Kind == EventTransferError && ev.Transfer.ID == id
	})
	if !bytes.Contains([]byte(errOnA.Transfer.Error), []byte("rejected")) {
		t.Fatalf("sender error = %q, want it to mention rejection", errOnA.Transfer.Error)
	}

	errOnB := waitForEvent(t, bEvents, func(ev Event) bool {
		return ev.Kind == EventTransferError
	})
	if errOnB.Transfer.Status != StatusRejected {
		t.Fatalf("receiver status = %v, want rejected", errOnB.Transfer.Status)
	}

	entries, _ := os.ReadDir(b.downloadsDir)
	if len(entries) != 0 {
		t.Fatalf("expected no file written on rejection, found %d entries", len(entries))
	}
}

// TestLargePayload covers end-to-end scenario 5.
func TestLargePayload(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large-payload transfer in -short mode")
	}

	a, _ := newTestServer(t)
	b, bPort := newTestServer(t)

	stop := make(chan struct{})
	defer close(stop)
	bEvents := autoAccept(b, stop)

	const size = 10 * 1024 * 1024
	payload := randomPayload(t, size)
	localPath := writeTempFile(t, payload)

	id, err := a.SendFile("127.0.0.1", bPort, localPath, "big.bin")
	if err != nil {
		t.Fatalf("SendFile: %v", err)
	}

	completeOnA := waitForEvent(t, a.Events(), func(ev Event) bool {
		return ev.Kind == EventTransferComplete && ev.Transfer.ID == id
	})
	if completeOnA.Transfer.BytesTransferred != size {
		t.Fatalf("bytesTransferred = %d, want %d", completeOnA.Transfer.BytesTransferred, size)
	}

	completeOnB := waitForEvent(t, bEvents, func(ev Event) bool {
		return ev.Kind == EventTransferComplete
	})
	got, err := os.ReadFile(completeOnB.Transfer.DestPath)
	if err != nil {
		t.Fatalf("read received file: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("received content mismatch for large payload")
	}
}

func randomPayload(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return b
}
