/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package transport

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/la-vak/la-vak/cryptocore"
	"github.com/la-vak/la-vak/internal/events"
)

// safeBasename strips every directory component from a sender-supplied
// file name, treating both '/' and '\' as separators regardless of host
// OS, so a name like "../../etc/passwd" or "..\\..\\x" can never escape
// the downloads directory (spec invariant P9).
func safeBasename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(filepath.FromSlash(name))
	if base == "." || base == ".." || base == string(filepath.Separator) || base == "" {
		return "unnamed-download"
	}
	return base
}

// destinationPath resolves the final on-disk path for a received file,
// guaranteeing (by construction, not just by convention) that it lies
// inside downloadsDir.
func destinationPath(downloadsDir, fileName string) (string, error) {
	clean := filepath.Join(downloadsDir, safeBasename(fileName))
	rel, err := filepath.Rel(downloadsDir, clean)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("transport: resolved path escapes downloads directory")
	}
	return clean, nil
}

// pendingWatchInterval is how often watchPendingConnection checks whether
// a connection awaiting an accept/reject decision is still alive.
const pendingWatchInterval = 2 * time.Second

// watchPendingConnection resolves gate to a rejection if conn goes away
// while the user's decision is still outstanding, so a dead peer can never
// leave a pending-incoming record (and its blocked goroutine) stranded
// forever.
func watchPendingConnection(conn net.Conn, reader *frameReader, gate *events.DecisionGate) {
	ticker := time.NewTicker(pendingWatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-gate.Done():
			return
		case <-ticker.C:
			if !reader.peekAlive(conn, pendingWatchInterval/4) {
				gate.Resolve(false)
				return
			}
		}
	}
}

func (s *Server) failReceive(t *Transfer, conn net.Conn, msg string) {
	t.Status = StatusError
	t.Error = msg
	conn.Close()
	if t.ID != "" {
		s.removePending(t.ID)
		s.emitTerminal(t)
	}
}

// handleIncomingConnection runs the receiver side of the handshake and
// stream state machine for one accepted TLS connection (spec §4.3.3). The
// protocol is strictly ordered: any message out of turn is a
// ProtocolViolation and destroys the connection.
func (s *Server) handleIncomingConnection(conn net.Conn) {
	peerHost, _, _ := net.SplitHostPort(conn.RemoteAddr().String())

	reader := newFrameReader(conn)

	h, _, err := readNextFrame(reader)
	if err != nil {
		conn.Close()
		return
	}
	if h.Type != msgHello {
		conn.Close()
		return
	}

	peerPublicKeyPEM := []byte(h.PublicKey)
	transferID := h.TransferID

	key, baseIV, genErr := cryptocore.GenerateSession()
	if genErr != nil {
		s.log.Errorf("transport: generate session: %v", genErr)
		conn.Close()
		return
	}

	encryptedKey, wrapErr := cryptocore.WrapSessionKey(peerPublicKeyPEM, key[:])
	if wrapErr != nil {
		s.log.Errorf("transport: wrap session key: %v", wrapErr)
		conn.Close()
		return
	}

	if err := writeFrame(conn, header{
		Type:         msgSession,
		EncryptedKey: base64.StdEncoding.EncodeToString(encryptedKey),
		IV:           base64.StdEncoding.EncodeToString(baseIV[:]),
	}, nil); err != nil {
		conn.Close()
		return
	}

	h, _, err = readNextFrame(reader)
	if err != nil || h.Type != msgMeta {
		conn.Close()
		return
	}

	t := &Transfer{
		ID:        transferID,
		Direction: DirectionReceive,
		FileName:  h.Name,
		FileSize:  h.Size,
		Status:    StatusPending,
		PeerIP:    peerHost,
		StartTime: time.Now(),
	}
	s.registerTransfer(t)
	s.emitProgress(t)

	gate := events.NewDecisionGate()
	s.addPending(&pendingIncoming{transfer: t, conn: conn, gate: gate})
	s.emitIncomingRequest(IncomingRequest{
		TransferID: t.ID,
		FileName:   t.FileName,
		FileSize:   t.FileSize,
		PeerIP:     t.PeerIP,
	})

	// The pending record is removed when the user responds or the
	// connection dies (spec §3 "Pending-incoming record"); nothing else is
	// reading from conn while we wait, so a background watcher periodically
	// peeks for a closed connection and resolves the gate itself.
	go watchPendingConnection(conn, reader, gate)

	accepted := gate.Wait()
	s.removePending(t.ID)
	if !accepted {
		t.Status = StatusRejected
		t.Error = "rejected by local user"
		writeFrame(conn, header{Type: msgRejected, TransferID: t.ID}, nil)
		conn.Close()
		s.emitTerminal(t)
		return
	}

	destPath, pathErr := destinationPath(s.downloadsDir, h.Name)
	if pathErr != nil {
		s.failReceive(t, conn, fmt.Sprintf("IoFailure: %v", pathErr))
		return
	}
	t.DestPath = destPath

	out, openErr := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if openErr != nil {
		s.failReceive(t, conn, fmt.Sprintf("IoFailure: %v", openErr))
		return
	}

	t.Status = StatusTransferring
	if err := writeFrame(conn, header{Type: msgAccepted, TransferID: t.ID}, nil); err != nil {
		out.Close()
		s.failReceive(t, conn, fmt.Sprintf("IoFailure: send accepted: %v", err))
		return
	}
	s.emitProgress(t)

	expectedHash := h.Hash
	s.receiveStream(t, conn, reader, out, key[:], baseIV, destPath, expectedHash)
}

// receiveStream consumes data/done frames, decrypting and writing each
// chunk directly to out without buffering the whole file in memory (spec
// §4.3.4), then verifies the post-transfer hash.
func (s *Server) receiveStream(t *Transfer, conn net.Conn, reader *frameReader, out *os.File, key []byte, baseIV [cryptocore.BaseIVSize]byte, destPath, expectedHash string) {
	var filter chunkIndexFilter

	for {
		h, payload, err := reader.readFrame()
		if errors.Is(err, errMalformedHeader) {
			// Spec §4.3.1: a frame whose header isn't valid JSON is dropped
			// silently; framing continues with the next frame.
			continue
		}
		if err != nil {
			out.Close()
			s.failReceive(t, conn, fmt.Sprintf("IoFailure: %v", err))
			return
		}

		switch h.Type {
		case msgData:
			if !filter.validate(h.Index) {
				out.Close()
				s.failReceive(t, conn, "ProtocolViolation: duplicate or out-of-window chunk index")
				return
			}
			tag, decErr := base64.StdEncoding.DecodeString(h.AuthTag)
			if decErr != nil {
				out.Close()
				s.failReceive(t, conn, "ProtocolViolation: malformed auth tag")
				return
			}
			iv := cryptocore.DeriveChunkIV(baseIV, h.Index)
			plaintext, openErr := cryptocore.OpenChunk(key, iv[:], payload, tag)
			if openErr != nil {
				out.Close()
				s.failReceive(t, conn, "Decryption failed — possible tampering")
				return
			}
			if _, writeErr := out.Write(plaintext); writeErr != nil {
				out.Close()
				s.failReceive(t, conn, fmt.Sprintf("IoFailure: write: %v", writeErr))
				return
			}
			t.BytesTransferred += int64(len(plaintext))
			s.emitProgress(t)

		case msgDone:
			out.Close()
			t.Status = StatusVerifying
			s.emitProgress(t)

			actualHash, hashErr := cryptocore.HashFile(destPath)
			if hashErr != nil {
				s.failReceive(t, conn, fmt.Sprintf("IoFailure: %v", hashErr))
				return
			}
			if actualHash != expectedHash {
				s.failReceive(t, conn, "SHA-256 mismatch — file corrupted")
				return
			}
			t.Status = StatusCompleted
			conn.Close()
			s.emitTerminal(t)
			return

		default:
			out.Close()
			s.failReceive(t, conn, "ProtocolViolation: unexpected message type "+h.Type)
			return
		}
	}
}
