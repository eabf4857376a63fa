/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package transport

import (
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/la-vak/la-vak/cryptocore"
)

// SendFile opens a fresh TLS connection to (peerIP, peerPort), runs the
// sender handshake, and streams localPath's contents as displayName. It
// returns the new transfer's id immediately; the transfer itself proceeds
// asynchronously and is observed via Events/GetTransfers (spec §6 control
// surface contract).
func (s *Server) SendFile(peerIP string, peerPort uint16, localPath, displayName string) (string, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return "", fmt.Errorf("transport: stat %s: %w", localPath, err)
	}

	s.transfers.Lock()
	id, err := newTransferID(s.transfers.table)
	if err != nil {
		s.transfers.Unlock()
		return "", err
	}
	t := &Transfer{
		ID:        id,
		Direction: DirectionSend,
		FileName:  displayName,
		FileSize:  info.Size(),
		Status:    StatusConnecting,
		PeerIP:    peerIP,
		StartTime: time.Now(),
	}
	s.transfers.table[id] = t
	s.transfers.Unlock()

	s.emitProgress(t)

	go s.runSend(t, net.JoinHostPort(peerIP, fmt.Sprintf("%d", peerPort)), localPath)

	return id, nil
}

func (s *Server) failSend(t *Transfer, conn net.Conn, msg string) {
	t.Status = StatusError
	t.Error = msg
	if conn != nil {
		conn.Close()
	}
	s.emitTerminal(t)
}

func (s *Server) runSend(t *Transfer, addr, localPath string) {
	hash, err := cryptocore.HashFile(localPath)
	if err != nil {
		s.failSend(t, nil, fmt.Sprintf("IoFailure: %v", err))
		return
	}

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{InsecureSkipVerify: true})
	if err != nil {
		s.failSend(t, nil, fmt.Sprintf("IoFailure: connect: %v", err))
		return
	}
	defer conn.Close()

	pub, err := ownPublicKeyPEM()
	if err != nil {
		s.failSend(t, conn, fmt.Sprintf("IoFailure: %v", err))
		return
	}

	reader := newFrameReader(conn)

	// step 1: connecting -> send hello, move to handshake.
	if err := writeFrame(conn, header{Type: msgHello, PublicKey: string(pub), TransferID: t.ID}, nil); err != nil {
		s.failSend(t, conn, fmt.Sprintf("IoFailure: send hello: %v", err))
		return
	}
	t.Status = StatusHandshake
	s.emitProgress(t)

	// step 2: on session, unwrap K, remember IV0, send meta.
	h, _, err := readNextFrame(reader)
	if err != nil || h.Type != msgSession {
		s.failSend(t, conn, "ProtocolViolation: expected session message")
		return
	}
	encryptedKey, err := base64.StdEncoding.DecodeString(h.EncryptedKey)
	if err != nil {
		s.failSend(t, conn, "ProtocolViolation: malformed session key")
		return
	}
	key, err := cryptocore.UnwrapSessionKey(encryptedKey)
	if err != nil {
		s.failSend(t, conn, fmt.Sprintf("IoFailure: unwrap session key: %v", err))
		return
	}
	ivBytes, err := base64.StdEncoding.DecodeString(h.IV)
	if err != nil || len(ivBytes) != cryptocore.BaseIVSize {
		s.failSend(t, conn, "ProtocolViolation: malformed session iv")
		return
	}
	var baseIV [cryptocore.BaseIVSize]byte
	copy(baseIV[:], ivBytes)

	if err := writeFrame(conn, header{Type: msgMeta, Name: t.FileName, Size: t.FileSize, Hash: hash, TransferID: t.ID}, nil); err != nil {
		s.failSend(t, conn, fmt.Sprintf("IoFailure: send meta: %v", err))
		return
	}

	// step 3/4: wait for accepted or rejected.
	h, _, err = readNextFrame(reader)
	if err != nil {
		s.failSend(t, conn, fmt.Sprintf("IoFailure: %v", err))
		return
	}
	switch h.Type {
	case msgRejected:
		t.Status = StatusRejected
		t.Error = "rejected by peer"
		conn.Close()
		s.emitTerminal(t)
		return
	case msgAccepted:
		// proceed
	default:
		s.failSend(t, conn, "ProtocolViolation: expected accepted or rejected")
		return
	}

	t.Status = StatusTransferring
	s.emitProgress(t)

	if err := s.streamFile(t, conn, localPath, key, baseIV); err != nil {
		s.failSend(t, conn, fmt.Sprintf("IoFailure: %v", err))
		return
	}

	if err := writeFrame(conn, header{Type: msgDone}, nil); err != nil {
		s.failSend(t, conn, fmt.Sprintf("IoFailure: send done: %v", err))
		return
	}

	t.Status = StatusCompleted
	s.emitTerminal(t)
}

// streamFile reads localPath in ChunkSize blocks, seals each with the
// per-chunk derived IV, and frames it as a data message. A bounded channel
// between the file-reader goroutine and the frame-writer goroutine gives
// the reader backpressure from the TLS write side (spec §4.3.4): once the
// channel fills, the reader blocks until the writer (and therefore the
// underlying connection) has drained a slot.
func (s *Server) streamFile(t *Transfer, conn net.Conn, localPath string, key []byte, baseIV [cryptocore.BaseIVSize]byte) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	type sealedChunk struct {
		index      uint32
		ciphertext []byte
		authTag    []byte
	}

	const pipelineDepth = 4
	chunks := make(chan sealedChunk, pipelineDepth)
	readErrCh := make(chan error, 1)

	// quit lets the consumer loop below tell the reader goroutine to give
	// up once it stops draining chunks — without it, a mid-stream
	// writeFrame failure would leave the reader permanently blocked on
	// "chunks <- sealedChunk{...}" once the buffer filled, leaking the
	// goroutine (and its sealed-chunk memory) for the life of the daemon.
	quit := make(chan struct{})
	defer close(quit)

	go func() {
		defer close(chunks)
		buf := make([]byte, ChunkSize)
		var index uint32
		for {
			n, err := f.Read(buf)
			if n > 0 {
				iv := cryptocore.DeriveChunkIV(baseIV, index)
				ciphertext, tag, sealErr := cryptocore.SealChunk(key, iv[:], buf[:n])
				if sealErr != nil {
					readErrCh <- sealErr
					return
				}
				select {
				case chunks <- sealedChunk{index: index, ciphertext: ciphertext, authTag: tag}:
				case <-quit:
					return
				}
				index++
			}
			if err == io.EOF {
				readErrCh <- nil
				return
			}
			if err != nil {
				readErrCh <- err
				return
			}
		}
	}()

	for c := range chunks {
		h := header{
			Type:      msgData,
			Index:     c.index,
			AuthTag:   base64.StdEncoding.EncodeToString(c.authTag),
			ChunkSize: len(c.ciphertext),
		}
		if err := writeFrame(conn, h, c.ciphertext); err != nil {
			return err
		}
		t.BytesTransferred += int64(len(c.ciphertext))
		s.emitProgress(t)
	}

	return <-readErrCh
}
