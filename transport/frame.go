/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package transport

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// errMalformedHeader is returned internally by readFrame when a frame's
// header bytes don't parse as JSON. Per spec §4.3.1 the caller drops the
// frame and keeps reading rather than tearing down the connection.
var errMalformedHeader = errors.New("transport: malformed frame header")

// frameReader parses the (outerLen, headerLen, header, payload) frame
// format of spec §4.3.1 off of a TLS connection. Reads block until a full
// frame is available, which is behaviorally equivalent to buffering
// partial tails across Read calls on a reliable, ordered stream — there is
// no "parse as many frames as are in the OS buffer right now" distinction
// observable from outside the connection.
//
// The underlying reader is buffered so a caller can peek for connection
// liveness (see peekAlive) without stealing bytes a subsequent readFrame
// call needs. mu serializes readFrame against peekAlive: a background
// liveness watcher (used only while a receive sits in StatusPending, spec
// §3 "Pending-incoming record") and the main protocol loop both touch the
// same bufio.Reader, and bufio.Reader is not safe for concurrent use.
type frameReader struct {
	mu sync.Mutex
	br *bufio.Reader
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{br: bufio.NewReaderSize(r, 64*1024)}
}

// peekAlive reports whether conn still looks alive, by peeking (not
// consuming) one byte with a short deadline. A timeout means the peer is
// simply idle and nothing was consumed; any other error means the
// connection is gone.
func (f *frameReader) peekAlive(conn net.Conn, timeout time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	conn.SetReadDeadline(time.Now().Add(timeout))
	defer conn.SetReadDeadline(time.Time{})

	_, err := f.br.Peek(1)
	if err == nil {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// readNextFrame reads frames off f until one parses cleanly, silently
// dropping any whose header fails to parse as JSON and moving on to the
// next one (spec §4.3.1: "Malformed headers ... are dropped silently and
// framing continues"). Every call site that wants a single logical message
// — as opposed to readFrame's single physical frame — should go through
// this instead of calling readFrame directly.
func readNextFrame(f *frameReader) (header, []byte, error) {
	for {
		h, payload, err := f.readFrame()
		if errors.Is(err, errMalformedHeader) {
			continue
		}
		return h, payload, err
	}
}

// readFrame returns the next frame's header and payload. If the header
// failed to parse as JSON it returns errMalformedHeader so the caller can
// drop the frame and keep reading, per spec §4.3.1; readNextFrame is the
// usual way to get that behavior without repeating the loop at every call
// site.
func (f *frameReader) readFrame() (header, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var outerLenBuf [frameLengthFieldSize]byte
	if _, err := io.ReadFull(f.br, outerLenBuf[:]); err != nil {
		return header{}, nil, err
	}
	outerLen := binary.BigEndian.Uint32(outerLenBuf[:])
	if outerLen < frameLengthFieldSize || int(outerLen) > maxFrameBodySize {
		return header{}, nil, fmt.Errorf("transport: frame outer length %d out of bounds", outerLen)
	}

	body := make([]byte, outerLen)
	if _, err := io.ReadFull(f.br, body); err != nil {
		return header{}, nil, err
	}

	headerLen := binary.BigEndian.Uint32(body[:frameLengthFieldSize])
	rest := body[frameLengthFieldSize:]
	if int(headerLen) > len(rest) || headerLen > maxHeaderSize {
		return header{}, nil, fmt.Errorf("transport: frame header length %d out of bounds", headerLen)
	}

	headerBytes := rest[:headerLen]
	payload := rest[headerLen:]

	var h header
	if err := json.Unmarshal(headerBytes, &h); err != nil {
		return header{}, nil, errMalformedHeader
	}
	return h, payload, nil
}

// writeFrame writes one frame to w: outerLen, headerLen, header JSON,
// payload.
func writeFrame(w io.Writer, h header, payload []byte) error {
	headerBytes, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("transport: marshal header: %w", err)
	}

	outerLen := uint32(frameLengthFieldSize + len(headerBytes) + len(payload))

	buf := make([]byte, 0, frameLengthFieldSize+int(outerLen))
	buf = binary.BigEndian.AppendUint32(buf, outerLen)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(headerBytes)))
	buf = append(buf, headerBytes...)
	buf = append(buf, payload...)

	_, err = w.Write(buf)
	return err
}
