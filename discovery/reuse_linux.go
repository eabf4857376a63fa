//go:build linux

/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package discovery

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseControl sets SO_REUSEADDR and SO_REUSEPORT on the discovery socket
// before bind, so multiple La-Vak processes (or restarts) on the same host
// can all join the multicast group on the fixed discovery port (spec §4.2:
// "with TTL 128 and socket address reuse enabled"). Other platforms use the
// no-op in reuse_default.go.
func reuseControl(network, address string, c syscall.RawConn) error {
	var setErr error
	err := c.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			setErr = err
			return
		}
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			setErr = err
			return
		}
	})
	if err != nil {
		return err
	}
	return setErr
}
