/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package discovery

import "time"

// Peer is a snapshot of a known reachable node on the LAN, keyed by peerID
// in Discovery's live peer table (spec §3 "Peer record").
type Peer struct {
	ID            string
	DeviceName    string
	IP            string
	HTTPPort      uint16
	TransportPort uint16
	Platform      string
	LastSeen      time.Time
}
