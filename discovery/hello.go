/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package discovery

import "encoding/json"

// helloMessageType is the fixed "type" discriminator for every La-Vak
// discovery datagram.
const helloMessageType = "LAVAK_HELLO"

// MulticastGroup and Port are the fixed rendezvous point for the LAN
// discovery protocol (spec §4.2, §6).
const (
	MulticastGroup = "239.255.42.99"
	Port           = 41234
	multicastTTL   = 128
)

// hello is the wire shape of one discovery datagram. The sender's IP is
// never taken from the payload — it comes from the UDP source address.
type hello struct {
	Type          string `json:"type"`
	ID            string `json:"id"`
	DeviceName    string `json:"deviceName"`
	HTTPPort      uint16 `json:"httpPort"`
	TransportPort uint16 `json:"transportPort"`
	Platform      string `json:"platform"`
}

func encodeHello(h hello) ([]byte, error) {
	h.Type = helloMessageType
	return json.Marshal(h)
}

// decodeHello parses a datagram payload. Datagrams that fail to parse or
// whose type is not LAVAK_HELLO are rejected so the caller can silently
// drop them, per spec §4.2.
func decodeHello(data []byte) (hello, bool) {
	var h hello
	if err := json.Unmarshal(data, &h); err != nil {
		return hello{}, false
	}
	if h.Type != helloMessageType {
		return hello{}, false
	}
	return h, true
}
