/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package engine

import (
	"github.com/la-vak/la-vak/discovery"
	"github.com/la-vak/la-vak/transport"
)

// EventKind discriminates every event the engine forwards upward, unifying
// Discovery's and Transport's separate event kinds into the single stream
// described by the control surface contract (spec §6).
type EventKind int

const (
	EventPeersUpdated EventKind = iota
	EventPeerJoined
	EventPeerLeft
	EventTransferProgress
	EventTransferComplete
	EventTransferError
	EventIncomingRequest
)

// Event is one notification from the engine. Exactly one of the payload
// fields is populated, matching Kind.
type Event struct {
	Kind     EventKind
	Peer     discovery.Peer
	Peers    []discovery.Peer
	Transfer transport.Transfer
	Incoming transport.IncomingRequest
}

func fromDiscoveryEvent(ev discovery.Event) Event {
	switch ev.Kind {
	case discovery.EventPeerJoined:
		return Event{Kind: EventPeerJoined, Peer: ev.Peer}
	case discovery.EventPeerLeft:
		return Event{Kind: EventPeerLeft, Peer: ev.Peer}
	default:
		return Event{Kind: EventPeersUpdated, Peers: ev.Peers}
	}
}

func fromTransportEvent(ev transport.Event) Event {
	switch ev.Kind {
	case transport.EventTransferProgress:
		return Event{Kind: EventTransferProgress, Transfer: ev.Transfer}
	case transport.EventTransferComplete:
		return Event{Kind: EventTransferComplete, Transfer: ev.Transfer}
	case transport.EventTransferError:
		return Event{Kind: EventTransferError, Transfer: ev.Transfer}
	default:
		return Event{Kind: EventIncomingRequest, Incoming: ev.Incoming}
	}
}
