/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/la-vak/la-vak/engine"
	"github.com/la-vak/la-vak/internal/flags"
	"github.com/la-vak/la-vak/logging"
)

const laVakVersion = "0.1.0"

func main() {
	opts := flags.NewOptions()
	if err := flags.Parse(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if opts.ShowVersion {
		fmt.Printf("la-vak v%s\n\nZero-configuration LAN file transfer for %s-%s.\n", laVakVersion, runtime.GOOS, runtime.GOARCH)
		return
	}

	log := logging.NewLogger(opts.LogLevel, "")

	cert, err := selfSignedCert()
	if err != nil {
		log.Errorf("generate TLS certificate: %v", err)
		os.Exit(1)
	}

	eng, err := engine.New(engine.Config{
		BindAddr:      opts.BindAddr,
		TransportPort: uint16(opts.TransportPort),
		HTTPPort:      uint16(opts.HTTPPort),
		DownloadsDir:  opts.DownloadsDir,
		Cert:          cert,
		Log:           log,
	})
	if err != nil {
		log.Errorf("start: %v", err)
		os.Exit(1)
	}

	log.Infof("la-vak started")

	term := make(chan os.Signal, 2)
	signal.Notify(term, syscall.SIGTERM)
	signal.Notify(term, os.Interrupt)

	go logEvents(log, eng.Events())

	<-term

	log.Infof("shutting down")
	eng.Stop()
}

func logEvents(log logging.Logger, events <-chan engine.Event) {
	for ev := range events {
		switch ev.Kind {
		case engine.EventPeerJoined:
			log.Infof("peer joined: %s (%s)", ev.Peer.DeviceName, ev.Peer.IP)
		case engine.EventPeerLeft:
			log.Infof("peer left: %s", ev.Peer.DeviceName)
		case engine.EventPeersUpdated:
			log.Debugf("peer table now has %d peers", len(ev.Peers))
		case engine.EventIncomingRequest:
			log.Infof("incoming request %s: %s (%d bytes) from %s", ev.Incoming.TransferID, ev.Incoming.FileName, ev.Incoming.FileSize, ev.Incoming.PeerIP)
		case engine.EventTransferProgress:
			log.Debugf("transfer %s: %d/%d bytes (%s)", ev.Transfer.ID, ev.Transfer.BytesTransferred, ev.Transfer.FileSize, ev.Transfer.Status)
		case engine.EventTransferComplete:
			log.Infof("transfer %s complete: %s", ev.Transfer.ID, ev.Transfer.FileName)
		case engine.EventTransferError:
			log.Errorf("transfer %s failed: %s", ev.Transfer.ID, ev.Transfer.Error)
		}
	}
}
