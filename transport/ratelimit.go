/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package transport

import (
	"net"
	"sync"
	"time"
)

/* Per-source-IP token bucket guarding the TLS accept loop, adapted from a
 * token-bucket limiter for handshake-initiation packets. Here it rate
 * limits incoming connection attempts per source IP, so a single misbehaving or
 * compromised LAN host can't exhaust Transport's accept loop with a
 * connection flood. This is defense in depth on top of spec's trusted-LAN
 * threat model (spec §1 non-goals: no authenticated peer identity), not a
 * substitute for it.
 */

const (
	connPerSecond  = 20
	connBurst      = 5
	rateGCInterval = time.Second
	connCost       = int64(time.Second) / connPerSecond
	maxRateTokens  = connCost * connBurst
)

type rateEntry struct {
	mutex    sync.Mutex
	lastTime time.Time
	tokens   int64
}

type connRateLimiter struct {
	mutex  sync.RWMutex
	stop   chan struct{}
	table4 map[[net.IPv4len]byte]*rateEntry
	table6 map[[net.IPv6len]byte]*rateEntry
}

func newConnRateLimiter() *connRateLimiter {
	r := &connRateLimiter{
		stop:   make(chan struct{}),
		table4: make(map[[net.IPv4len]byte]*rateEntry),
		table6: make(map[[net.IPv6len]byte]*rateEntry),
	}
	go r.gcLoop()
	return r
}

func (r *connRateLimiter) close() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
}

func (r *connRateLimiter) gcLoop() {
	ticker := time.NewTicker(rateGCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.mutex.Lock()
			for k, e := range r.table4 {
				e.mutex.Lock()
				stale := time.Since(e.lastTime) > rateGCInterval
				e.mutex.Unlock()
				if stale {
					delete(r.table4, k)
				}
			}
			for k, e := range r.table6 {
				e.mutex.Lock()
				stale := time.Since(e.lastTime) > rateGCInterval
				e.mutex.Unlock()
				if stale {
					delete(r.table6, k)
				}
			}
			r.mutex.Unlock()
		}
	}
}

// allow reports whether a new connection attempt from ip should proceed,
// consuming a token if so.
func (r *connRateLimiter) allow(ip net.IP) bool {
	var entry *rateEntry
	var key4 [net.IPv4len]byte
	var key6 [net.IPv6len]byte

	v4 := ip.To4()

	r.mutex.RLock()
	if v4 != nil {
		copy(key4[:], v4)
		entry = r.table4[key4]
	} else {
		copy(key6[:], ip.To16())
		entry = r.table6[key6]
	}
	r.mutex.RUnlock()

	if entry == nil {
		entry = &rateEntry{tokens: maxRateTokens - connCost, lastTime: time.Now()}
		r.mutex.Lock()
		if v4 != nil {
			r.table4[key4] = entry
		} else {
			r.table6[key6] = entry
		}
		r.mutex.Unlock()
		return true
	}

	entry.mutex.Lock()
	defer entry.mutex.Unlock()
	now := time.Now()
	entry.tokens += now.Sub(entry.lastTime).Nanoseconds()
	entry.lastTime = now
	if entry.tokens > maxRateTokens {
		entry.tokens = maxRateTokens
	}
	if entry.tokens > connCost {
		entry.tokens -= connCost
		return true
	}
	return false
}
