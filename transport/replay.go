/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package transport

/* Sliding-window duplicate/reorder detector for data-frame chunk indices,
 * adapted from an RFC6479-style replay filter for packet counters.
 *
 * Spec invariant P7 requires every data message in a session to carry a
 * distinct (IV, authTag) pair, and the per-chunk IV is derived solely from
 * the chunk index (cryptocore.DeriveChunkIV). If a peer ever sent two data
 * frames with the same index under the same session key, the AES-GCM
 * nonce would repeat — catastrophic for GCM's confidentiality and
 * integrity guarantees. chunkIndexFilter rejects any index outside the
 * current window or already seen within it, so the receiver never calls
 * OpenChunk twice with the same (key, iv).
 *
 * Not safe for concurrent use — callers serialize per-connection.
 */

const (
	_wordBits       = 32 << (^uint(0) >> 63) // 32 or 64
	indexWindowBits = 2048
	indexWindowSize = uint64(indexWindowBits - _wordBits*8)
	backtrackWords  = indexWindowBits / _wordBits
)

type chunkIndexFilter struct {
	highest    uint64
	backtrack  [backtrackWords]uint
	initalized bool
}

func (f *chunkIndexFilter) init() {
	f.highest = 0
	for i := range f.backtrack {
		f.backtrack[i] = 0
	}
	f.initalized = true
}

// validate reports whether index is acceptable: not already seen, and not
// so far behind the highest seen index that it has fallen out of the
// window. On acceptance the index is marked seen.
func (f *chunkIndexFilter) validate(index uint32) bool {
	if !f.initalized {
		f.init()
	}
	counter := uint64(index)

	wordIndex := counter / _wordBits

	if counter > f.highest {
		current := f.highest / _wordBits
		diff := wordIndex - current
		if diff > backtrackWords {
			diff = backtrackWords
		}
		for i := uint64(1); i <= diff; i++ {
			f.backtrack[(current+i)%backtrackWords] = 0
		}
		f.highest = counter
	} else if f.highest-counter > indexWindowSize {
		return false
	}

	wordIndex %= backtrackWords
	bit := uint(counter % _wordBits)

	old := f.backtrack[wordIndex]
	updated := old | (1 << bit)
	f.backtrack[wordIndex] = updated
	return old != updated
}
