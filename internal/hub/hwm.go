// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hub

// hwmTracker is the second tier of the two-tier backpressure model: where
// permit.Pool bounds total outstanding bytes across a write pump, hwmTracker
// bounds outstanding message *count* per subscriber, so one slow PUB
// subscriber cannot pin an unbounded number of in-flight sends against the
// broadcaster. limit 0 means unbounded, matching send_hwm's 0=infinity
// convention.
type hwmTracker struct {
	limit   int
	pending map[string]int
}

func newHWMTracker(limit int) *hwmTracker {
	return &hwmTracker{limit: limit, pending: make(map[string]int)}
}

// tryBegin reports whether peer is under its HWM and, if so, reserves a
// slot. Callers that get false must drop the send silently rather than
// block or queue it.
func (h *hwmTracker) tryBegin(peer string) bool {
	if h.limit <= 0 {
		return true
	}
	if h.pending[peer] >= h.limit {
		return false
	}
	h.pending[peer]++
	return true
}

// end releases the slot reserved by tryBegin once the send completes,
// successfully or not.
func (h *hwmTracker) end(peer string) {
	if h.pending[peer] > 0 {
		h.pending[peer]--
	}
}

// forget drops any bookkeeping for peer, called when it's removed from the
// hub so a departed peer's counter doesn't linger.
func (h *hwmTracker) forget(peer string) {
	delete(h.pending, peer)
}
