// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package identity maps routing identities to peer command channels for a
// Hub, and mints auto-generated identities when a peer presents none
// when a peer presents none.
package identity

import (
	"encoding/binary"
	"errors"
	"sync/atomic"
)

// ErrDuplicateIdentity reports that a peer presented an identity already
// in use; the hub must close the new peer with this error.
var ErrDuplicateIdentity = errors.New("identity: duplicate routing identity")

// Minter hands out auto-generated routing identities: 5 bytes,
// [0x00, b0, b1, b2, b3], where b0..b3 are the big-endian low 32 bits of a
// monotonically increasing per-hub 64-bit counter. The layout is fixed
// across every hub; each new Minter counts from 0, so identities minted by
// different Minters (or after a restart) can repeat.
type Minter struct {
	counter atomic.Uint64
}

// Next returns the next auto-generated identity.
func (m *Minter) Next() string {
	n := m.counter.Add(1) - 1
	buf := make([]byte, 5)
	var full [8]byte
	binary.BigEndian.PutUint64(full[:], n)
	copy(buf[1:], full[4:])
	return string(buf)
}

// Endpoint is whatever a Hub uses to reach a peer: its inbound command
// channel, held as an opaque identifier rather than a direct pointer so
// the map and its peers never form a reference cycle.
type Endpoint interface{}

// Map is the hub's identity -> peer-endpoint table. Not safe for
// concurrent use; owned exclusively by one Hub goroutine.
type Map struct {
	peers map[string]Endpoint
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{peers: make(map[string]Endpoint)}
}

// Add registers id -> ep. Returns ErrDuplicateIdentity if id is already
// registered.
func (m *Map) Add(id string, ep Endpoint) error {
	if _, exists := m.peers[id]; exists {
		return ErrDuplicateIdentity
	}
	m.peers[id] = ep
	return nil
}

// Remove unregisters id.
func (m *Map) Remove(id string) {
	delete(m.peers, id)
}

// Lookup returns the endpoint registered for id, if any.
func (m *Map) Lookup(id string) (Endpoint, bool) {
	ep, ok := m.peers[id]
	return ep, ok
}

// Len returns the number of registered peers.
func (m *Map) Len() int { return len(m.peers) }

// Each calls fn for every registered (id, endpoint) pair. fn must not
// mutate the Map.
func (m *Map) Each(fn func(id string, ep Endpoint)) {
	for id, ep := range m.peers {
		fn(id, ep)
	}
}
