// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package subscribe implements the per-hub subscription index
// §4.7): a prefix-indexed set of peers, supporting per-peer
// subscribe/unsubscribe and broadcast-time prefix matching.
//
// Built on github.com/hashicorp/go-immutable-radix/v2 (required directly by
// moby/moby's go.mod): an immutable radix tree is precisely "trie-indexed
// prefix set", and its Root().WalkPath primitive — walk every node from the
// root down to a given key — is exactly "every registered prefix that is a
// prefix of topic", which is the operation this index exists to answer
// quickly. Not safe for concurrent use; a Hub owns exactly one and is the
// ... subscription index[,] exclusively owned by the hub task".
package subscribe

import (
	iradix "github.com/hashicorp/go-immutable-radix/v2"
)

// Index maps byte prefixes to the set of peers subscribed to them.
type Index struct {
	tree *iradix.Tree[map[string]int] // prefix -> peerID -> refcount

	// byPeer mirrors tree, keyed the other way, so RemovePeer doesn't have
	// to walk the whole trie to find one peer's subscriptions.
	byPeer map[string]map[string]int // peerID -> prefix -> refcount
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		tree:   iradix.New[map[string]int](),
		byPeer: make(map[string]map[string]int),
	}
}

// Subscribe registers prefix for peer. Idempotent: subscribing the same
// (peer, prefix) pair twice bumps a refcount; Unsubscribe must be called an
// equal number of times to actually remove it.
func (idx *Index) Subscribe(peer, prefix string) {
	txn := idx.tree.Txn()
	peers, _ := txn.Get([]byte(prefix))
	peers = cloneSet(peers)
	peers[peer]++
	txn.Insert([]byte(prefix), peers)
	idx.tree = txn.Commit()

	if idx.byPeer[peer] == nil {
		idx.byPeer[peer] = make(map[string]int)
	}
	idx.byPeer[peer][prefix]++
}

// Unsubscribe decrements the (peer, prefix) refcount, removing the node
// entirely once it reaches zero.
func (idx *Index) Unsubscribe(peer, prefix string) {
	txn := idx.tree.Txn()
	peers, ok := txn.Get([]byte(prefix))
	if !ok {
		return
	}
	peers = cloneSet(peers)
	if peers[peer] <= 1 {
		delete(peers, peer)
	} else {
		peers[peer]--
	}
	if len(peers) == 0 {
		txn.Delete([]byte(prefix))
	} else {
		txn.Insert([]byte(prefix), peers)
	}
	idx.tree = txn.Commit()

	if m := idx.byPeer[peer]; m != nil {
		if m[prefix] <= 1 {
			delete(m, prefix)
		} else {
			m[prefix]--
		}
		if len(m) == 0 {
			delete(idx.byPeer, peer)
		}
	}
}

// Matches returns every peer with a registered prefix that is a prefix of
// topic, deduplicated. The empty prefix matches every topic.
func (idx *Index) Matches(topic string) []string {
	seen := make(map[string]struct{})
	idx.tree.Root().WalkPath([]byte(topic), func(_ []byte, peers map[string]int) bool {
		for p := range peers {
			seen[p] = struct{}{}
		}
		return false // keep walking toward the leaf
	})
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	return out
}

// RemovePeer removes every subscription a peer holds, an
// O(sum |subscriptions|) sweep driven by the hub on peer teardown
// under heavy churn.
func (idx *Index) RemovePeer(peer string) {
	prefixes := idx.byPeer[peer]
	if len(prefixes) == 0 {
		return
	}
	txn := idx.tree.Txn()
	for prefix := range prefixes {
		peers, ok := txn.Get([]byte(prefix))
		if !ok {
			continue
		}
		peers = cloneSet(peers)
		delete(peers, peer)
		if len(peers) == 0 {
			txn.Delete([]byte(prefix))
		} else {
			txn.Insert([]byte(prefix), peers)
		}
	}
	idx.tree = txn.Commit()
	delete(idx.byPeer, peer)
}

func cloneSet(m map[string]int) map[string]int {
	out := make(map[string]int, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
