// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package subscribe

import (
	"sort"
	"testing"
)

func TestIndex_MatchesPrefix(t *testing.T) {
	idx := New()
	idx.Subscribe("sub1", "weather.")
	idx.Subscribe("sub2", "news.")

	got := idx.Matches("weather.sunny")
	if len(got) != 1 || got[0] != "sub1" {
		t.Fatalf("got %v, want [sub1]", got)
	}

	got = idx.Matches("news.tech")
	if len(got) != 1 || got[0] != "sub2" {
		t.Fatalf("got %v, want [sub2]", got)
	}

	if got := idx.Matches("sports.scores"); len(got) != 0 {
		t.Fatalf("got %v, want none", got)
	}
}

func TestIndex_EmptyPrefixMatchesEverything(t *testing.T) {
	idx := New()
	idx.Subscribe("all", "")
	for _, topic := range []string{"weather.sunny", "", "anything"} {
		got := idx.Matches(topic)
		if len(got) != 1 || got[0] != "all" {
			t.Fatalf("topic %q: got %v", topic, got)
		}
	}
}

func TestIndex_MultiplePeersSamePrefix(t *testing.T) {
	idx := New()
	idx.Subscribe("a", "x")
	idx.Subscribe("b", "x")

	got := idx.Matches("xyz")
	sort.Strings(got)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got %v", got)
	}
}

func TestIndex_UnsubscribeRemovesOnZero(t *testing.T) {
	idx := New()
	idx.Subscribe("p", "foo")
	idx.Subscribe("p", "foo") // refcounted
	idx.Unsubscribe("p", "foo")
	if got := idx.Matches("foobar"); len(got) != 1 {
		t.Fatalf("expected still subscribed after one unsubscribe, got %v", got)
	}
	idx.Unsubscribe("p", "foo")
	if got := idx.Matches("foobar"); len(got) != 0 {
		t.Fatalf("expected removed after second unsubscribe, got %v", got)
	}
}

func TestIndex_RemovePeerSweepsAllSubscriptions(t *testing.T) {
	idx := New()
	idx.Subscribe("p", "a")
	idx.Subscribe("p", "b")
	idx.Subscribe("q", "a")

	idx.RemovePeer("p")

	got := idx.Matches("a-topic")
	if len(got) != 1 || got[0] != "q" {
		t.Fatalf("got %v, want [q]", got)
	}
	if got := idx.Matches("b-topic"); len(got) != 0 {
		t.Fatalf("got %v, want none", got)
	}
}

func TestIndex_DedupesPeerMatchingMultiplePrefixes(t *testing.T) {
	idx := New()
	idx.Subscribe("p", "a")
	idx.Subscribe("p", "ab")
	got := idx.Matches("abc")
	if len(got) != 1 || got[0] != "p" {
		t.Fatalf("got %v, want one deduped match", got)
	}
}
