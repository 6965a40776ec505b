// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package compression // import "github.com/open-telemetry/opentelemetry-collector-contrib/processor/spancompressionprocessor/internal/compression"

import (
	"sync"

	"go.opentelemetry.io/collector/pdata/pcommon"
)

// numShards must be a power of two. Span IDs are random, so the low byte
// spreads entries evenly.
const numShards = 64

// buffer maps a parent span ID to the single pending child of that parent.
// Shard mutexes give mutual exclusion per parent: two sibling ends racing for
// the same slot serialize on their shard, while unrelated parents proceed in
// parallel. Entries exist only between a Put and the flush that removes them,
// so the map is bounded by the number of open parents with a pending child.
type buffer struct {
	shards [numShards]bufferShard
}

type bufferShard struct {
	mu      sync.Mutex
	entries map[pcommon.SpanID]*Span
}

func newBuffer() *buffer {
	b := &buffer{}
	for i := range b.shards {
		b.shards[i].entries = make(map[pcommon.SpanID]*Span)
	}
	return b
}

// shard returns the shard owning the slot for parent. Callers hold sh.mu
// across every read-modify-write of that slot.
func (b *buffer) shard(parent pcommon.SpanID) *bufferShard {
	return &b.shards[parent[7]&(numShards-1)]
}

// drain removes every entry and hands it to fn, shard by shard. fn runs
// outside the shard lock so it may export synchronously.
func (b *buffer) drain(fn func(*Span)) {
	for i := range b.shards {
		sh := &b.shards[i]
		sh.mu.Lock()
		pending := make([]*Span, 0, len(sh.entries))
		for parent, span := range sh.entries {
			pending = append(pending, span)
			delete(sh.entries, parent)
		}
		sh.mu.Unlock()
		for _, span := range pending {
			fn(span)
		}
	}
}

// get returns the live entry for parent, or nil. Caller holds sh.mu.
func (sh *bufferShard) get(parent pcommon.SpanID) *Span {
	return sh.entries[parent]
}

// put stores span as the pending child of parent. It reports false, storing
// nothing, if a live entry is present: overwriting an un-flushed entry would
// silently drop telemetry and is a bug in the caller. Caller holds sh.mu.
func (sh *bufferShard) put(parent pcommon.SpanID, span *Span) bool {
	if _, exists := sh.entries[parent]; exists {
		return false
	}
	sh.entries[parent] = span
	return true
}

// take removes and returns the entry for parent, or nil. Caller holds sh.mu.
func (sh *bufferShard) take(parent pcommon.SpanID) *Span {
	span := sh.entries[parent]
	if span != nil {
		delete(sh.entries, parent)
	}
	return span
}
