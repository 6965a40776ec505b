// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package compression // import "github.com/open-telemetry/opentelemetry-collector-contrib/processor/spancompressionprocessor/internal/compression"

import (
	"sync"

	"go.opentelemetry.io/collector/pdata/pcommon"
)

// tracker is the set of span IDs still eligible to become compression units.
// A span leaves the set the moment it acquires a child (only childless exit
// spans can be merged away) and again when it ends. The set is capped; once
// full, new spans are simply not tracked and pass through uncompressed.
type tracker struct {
	mu         sync.Mutex
	candidates map[pcommon.SpanID]struct{}
	max        int
}

func newTracker(max int) *tracker {
	return &tracker{
		candidates: make(map[pcommon.SpanID]struct{}),
		max:        max,
	}
}

// observeStart records a started span and reports whether it was admitted to
// the candidate set. The parent, having just gained a child, is permanently
// disqualified regardless of the cap.
func (t *tracker) observeStart(id, parent pcommon.SpanID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !parent.IsEmpty() {
		delete(t.candidates, parent)
	}
	if len(t.candidates) >= t.max {
		return false
	}
	t.candidates[id] = struct{}{}
	return true
}

// observeEnd removes the span from the set and reports whether it was still
// a candidate. Absence means the span was never admitted (cap) or has
// children; either way it must not be compressed.
func (t *tracker) observeEnd(id pcommon.SpanID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.candidates[id]
	if ok {
		delete(t.candidates, id)
	}
	return ok
}

func (t *tracker) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.candidates)
}
