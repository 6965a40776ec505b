// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package compression // import "github.com/open-telemetry/opentelemetry-collector-contrib/processor/spancompressionprocessor/internal/compression"

import (
	"time"

	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.opentelemetry.io/otel/baggage"
)

// Span is the unit the engine operates on: the span record itself plus the
// lifecycle state the engine tracks for it. The record is pdata so that
// attributes, events and links survive a flush byte-for-byte via CopyTo.
type Span struct {
	// Data holds identity, kind, name, timing, status, attributes, events
	// and links. ParentSpanID is empty for root spans.
	Data ptrace.Span

	// Baggage is the propagated key/value context the span was started
	// under. pdata has no slot for it, and its presence disqualifies the
	// span from compression, so it travels alongside the record.
	Baggage baggage.Baggage

	// recorded is cleared while the span sits in the buffer, provisionally
	// withheld from export, and set again on every span handed downstream.
	recorded bool

	// compressible is false for flushed clones and for spans the caller
	// marked as already-composite. Such spans never re-enter the buffer.
	compressible bool

	composite composite
}

// composite accumulates the merge state of a buffered span. count==1 means
// buffered but not yet merged; aggregate attributes are only attached once
// count is at least 2.
type composite struct {
	strategy     Strategy
	count        int64
	durationSum  time.Duration
	originalName string
}

// NewSpan wraps a span record for processing. The span starts out recorded
// and eligible; disqualifying conditions are evaluated when it ends.
func NewSpan(data ptrace.Span) *Span {
	return &Span{Data: data, recorded: true, compressible: true}
}

// Recorded reports whether the span is destined for export. A buffered span
// is not recorded until it is flushed.
func (s *Span) Recorded() bool {
	return s.recorded
}

// MarkNotCompressible excludes the span from ever being buffered or merged.
// It is still processed normally otherwise.
func (s *Span) MarkNotCompressible() {
	s.compressible = false
}

// Duration is the span's own elapsed time, not the wall-clock extent of any
// run it is merged into.
func (s *Span) Duration() time.Duration {
	return time.Duration(s.Data.EndTimestamp() - s.Data.StartTimestamp())
}
