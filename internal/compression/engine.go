// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package compression merges runs of short, successful, childless sibling
// spans into a single composite span before export. It observes the span
// lifecycle through OnStart/OnEnd and emits finalized spans to an Exporter;
// at most one span per parent is ever withheld, and every withheld span is
// flushed no later than its parent's own end.
package compression // import "github.com/open-telemetry/opentelemetry-collector-contrib/processor/spancompressionprocessor/internal/compression"

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.uber.org/zap"
)

// Aggregate attributes attached to a composite span on flush.
const (
	AttrStrategy    = "span_compression.strategy"
	AttrCount       = "span_compression.count"
	AttrDurationSum = "span_compression.duration_sum_ns"
)

// Exporter receives every span the engine has finalized: pass-through spans
// unchanged, buffered spans as clones once their run is over. Errors are
// logged by the engine, never surfaced to the span-ending code path.
type Exporter interface {
	ExportSpan(ctx context.Context, span *Span) error
}

// Settings configures an Engine.
type Settings struct {
	// ExactMatchMaxDuration is the longest span the exact-match rule merges.
	ExactMatchMaxDuration time.Duration
	// SameKindMaxDuration is the longest span the same-kind rule merges.
	SameKindMaxDuration time.Duration
	// MaxCandidates caps the eligibility set. Spans started beyond the cap
	// pass through uncompressed.
	MaxCandidates int
}

// Engine sequences the tracker, matcher and buffer. OnStart and OnEnd are
// safe for concurrent use; operations on the same parent's buffer slot are
// serialized by the buffer's shard locks.
type Engine struct {
	log   *zap.Logger
	next  Exporter
	match matcher
	track *tracker
	buf   *buffer
}

func NewEngine(set Settings, log *zap.Logger, next Exporter) *Engine {
	return &Engine{
		log:  log,
		next: next,
		match: matcher{
			exactMatchMax: set.ExactMatchMaxDuration,
			sameKindMax:   set.SameKindMaxDuration,
		},
		track: newTracker(set.MaxCandidates),
		buf:   newBuffer(),
	}
}

// OnStart records a started span. The span's parent, if any, permanently
// loses its own eligibility here.
func (e *Engine) OnStart(span *Span) {
	defer e.recoverFrom("OnStart", span)

	id := span.Data.SpanID()
	if !e.track.observeStart(id, span.Data.ParentSpanID()) {
		e.log.Debug("compression candidate set full, span passes through uncompressed",
			zap.Stringer("span_id", id))
	}
}

// OnEnd decides the fate of an ended span: export it unchanged, buffer it,
// fold it into the buffered sibling, or flush the sibling run and buffer it
// in its place. Any panic while deciding degrades to pass-through export.
func (e *Engine) OnEnd(ctx context.Context, span *Span) {
	settled := false
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		e.log.Error("span compression failed, passing span through",
			zap.Any("panic", r), zap.String("name", span.Data.Name()))
		if !settled {
			e.export(ctx, span)
		}
	}()

	id := span.Data.SpanID()
	parent := span.Data.ParentSpanID()

	// A pending run of this span's own children must be emitted before the
	// span itself, so descendants always precede their parent downstream.
	e.Flush(ctx, id)

	tracked := e.track.observeEnd(id)

	if parent.IsEmpty() {
		settled = true
		e.export(ctx, span)
		return
	}

	if !e.match.compressible(span, tracked) {
		// The span breaks its siblings' run; finalize it first.
		e.Flush(ctx, parent)
		settled = true
		e.export(ctx, span)
		return
	}

	sh := e.buf.shard(parent)
	sh.mu.Lock()

	buffered := sh.get(parent)
	if buffered != nil && e.match.tryCompress(buffered, span) {
		span.recorded = false // folded, never exported standalone
		sh.mu.Unlock()
		settled = true
		return
	}

	// Either the slot is free or the candidate does not extend the buffered
	// run. Claim the slot, then flush the previous run outside the lock.
	if buffered != nil {
		sh.take(parent)
	}
	span.recorded = false
	span.composite = composite{
		count:        1,
		durationSum:  span.Duration(),
		originalName: span.Data.Name(),
	}
	if !sh.put(parent, span) {
		// Unreachable while the shard lock is held; never overwrite.
		sh.mu.Unlock()
		e.log.Error("compression buffer slot already occupied, passing span through",
			zap.Stringer("parent_span_id", parent))
		span.recorded = true
		settled = true
		e.export(ctx, span)
		return
	}
	sh.mu.Unlock()
	settled = true

	if buffered != nil {
		e.export(ctx, e.materialize(buffered))
	}
}

// Flush finalizes the pending run buffered under parent, if any, and emits
// it downstream. Flushing a parent with no pending entry is a no-op.
func (e *Engine) Flush(ctx context.Context, parent pcommon.SpanID) {
	sh := e.buf.shard(parent)
	sh.mu.Lock()
	buffered := sh.take(parent)
	sh.mu.Unlock()

	if buffered == nil {
		return
	}
	e.export(ctx, e.materialize(buffered))
}

// Drain flushes every pending entry. Called when the span stream is over;
// after it returns nothing is withheld, so a parent that never ends cannot
// leak its slot past the stream's lifetime.
func (e *Engine) Drain(ctx context.Context) {
	e.buf.drain(func(buffered *Span) {
		e.export(ctx, e.materialize(buffered))
	})
}

// materialize clones a buffered span for export. A run of one returns the
// span as buffered; a run of two or more is renamed after the first span of
// the run and tagged with the aggregate strategy, count and summed duration.
// The clone is never eligible for further compression.
func (e *Engine) materialize(buffered *Span) *Span {
	data := ptrace.NewSpan()
	buffered.Data.CopyTo(data)

	c := buffered.composite
	if c.count > 1 {
		data.SetName(fmt.Sprintf("%dx %s", c.count, c.originalName))
		data.Attributes().PutStr(AttrStrategy, c.strategy.String())
		data.Attributes().PutInt(AttrCount, c.count)
		data.Attributes().PutInt(AttrDurationSum, c.durationSum.Nanoseconds())
	}

	return &Span{
		Data:         data,
		Baggage:      buffered.Baggage,
		recorded:     true,
		compressible: false,
	}
}

func (e *Engine) export(ctx context.Context, span *Span) {
	span.recorded = true
	if err := e.next.ExportSpan(ctx, span); err != nil {
		e.log.Error("exporting span", zap.Error(err), zap.String("name", span.Data.Name()))
	}
}

func (e *Engine) recoverFrom(op string, span *Span) {
	if r := recover(); r != nil {
		e.log.Error("span compression failed",
			zap.String("op", op), zap.Any("panic", r), zap.String("name", span.Data.Name()))
	}
}
