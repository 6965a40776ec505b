// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package spancompressionprocessor // import "github.com/open-telemetry/opentelemetry-collector-contrib/processor/spancompressionprocessor"

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.uber.org/zap"

	"github.com/open-telemetry/opentelemetry-collector-contrib/processor/spancompressionprocessor/internal/compression"
)

// spanCompressor replays every batch as the span-lifecycle event stream the
// compression engine expects: starts in start-timestamp order, ends in
// end-timestamp order, merged chronologically with starts winning ties. The
// engine's exports are collected back into a batch that preserves the input
// resource and scope grouping.
type spanCompressor struct {
	cfg *Config
	log *zap.Logger
}

func newSpanCompressor(cfg *Config, log *zap.Logger) *spanCompressor {
	return &spanCompressor{cfg: cfg, log: log}
}

type spanKey struct {
	trace pcommon.TraceID
	span  pcommon.SpanID
}

type spanEvent struct {
	span  *compression.Span
	ts    pcommon.Timestamp
	depth int
}

// spanDepths maps every span in the batch to its depth in the call tree,
// counting only ancestors present in the batch. The walk is capped at the
// batch size so a corrupt parent cycle terminates.
func spanDepths(parents map[spanKey]pcommon.SpanID) map[spanKey]int {
	depths := make(map[spanKey]int, len(parents))
	for key := range parents {
		depth := 0
		cur := key
		for depth < len(parents) {
			parent := parents[cur]
			if parent.IsEmpty() {
				break
			}
			next := spanKey{trace: cur.trace, span: parent}
			if _, ok := parents[next]; !ok {
				break
			}
			cur = next
			depth++
		}
		depths[key] = depth
	}
	return depths
}

func (p *spanCompressor) processTraces(ctx context.Context, td ptrace.Traces) (ptrace.Traces, error) {
	if td.SpanCount() == 0 {
		return td, nil
	}

	out := ptrace.NewTraces()
	writer := &batchWriter{index: make(map[spanKey]int, td.SpanCount())}

	var starts, ends []spanEvent
	parents := make(map[spanKey]pcommon.SpanID, td.SpanCount())
	rss := td.ResourceSpans()
	for i := 0; i < rss.Len(); i++ {
		rs := rss.At(i)
		outRS := out.ResourceSpans().AppendEmpty()
		outRS.SetSchemaUrl(rs.SchemaUrl())
		rs.Resource().CopyTo(outRS.Resource())

		sss := rs.ScopeSpans()
		for j := 0; j < sss.Len(); j++ {
			ss := sss.At(j)
			outSS := outRS.ScopeSpans().AppendEmpty()
			outSS.SetSchemaUrl(ss.SchemaUrl())
			ss.Scope().CopyTo(outSS.Scope())

			dest := len(writer.dests)
			writer.dests = append(writer.dests, outSS.Spans())

			spans := ss.Spans()
			for k := 0; k < spans.Len(); k++ {
				data := spans.At(k)
				span := compression.NewSpan(data)
				// composites produced by an upstream stage stay as they are
				if _, ok := data.Attributes().Get(compression.AttrStrategy); ok {
					span.MarkNotCompressible()
				}
				key := spanKey{trace: data.TraceID(), span: data.SpanID()}
				writer.index[key] = dest
				parents[key] = data.ParentSpanID()
				starts = append(starts, spanEvent{span: span, ts: data.StartTimestamp()})
				ends = append(ends, spanEvent{span: span, ts: data.EndTimestamp()})
			}
		}
	}

	depths := spanDepths(parents)
	for i := range starts {
		data := starts[i].span.Data
		starts[i].depth = depths[spanKey{trace: data.TraceID(), span: data.SpanID()}]
	}
	for i := range ends {
		data := ends[i].span.Data
		ends[i].depth = depths[spanKey{trace: data.TraceID(), span: data.SpanID()}]
	}

	// Timestamp ties are broken by tree depth: a parent starts before its
	// children and a child ends before its parent, whatever the batch order.
	// Otherwise a child sharing its parent's start timestamp could replay
	// first, leaving the parent in the candidate set despite having children.
	sort.SliceStable(starts, func(a, b int) bool {
		if starts[a].ts != starts[b].ts {
			return starts[a].ts < starts[b].ts
		}
		return starts[a].depth < starts[b].depth
	})
	sort.SliceStable(ends, func(a, b int) bool {
		if ends[a].ts != ends[b].ts {
			return ends[a].ts < ends[b].ts
		}
		return ends[a].depth > ends[b].depth
	})

	engine := compression.NewEngine(compression.Settings{
		ExactMatchMaxDuration: p.cfg.ExactMatchMaxDuration,
		SameKindMaxDuration:   p.cfg.SameKindMaxDuration,
		MaxCandidates:         p.cfg.MaxCandidates,
	}, p.log, writer)

	si, ei := 0, 0
	for si < len(starts) || ei < len(ends) {
		if si < len(starts) && (ei >= len(ends) || starts[si].ts <= ends[ei].ts) {
			engine.OnStart(starts[si].span)
			si++
			continue
		}
		engine.OnEnd(ctx, ends[ei].span)
		ei++
	}

	// runs whose parent is open past this batch are finalized here; the
	// batch is the whole event stream a collector stage gets to see
	engine.Drain(ctx)

	return out, nil
}

// batchWriter receives the engine's finalized spans and appends each to the
// output scope its original came from. Flushed clones keep the original's
// trace and span IDs, so the lookup holds for them too.
type batchWriter struct {
	dests []ptrace.SpanSlice
	index map[spanKey]int
}

func (w *batchWriter) ExportSpan(_ context.Context, span *compression.Span) error {
	dest, ok := w.index[spanKey{trace: span.Data.TraceID(), span: span.Data.SpanID()}]
	if !ok {
		return fmt.Errorf("span %s does not belong to this batch", span.Data.SpanID())
	}
	span.Data.CopyTo(w.dests[dest].AppendEmpty())
	return nil
}
