// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package compression // import "github.com/open-telemetry/opentelemetry-collector-contrib/processor/spancompressionprocessor/internal/compression"

import (
	"time"

	"go.opentelemetry.io/collector/pdata/ptrace"
	conventions "go.opentelemetry.io/collector/semconv/v1.27.0"
)

// Strategy identifies the rule under which spans of a run were merged.
type Strategy int8

const (
	StrategyNone Strategy = iota
	// StrategyExactMatch merges spans with identical name and kind.
	StrategyExactMatch
	// StrategySameKind merges spans of the same kind whose names differ.
	StrategySameKind
)

func (s Strategy) String() string {
	switch s {
	case StrategyExactMatch:
		return "exact_match"
	case StrategySameKind:
		return "same_kind"
	default:
		return "none"
	}
}

// matcher is the pure decision logic: whether an ended span may be buffered
// at all, and whether it folds into an already-buffered sibling.
type matcher struct {
	exactMatchMax time.Duration
	sameKindMax   time.Duration
}

func (m matcher) maxDuration() time.Duration {
	if m.exactMatchMax > m.sameKindMax {
		return m.exactMatchMax
	}
	return m.sameKindMax
}

// compressible reports whether an ended span may participate in compression.
// tracked is the candidate-set membership the span had when it ended.
func (m matcher) compressible(span *Span, tracked bool) bool {
	if !tracked || !span.compressible || !span.recorded {
		return false
	}
	if code := span.Data.Status().Code(); code != ptrace.StatusCodeOk && code != ptrace.StatusCodeUnset {
		return false
	}
	if span.Data.Links().Len() > 0 || span.Baggage.Len() > 0 {
		return false
	}
	// Outbound HTTP exit spans may have propagated trace context downstream;
	// merging them away would orphan the remote side of the trace.
	if span.Data.Kind() == ptrace.SpanKindClient {
		if _, ok := span.Data.Attributes().Get(conventions.AttributeHTTPRequestMethod); ok {
			return false
		}
	}
	return span.Duration() <= m.maxDuration()
}

// tryCompress folds candidate into buffered if the two belong to the same
// run. The first successful merge fixes the run's strategy; later candidates
// must satisfy that same strategy, otherwise the caller flushes the run and
// starts a new one with the candidate.
func (m matcher) tryCompress(buffered, candidate *Span) bool {
	c := &buffered.composite

	var ok bool
	switch c.strategy {
	case StrategyExactMatch:
		ok = m.exactMatch(buffered, candidate)
	case StrategySameKind:
		ok = m.sameKind(buffered, candidate)
	default:
		if m.exactMatch(buffered, candidate) {
			c.strategy = StrategyExactMatch
			ok = true
		} else if m.sameKind(buffered, candidate) {
			c.strategy = StrategySameKind
			ok = true
		}
	}
	if !ok {
		return false
	}

	c.count++
	c.durationSum += candidate.Duration()
	return true
}

func (m matcher) exactMatch(buffered, candidate *Span) bool {
	return buffered.Data.Name() == candidate.Data.Name() &&
		buffered.Data.Kind() == candidate.Data.Kind() &&
		candidate.Duration() <= m.exactMatchMax
}

func (m matcher) sameKind(buffered, candidate *Span) bool {
	return buffered.Data.Kind() == candidate.Data.Kind() &&
		candidate.Duration() <= m.sameKindMax
}
