// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package spancompressionprocessor // import "github.com/open-telemetry/opentelemetry-collector-contrib/processor/spancompressionprocessor"

import (
	"fmt"
	"time"

	"go.opentelemetry.io/collector/component"
)

var _ component.Config = (*Config)(nil)

type Config struct {
	// ExactMatchMaxDuration is the longest a span may run and still be
	// merged with siblings of identical name and kind.
	ExactMatchMaxDuration time.Duration `mapstructure:"exact_match_max_duration"`

	// SameKindMaxDuration is the longest a span may run and still be merged
	// with siblings of the same kind but a different name. Same-kind merging
	// discards span names, so set this to 0 to disable it when per-operation
	// names must survive.
	SameKindMaxDuration time.Duration `mapstructure:"same_kind_max_duration"`

	// MaxCandidates caps how many open spans are tracked as compression
	// candidates at once. Spans started beyond the cap pass through
	// uncompressed instead of growing the set.
	MaxCandidates int `mapstructure:"max_candidates"`
}

func (c *Config) Validate() error {
	if c.ExactMatchMaxDuration < 0 {
		return fmt.Errorf("exact_match_max_duration must not be negative (got %s)", c.ExactMatchMaxDuration)
	}
	if c.SameKindMaxDuration < 0 {
		return fmt.Errorf("same_kind_max_duration must not be negative (got %s)", c.SameKindMaxDuration)
	}
	if c.MaxCandidates <= 0 {
		return fmt.Errorf("max_candidates must be a positive number (got %d)", c.MaxCandidates)
	}
	return nil
}

func createDefaultConfig() component.Config {
	return &Config{
		ExactMatchMaxDuration: 50 * time.Millisecond,
		SameKindMaxDuration:   50 * time.Millisecond,
		MaxCandidates:         1024,
	}
}
