// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package spancompressionprocessor // import "github.com/open-telemetry/opentelemetry-collector-contrib/processor/spancompressionprocessor"

import (
	"context"

	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/consumer"
	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.opentelemetry.io/collector/processor"
)

var _ processor.Traces = Chain(nil)

// Chain calls processors in series.
// They must be manually setup so that their ConsumeTraces() invoke each other
type Chain []processor.Traces

func (c Chain) Capabilities() consumer.Capabilities {
	if len(c) == 0 {
		return consumer.Capabilities{}
	}
	return c[0].Capabilities()
}

func (c Chain) ConsumeTraces(ctx context.Context, td ptrace.Traces) error {
	if len(c) == 0 {
		return nil
	}
	return c[0].ConsumeTraces(ctx, td)
}

func (c Chain) Shutdown(ctx context.Context) error {
	for _, proc := range c {
		if err := proc.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c Chain) Start(ctx context.Context, host component.Host) error {
	for _, proc := range c {
		if err := proc.Start(ctx, host); err != nil {
			return err
		}
	}
	return nil
}
