// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package spancompressionprocessor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/collector/consumer/consumertest"
	"go.opentelemetry.io/collector/processor/processortest"

	"github.com/open-telemetry/opentelemetry-collector-contrib/processor/spancompressionprocessor/internal/metadata"
)

func TestNewFactory(t *testing.T) {
	factory := NewFactory()
	assert.Equal(t, metadata.Type, factory.Type())

	cfg, ok := factory.CreateDefaultConfig().(*Config)
	require.True(t, ok)
	assert.Equal(t, 50*time.Millisecond, cfg.ExactMatchMaxDuration)
	assert.Equal(t, 50*time.Millisecond, cfg.SameKindMaxDuration)
	assert.Equal(t, 1024, cfg.MaxCandidates)
}

func TestCreateTraces(t *testing.T) {
	factory := NewFactory()
	proc, err := factory.CreateTraces(
		context.Background(),
		processortest.NewNopSettings(metadata.Type),
		factory.CreateDefaultConfig(),
		consumertest.NewNop(),
	)
	require.NoError(t, err)
	require.NotNil(t, proc)
	assert.False(t, proc.Capabilities().MutatesData)
}
