package orchestrator

import (
	"bytes"
	"context"
	"testing"

	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/config"
	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/logger"
	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestReconFactoryBuild(t *testing.T) {
	cfg := config.DefaultConfig()

	recon, err := NewReconFactory(cfg, telemetry.Noop(), logger.Nop(), &bytes.Buffer{}).Build(context.Background())
	require.NoError(t, err)

	assert.NotNil(t, recon.resolver)
	assert.NotNil(t, recon.whois)
	assert.NotNil(t, recon.hosts)
	assert.NotNil(t, recon.harvester)
	assert.NotNil(t, recon.presenter)
}

func TestReconFactoryRejectsBadSearchURL(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Harvest.SearchURL = "gopher://example.com/search"
	core, logs := observer.New(zapcore.DebugLevel)

	_, err := NewReconFactory(cfg, telemetry.Noop(), logger.FromZap(zap.New(core)), &bytes.Buffer{}).Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email harvester")

	failed := logs.FilterMessage("Operation failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
	assert.Equal(t, "recon.build", failed[0].ContextMap()["operation"])
}
