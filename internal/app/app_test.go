package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamhub/teamhub/internal/config"
	perrors "github.com/teamhub/teamhub/internal/errors"
)

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Dataset.Name = "Teams"

	_, err := New(cfg)
	require.Error(t, err)
	assert.Equal(t, perrors.ErrCategoryValidation, perrors.GetCategory(err))
	assert.Equal(t, perrors.CodeInvalidConfig, perrors.GetCode(err))
	assert.False(t, perrors.IsRetryable(err))
}

func TestStartStop(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Log.Level = "error"

	a, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	assert.NotNil(t, a.Pipeline())
	assert.NotNil(t, a.Store())

	require.NoError(t, a.Stop(context.Background()))
	require.NoError(t, a.Stop(context.Background()), "stop is idempotent")
}
