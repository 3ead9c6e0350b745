package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_Development(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.Info("development logger ready")
}

func TestNew_Production(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.Info("production logger ready")
}
