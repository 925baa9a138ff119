package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/estatevest/platform/pkg/logger"
)

func TestConfigureLogging(t *testing.T) {
	require.NoError(t, ConfigureLogging("debug", "console"))
	require.NotNil(t, logger.Logger())

	// Unknown levels fall back to info.
	require.NoError(t, ConfigureLogging("loud", ""))
}
