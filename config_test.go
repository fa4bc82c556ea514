package seal_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/brickingsoft/seal"
	"github.com/stretchr/testify/require"
)

func TestReadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seal.toml")
	content := `
handshake_timeout = "3s"
aggregation_threshold = 8192
max_task_goroutines = 4
task_close_timeout = "1s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	config, err := seal.ReadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "3s", config.HandshakeTimeout)
	require.Equal(t, 8192, config.AggregationThreshold)

	options, err := config.AsOptions()
	require.NoError(t, err)
	require.Len(t, options, 2)

	rxpOptions, err := config.AsRxpOptions()
	require.NoError(t, err)
	require.Len(t, rxpOptions, 2)
}

func TestReadConfig_BadDuration(t *testing.T) {
	config := seal.Config{HandshakeTimeout: "soon"}
	_, err := config.AsOptions()
	require.Error(t, err)
}

func TestReadConfig_Missing(t *testing.T) {
	_, err := seal.ReadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestOptions_Invalid(t *testing.T) {
	_, err := seal.New(nil, nil, nil)
	require.Error(t, err)
	require.Error(t, applyOption(seal.WithHandshakeTimeout(-1)))
	require.Error(t, applyOption(seal.WithAggregationThreshold(-1)))
	require.Error(t, applyOption(seal.WithExecutor(nil)))
}

func applyOption(option seal.Option) error {
	opts := seal.Options{}
	return option(&opts)
}
