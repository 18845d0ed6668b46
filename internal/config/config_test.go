package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func runWithArgs(t *testing.T, args []string) (Config, error) {
	t.Helper()
	var got Config

	app := &cli.App{
		Name:  "test",
		Flags: Flags(),
		Action: func(c *cli.Context) error {
			cfg, err := FromCLI(c)
			got = cfg
			return err
		},
	}
	if err := app.Run(append([]string{"test"}, args...)); err != nil {
		return Config{}, err
	}
	return got, nil
}

func TestFromCLIAppliesDefaults(t *testing.T) {
	cfg, err := runWithArgs(t, nil)
	require.NoError(t, err)

	assert.Equal(t, "real", cfg.ProcessorMode)
	assert.Equal(t, 8, cfg.MaxWorkers)
	assert.True(t, cfg.S3FallbackEnabled)
	assert.True(t, cfg.LustreEnabled)
	assert.Equal(t, 120*time.Second, cfg.FileProcessingTimeout)
	assert.Equal(t, 5000, cfg.MaxFilesPerQuery)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), cfg.GOES19OperationalDate)
}

func TestFromCLIOverridesFromFlags(t *testing.T) {
	cfg, err := runWithArgs(t, []string{
		"--max-workers", "4",
		"--s3-fallback-enabled=false",
		"--s3-only-products", "SST,TPW",
	})
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxWorkers)
	assert.False(t, cfg.S3FallbackEnabled)
	assert.Equal(t, []string{"SST", "TPW"}, cfg.S3OnlyProducts)
}

func TestFromCLIRejectsMalformedCutoverDate(t *testing.T) {
	_, err := runWithArgs(t, []string{"--goes19-operational-date", "not-a-date"})
	require.Error(t, err)
}
