package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoledger/carbon-engine/internal/buildinfo"
	"github.com/ecoledger/carbon-engine/internal/config"
)

func TestVersionSkipsConfigLoading(t *testing.T) {
	ctx := config.NewContext(&buildinfo.Context{Version: "1.4.0", BuildDate: "2026-10-01"})
	root := RootCommand(ctx)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", "/does/not/exist.yaml", "version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "carbon-engine 1.4.0 (built 2026-10-01")
	assert.Nil(t, ctx.Settings)
}

func TestMissingConfigFails(t *testing.T) {
	ctx := config.NewContext(nil)
	root := RootCommand(ctx)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", "/does/not/exist.yaml", "corpus", "count"})

	assert.Error(t, root.Execute())
}

func TestSubcommandsRegistered(t *testing.T) {
	root := RootCommand(config.NewContext(nil))
	for _, name := range []string{"calculate", "batch", "corpus", "results", "serve", "version"} {
		found, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, found.Name())
	}
}
