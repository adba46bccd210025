package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/ggoodman/notion-mcp-go/internal/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolsCommandPrintsCatalog(t *testing.T) {
	t.Setenv("NOTION_API_KEY", "")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"tools"})
	require.NoError(t, cmd.Execute())

	var got struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Len(t, got.Tools, 16)
}

func TestFlagsOverrideEnvironmentOnlyWhenSet(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	var f rootFlags
	bindFlags(cmd, &f)
	require.NoError(t, cmd.ParseFlags([]string{"--port", "4000", "--log-level", "debug"}))

	cfg := &config.Config{Transport: config.TransportSSE, Host: "0.0.0.0", Port: 3001, LogLevel: "info"}
	applyFlags(cmd, &f, cfg)

	assert.Equal(t, config.TransportSSE, cfg.Transport)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestMissingKeyFailsFast(t *testing.T) {
	t.Setenv("NOTION_API_KEY", "")
	t.Setenv("MCP_TRANSPORT", "sse")

	cmd := newRootCmd()
	cmd.SetArgs([]string{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOTION_API_KEY")
}
