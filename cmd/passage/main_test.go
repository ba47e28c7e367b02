package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/graniteworks/passage/core"
)

func TestParseFilters(t *testing.T) {
	t.Run("empty input yields nil", func(t *testing.T) {
		filters, err := parseFilters(nil)
		require.NoError(t, err)
		assert.Nil(t, filters)
	})

	t.Run("key=value pairs", func(t *testing.T) {
		filters, err := parseFilters([]string{"author=turing", "doc_type=paper"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"author": "turing", "doc_type": "paper"}, filters)
	})

	t.Run("value may contain equals sign", func(t *testing.T) {
		filters, err := parseFilters([]string{"formula=e=mc2"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"formula": "e=mc2"}, filters)
	})

	t.Run("missing separator is rejected", func(t *testing.T) {
		_, err := parseFilters([]string{"author"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "key=value")
	})

	t.Run("empty key is rejected", func(t *testing.T) {
		_, err := parseFilters([]string{"=value"})
		require.Error(t, err)
	})
}

func TestRoleName(t *testing.T) {
	assert.Equal(t, "user", roleName(core.RoleUser))
	assert.Equal(t, "assistant", roleName(core.RoleAssistant))
	assert.Equal(t, "system", roleName(core.RoleSystem))
	assert.Equal(t, "unknown", roleName(core.Role(99)))
}

func TestIndexCommandFlags(t *testing.T) {
	flags := append(storeFlags(), aiFlags("PASSAGE_EMBEDDING_HOST")...)

	t.Run("db flag is required", func(t *testing.T) {
		var dbFlag *cli.StringFlag
		for _, flag := range flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "db" {
				dbFlag = f
				break
			}
		}
		require.NotNil(t, dbFlag)
		assert.True(t, dbFlag.Required)
	})

	t.Run("host has default value", func(t *testing.T) {
		var hostFlag *cli.StringFlag
		for _, flag := range flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "host" {
				hostFlag = f
				break
			}
		}
		require.NotNil(t, hostFlag)
		assert.Equal(t, "http://localhost:11434/v1", hostFlag.Value)
		assert.Contains(t, hostFlag.EnvVars, "PASSAGE_HOST")
	})

	t.Run("models have defaults", func(t *testing.T) {
		defaults := map[string]string{}
		for _, flag := range flags {
			if f, ok := flag.(*cli.StringFlag); ok {
				defaults[f.Name] = f.Value
			}
		}
		assert.Equal(t, "nomic-embed-text", defaults["embedding-model"])
		assert.Equal(t, "llama3.2:3b", defaults["scorer-model"])
	})
}

func TestSetupRejectsUnknownLogLevel(t *testing.T) {
	app := &cli.App{
		Name: "passage",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info"},
		},
		Before: setup,
		Action: func(c *cli.Context) error { return nil },
	}

	err := app.Run([]string{"passage", "--log-level", "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}
