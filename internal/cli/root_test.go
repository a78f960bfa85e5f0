package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Umairyojo/NexMark/internal/logger"
	"github.com/Umairyojo/NexMark/internal/sources/homepage"
	"github.com/Umairyojo/NexMark/internal/store/sqlite"
)

const servicesYAML = `
- Media:
    - Jellyfin:
        href: https://jellyfin.example.com
        description: Movies
    - Broken:
        href: ftp://files.example.com
`

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "nexmark", cmd.Use)
	assert.NotNil(t, cmd.RunE, "root command serves by default")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"serve", "import", "version"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestImportFlags(t *testing.T) {
	cmd := NewRootCommand()
	importCmd, _, err := cmd.Find([]string{"import"})
	require.NoError(t, err)

	for _, name := range []string{"user", "file", "format"} {
		assert.NotNil(t, importCmd.Flags().Lookup(name), "flag %s", name)
	}
	assert.Equal(t, "text", importCmd.Flags().Lookup("format").DefValue)
}

func TestImportOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    ImportOptions
		wantErr string
	}{
		{"missing user", ImportOptions{File: "a.yaml", Format: "text"}, "--user"},
		{"blank user", ImportOptions{UserID: "  ", File: "a.yaml", Format: "text"}, "--user"},
		{"missing file", ImportOptions{UserID: "u", Format: "text"}, "--file"},
		{"bad format", ImportOptions{UserID: "u", File: "a.yaml", Format: "xml"}, "invalid format"},
		{"ok", ImportOptions{UserID: "u", File: "a.yaml", Format: "json"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestImportIntoSQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "nexmark.db")
	yamlPath := filepath.Join(dir, "services.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(servicesYAML), 0o600))

	t.Setenv("NEXMARK_BACKEND", "sqlite")
	t.Setenv("NEXMARK_SQLITE_PATH", dbPath)
	t.Setenv("NEXMARK_BROADCAST", "memory")
	t.Setenv("NEXMARK_LOG_LEVEL", "error")
	t.Setenv("NEXMARK_PRETTY_LOG", "false")

	run := func() homepage.Result {
		var out bytes.Buffer
		cmd := NewRootCommand()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"import", "--user", "user-1", "--file", yamlPath, "--format", "json"})
		require.NoError(t, cmd.Execute())

		var res homepage.Result
		require.NoError(t, json.Unmarshal(out.Bytes(), &res))
		return res
	}

	first := run()
	assert.Equal(t, 1, first.Created)
	require.Len(t, first.Rejected, 1)
	assert.Equal(t, "ftp://files.example.com", first.Rejected[0].URL)

	second := run()
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Duplicate)

	store, err := sqlite.Open(dbPath, logger.New("error", false))
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Count(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWriteResultText(t *testing.T) {
	var out bytes.Buffer
	err := writeResult(&out, "text", homepage.Result{
		Created:   2,
		Duplicate: 1,
		Rejected:  []homepage.Failure{{Title: "Files", URL: "ftp://x", Status: "invalid-url"}},
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "created: 2")
	assert.Contains(t, out.String(), "skipped (already saved): 1")
	assert.Contains(t, out.String(), "Files (ftp://x)")
}
