package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigshield/reviewcore/internal/buildinfo"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	var out bytes.Buffer
	root := RootCommand(buildinfo.NewContext("1.2.3", "2026-10-01"))
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "database:\n  driver: sqlite\n  sqlite:\n    path: " + filepath.Join(dir, "review.db") + "\n" +
		"logging:\n  console:\n    enabled: false\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "reviewcore 1.2.3 (built 2026-10-01)\n", out)
}

func TestPricingSetAndGet(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "--config", cfg, "pricing", "set", "post",
		"--price", "100", "--tier1", "10", "--tier2", "5", "--daily", "30", "--days", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "post pricing updated")

	out, err = run(t, "--config", cfg, "pricing", "get", "post")
	require.NoError(t, err)
	assert.Equal(t, "post: price=100 tier1=10 tier2=5 daily=30 days=7\n", out)
}

func TestPricingSet_RejectsZeroPrice(t *testing.T) {
	_, err := run(t, "--config", writeConfig(t), "pricing", "set", "comment")
	assert.ErrorContains(t, err, "--price")
}

func TestMigrateCommand(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t), "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema is up to date")
}

func TestRecheckCommand(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t), "recheck")
	require.NoError(t, err)
	assert.Equal(t, "due=0 paid=0 expired=0 deleted=0 errors=0\n", out)
}

func TestUnknownConfigFile(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "migrate")
	assert.Error(t, err)
}
