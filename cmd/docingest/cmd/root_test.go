package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docingest/internal/config"
	"github.com/Aman-CERP/docingest/internal/profiling"
	"github.com/Aman-CERP/docingest/pkg/version"
)

// isolate points every config and log location at a fresh directory and
// makes it the working directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	for _, k := range []string{"DOCINGEST_DATA", "DATA", "DOCINGEST_PERSIST_DIR", "CHROMA_DB_DIR",
		"DOCINGEST_COLLECTION", "DOCINGEST_EMBEDDER", "DOCINGEST_BACKEND", "DOCINGEST_SCHEME"} {
		t.Setenv(k, "")
	}
	t.Chdir(dir)
	return dir
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	_ = stopAll(nil, nil)
	return buf.String(), err
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := NewRootCmd()

	names := make(map[string]bool)
	for _, sc := range root.Commands() {
		names[sc.Name()] = true
	}
	for _, want := range []string{"ingest", "info", "doctor", "config", "version"} {
		assert.True(t, names[want], "missing %s", want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("debug"))
	assert.NotNil(t, root.PersistentFlags().Lookup("log-file"))
	assert.NotNil(t, root.PersistentFlags().Lookup("profile-cpu"))
}

func TestRoot_ProfileFlagsWriteFiles(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() { profileOpts = profiling.Options{} })

	cpu := filepath.Join(dir, "cpu.prof")
	heap := filepath.Join(dir, "heap.prof")
	_, err := execute(t, "version", "--profile-cpu", cpu, "--profile-mem", heap)
	require.NoError(t, err)

	assert.FileExists(t, cpu)
	assert.FileExists(t, heap)
}

func TestVersionCmd_DefaultOutput(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "docingest")
	assert.Contains(t, out, version.Version)
	assert.Contains(t, out, "commit")
}

func TestVersionCmd_ShortOutput(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Version, strings.TrimSpace(out))
}

func TestVersionCmd_JSONOutput(t *testing.T) {
	out, err := execute(t, "version", "--json")
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Version, info["version"])
	for _, k := range []string{"commit", "date", "go_version", "os", "arch"} {
		assert.Contains(t, info, k)
	}
}

func TestStartLogging_WritesToLogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.log")
	orig := logFile
	t.Cleanup(func() { logFile = orig })
	logFile = path

	require.NoError(t, startLogging(config.LoggingConfig{Level: "debug"}))
	require.NoError(t, stopLogging(nil, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "logging started")
}
