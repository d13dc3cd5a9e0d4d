package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ayusman/handscope/internal/boundary"
	"github.com/ayusman/handscope/internal/engine"
	"github.com/ayusman/handscope/internal/store"
)

type cliTestEnv struct {
	dataDir    string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	dataDir := filepath.Join(base, "data")
	t.Setenv("HANDSCOPE_DATA_DIR", dataDir)
	t.Chdir(base)

	return &cliTestEnv{
		dataDir:    dataDir,
		configPath: filepath.Join(base, "config.toml"),
	}
}

func (e *cliTestEnv) openStore(t *testing.T) *store.Store {
	t.Helper()
	if err := os.MkdirAll(e.dataDir, 0o755); err != nil {
		t.Fatalf("mkdir data: %v", err)
	}
	st, err := store.New(filepath.Join(e.dataDir, "handscope.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Fatalf("expected output to contain %q, got:\n%s", substr, s)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "defaults were used")
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, "config", "init", "--path", env.configPath)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(env.configPath); err != nil {
		t.Fatalf("expected config file at %s: %v", env.configPath, err)
	}

	if _, _, err := runCLI(t, "config", "init", "--path", env.configPath); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, _, err := runCLI(t, "config", "init", "--path", env.configPath, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, "--config", env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate with file: %v", err)
	}
	requireContains(t, out, env.configPath)
}

func TestInvalidLogFormat(t *testing.T) {
	setupCLITestEnv(t)

	_, _, err := runCLI(t, "--log-format", "xml", "runs")
	if err == nil {
		t.Fatal("expected error for unsupported log format")
	}
	requireContains(t, err.Error(), "logging.format")
}

func TestRunsAndHands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, "runs")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	st := env.openStore(t)
	run := &store.Run{ID: uuid.NewString(), Source: "final-table.mp4"}
	if err := st.Runs().Create(run); err != nil {
		t.Fatalf("create run: %v", err)
	}
	hands := []boundary.HandBoundary{
		{HandID: 1, StartFrame: 900, EndFrame: 2100, StartTime: 30, EndTime: 70, Duration: 40, OverallConfidence: 82},
	}
	if err := st.Hands().CreateBatch(run.ID, hands); err != nil {
		t.Fatalf("create hands: %v", err)
	}
	run.FramesProcessed = 3000
	if err := st.Runs().Finish(run, ""); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	out, _, err = runCLI(t, "runs")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, run.ID)
	requireContains(t, out, "final-table.mp4")
	requireContains(t, out, "completed")

	out, _, err = runCLI(t, "runs", "--json")
	if err != nil {
		t.Fatalf("runs --json: %v", err)
	}
	var listed []store.Run
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode runs json: %v\n%s", err, out)
	}
	if len(listed) != 1 || listed[0].Hands != 1 {
		t.Fatalf("unexpected runs json: %+v", listed)
	}

	out, _, err = runCLI(t, "hands", run.ID)
	if err != nil {
		t.Fatalf("hands: %v", err)
	}
	requireContains(t, out, "0:30.0")
	requireContains(t, out, "1:10.0")
	requireContains(t, out, "82.0")

	if _, _, err := runCLI(t, "hands", "missing"); err == nil {
		t.Fatal("expected error for unknown run")
	}

	out, _, err = runCLI(t, "runs", "delete", run.ID)
	if err != nil {
		t.Fatalf("runs delete: %v", err)
	}
	requireContains(t, out, "Deleted run")

	if _, _, err := runCLI(t, "runs", "delete", run.ID); err == nil {
		t.Fatal("expected error deleting a missing run")
	}
}

func TestAnalyze_MissingFile(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that opens video through GoCV")
	}
	setupCLITestEnv(t)

	_, _, err := runCLI(t, "analyze", "--no-store", "does-not-exist.mp4")
	if !errors.Is(err, engine.ErrSourceUnavailable) {
		t.Fatalf("analyze error = %v, want ErrSourceUnavailable", err)
	}
}

func TestAnalyze_RejectsNegativeStride(t *testing.T) {
	setupCLITestEnv(t)

	if _, _, err := runCLI(t, "analyze", "--stride", "-1", "x.mp4"); err == nil {
		t.Fatal("expected error for negative stride")
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00.0"},
		{-3, "0:00.0"},
		{5.25, "0:05.3"},
		{70, "1:10.0"},
		{3599.96, "1:00:00.0"},
		{3725.5, "1:02:05.5"},
	}

	for _, tt := range tests {
		if got := formatClock(tt.seconds); got != tt.want {
			t.Errorf("formatClock(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
