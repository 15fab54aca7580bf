package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbenjam1n/tutorloop/internal/store"
)

func isolate(t *testing.T) (home, project string) {
	t.Helper()
	home = t.TempDir()
	project = t.TempDir()
	t.Setenv("TUTOR_HOME", home)
	t.Setenv("TUTOR_CONFIG", filepath.Join(project, DirName, "config.yaml"))
	for _, k := range []string{"TUTOR_LEARNER", "TUTOR_STORE", "TUTOR_STORE_PATH", "TUTOR_LLM_BACKEND", "TUTOR_COACH_CADENCE", "TUTOR_PUSHGATEWAY"} {
		t.Setenv(k, "")
	}
	return home, project
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefaults(t *testing.T) {
	home, _ := isolate(t)
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, filepath.Join(home, "tutor.db"), cfg.Store.Path)
	assert.Equal(t, 3, cfg.Coaching.Cadence)
	assert.Equal(t, 6, cfg.Coaching.ExpiryCycles)
	assert.Equal(t, "anthropic", cfg.LLM.Backend)
}

func TestPrecedence(t *testing.T) {
	home, project := isolate(t)
	write(t, filepath.Join(home, "config.yaml"), `
learner: ada
llm:
  backend: ollama
  model: llama3.2
coaching:
  cadence: 5
  window:
    expected: 45m
`)
	write(t, filepath.Join(project, DirName, "config.yaml"), `
learner: grace
checks:
  timeout: 90s
`)
	t.Setenv("TUTOR_COACH_CADENCE", "4")

	cfg, err := Load(&Config{Store: store.Config{Backend: "memory"}})
	require.NoError(t, err)
	assert.Equal(t, "grace", cfg.Learner, "project beats home")
	assert.Equal(t, "ollama", cfg.LLM.Backend, "home beats defaults")
	assert.Equal(t, 4, cfg.Coaching.Cadence, "env beats files")
	assert.Equal(t, "memory", cfg.Store.Backend, "flags beat everything")
	assert.Equal(t, 45*time.Minute, cfg.Coaching.Window.Expected)
	assert.Equal(t, 3, cfg.Coaching.Window.Recent, "unset nested fields keep defaults")
	assert.Equal(t, 90*time.Second, cfg.Checks.Timeout)
}

func TestPushGateway(t *testing.T) {
	_, project := isolate(t)
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.PushGateway)

	write(t, filepath.Join(project, DirName, "config.yaml"), "pushgateway: http://gw:9091\n")
	cfg, err = Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "http://gw:9091", cfg.PushGateway)

	t.Setenv("TUTOR_PUSHGATEWAY", "http://other:9091")
	cfg, err = Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "http://other:9091", cfg.PushGateway)
}

func TestBadEnv(t *testing.T) {
	isolate(t)
	t.Setenv("TUTOR_COACH_CADENCE", "often")
	_, err := Load(nil)
	assert.Error(t, err)
}

func TestBadFile(t *testing.T) {
	home, _ := isolate(t)
	write(t, filepath.Join(home, "config.yaml"), "learner: [unterminated")
	_, err := Load(nil)
	assert.Error(t, err)
}
