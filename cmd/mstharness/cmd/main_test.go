package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/gookit/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.Disable()
	os.Exit(m.Run())
}

func TestExecute(t *testing.T) {
	// Execute() calls os.Exit(1) on error, so only its presence is checked here.
	assert.NotNil(t, Execute)
}

func TestVersionVariables(t *testing.T) {
	// Verify version variables exist and have default values
	assert.NotEmpty(t, Version, "Version should not be empty")
	assert.NotEmpty(t, Commit, "Commit should not be empty")
}

func TestCLIFlagsVariables(t *testing.T) {
	// cfgFile defaults to "mstharness.yaml" via init()
	assert.Equal(t, "mstharness.yaml", cfgFile, "cfgFile should default to mstharness.yaml")
	assert.Equal(t, "", logLevel)
	assert.Equal(t, "", logFormat)
	assert.Equal(t, "", executable)
	assert.Equal(t, "", instanceDir)
	assert.Equal(t, "", resultsCSV)
	assert.Equal(t, 0, workers)
	assert.Equal(t, float64(0), timeoutSeconds)
	assert.Equal(t, false, skipBuild)
	assert.Equal(t, 0, runHistory)
}

// workspace is a temporary experiment directory with a config file, a fake
// solver and instance files.
type workspace struct {
	dir       string
	config    string
	solver    string
	instances string
	csv       string
	summary   string
	db        string
}

const okSolver = `#!/bin/sh
case "$2" in
  *Edges2.csv) echo "segmentation fault" >&2; exit 1 ;;
  *Edges3.csv) echo "AVISO: Grafo desconexo com 2 componentes" >&2; echo "5,2,3.5,0.001,3.5,0.001,0,1"; exit 0 ;;
esac
echo "10,20,42.5,0.002,42.5,0.003,1,1"
`

func newWorkspace(t *testing.T, solverScript string, ids ...int) *workspace {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	dir := t.TempDir()
	ws := &workspace{
		dir:       dir,
		config:    filepath.Join(dir, "mstharness.yaml"),
		solver:    filepath.Join(dir, "main"),
		instances: filepath.Join(dir, "grafos"),
		csv:       filepath.Join(dir, "out", "resultados.csv"),
		summary:   filepath.Join(dir, "out", "summary.yaml"),
		db:        filepath.Join(dir, "results.db"),
	}

	require.NoError(t, os.MkdirAll(ws.instances, 0755))
	for _, id := range ids {
		for _, prefix := range []string{"Edges", "Nodes"} {
			name := filepath.Join(ws.instances, fmt.Sprintf("%s%d.csv", prefix, id))
			require.NoError(t, os.WriteFile(name, []byte("1\n"), 0644))
		}
	}
	require.NoError(t, os.WriteFile(ws.solver, []byte(solverScript), 0755))

	ws.writeConfig(t, "")
	return ws
}

func (ws *workspace) writeConfig(t *testing.T, extra string) {
	t.Helper()
	ws.write(t, "    skip: true\n", extra)
}

// writeConfigBuild enables the build step with the given YAML argv.
func (ws *workspace) writeConfigBuild(t *testing.T, command string) {
	t.Helper()
	ws.write(t, "    skip: false\n    command: "+command+"\n", "")
}

func (ws *workspace) write(t *testing.T, build, extra string) {
	t.Helper()
	content := fmt.Sprintf(`solver:
  executable: %s
  timeout_seconds: 5
  build:
%scatalog:
  dir: %s
  fallback_dir: ""
output:
  results_csv: %s
  summary_yaml: %s
store:
  enabled: true
  driver: sqlite
  path: %s
logging:
  level: error
%s`, ws.solver, build, ws.instances, ws.csv, ws.summary, ws.db, extra)
	require.NoError(t, os.WriteFile(ws.config, []byte(content), 0644))
}

// useConfig points the CLI at path and resets every override flag for the test.
func useConfig(t *testing.T, path string) {
	t.Helper()
	saved := []interface{}{cfgFile, logLevel, logFormat, executable, timeoutSeconds, workers,
		instanceDir, resultsCSV, skipBuild, runHistory, runNoStore}
	t.Cleanup(func() {
		cfgFile = saved[0].(string)
		logLevel = saved[1].(string)
		logFormat = saved[2].(string)
		executable = saved[3].(string)
		timeoutSeconds = saved[4].(float64)
		workers = saved[5].(int)
		instanceDir = saved[6].(string)
		resultsCSV = saved[7].(string)
		skipBuild = saved[8].(bool)
		runHistory = saved[9].(int)
		runNoStore = saved[10].(bool)
	})

	cfgFile = path
	logLevel, logFormat, executable, instanceDir, resultsCSV = "", "", "", "", ""
	timeoutSeconds, workers = 0, 0
	skipBuild, runNoStore = false, false
	runHistory = 0
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}
