package cmd

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/mstharness/internal/build"
)

func TestBuildCommandStructure(t *testing.T) {
	assert.NotNil(t, buildCmd)
	assert.Equal(t, "build", buildCmd.Use)
	assert.NotEmpty(t, buildCmd.Short)
	assert.Contains(t, buildCmd.Long, "mstharness build")
	assert.NotNil(t, buildCmd.RunE)
}

func TestRunBuild_ExistingExecutable(t *testing.T) {
	ws := newWorkspace(t, okSolver, 1)
	useConfig(t, ws.config)

	var buf bytes.Buffer
	require.NoError(t, runBuildWith(t, ws, `["/bin/sh", "-c", "true"]`, &buf))
	assert.Contains(t, buf.String(), "Building: /bin/sh -c true")
	assert.Contains(t, buf.String(), "✓ Executable ready: "+ws.solver)
}

func TestRunBuild_MissingExecutable(t *testing.T) {
	ws := newWorkspace(t, okSolver, 1)
	useConfig(t, ws.config)
	executable = filepath.Join(ws.dir, "nope")

	var buf bytes.Buffer
	err := runBuildWith(t, ws, `["/bin/sh", "-c", "true"]`, &buf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, build.ErrBuildFailed))
	assert.Contains(t, buf.String(), "✗ Build failed")
}

func TestRunBuild_CommandFails(t *testing.T) {
	ws := newWorkspace(t, okSolver, 1)
	useConfig(t, ws.config)

	var buf bytes.Buffer
	err := runBuildWith(t, ws, `["/bin/sh", "-c", "echo 'main.c:1: error: expected' >&2; exit 1"]`, &buf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, build.ErrBuildFailed))
	assert.Contains(t, err.Error(), "main.c:1: error: expected")
	assert.Contains(t, buf.String(), "Building: /bin/sh -c")
}

// runBuildWith rewrites the workspace config with the given build command and runs the build command.
func runBuildWith(t *testing.T, ws *workspace, command string, buf *bytes.Buffer) error {
	t.Helper()
	ws.writeConfigBuild(t, command)
	buildCmd.SetOut(buf)
	defer buildCmd.SetOut(nil)
	return runBuild(buildCmd, nil)
}
