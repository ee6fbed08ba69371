package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/mstharness/internal/logger"
)

func defaultOptions(dir string) Options {
	return Options{
		Dir:        dir,
		EdgePrefix: "Edges",
		NodePrefix: "Nodes",
		Extension:  ".csv",
	}
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("id\n"), 0644))
	}
}

func ids(cat *Catalog) []int {
	out := make([]int, 0, len(cat.Pairs))
	for _, p := range cat.Pairs {
		out = append(out, p.ID)
	}
	return out
}

func TestDiscover_NumericOrdering(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir,
		"Edges2.csv", "Nodes2.csv",
		"Edges10.csv", "Nodes10.csv",
		"Edges1.csv", "Nodes1.csv",
	)

	cat, err := Discover(defaultOptions(dir), logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 10}, ids(cat))
	assert.Equal(t, dir, cat.Dir)
	assert.Equal(t, filepath.Join(dir, "Nodes10.csv"), cat.Pairs[2].NodePath)
	assert.Equal(t, filepath.Join(dir, "Edges10.csv"), cat.Pairs[2].EdgePath)
}

func TestDiscover_SkipsIncompletePairs(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir,
		"Edges1.csv", "Nodes1.csv",
		"Edges2.csv", // no Nodes2.csv
		"Nodes3.csv", // no Edges3.csv
	)

	cat, err := Discover(defaultOptions(dir), logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, []int{1}, ids(cat))
	assert.Equal(t, []string{"Edges2.csv"}, cat.Skipped)
}

func TestDiscover_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir,
		"Edges1.csv", "Nodes1.csv",
		"Edges.csv", "EdgesX.csv", "Edges4.txt", "notes.md",
		"Edges0.csv", "Nodes0.csv",
	)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Edges5.csv"), 0755))

	cat, err := Discover(defaultOptions(dir), logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, []int{1}, ids(cat))
	assert.Empty(t, cat.Skipped)
}

func TestDiscover_DuplicateIDFirstLexicalWins(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir,
		"Edges01.csv", "Nodes01.csv",
		"Edges1.csv", "Nodes1.csv",
	)

	cat, err := Discover(defaultOptions(dir), logger.NewNop())
	require.NoError(t, err)

	require.Len(t, cat.Pairs, 1)
	assert.Equal(t, 1, cat.Pairs[0].ID)
	assert.Equal(t, filepath.Join(dir, "Edges01.csv"), cat.Pairs[0].EdgePath)
	assert.Equal(t, filepath.Join(dir, "Nodes01.csv"), cat.Pairs[0].NodePath)
	assert.Equal(t, []string{"Edges1.csv"}, cat.Skipped)
}

func TestDiscover_UniqueIDs(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"3", "03", "003", "7", "12"} {
		touch(t, dir, "Edges"+n+".csv", "Nodes"+n+".csv")
	}

	cat, err := Discover(defaultOptions(dir), logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, []int{3, 7, 12}, ids(cat))
	for i := 1; i < len(cat.Pairs); i++ {
		assert.Less(t, cat.Pairs[i-1].ID, cat.Pairs[i].ID)
	}
}

func TestDiscover_Fallback(t *testing.T) {
	primary := t.TempDir()
	fallback := t.TempDir()
	touch(t, primary, "Edges1.csv") // incomplete: primary yields nothing
	touch(t, fallback, "Edges4.csv", "Nodes4.csv")

	opts := defaultOptions(primary)
	opts.FallbackDir = fallback

	cat, err := Discover(opts, logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, fallback, cat.Dir)
	assert.Equal(t, []int{4}, ids(cat))
}

func TestDiscover_FallbackNotUsedWhenPrimaryHasPairs(t *testing.T) {
	primary := t.TempDir()
	fallback := t.TempDir()
	touch(t, primary, "Edges1.csv", "Nodes1.csv")
	touch(t, fallback, "Edges4.csv", "Nodes4.csv")

	opts := defaultOptions(primary)
	opts.FallbackDir = fallback

	cat, err := Discover(opts, logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, primary, cat.Dir)
	assert.Equal(t, []int{1}, ids(cat))
}

func TestDiscover_MissingPrimaryDirectory(t *testing.T) {
	fallback := t.TempDir()
	touch(t, fallback, "Edges2.csv", "Nodes2.csv")

	opts := defaultOptions(filepath.Join(t.TempDir(), "does-not-exist"))
	opts.FallbackDir = fallback

	cat, err := Discover(opts, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []int{2}, ids(cat))
}

func TestDiscover_EmptyCatalog(t *testing.T) {
	opts := defaultOptions(t.TempDir())
	opts.FallbackDir = t.TempDir()

	cat, err := Discover(opts, logger.NewNop())
	assert.Nil(t, cat)
	assert.ErrorIs(t, err, ErrNoInstances)
}

func TestDiscover_CustomNaming(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "arestas_5.txt", "nos_5.txt", "arestas_6.txt")

	cat, err := Discover(Options{
		Dir:        dir,
		EdgePrefix: "arestas_",
		NodePrefix: "nos_",
		Extension:  ".txt",
	}, logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, []int{5}, ids(cat))
	assert.Equal(t, []string{"arestas_6.txt"}, cat.Skipped)
}

func TestDiscover_RequiresPrefixes(t *testing.T) {
	_, err := Discover(Options{Dir: t.TempDir()}, logger.NewNop())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoInstances)
}
