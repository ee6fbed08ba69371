// Package catalog discovers paired node/edge instance files and orders them by numeric id.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/dbsmedya/mstharness/internal/logger"
	"github.com/dbsmedya/mstharness/internal/types"
)

// ErrNoInstances is returned when neither the primary nor the fallback directory holds a pair.
var ErrNoInstances = errors.New("no instance pairs found")

// Options controls where and how instances are discovered.
type Options struct {
	Dir         string
	FallbackDir string // scanned only when Dir yields no pairs
	EdgePrefix  string
	NodePrefix  string
	Extension   string
}

// Catalog is the result of one discovery scan.
type Catalog struct {
	Dir     string // directory the pairs came from
	Pairs   []types.InstancePair
	Skipped []string // edge files without a node partner, or duplicate ids
}

// Len returns the number of discovered pairs.
func (c *Catalog) Len() int {
	return len(c.Pairs)
}

// Discover scans opts.Dir, then opts.FallbackDir if the first scan produced nothing.
func Discover(opts Options, log *logger.Logger) (*Catalog, error) {
	if log == nil {
		log = logger.NewDefault()
	}

	pattern, err := edgePattern(opts)
	if err != nil {
		return nil, err
	}

	dirs := []string{opts.Dir}
	if opts.FallbackDir != "" && opts.FallbackDir != opts.Dir {
		dirs = append(dirs, opts.FallbackDir)
	}

	for i, dir := range dirs {
		if dir == "" {
			continue
		}
		cat, err := scan(dir, pattern, opts, log)
		if err != nil {
			return nil, err
		}
		if cat.Len() > 0 {
			if i > 0 {
				log.Warnw("Primary instance directory yielded no pairs, using fallback",
					"primary", opts.Dir,
					"fallback", dir,
				)
			}
			log.Infow("Instance catalog built",
				"dir", dir,
				"pairs", cat.Len(),
				"skipped", len(cat.Skipped),
			)
			return cat, nil
		}
		log.Debugw("No instance pairs in directory", "dir", dir)
	}

	return nil, fmt.Errorf("%w in %v", ErrNoInstances, dirs)
}

func edgePattern(opts Options) (*regexp.Regexp, error) {
	if opts.EdgePrefix == "" || opts.NodePrefix == "" {
		return nil, fmt.Errorf("edge and node prefixes are required")
	}
	return regexp.Compile("^" + regexp.QuoteMeta(opts.EdgePrefix) + `(\d+)` + regexp.QuoteMeta(opts.Extension) + "$")
}

// scan lists one directory. A missing directory is an empty scan, not an error.
func scan(dir string, pattern *regexp.Regexp, opts Options, log *logger.Logger) (*Catalog, error) {
	cat := &Catalog{Dir: dir}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cat, nil
		}
		return nil, fmt.Errorf("failed to read instance directory %s: %w", dir, err)
	}

	// os.ReadDir returns entries sorted by filename, so "first seen" is lexical order.
	seen := make(map[int]bool)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := pattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}

		digits := m[1]
		id, err := strconv.Atoi(digits)
		if err != nil || id <= 0 {
			log.Debugw("Ignoring edge file with non-positive id", "file", entry.Name())
			continue
		}

		nodeName := opts.NodePrefix + digits + opts.Extension
		nodePath := filepath.Join(dir, nodeName)
		if info, err := os.Stat(nodePath); err != nil || info.IsDir() {
			log.Warnw("Node file not found for edge file, skipping",
				"edge_file", entry.Name(),
				"node_file", nodeName,
			)
			cat.Skipped = append(cat.Skipped, entry.Name())
			continue
		}

		if seen[id] {
			log.Warnw("Duplicate instance id, keeping first file",
				"id", id,
				"edge_file", entry.Name(),
			)
			cat.Skipped = append(cat.Skipped, entry.Name())
			continue
		}
		seen[id] = true

		cat.Pairs = append(cat.Pairs, types.InstancePair{
			ID:       id,
			NodePath: nodePath,
			EdgePath: filepath.Join(dir, entry.Name()),
		})
	}

	sort.Slice(cat.Pairs, func(i, j int) bool {
		return cat.Pairs[i].ID < cat.Pairs[j].ID
	})

	return cat, nil
}
