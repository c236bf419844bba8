package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prefixIgnore struct{ prefixes []string }

func (p prefixIgnore) Ignored(relPath string, isDir bool) bool {
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(relPath, prefix) {
			return true
		}
	}
	return false
}

func TestScanner_FindsSourceFilesAndRespectsIgnore(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "vendor"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "app"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "app", "main.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "vendor", "dep.go"), []byte("package dep\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# hi"), 0o644))

	scanner := NewScanner(NewRegistry(), prefixIgnore{prefixes: []string{"vendor"}}, 4)
	found, err := scanner.Scan(context.Background(), root)
	require.NoError(t, err)

	var paths []string
	for _, f := range found {
		rel, _ := filepath.Rel(root, f.Path)
		paths = append(paths, filepath.ToSlash(rel))
	}
	sort.Strings(paths)
	assert.Equal(t, []string{"app/main.go"}, paths)
}

func TestScanner_EmptyDirectory(t *testing.T) {
	root := t.TempDir()
	scanner := NewScanner(NewRegistry(), nil, 2)
	found, err := scanner.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestScanner_NestedDirectories(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(deep, "leaf.py"), []byte("import os\n"), 0o644))

	scanner := NewScanner(NewRegistry(), nil, 3)
	found, err := scanner.Scan(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, ".py", found[0].Spec.Extensions[0])
}
