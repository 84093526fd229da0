package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// storeDirName is the on-disk directory holding the local object store,
// refs, and remote config, analogous to the teacher's .got.
const storeDirName = ".ostpull"

// findRepoRoot searches start and its ancestors for a storeDirName
// directory, the same upward-search the teacher's repo.Open used before
// pkg/repo was dropped (see DESIGN.md). There is no separate init command:
// if no ancestor has a storeDirName yet, start itself becomes the root and
// store.Open creates it on first use.
func findRepoRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", start, err)
	}
	root := dir
	for {
		info, err := os.Stat(filepath.Join(dir, storeDirName))
		if err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return root, nil
		}
		dir = parent
	}
}
