// Package localfs collects local files for upload.
package localfs

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// WalkOptions configures CollectFiles.
type WalkOptions struct {
	// IncludeHidden includes dot files and descends into dot directories.
	IncludeHidden bool
}

// IsHiddenName reports whether name is a dot file. "." and ".." are not hidden.
func IsHiddenName(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}

// CollectFiles returns the regular files under root in lexical order.
// Entries that cannot be read are skipped; only an unreadable root is an error.
func CollectFiles(root string, opts WalkOptions) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if path != root && !opts.IncludeHidden && IsHiddenName(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
