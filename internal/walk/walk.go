// Package walk produces a deterministic stream of files under a root
// directory, honoring include-prefixes. A walk always starts at the root;
// it cannot be resumed from a point part-way through. It is grounded on the
// teacher's sync.ScanDir: a depth-first traversal that skips hidden
// entries and .DS_Store, and tolerates unreadable subdirectories.
package walk

import (
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Entry is a single file found under a root.
type Entry struct {
	// RelPath is POSIX-separated and relative to the root.
	RelPath string
	Size    int64
}

// Options configures a walk.
type Options struct {
	// IncludePrefixes restricts the walk to entries whose relative path
	// starts with one of these prefixes (resolved against the root). A nil
	// or empty slice walks everything under the root.
	IncludePrefixes []string
}

// Walk streams every regular file under root in a deterministic
// depth-first order and invokes fn for each. Each directory's entries are
// sorted by name in descending order: its files are emitted in that order,
// and its subdirectories, pushed on the stack in that order, are descended
// in ascending name order. Two runs over an unchanged tree therefore yield
// identical sequences. Returning an error from fn stops the walk early and Walk returns
// that error.
//
// Hidden entries (dot-prefixed) and .DS_Store are skipped. A directory
// that cannot be read is skipped silently; an entry whose Stat fails is
// dropped. Walk never follows symlinks and never re-enters a directory.
func Walk(fsys afero.Fs, root string, opts Options, fn func(Entry) error) error {
	prefixes := normalizePrefixes(opts.IncludePrefixes)

	type frame struct {
		dir string
	}
	stack := []frame{{dir: root}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		infos, err := afero.ReadDir(fsys, top.dir)
		if err != nil {
			// unreadable directory: skip silently
			continue
		}

		sort.Slice(infos, func(i, j int) bool { return infos[i].Name() > infos[j].Name() })

		for _, info := range infos {
			name := info.Name()
			if name == ".DS_Store" || strings.HasPrefix(name, ".") {
				continue
			}

			full := path.Join(top.dir, name)
			rel, err := relPath(root, full)
			if err != nil || escapesRoot(rel) {
				continue
			}

			if info.IsDir() {
				stack = append(stack, frame{dir: full})
				continue
			}

			if !includedByPrefix(rel, prefixes) {
				continue
			}

			// Re-stat defensively: info came from the parent ReadDir and may
			// be stale if the entry vanished between listing and use.
			st, statErr := fsys.Stat(full)
			if statErr != nil {
				continue
			}

			if err := fn(Entry{RelPath: rel, Size: st.Size()}); err != nil {
				return err
			}
		}
	}

	return nil
}

func relPath(root, full string) (string, error) {
	root = path.Clean(root)
	full = path.Clean(full)
	if !strings.HasPrefix(full, root) {
		return "", fs.ErrInvalid
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(full, root), "/")
	return rel, nil
}

func escapesRoot(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

func normalizePrefixes(prefixes []string) []string {
	if len(prefixes) == 0 {
		return nil
	}
	out := make([]string, len(prefixes))
	for i, p := range prefixes {
		out[i] = strings.Trim(path.Clean(p), "/")
	}
	return out
}

func includedByPrefix(rel string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if rel == p || strings.HasPrefix(rel, p+"/") {
			return true
		}
	}
	return false
}
