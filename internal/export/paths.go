package export

import (
	"fmt"
	"path/filepath"
	"strings"
)

// BuildPaths maps each poll id to its destination file under dir. Without
// names files are called poll_<id>.<ext>; otherwise names[i] names ids[i]
// and the extension is appended unless already present. Names are plain
// file names and never leave dir.
func BuildPaths(dir string, ids []int, names []string, format Format) (map[int]string, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("no poll ids given")
	}
	if len(names) > 0 && len(names) != len(ids) {
		return nil, fmt.Errorf("got %d file names for %d poll ids", len(names), len(ids))
	}

	ext := "." + format.Ext()
	paths := make(map[int]string, len(ids))
	used := make(map[string]int, len(ids))
	for i, id := range ids {
		if id <= 0 {
			return nil, fmt.Errorf("invalid poll id %d", id)
		}
		if _, dup := paths[id]; dup {
			return nil, fmt.Errorf("poll id %d given more than once", id)
		}

		name := fmt.Sprintf("poll_%d%s", id, ext)
		if len(names) > 0 {
			name = strings.TrimSpace(names[i])
			if name == "" {
				return nil, fmt.Errorf("empty file name for poll %d", id)
			}
			if name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
				return nil, fmt.Errorf("file name %q for poll %d must not contain a path", name, id)
			}
			if !strings.EqualFold(filepath.Ext(name), ext) {
				name += ext
			}
		}

		p := filepath.Join(dir, name)
		if other, clash := used[p]; clash {
			return nil, fmt.Errorf("polls %d and %d share the file %s", other, id, p)
		}
		used[p] = id
		paths[id] = p
	}
	return paths, nil
}
