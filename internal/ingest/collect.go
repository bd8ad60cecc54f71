package ingest

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// supportedChecker reports whether a file extension can be extracted.
type supportedChecker interface {
	Supported(ext string) bool
}

// CollectFiles expands the given paths into a flat list of extractable
// files. Directories are searched recursively; files inside them with
// unsupported extensions are skipped. A path given directly is kept as-is so
// the extractor can report it as unsupported later.
func CollectFiles(paths []string, checker supportedChecker) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if checker.Supported(strings.ToLower(filepath.Ext(path))) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}
