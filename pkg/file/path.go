package file

import (
	"path/filepath"
	"strings"
)

// ReplaceExt swaps the last extension of path for ext. A leading dot is
// added to ext when missing. Dotfiles such as ".hidden" are treated as
// having no extension.
func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	dir, name := filepath.Split(path)
	if lastDot := strings.LastIndex(name, "."); lastDot > 0 {
		name = name[:lastDot]
	}
	return filepath.Join(dir, name+ext)
}
