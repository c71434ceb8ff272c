package service

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/language"

	"github.com/MimeLyc/srt-translator/pkg/file"
)

// GenerateOutputPath names the translation next to its input:
// "movie.srt" becomes "movie.zh.srt".
func GenerateOutputPath(inputPath string, target language.Tag) string {
	ext := filepath.Ext(inputPath)
	if ext == "" {
		ext = ".srt"
	}
	return file.ReplaceExt(inputPath, "."+strings.ToLower(target.String())+ext)
}

// isTranslationOutput reports whether path looks like a file produced by
// GenerateOutputPath for target.
func isTranslationOutput(path string, target language.Tag) bool {
	suffix := "." + strings.ToLower(target.String()) + strings.ToLower(filepath.Ext(path))
	return strings.HasSuffix(strings.ToLower(path), suffix)
}
