package subtitle

import (
	"time"

	"golang.org/x/text/language"
)

// Reader is the interface for reading subtitle files
type Reader interface {
	Read() (*File, error)
}

// Writer is the interface for writing subtitle files
type Writer interface {
	Write(path string, subtitle *File) error
}

// Line represents a single subtitle record
type Line struct {
	Index          int           // subtitle index
	StartTime      time.Duration // start time
	EndTime        time.Duration // end time
	Text           string        // subtitle text
	TranslatedText string        // translated text
}

// File represents subtitle file
type File struct {
	Lines    []Line
	Language language.Tag
	Format   string // always SRT for now
	Path     string
	Encoding string // encoding the source bytes were decoded from
}

// Texts returns the text of every line in order.
func (f *File) Texts() []string {
	texts := make([]string, len(f.Lines))
	for i, line := range f.Lines {
		texts[i] = line.Text
	}
	return texts
}
