package subtitle

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"time"
)

// DefaultWriter is the default subtitle file writer
type DefaultWriter struct{}

// NewWriter creates a new subtitle file writer
func NewWriter() Writer {
	return &DefaultWriter{}
}

// Write writes the subtitle as UTF-8 SRT to path.
func (w *DefaultWriter) Write(path string, subtitle *File) error {
	if subtitle == nil {
		return fmt.Errorf("subtitle data is empty")
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if err := Encode(file, subtitle); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// Encode writes SRT records to out. Each record uses TranslatedText and
// falls back to Text when no translation is set. Records are separated by
// one blank line.
func Encode(out io.Writer, subtitle *File) error {
	if subtitle == nil {
		return fmt.Errorf("subtitle data is empty")
	}

	writer := bufio.NewWriter(out)
	for i, line := range subtitle.Lines {
		if i > 0 {
			writer.WriteString("\n")
		}

		fmt.Fprintf(writer, "%d\n", line.Index)
		fmt.Fprintf(writer, "%s --> %s\n", formatDuration(line.StartTime), formatDuration(line.EndTime))

		text := line.TranslatedText
		if text == "" {
			text = line.Text
		}
		fmt.Fprintf(writer, "%s\n", text)
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to write subtitle: %w", err)
	}
	return nil
}

// Marshal renders the subtitle as SRT bytes.
func Marshal(subtitle *File) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, subtitle); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// formatDuration formats time.Duration to SRT time format
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, milliseconds)
}
