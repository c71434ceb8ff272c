package persistence

import (
	"encoding/json"
	"time"
)

type Status string

const (
	// StatusTranslated: every line was translated.
	StatusTranslated Status = "translated"
	// StatusFallback: the batch failed and the original text was written.
	StatusFallback Status = "fallback"
	// StatusFailed: nothing was written (read, parse or write error).
	StatusFailed Status = "failed"
)

type Source string

const (
	SourceCLI     Source = "cli"
	SourceHTTP    Source = "http"
	SourceWatcher Source = "watcher"
)

// TranslationRun is one history entry.
type TranslationRun struct {
	ID             string        `json:"id"`
	Source         Source        `json:"source"`
	SourcePath     string        `json:"source_path,omitempty"`
	OutputPath     string        `json:"output_path,omitempty"`
	SourceLanguage string        `json:"source_language,omitempty"`
	TargetLanguage string        `json:"target_language"`
	LineCount      int           `json:"line_count"`
	CharCount      int           `json:"char_count"`
	Status         Status        `json:"status"`
	Error          string        `json:"error,omitempty"`
	Duration       time.Duration `json:"-"`
	CreatedAt      time.Time     `json:"created_at"`
}

// MarshalJSON reports Duration in whole milliseconds as duration_ms.
func (r TranslationRun) MarshalJSON() ([]byte, error) {
	type plain TranslationRun
	return json.Marshal(struct {
		plain
		DurationMs int64 `json:"duration_ms"`
	}{plain: plain(r), DurationMs: r.Duration.Milliseconds()})
}
