package service

import (
	"context"
	"time"

	"golang.org/x/text/language"

	"github.com/MimeLyc/srt-translator/internal/persistence"
	"github.com/MimeLyc/srt-translator/internal/subtitle"
)

// Result is the outcome of translating one subtitle file.
//
// When the batch fails the output keeps the original text for every line,
// Fallback is set and Err holds the translation error.
type Result struct {
	OriginalFile   subtitle.File
	TranslatedFile subtitle.File
	OutputPath     string
	Metadata       TranslationMetadata
	Fallback       bool
	Err            error
}

// TranslationMetadata contains translation metadata
type TranslationMetadata struct {
	SourceLanguage  language.Tag
	TargetLanguage  language.Tag
	ModelUsed       string
	TranslationTime time.Duration
	CharCount       int
}

// HistoryStore records translation runs. *persistence.SQLiteStore
// implements it.
type HistoryStore interface {
	RecordRun(ctx context.Context, run *persistence.TranslationRun) error
	ListRuns(ctx context.Context, limit int) ([]persistence.TranslationRun, error)
	HasTranslated(ctx context.Context, sourcePath, targetLanguage string) (bool, error)
}
