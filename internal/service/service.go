package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/MimeLyc/srt-translator/internal/config"
	"github.com/MimeLyc/srt-translator/internal/llm"
	"github.com/MimeLyc/srt-translator/internal/persistence"
	"github.com/MimeLyc/srt-translator/internal/subtitle"
	"github.com/MimeLyc/srt-translator/internal/translator"
	"github.com/MimeLyc/srt-translator/pkg/log"
)

// Service reads SRT input, runs it through the batch translator and writes
// the result. It owns the fallback policy: a failed batch never fails the
// file, the original text is written instead.
type Service struct {
	mu         sync.RWMutex
	translator translator.Translator
	model      string
	target     language.Tag

	writer     subtitle.Writer
	history    HistoryStore
	errHandler ErrorHandler
}

type Option func(*Service)

// WithHistory records every run in store.
func WithHistory(store HistoryStore) Option {
	return func(s *Service) {
		s.history = store
	}
}

func WithWriter(w subtitle.Writer) Option {
	return func(s *Service) {
		s.writer = w
	}
}

func WithModel(model string) Option {
	return func(s *Service) {
		s.model = model
	}
}

func New(tr translator.Translator, target language.Tag, opts ...Option) *Service {
	s := &Service{
		translator: tr,
		target:     target,
		writer:     subtitle.NewWriter(),
		errHandler: NewDefaultErrorHandler(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromConfig builds the translation client and batch translator from cfg.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Service, error) {
	tr, err := newBatchTranslator(cfg.LLM.ClientConfig())
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithModel(cfg.LLM.Model)}, opts...)
	return New(tr, cfg.Translate.TargetLanguage, opts...), nil
}

func newBatchTranslator(clientCfg llm.Config, clientOpts ...llm.Option) (translator.Translator, error) {
	client, err := llm.NewClient(&clientCfg, clientOpts...)
	if err != nil {
		return nil, WrapError(err, ErrConfig, "failed to create translation client")
	}
	return translator.NewBatchTranslator(client), nil
}

// Reconfigure swaps the translation client and default target language.
// Runs already in flight keep the client they started with.
func (s *Service) Reconfigure(cfg *config.Config, clientOpts ...llm.Option) error {
	tr, err := newBatchTranslator(cfg.LLM.ClientConfig(), clientOpts...)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.translator = tr
	s.model = cfg.LLM.Model
	s.target = cfg.Translate.TargetLanguage
	s.mu.Unlock()

	log.Info("Translation settings updated: model=%s target=%s", cfg.LLM.Model, cfg.Translate.TargetLanguage)
	return nil
}

// TargetLanguage returns the default target language.
func (s *Service) TargetLanguage() language.Tag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target
}

func (s *Service) current() (translator.Translator, string, language.Tag) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.translator, s.model, s.target
}

// TranslateFile translates the SRT file at inputPath and writes it to
// outputPath ("" derives the path with GenerateOutputPath). An und target
// uses the default target language.
func (s *Service) TranslateFile(
	ctx context.Context,
	inputPath string,
	outputPath string,
	target language.Tag,
	source persistence.Source,
) (*Result, error) {
	if strings.TrimSpace(inputPath) == "" {
		return nil, NewError(ErrValidation, "input path is required")
	}
	if _, err := os.Stat(inputPath); errors.Is(err, os.ErrNotExist) {
		return nil, NewError(ErrFileNotFound, "subtitle file does not exist").WithContext("path", inputPath)
	}

	run := &persistence.TranslationRun{Source: source, SourcePath: inputPath}

	file, err := subtitle.NewReader(inputPath).Read()
	if err != nil {
		transErr := WrapError(err, ErrFileRead, "failed to read subtitle file").WithContext("path", inputPath)
		s.recordFailure(ctx, run, target, transErr)
		return nil, transErr
	}

	result, err := s.translate(ctx, file, target)
	if err != nil {
		s.recordFailure(ctx, run, target, err)
		return nil, err
	}

	if outputPath == "" {
		outputPath = GenerateOutputPath(inputPath, result.Metadata.TargetLanguage)
	}
	if err := s.writer.Write(outputPath, &result.TranslatedFile); err != nil {
		transErr := WrapError(err, ErrFileWrite, "failed to save translation results").WithContext("path", outputPath)
		s.recordFailure(ctx, run, result.Metadata.TargetLanguage, transErr)
		return nil, transErr
	}
	result.OutputPath = outputPath
	result.TranslatedFile.Path = outputPath

	run.OutputPath = outputPath
	s.record(ctx, run, result)
	return result, nil
}

// TranslateSRT translates SRT content held in memory.
func (s *Service) TranslateSRT(
	ctx context.Context,
	data []byte,
	target language.Tag,
	source persistence.Source,
) (*Result, error) {
	run := &persistence.TranslationRun{Source: source}

	file, err := subtitle.ReadSRTBytes(data, "")
	if err != nil {
		transErr := WrapError(err, ErrParse, "failed to parse subtitle content")
		s.recordFailure(ctx, run, target, transErr)
		return nil, transErr
	}
	if len(file.Lines) == 0 && len(strings.TrimSpace(string(data))) > 0 {
		transErr := NewError(ErrParse, "no subtitle records found")
		s.recordFailure(ctx, run, target, transErr)
		return nil, transErr
	}

	result, err := s.translate(ctx, file, target)
	if err != nil {
		s.recordFailure(ctx, run, target, err)
		return nil, err
	}
	s.record(ctx, run, result)
	return result, nil
}

// translate runs the batch and applies the fallback policy. Only
// cancellation of ctx is returned as an error.
func (s *Service) translate(ctx context.Context, file *subtitle.File, target language.Tag) (*Result, error) {
	tr, model, defaultTarget := s.current()
	if target == language.Und {
		target = defaultTarget
	}
	if tr == nil {
		return nil, NewError(ErrConfig, "translator not set")
	}

	result := &Result{
		OriginalFile: *file,
		Metadata: TranslationMetadata{
			SourceLanguage: file.Language,
			TargetLanguage: target,
			ModelUsed:      model,
			CharCount:      countCharacters(file.Lines),
		},
	}

	log.Info("Translating %d subtitle lines from %s to %s", len(file.Lines), file.Language, target)
	startTime := time.Now()

	lines, err := tr.BatchTranslate(ctx, file.Lines, target.String())
	result.Metadata.TranslationTime = time.Since(startTime)

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		transErr := WrapError(err, ErrTranslation, "batch translation failed, keeping original text")
		s.errHandler.Handle(transErr)

		// TranslatedText stays empty, so the writer emits the original text.
		lines = make([]subtitle.Line, len(file.Lines))
		copy(lines, file.Lines)
		result.Fallback = true
		result.Err = transErr
	}

	result.TranslatedFile = subtitle.File{
		Lines:    lines,
		Language: target,
		Format:   file.Format,
		Encoding: subtitle.EncodingUTF8,
	}
	return result, nil
}

func (s *Service) record(ctx context.Context, run *persistence.TranslationRun, result *Result) {
	if s.history == nil {
		return
	}
	run.SourceLanguage = languageString(result.Metadata.SourceLanguage)
	run.TargetLanguage = result.Metadata.TargetLanguage.String()
	run.LineCount = len(result.OriginalFile.Lines)
	run.CharCount = result.Metadata.CharCount
	run.Duration = result.Metadata.TranslationTime
	run.Status = persistence.StatusTranslated
	if result.Fallback {
		run.Status = persistence.StatusFallback
		run.Error = result.Err.Error()
	}
	if err := s.history.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		log.Warn("Failed to record translation history: %v", err)
	}
}

func (s *Service) recordFailure(ctx context.Context, run *persistence.TranslationRun, target language.Tag, err error) {
	if s.history == nil {
		return
	}
	if target == language.Und {
		target = s.TargetLanguage()
	}
	run.TargetLanguage = target.String()
	run.Status = persistence.StatusFailed
	run.Error = err.Error()
	if recErr := s.history.RecordRun(context.WithoutCancel(ctx), run); recErr != nil {
		log.Warn("Failed to record translation history: %v", recErr)
	}
}

// History returns the most recent runs, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]persistence.TranslationRun, error) {
	if s.history == nil {
		return []persistence.TranslationRun{}, nil
	}
	return s.history.ListRuns(ctx, limit)
}

// PrintTranslationReport prints translation report
func PrintTranslationReport(result *Result) {
	fmt.Println("=== Translation Report ===")
	fmt.Printf("Source Language: %s\n", result.Metadata.SourceLanguage)
	fmt.Printf("Target Language: %s\n", result.Metadata.TargetLanguage)
	fmt.Printf("Translation Time: %v\n", result.Metadata.TranslationTime)
	fmt.Printf("Character Count: %d\n", result.Metadata.CharCount)
	fmt.Printf("Subtitle Lines: %d\n", len(result.TranslatedFile.Lines))
	if result.OutputPath != "" {
		fmt.Printf("Output: %s\n", result.OutputPath)
	}
	if result.Fallback {
		fmt.Printf("Fallback: original text kept (%v)\n", result.Err)
	}
}

// GetTranslationPreview gets translation preview (first n lines)
func GetTranslationPreview(result *Result, lines int) string {
	if lines <= 0 {
		lines = 5
	}

	var sb strings.Builder
	sb.WriteString("=== Translation Preview ===\n")

	showLines := min(lines, len(result.TranslatedFile.Lines))
	for i := 0; i < showLines; i++ {
		original := result.OriginalFile.Lines[i].Text
		translated := result.TranslatedFile.Lines[i].TranslatedText
		if translated == "" {
			translated = original
		}

		sb.WriteString(fmt.Sprintf("Original: %s\n", original))
		sb.WriteString(fmt.Sprintf("Translated: %s\n\n", translated))
	}

	return sb.String()
}

// countCharacters calculates total subtitle characters
func countCharacters(lines []subtitle.Line) int {
	total := 0
	for _, line := range lines {
		total += len([]rune(line.Text))
	}
	return total
}

func languageString(tag language.Tag) string {
	if tag == language.Und {
		return ""
	}
	return tag.String()
}
