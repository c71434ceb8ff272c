package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/MimeLyc/srt-translator/internal/subtitle"
)

func TestWatcher_RunOnceTranslatesNewFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	season := filepath.Join(dir, "season1")
	require.NoError(t, os.MkdirAll(season, 0o755))

	first := writeSample(t, dir, "movie.srt")
	second := writeSample(t, season, "ep01.srt")
	writeSample(t, season, "ep02.srt")
	writeSample(t, season, "ep02.zh.srt") // already translated
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	mockTrans := new(mockTranslator)
	mockTrans.On("BatchTranslate", ctx, mock.Anything, "zh").
		Return(func(_ context.Context, lines []subtitle.Line, lang string) []subtitle.Line {
			return translatedLines(lines, lang)
		}, nil)

	history := newHistory(t)
	svc := New(mockTrans, language.Chinese, WithHistory(history))
	w := NewWatcher(svc, dir, "*/10 * * * *", cron.New())

	report, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Translated)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 4, report.Scanned)
	mockTrans.AssertNumberOfCalls(t, "BatchTranslate", 2)

	assert.FileExists(t, GenerateOutputPath(first, language.Chinese))
	assert.FileExists(t, GenerateOutputPath(second, language.Chinese))

	// Nothing changed since the last run.
	report, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Translated)
	mockTrans.AssertNumberOfCalls(t, "BatchTranslate", 2)
}

func TestWatcher_RetriesFallbackFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	input := writeSample(t, dir, "movie.srt")

	mockTrans := new(mockTranslator)
	mockTrans.On("BatchTranslate", ctx, mock.Anything, "zh").
		Return(([]subtitle.Line)(nil), errors.New("[Network] connection refused")).Once()
	mockTrans.On("BatchTranslate", ctx, mock.Anything, "zh").
		Return(func(_ context.Context, lines []subtitle.Line, lang string) []subtitle.Line {
			return translatedLines(lines, lang)
		}, nil).Once()

	svc := New(mockTrans, language.Chinese)
	w := NewWatcher(svc, dir, "@hourly", cron.New())

	report, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fallback)

	// The fallback output exists, but the input is retried anyway.
	report, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Translated)

	written, err := subtitle.NewReader(GenerateOutputPath(input, language.Chinese)).Read()
	require.NoError(t, err)
	assert.Equal(t, "zh:Damn you!", written.Lines[0].Text)
	mockTrans.AssertExpectations(t)
}

// blockingTranslator holds every batch until release is closed.
type blockingTranslator struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingTranslator) TranslateBatch(_ context.Context, fragments []string, _ string) ([]string, error) {
	return fragments, nil
}

func (b *blockingTranslator) BatchTranslate(_ context.Context, lines []subtitle.Line, _ string) ([]subtitle.Line, error) {
	b.calls.Add(1)
	b.once.Do(func() { close(b.started) })
	<-b.release
	return lines, nil
}

func TestWatcher_OverlappingRunsAreCoalesced(t *testing.T) {
	dir := t.TempDir()
	writeSample(t, dir, "movie.srt")

	tr := &blockingTranslator{started: make(chan struct{}), release: make(chan struct{})}
	w := NewWatcher(New(tr, language.Chinese), dir, "@hourly", cron.New())

	var wg sync.WaitGroup
	reports := make([]ScanReport, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		reports[0], _ = w.RunOnce(context.Background())
	}()

	select {
	case <-tr.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first run did not start")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		reports[1], _ = w.RunOnce(context.Background())
	}()

	// Give the second caller time to join before releasing.
	time.Sleep(50 * time.Millisecond)
	close(tr.release)
	wg.Wait()

	assert.Equal(t, int32(1), tr.calls.Load())
	assert.Equal(t, reports[0], reports[1])
}

func TestWatcher_Schedule(t *testing.T) {
	c := cron.New()
	svc := New(new(mockTranslator), language.Chinese)

	w := NewWatcher(svc, t.TempDir(), "*/10 * * * *", c)
	require.NoError(t, w.Schedule(context.Background()))
	assert.Len(t, c.Entries(), 1)

	missing := NewWatcher(svc, filepath.Join(t.TempDir(), "missing"), "*/10 * * * *", c)
	assert.Error(t, missing.Schedule(context.Background()))

	bad := NewWatcher(svc, t.TempDir(), "not a cron", c)
	assert.Error(t, bad.Schedule(context.Background()))
}

func TestWatcher_CancelledRun(t *testing.T) {
	dir := t.TempDir()
	writeSample(t, dir, "movie.srt")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewWatcher(New(new(mockTranslator), language.Chinese), dir, "@hourly", cron.New())
	_, err := w.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
