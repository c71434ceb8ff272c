package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/MimeLyc/srt-translator/internal/persistence"
	"github.com/MimeLyc/srt-translator/pkg/file"
	"github.com/MimeLyc/srt-translator/pkg/icron"
	"github.com/MimeLyc/srt-translator/pkg/log"
)

// ScanReport summarizes one watcher run.
type ScanReport struct {
	Scanned    int
	Translated int
	Fallback   int
	Failed     int
	Skipped    int
}

// Watcher periodically translates new SRT files found under a directory.
// Overlapping triggers share one run.
type Watcher struct {
	svc      *Service
	dir      string
	cronExpr string
	cron     *cron.Cron

	group singleflight.Group

	mu      sync.Mutex
	lastRun time.Time
	// retry holds inputs whose last run fell back; they are rescanned even
	// when unmodified.
	retry map[string]struct{}
}

func NewWatcher(svc *Service, dir, cronExpr string, c *cron.Cron) *Watcher {
	return &Watcher{
		svc:      svc,
		dir:      dir,
		cronExpr: cronExpr,
		cron:     c,
		retry:    make(map[string]struct{}),
	}
}

// Schedule registers the watcher on its cron. The caller starts and stops
// the cron.
func (w *Watcher) Schedule(ctx context.Context) error {
	if _, err := os.Stat(w.dir); err != nil {
		return fmt.Errorf("watch directory %s: %w", w.dir, err)
	}

	_, err := w.cron.AddFunc(w.cronExpr, func() {
		if _, err := w.RunOnce(ctx); err != nil {
			log.Error("Watcher run in %s failed: %v", w.dir, err)
		}
		w.logNextTrigger()
	})
	if err != nil {
		return fmt.Errorf("schedule watcher: %w", err)
	}

	log.Info("Watching %s for new SRT files (%s)", w.dir, w.cronExpr)
	w.logNextTrigger()
	return nil
}

func (w *Watcher) logNextTrigger() {
	info, err := icron.GetTriggerInfo(w.cronExpr, time.Now())
	if err != nil {
		log.Warn("Failed to compute next watcher trigger: %v", err)
		return
	}
	log.Info("Next watcher run at %s (in %s)", info.Next.Format(time.DateTime), info.TimeUntilNext.Round(time.Second))
}

// RunOnce scans the directory and translates every candidate. A run that is
// already in progress is joined instead of started again.
func (w *Watcher) RunOnce(ctx context.Context) (ScanReport, error) {
	v, err, shared := w.group.Do("scan", func() (any, error) {
		return w.run(ctx)
	})
	if shared {
		log.Debug("Joined watcher run already in progress")
	}
	if err != nil {
		return ScanReport{}, err
	}
	return v.(ScanReport), nil
}

func (w *Watcher) run(ctx context.Context) (ScanReport, error) {
	var report ScanReport
	target := w.svc.TargetLanguage()

	w.mu.Lock()
	since := w.lastRun
	w.mu.Unlock()
	startedAt := time.Now()

	candidates, skipped, err := w.findCandidates(ctx, since, target)
	if err != nil {
		return report, err
	}
	report.Scanned = len(candidates) + skipped
	report.Skipped = skipped
	log.Info("Found %d subtitle files to translate in %s", len(candidates), w.dir)

	for _, path := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		result, err := w.svc.TranslateFile(ctx, path, "", target, persistence.SourceWatcher)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			log.Error("Failed to translate %s: %v", path, err)
			report.Failed++
			continue
		}

		w.mu.Lock()
		if result.Fallback {
			w.retry[path] = struct{}{}
			report.Fallback++
		} else {
			delete(w.retry, path)
			report.Translated++
		}
		w.mu.Unlock()
	}

	w.mu.Lock()
	w.lastRun = startedAt
	w.mu.Unlock()

	log.Info("Watcher run done: %d translated, %d fallback, %d failed, %d skipped",
		report.Translated, report.Fallback, report.Failed, report.Skipped)
	return report, nil
}

// findCandidates returns SRT inputs modified after since, plus pending
// retries. Translation outputs and inputs whose output already exists are
// left out, as are inputs the history marks as translated. The second
// result counts the files left out.
func (w *Watcher) findCandidates(ctx context.Context, since time.Time, target language.Tag) ([]string, int, error) {
	recent, err := file.FindRecentAfter(w.dir, since, ".srt")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find recent files: %w", err)
	}

	w.mu.Lock()
	retry := make(map[string]struct{}, len(w.retry))
	for path := range w.retry {
		retry[path] = struct{}{}
	}
	w.mu.Unlock()

	seen := make(map[string]bool)
	var ret []string
	skipped := 0
	for _, path := range recent {
		seen[path] = true
		if isTranslationOutput(path, target) {
			skipped++
			continue
		}
		if _, pending := retry[path]; !pending && file.Exists(GenerateOutputPath(path, target)) {
			skipped++
			continue
		}
		if w.svc.history != nil {
			done, err := w.svc.history.HasTranslated(ctx, path, target.String())
			if err != nil {
				log.Warn("Failed to check history for %s: %v", path, err)
			} else if done {
				skipped++
				continue
			}
		}
		ret = append(ret, path)
	}

	for path := range retry {
		if !seen[path] && file.Exists(path) {
			ret = append(ret, path)
		}
	}
	return ret, skipped, nil
}
