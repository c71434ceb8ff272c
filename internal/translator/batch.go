package translator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/srt-translator/internal/subtitle"
	"github.com/MimeLyc/srt-translator/pkg/log"
)

// ParallelThreshold is the largest batch dispatched concurrently. Larger
// batches go one fragment at a time to stay under upstream rate limits.
const ParallelThreshold = 5

type batchTranslator struct {
	client FragmentTranslator
}

// NewBatchTranslator wraps a fragment translator with the batching policy.
func NewBatchTranslator(client FragmentTranslator) Translator {
	return &batchTranslator{client: client}
}

// TranslateBatch returns one translation per fragment, in input order. The
// first fragment that fails after its retries fails the whole batch.
func (t *batchTranslator) TranslateBatch(
	ctx context.Context,
	fragments []string,
	targetLang string,
) ([]string, error) {
	if len(fragments) == 0 {
		return []string{}, nil
	}

	var (
		results []string
		err     error
	)
	if len(fragments) <= ParallelThreshold {
		results, err = t.translateParallel(ctx, fragments, targetLang)
	} else {
		results, err = t.translateSequential(ctx, fragments, targetLang)
	}
	if err != nil {
		log.Error("Batch translation error: %v", err)
		return nil, err
	}
	return results, nil
}

// translateParallel starts every call at once. The group has no shared
// context, so one failing fragment never cancels its siblings; Wait
// returns after all calls finish.
func (t *batchTranslator) translateParallel(
	ctx context.Context,
	fragments []string,
	targetLang string,
) ([]string, error) {
	results := make([]string, len(fragments))

	var g errgroup.Group
	for i, fragment := range fragments {
		g.Go(func() error {
			translated, err := t.client.Translate(ctx, fragment, targetLang)
			if err != nil {
				return fmt.Errorf("translate fragment %d: %w", i+1, err)
			}
			results[i] = translated
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (t *batchTranslator) translateSequential(
	ctx context.Context,
	fragments []string,
	targetLang string,
) ([]string, error) {
	results := make([]string, 0, len(fragments))
	for i, fragment := range fragments {
		translated, err := t.client.Translate(ctx, fragment, targetLang)
		if err != nil {
			return nil, fmt.Errorf("translate fragment %d of %d: %w", i+1, len(fragments), err)
		}
		results = append(results, translated)
	}
	return results, nil
}

// BatchTranslate translates the text of each line. Lines are copied; the
// input slice is left untouched.
func (t *batchTranslator) BatchTranslate(
	ctx context.Context,
	subtitleLines []subtitle.Line,
	targetLang string,
) ([]subtitle.Line, error) {
	texts := make([]string, len(subtitleLines))
	for i, line := range subtitleLines {
		texts[i] = line.Text
	}

	translations, err := t.TranslateBatch(ctx, texts, targetLang)
	if err != nil {
		return nil, err
	}

	out := make([]subtitle.Line, len(subtitleLines))
	for i, line := range subtitleLines {
		out[i] = subtitle.Line{
			Index:          line.Index,
			StartTime:      line.StartTime,
			EndTime:        line.EndTime,
			Text:           line.Text,
			TranslatedText: translations[i],
		}
	}
	return out, nil
}
