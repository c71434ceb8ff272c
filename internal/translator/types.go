package translator

import (
	"context"

	"github.com/MimeLyc/srt-translator/internal/subtitle"
)

// FragmentTranslator translates a single text fragment. *llm.Client
// implements it.
type FragmentTranslator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// Translator translates ordered batches. Output always has the input's
// length and order.
type Translator interface {
	TranslateBatch(
		ctx context.Context,
		fragments []string,
		targetLang string,
	) ([]string, error)

	BatchTranslate(
		ctx context.Context,
		subtitleLines []subtitle.Line,
		targetLang string,
	) ([]subtitle.Line, error)
}
