package translator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/srt-translator/internal/llm"
	"github.com/MimeLyc/srt-translator/internal/subtitle"
)

type fakeClient struct {
	fn    func(ctx context.Context, text, targetLang string) (string, error)
	calls atomic.Int32
}

func (f *fakeClient) Translate(ctx context.Context, text, targetLang string) (string, error) {
	f.calls.Add(1)
	return f.fn(ctx, text, targetLang)
}

func upper(_ context.Context, text, _ string) (string, error) {
	return strings.ToUpper(text), nil
}

func TestTranslateBatchRoundTrip(t *testing.T) {
	t.Parallel()

	client := &fakeClient{fn: upper}
	got, err := NewBatchTranslator(client).TranslateBatch(context.Background(), []string{"Hello", "World"}, "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"HELLO", "WORLD"}, got)
}

func TestTranslateBatchEmpty(t *testing.T) {
	t.Parallel()

	client := &fakeClient{fn: upper}
	got, err := NewBatchTranslator(client).TranslateBatch(context.Background(), nil, "en")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(0), client.calls.Load())
}

func TestTranslateBatchSmallIsConcurrent(t *testing.T) {
	t.Parallel()

	const n = 3
	var started atomic.Int32
	allStarted := make(chan struct{})

	client := &fakeClient{fn: func(ctx context.Context, text, _ string) (string, error) {
		if started.Add(1) == n {
			close(allStarted)
		}
		// Every call blocks until all of them have started, so a
		// sequential dispatcher would time out here.
		select {
		case <-allStarted:
		case <-time.After(2 * time.Second):
			return "", errors.New("calls were not dispatched concurrently")
		}
		return strings.ToUpper(text), nil
	}}

	got, err := NewBatchTranslator(client).TranslateBatch(context.Background(), []string{"a", "b", "c"}, "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, got)
}

func TestTranslateBatchSmallKeepsInputOrder(t *testing.T) {
	t.Parallel()

	delays := map[string]time.Duration{
		"first":  60 * time.Millisecond,
		"second": 30 * time.Millisecond,
		"third":  0,
	}
	client := &fakeClient{fn: func(ctx context.Context, text, _ string) (string, error) {
		time.Sleep(delays[text])
		return text + "!", nil
	}}

	got, err := NewBatchTranslator(client).TranslateBatch(context.Background(), []string{"first", "second", "third"}, "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"first!", "second!", "third!"}, got)
}

func TestTranslateBatchLargeIsSequential(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		events []string
	)
	var inFlight, maxInFlight atomic.Int32

	client := &fakeClient{fn: func(ctx context.Context, text, _ string) (string, error) {
		cur := inFlight.Add(1)
		for {
			prev := maxInFlight.Load()
			if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
				break
			}
		}
		mu.Lock()
		events = append(events, "start "+text)
		mu.Unlock()

		time.Sleep(2 * time.Millisecond)

		mu.Lock()
		events = append(events, "end "+text)
		mu.Unlock()
		inFlight.Add(-1)
		return strings.ToUpper(text), nil
	}}

	input := []string{"a", "b", "c", "d", "e", "f", "g"}
	got, err := NewBatchTranslator(client).TranslateBatch(context.Background(), input, "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F", "G"}, got)
	assert.Equal(t, int32(1), maxInFlight.Load())

	var want []string
	for _, s := range input {
		want = append(want, "start "+s, "end "+s)
	}
	assert.Equal(t, want, events)
}

func TestTranslateBatchThresholdBoundary(t *testing.T) {
	t.Parallel()

	var inFlight, maxInFlight atomic.Int32
	client := &fakeClient{fn: func(ctx context.Context, text, _ string) (string, error) {
		cur := inFlight.Add(1)
		for {
			prev := maxInFlight.Load()
			if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return text, nil
	}}

	input := []string{"1", "2", "3", "4", "5"}
	got, err := NewBatchTranslator(client).TranslateBatch(context.Background(), input, "en")
	require.NoError(t, err)
	assert.Equal(t, input, got)
	assert.Greater(t, maxInFlight.Load(), int32(1))
}

var errUpstream = errors.New("upstream down")

func TestTranslateBatchSmallFailureFailsBatch(t *testing.T) {
	t.Parallel()

	client := &fakeClient{fn: func(ctx context.Context, text, _ string) (string, error) {
		if text == "bad" {
			return "", errUpstream
		}
		// siblings still run to completion
		time.Sleep(10 * time.Millisecond)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return text, nil
	}}

	got, err := NewBatchTranslator(client).TranslateBatch(context.Background(), []string{"ok", "bad", "fine"}, "en")
	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, errUpstream)
	assert.Contains(t, err.Error(), "fragment 2")
	assert.Equal(t, int32(3), client.calls.Load())
}

func TestTranslateBatchLargeFailureStopsDispatch(t *testing.T) {
	t.Parallel()

	client := &fakeClient{fn: func(ctx context.Context, text, _ string) (string, error) {
		if text == "4" {
			return "", errUpstream
		}
		return text, nil
	}}

	input := []string{"1", "2", "3", "4", "5", "6", "7"}
	got, err := NewBatchTranslator(client).TranslateBatch(context.Background(), input, "en")
	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, errUpstream)
	assert.Contains(t, err.Error(), "fragment 4 of 7")
	assert.Equal(t, int32(4), client.calls.Load())
}

func TestTranslateBatchPropagatesConfigurationError(t *testing.T) {
	t.Parallel()

	config := llm.DefaultConfig()
	client, err := llm.NewClient(&config)
	require.NoError(t, err)

	_, err = NewBatchTranslator(client).TranslateBatch(context.Background(), []string{"Hello", "World"}, "zh")
	require.Error(t, err)
	assert.True(t, llm.IsKind(err, llm.KindConfiguration))
}

func TestBatchTranslateLines(t *testing.T) {
	t.Parallel()

	lines := []subtitle.Line{
		{Index: 1, StartTime: time.Second, EndTime: 2 * time.Second, Text: "Hello"},
		{Index: 2, StartTime: 3 * time.Second, EndTime: 4 * time.Second, Text: "World"},
	}
	client := &fakeClient{fn: upper}

	got, err := NewBatchTranslator(client).BatchTranslate(context.Background(), lines, "en")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, subtitle.Line{Index: 1, StartTime: time.Second, EndTime: 2 * time.Second, Text: "Hello", TranslatedText: "HELLO"}, got[0])
	assert.Equal(t, "WORLD", got[1].TranslatedText)
	assert.Equal(t, 2, got[1].Index)

	// input untouched
	assert.Empty(t, lines[0].TranslatedText)
}

// End to end through a real client against a fake chat endpoint that
// uppercases the quoted fragment.
func TestTranslateBatchWithLLMClient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req llm.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompt := req.Messages[0].Content
		start := strings.Index(prompt, "'")
		end := strings.LastIndex(prompt, "'")
		fragment := prompt[start+1 : end]

		resp := llm.ChatResponse{Choices: []llm.Choice{{Message: llm.Message{Role: "assistant", Content: strings.ToUpper(fragment)}}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	config := llm.Config{
		APIKey:     "test-key",
		Endpoint:   server.URL,
		Model:      "test-model",
		Timeout:    5 * time.Second,
		MaxRetries: 1,
	}
	client, err := llm.NewClient(&config)
	require.NoError(t, err)

	bt := NewBatchTranslator(client)
	for _, size := range []int{2, 8} {
		input := make([]string, size)
		want := make([]string, size)
		for i := range input {
			input[i] = fmt.Sprintf("line %d", i)
			want[i] = fmt.Sprintf("LINE %d", i)
		}
		input[0] = "Hello"
		want[0] = "HELLO"

		got, err := bt.TranslateBatch(context.Background(), input, "en")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
