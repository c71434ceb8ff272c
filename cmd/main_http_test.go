package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/srt-translator/internal/config"
)

type fakeScheduler struct {
	called bool
	err    error
}

func (f *fakeScheduler) Schedule(context.Context) error {
	f.called = true
	return f.err
}

type fakeCron struct {
	started bool
	stopped bool
}

func (f *fakeCron) Start() {
	f.started = true
}

func (f *fakeCron) Stop() context.Context {
	f.stopped = true
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

type fakeHTTP struct {
	listenCalled chan struct{}
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	listenErr    error
}

func newFakeHTTP() *fakeHTTP {
	return &fakeHTTP{
		listenCalled: make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

func (f *fakeHTTP) ListenAndServe(string) error {
	close(f.listenCalled)
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.shutdownCh
	return http.ErrServerClosed
}

func (f *fakeHTTP) Shutdown(context.Context) error {
	f.shutdownOnce.Do(func() { close(f.shutdownCh) })
	return nil
}

func TestMain_StartsCronAndHTTP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Addr: "127.0.0.1:0",
		},
	}
	scheduler := &fakeScheduler{}
	cronEngine := &fakeCron{}
	httpSrv := newFakeHTTP()

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- runWithComponents(ctx, cfg, scheduler, cronEngine, httpSrv)
	}()

	select {
	case <-httpSrv.listenCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("http server did not start")
	}

	cancel()

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runWithComponents did not exit after cancellation")
	}

	assert.True(t, scheduler.called)
	assert.True(t, cronEngine.started)
	assert.True(t, cronEngine.stopped)
}

func TestMain_WatchOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cronEngine := &fakeCron{}

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- runWithComponents(ctx, &config.Config{}, &fakeScheduler{}, cronEngine, nil)
	}()
	cancel()

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runWithComponents did not exit after cancellation")
	}
	assert.True(t, cronEngine.stopped)
}

func TestMain_ScheduleError(t *testing.T) {
	cronEngine := &fakeCron{}
	err := runWithComponents(context.Background(), &config.Config{},
		&fakeScheduler{err: errors.New("bad cron")}, cronEngine, nil)
	require.Error(t, err)
	assert.False(t, cronEngine.started)
}

func TestMain_HTTPListenError(t *testing.T) {
	httpSrv := newFakeHTTP()
	httpSrv.listenErr = errors.New("address already in use")
	cronEngine := &fakeCron{}

	err := runWithComponents(context.Background(), &config.Config{}, nil, cronEngine, httpSrv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address already in use")
	assert.True(t, cronEngine.stopped)
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-in", "movie.srt", "-target", "ja"})
	require.NoError(t, err)
	assert.Equal(t, "movie.srt", opts.input)
	assert.Equal(t, "ja", opts.target)
	assert.Equal(t, ".env", opts.envFile)

	opts, err = parseFlags([]string{"-serve", "-watch"})
	require.NoError(t, err)
	assert.True(t, opts.serve)
	assert.True(t, opts.watch)

	_, err = parseFlags(nil)
	assert.Error(t, err)
}
