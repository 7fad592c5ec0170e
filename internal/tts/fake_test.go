package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// fakeEngine 是可编程的合成引擎。
type fakeEngine struct {
	name     string
	voices   map[string]bool
	voice    string
	language string
	err      error
	delay    time.Duration
	calls    atomic.Int32
	closed   bool

	mu       sync.Mutex
	inflight int
	maxInfl  int
}

func newFakeEngine(name string, voices ...string) *fakeEngine {
	e := &fakeEngine{name: name, voices: map[string]bool{}}
	for _, v := range voices {
		e.voices[v] = true
	}
	return e
}

func (e *fakeEngine) Name() string { return e.name }

func (e *fakeEngine) SelectVoice(voice string) error {
	if !e.voices[voice] {
		return fmt.Errorf("%w: %s", ErrVoiceNotFound, voice)
	}
	e.voice = voice
	return nil
}

func (e *fakeEngine) SetLanguage(language string) { e.language = language }

func (e *fakeEngine) Synthesize(ctx context.Context, text string) ([]byte, error) {
	e.calls.Add(1)

	e.mu.Lock()
	e.inflight++
	if e.inflight > e.maxInfl {
		e.maxInfl = e.inflight
	}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.inflight--
		e.mu.Unlock()
	}()

	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	if e.err != nil {
		return nil, e.err
	}
	return []byte(e.name + "|" + e.voice + "|" + e.language + "|" + text), nil
}

func (e *fakeEngine) Close() error {
	e.closed = true
	return nil
}

var errBoom = errors.New("boom")
