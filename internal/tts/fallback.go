package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/iabetor/speak/internal/logger"
)

// FallbackEngine 多层兜底合成引擎。
// 按优先级依次尝试各引擎，第一个成功的结果生效。
// 失败的引擎在恢复间隔内被跳过，最后一个引擎始终会被尝试。
type FallbackEngine struct {
	engines []Engine
	mu      sync.Mutex
	now     func() time.Time

	failedAt         map[int]time.Time // 引擎失败时间
	recoveryInterval time.Duration
}

// NewFallbackEngine 创建兜底引擎。recoveryInterval 为 0 时默认 5 分钟。
func NewFallbackEngine(engines []Engine, recoveryInterval time.Duration) (*FallbackEngine, error) {
	if len(engines) == 0 {
		return nil, fmt.Errorf("[tts] FallbackEngine 至少需要一个引擎")
	}
	if recoveryInterval == 0 {
		recoveryInterval = 5 * time.Minute
	}
	return &FallbackEngine{
		engines:          engines,
		now:              time.Now,
		failedAt:         make(map[int]time.Time),
		recoveryInterval: recoveryInterval,
	}, nil
}

// Name 返回形如 "fallback(edge,espeak)" 的名称。
func (f *FallbackEngine) Name() string {
	names := make([]string, len(f.engines))
	for i, e := range f.engines {
		names[i] = e.Name()
	}
	return "fallback(" + strings.Join(names, ",") + ")"
}

// SelectVoice 把语音分发给所有引擎，至少一个接受即成功。
// 不认识该语音的引擎继续使用自己的默认语音。
func (f *FallbackEngine) SelectVoice(voice string) error {
	var errs []error
	for _, e := range f.engines {
		if err := e.SelectVoice(voice); err != nil {
			logger.Debugf("[tts] fallback: %s 不支持语音 %q: %v", e.Name(), voice, err)
			errs = append(errs, err)
		}
	}
	if len(errs) == len(f.engines) {
		return fmt.Errorf("%w: %v", ErrVoiceNotFound, errors.Join(errs...))
	}
	return nil
}

func (f *FallbackEngine) SetLanguage(language string) {
	for _, e := range f.engines {
		e.SetLanguage(language)
	}
}

func (f *FallbackEngine) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var errs []error
	last := len(f.engines) - 1
	for i, e := range f.engines {
		if i != last && f.coolingDown(i) {
			continue
		}
		data, err := e.Synthesize(ctx, text)
		if err == nil && len(data) > 0 {
			f.markRecovered(i)
			return data, nil
		}
		if err == nil {
			err = fmt.Errorf("%s: 未收到音频数据", e.Name())
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warnf("[tts] fallback: %s 合成失败，尝试下一个引擎: %v", e.Name(), err)
		f.markFailed(i)
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("[tts] 所有引擎均失败: %w", errors.Join(errs...))
}

// Close 释放所有实现了 io.Closer 的引擎。
func (f *FallbackEngine) Close() error {
	var errs []error
	for _, e := range f.engines {
		if c, ok := e.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f *FallbackEngine) coolingDown(i int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.failedAt[i]
	return ok && f.now().Sub(at) < f.recoveryInterval
}

func (f *FallbackEngine) markFailed(i int) {
	f.mu.Lock()
	f.failedAt[i] = f.now()
	f.mu.Unlock()
}

func (f *FallbackEngine) markRecovered(i int) {
	f.mu.Lock()
	if _, ok := f.failedAt[i]; ok {
		delete(f.failedAt, i)
		logger.Infof("[tts] fallback: %s 已恢复", f.engines[i].Name())
	}
	f.mu.Unlock()
}
