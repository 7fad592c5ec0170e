package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/iabetor/speak/internal/logger"
)

// Synthesizer 包装一个 Engine，串行化所有合成调用并管理生命周期。
type Synthesizer struct {
	mu       sync.Mutex
	engine   Engine
	state    *stateMachine
	voice    string
	language string
}

// NewSynthesizer 创建合成器，需要调用 Init 后才能使用。
func NewSynthesizer(engine Engine) *Synthesizer {
	return &Synthesizer{
		engine: engine,
		state:  newStateMachine(),
	}
}

// State 返回当前生命周期状态。
func (s *Synthesizer) State() AdapterState {
	return s.state.Current()
}

// Engine 返回底层引擎。
func (s *Synthesizer) Engine() Engine {
	return s.engine
}

// Init 设置默认语言和语音，进入 Ready 状态。
// 语音选择失败时记录日志并返回错误，但合成器仍然就绪，继续使用引擎默认语音。
func (s *Synthesizer) Init(voice, language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Current() == StateDisposed {
		return ErrDisposed
	}

	if language != "" {
		s.engine.SetLanguage(language)
		s.language = language
	}

	var voiceErr error
	if voice != "" {
		if err := s.engine.SelectVoice(voice); err != nil {
			logger.Warnf("[tts] %s: 选择语音 %q 失败，使用默认语音: %v", s.engine.Name(), voice, err)
			voiceErr = wrapVoiceErr(voice, err)
		} else {
			s.voice = voice
		}
	}

	s.state.Transition(StateReady)
	logger.Debugf("[tts] 合成器就绪: 引擎=%s 语音=%q 语言=%q", s.engine.Name(), s.voice, s.language)
	return voiceErr
}

// Synthesize 将文本合成为编码后的音频。
// voice 和 language 非空时覆盖当前设置，并作为后续调用的新默认值。
//
// 文本为空、语音不存在或引擎失败时记录日志并返回 (nil, nil)，
// 调用方把空缓冲区交给播放器即为空操作。合成器未就绪或已释放时返回错误。
func (s *Synthesizer) Synthesize(ctx context.Context, text, voice, language string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		logger.Info("[tts] no text")
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state.Current() {
	case StateDisposed:
		return nil, ErrDisposed
	case StateUninitialized:
		return nil, ErrNotReady
	}

	if language != "" && language != s.language {
		s.engine.SetLanguage(language)
		s.language = language
	}
	if voice != "" && voice != s.voice {
		if err := s.engine.SelectVoice(voice); err != nil {
			logger.Errorf("[tts] %s: %v", s.engine.Name(), wrapVoiceErr(voice, err))
			return nil, nil
		}
		s.voice = voice
	}

	s.state.Transition(StateSynthesizing)
	defer s.state.Transition(StateReady)

	logger.Debugf("[tts] %s: 正在合成 %d 个字符", s.engine.Name(), len([]rune(text)))
	data, err := s.engine.Synthesize(ctx, text)
	if err != nil {
		logger.Errorf("[tts] %s 合成失败: %v", s.engine.Name(), err)
		return nil, nil
	}
	if len(data) == 0 {
		logger.Warnf("[tts] %s: 未收到音频数据", s.engine.Name())
		return nil, nil
	}
	logger.Debugf("[tts] %s: 合成得到 %d 字节音频", s.engine.Name(), len(data))
	return data, nil
}

// Dispose 释放引擎资源。重复调用是安全的。
func (s *Synthesizer) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Current() == StateDisposed {
		return nil
	}
	s.state.Transition(StateDisposed)

	if c, ok := s.engine.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("释放 %s 引擎失败: %w", s.engine.Name(), err)
		}
	}
	return nil
}

func wrapVoiceErr(voice string, err error) error {
	if errors.Is(err, ErrVoiceNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrVoiceNotFound, voice, err)
}
