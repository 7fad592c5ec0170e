package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/iabetor/speak/internal/audio"
	"github.com/iabetor/speak/internal/logger"
)

// saySampleRate 是 afconvert 转换后的采样率。
const saySampleRate = 22050

// sayVoiceLine 匹配 `say -v ?` 的一行，如 "Thomas              fr_FR    # Bonjour..."。
var sayVoiceLine = regexp.MustCompile(`^(.+?)\s+([a-z]{2,3}[_-][A-Za-z0-9_-]+)\s+#`)

type sayVoice struct {
	Name   string
	Locale string
}

// SayEngine 使用 macOS 内置 say 命令实现语音合成。
// 仅在 macOS 上可用。
type SayEngine struct {
	voice    string // macOS 语音名称，如 "Thomas"
	explicit bool   // voice 是否由 SelectVoice 指定
	voices   []sayVoice
	run      runner
}

// NewSayEngine 创建 macOS say TTS 引擎。
// voice 为空时使用系统默认语音。
func NewSayEngine(voice string) *SayEngine {
	return &SayEngine{voice: voice, explicit: voice != "", run: runCommand}
}

func (s *SayEngine) Name() string { return "say" }

func (s *SayEngine) SelectVoice(voice string) error {
	voices, err := s.listVoices(context.Background())
	if err != nil {
		return err
	}
	for _, v := range voices {
		if strings.EqualFold(v.Name, voice) {
			s.voice = v.Name
			s.explicit = true
			return nil
		}
	}
	return fmt.Errorf("%w: say 未安装 %q", ErrVoiceNotFound, voice)
}

// SetLanguage 未显式选择语音时，选用该语言的第一个已安装语音。
func (s *SayEngine) SetLanguage(language string) {
	if s.explicit || language == "" {
		return
	}
	voices, err := s.listVoices(context.Background())
	if err != nil {
		logger.Warnf("[tts] say: %v", err)
		return
	}
	want := strings.ReplaceAll(language, "-", "_")
	for _, v := range voices {
		if strings.EqualFold(v.Locale, want) {
			s.voice = v.Name
			return
		}
	}
	logger.Warnf("[tts] say: 未找到语言 %s 的语音，使用系统默认语音", language)
}

// Synthesize 先用 say 输出 AIFF，再用 afconvert 转为 16-bit 单声道 WAV。
func (s *SayEngine) Synthesize(ctx context.Context, text string) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "speak-say-*")
	if err != nil {
		return nil, fmt.Errorf("[tts] say: 创建临时目录失败: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	aiffPath := filepath.Join(tmpDir, "out.aiff")
	wavPath := filepath.Join(tmpDir, "out.wav")

	if _, err := s.run(ctx, "say", s.sayArgs(aiffPath), []byte(text)); err != nil {
		return nil, fmt.Errorf("[tts] say: %w", err)
	}
	if _, err := s.run(ctx, "afconvert", convertArgs(aiffPath, wavPath), nil); err != nil {
		return nil, fmt.Errorf("[tts] afconvert: %w", err)
	}

	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("[tts] say: 读取输出文件失败: %w", err)
	}
	if !audio.IsWAV(data) {
		return nil, fmt.Errorf("[tts] say: 输出不是 WAV")
	}
	return data, nil
}

func (s *SayEngine) sayArgs(out string) []string {
	args := []string{"-o", out}
	if s.voice != "" {
		args = append(args, "-v", s.voice)
	}
	return append(args, "-f", "-")
}

func convertArgs(in, out string) []string {
	return []string{"-f", "WAVE", "-d", fmt.Sprintf("LEI16@%d", saySampleRate), "-c", "1", in, out}
}

func (s *SayEngine) listVoices(ctx context.Context) ([]sayVoice, error) {
	if s.voices != nil {
		return s.voices, nil
	}
	out, err := s.run(ctx, "say", []string{"-v", "?"}, nil)
	if err != nil {
		return nil, fmt.Errorf("[tts] say 列出语音失败: %w", err)
	}
	s.voices = parseSayVoices(string(out))
	return s.voices, nil
}

func parseSayVoices(out string) []sayVoice {
	voices := []sayVoice{}
	for _, line := range strings.Split(out, "\n") {
		m := sayVoiceLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		voices = append(voices, sayVoice{Name: strings.TrimSpace(m[1]), Locale: m[2]})
	}
	return voices
}
