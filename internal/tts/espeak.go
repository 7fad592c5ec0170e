package tts

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/iabetor/speak/internal/audio"
	"github.com/iabetor/speak/internal/logger"
)

// EspeakConfig espeak-ng 引擎配置。
type EspeakConfig struct {
	Binary string // 为空时依次查找 espeak-ng、espeak
	Speed  int    // 语速（词/分钟），0 使用 espeak 默认值
}

// espeakVoice 是 `espeak --voices` 输出中的一行。
type espeakVoice struct {
	Language string
	Name     string
	File     string
}

// EspeakEngine 使用 espeak-ng 子进程实现离线语音合成，输出 WAV。
type EspeakEngine struct {
	bin      string
	speed    int
	voice    string // 显式选择的语音（语言代码形式）
	language string
	voices   []espeakVoice
	run      runner
}

// NewEspeakEngine 创建 espeak 引擎。
func NewEspeakEngine(cfg EspeakConfig) (*EspeakEngine, error) {
	bin := cfg.Binary
	if bin == "" {
		var err error
		bin, err = lookBinary("espeak-ng", "espeak")
		if err != nil {
			return nil, fmt.Errorf("[tts] espeak: %w", err)
		}
	}
	return &EspeakEngine{bin: bin, speed: cfg.Speed, run: runCommand}, nil
}

func (e *EspeakEngine) Name() string { return "espeak" }

// SelectVoice 按语言代码、语音名或语音文件名匹配已安装的语音。
func (e *EspeakEngine) SelectVoice(voice string) error {
	voices, err := e.listVoices(context.Background())
	if err != nil {
		return err
	}
	for _, v := range voices {
		if strings.EqualFold(v.Language, voice) ||
			strings.EqualFold(v.Name, voice) ||
			strings.EqualFold(v.File, voice) {
			e.voice = v.Language
			return nil
		}
	}
	return fmt.Errorf("%w: espeak 未安装 %q", ErrVoiceNotFound, voice)
}

// SetLanguage 设置合成语言，未显式选择语音时生效。
func (e *EspeakEngine) SetLanguage(language string) {
	e.language = strings.ToLower(language)
}

// Synthesize 通过 stdin 传入文本，从 stdout 读取 WAV。
func (e *EspeakEngine) Synthesize(ctx context.Context, text string) ([]byte, error) {
	args := e.args(e.resolveVoice(ctx))
	logger.Debugf("[tts] espeak: %s %s", e.bin, strings.Join(args, " "))

	out, err := e.run(ctx, e.bin, args, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("[tts] espeak: %w", err)
	}
	if !audio.IsWAV(out) {
		return nil, fmt.Errorf("[tts] espeak: 输出不是 WAV (%d 字节)", len(out))
	}
	return out, nil
}

func (e *EspeakEngine) args(voice string) []string {
	args := []string{"--stdout", "--stdin"}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	if e.speed > 0 {
		args = append(args, "-s", strconv.Itoa(e.speed))
	}
	return args
}

// resolveVoice 决定 -v 参数：显式语音优先；否则用语言代码，
// 完整代码（fr-fr）未安装时退回主语言（fr）。
func (e *EspeakEngine) resolveVoice(ctx context.Context) string {
	if e.voice != "" {
		return e.voice
	}
	if e.language == "" {
		return ""
	}
	voices, err := e.listVoices(ctx)
	if err != nil {
		return e.language
	}
	primary, _, _ := strings.Cut(e.language, "-")
	fallback := ""
	for _, v := range voices {
		switch strings.ToLower(v.Language) {
		case e.language:
			return v.Language
		case primary:
			fallback = v.Language
		}
	}
	if fallback != "" {
		return fallback
	}
	logger.Warnf("[tts] espeak: 未找到语言 %s 的语音，使用默认语音", e.language)
	return ""
}

func (e *EspeakEngine) listVoices(ctx context.Context) ([]espeakVoice, error) {
	if e.voices != nil {
		return e.voices, nil
	}
	out, err := e.run(ctx, e.bin, []string{"--voices"}, nil)
	if err != nil {
		return nil, fmt.Errorf("[tts] espeak 列出语音失败: %w", err)
	}
	e.voices = parseEspeakVoices(string(out))
	return e.voices, nil
}

// parseEspeakVoices 解析 `espeak --voices` 的表格输出：
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  fr-fr           --/M      French_(France)    roa/fr
func parseEspeakVoices(out string) []espeakVoice {
	voices := []espeakVoice{}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || fields[0] == "Pty" {
			continue
		}
		voices = append(voices, espeakVoice{
			Language: fields[1],
			Name:     fields[3],
			File:     fields[4],
		})
	}
	return voices
}
