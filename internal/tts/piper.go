package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/iabetor/speak/internal/audio"
	"github.com/iabetor/speak/internal/logger"
)

// piperSampleRate 是模型配置缺失时 piper 输出的采样率。
const piperSampleRate = 22050

// PiperConfig Piper 引擎配置。
type PiperConfig struct {
	Binary    string // 默认 "piper"
	ModelPath string
}

// PiperEngine 使用 piper CLI 子进程实现离线语音合成。
// 语音即模型文件路径，语言由模型决定。
type PiperEngine struct {
	bin        string
	modelPath  string
	sampleRate int
	run        runner
}

// NewPiperEngine 创建 Piper 引擎。ModelPath 非空时立即校验模型。
func NewPiperEngine(cfg PiperConfig) (*PiperEngine, error) {
	p := &PiperEngine{bin: cfg.Binary, sampleRate: piperSampleRate, run: runCommand}
	if p.bin == "" {
		p.bin = "piper"
	}
	if cfg.ModelPath != "" {
		if err := p.SelectVoice(cfg.ModelPath); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *PiperEngine) Name() string { return "piper" }

// SelectVoice 切换模型。模型旁的 <model>.json 提供采样率。
func (p *PiperEngine) SelectVoice(modelPath string) error {
	info, err := os.Stat(modelPath)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: piper 模型不存在: %s", ErrVoiceNotFound, modelPath)
	}
	p.modelPath = modelPath
	p.sampleRate = piperModelSampleRate(modelPath)
	return nil
}

func (p *PiperEngine) SetLanguage(language string) {
	logger.Debugf("[tts] piper: 语言由模型决定，忽略 %s", language)
}

// Synthesize 调用 piper 输出 signed 16-bit LE 单声道 PCM，并封装为 WAV。
func (p *PiperEngine) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if p.modelPath == "" {
		return nil, fmt.Errorf("[tts] piper: 未配置模型")
	}

	pcm, err := p.run(ctx, p.bin, []string{"--model", p.modelPath, "--output-raw"}, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("[tts] piper: %w", err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("[tts] piper: 未收到音频数据")
	}

	logger.Debugf("[tts] piper: 收到 %d 字节原始 PCM", len(pcm))
	return audio.EncodeWAV(audio.BytesToInt16(pcm), p.sampleRate, 1), nil
}

// piperModelSampleRate 读取模型配置中的采样率，依次尝试 model.onnx.json 和 model.json。
func piperModelSampleRate(modelPath string) int {
	candidates := []string{modelPath + ".json", strings.TrimSuffix(modelPath, ".onnx") + ".json"}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg struct {
			Audio struct {
				SampleRate int `json:"sample_rate"`
			} `json:"audio"`
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			logger.Warnf("[tts] piper: 解析模型配置 %s 失败: %v", path, err)
			continue
		}
		if cfg.Audio.SampleRate > 0 {
			return cfg.Audio.SampleRate
		}
	}
	return piperSampleRate
}
