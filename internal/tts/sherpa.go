package tts

import (
	"context"
	"fmt"
	"os"
	"strconv"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/iabetor/speak/internal/audio"
	"github.com/iabetor/speak/internal/logger"
)

// SherpaConfig sherpa-onnx 离线 VITS 模型配置。
type SherpaConfig struct {
	ModelPath  string
	TokensPath string
	DataDir    string // espeak-ng-data 目录，piper 转换的模型需要
	NumThreads int
	Speed      float32
}

// SherpaEngine 使用 sherpa-onnx 离线 TTS 合成，输出 WAV。
// 语音为模型内的说话人编号。
type SherpaEngine struct {
	tts   *sherpa.OfflineTts
	sid   int
	speed float32
}

// NewSherpaEngine 加载模型。模型或 tokens 文件不存在时返回错误。
func NewSherpaEngine(cfg SherpaConfig) (*SherpaEngine, error) {
	for _, path := range []string{cfg.ModelPath, cfg.TokensPath} {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("[tts] sherpa 模型文件不存在: %q", path)
		}
	}
	if cfg.NumThreads == 0 {
		cfg.NumThreads = 2
	}
	if cfg.Speed == 0 {
		cfg.Speed = 1.0
	}

	config := sherpa.OfflineTtsConfig{}
	config.Model.Vits.Model = cfg.ModelPath
	config.Model.Vits.Tokens = cfg.TokensPath
	config.Model.Vits.DataDir = cfg.DataDir
	config.Model.NumThreads = cfg.NumThreads
	config.Model.Provider = "cpu"
	config.MaxNumSentences = 1

	engine := sherpa.NewOfflineTts(&config)
	if engine == nil {
		return nil, fmt.Errorf("[tts] sherpa 加载模型失败: %s", cfg.ModelPath)
	}

	logger.Debugf("[tts] sherpa 模型已加载: %s", cfg.ModelPath)
	return &SherpaEngine{tts: engine, speed: cfg.Speed}, nil
}

func (e *SherpaEngine) Name() string { return "sherpa" }

func (e *SherpaEngine) SelectVoice(voice string) error {
	sid, err := parseSpeakerID(voice)
	if err != nil {
		return err
	}
	if err := checkSpeakerID(sid, e.tts.NumSpeakers()); err != nil {
		return err
	}
	e.sid = sid
	return nil
}

// checkSpeakerID 检查说话人编号是否在模型范围内。单说话人模型只接受 0。
func checkSpeakerID(sid, numSpeakers int) error {
	if numSpeakers < 1 {
		numSpeakers = 1
	}
	if sid >= numSpeakers {
		return fmt.Errorf("%w: sherpa 模型只有 %d 个说话人，编号 %d 超出范围", ErrVoiceNotFound, numSpeakers, sid)
	}
	return nil
}

func parseSpeakerID(voice string) (int, error) {
	sid, err := strconv.Atoi(voice)
	if err != nil || sid < 0 {
		return 0, fmt.Errorf("%w: sherpa 说话人编号必须是非负整数 %q", ErrVoiceNotFound, voice)
	}
	return sid, nil
}

func (e *SherpaEngine) SetLanguage(language string) {
	logger.Debugf("[tts] sherpa: 语言由模型决定，忽略 %s", language)
}

func (e *SherpaEngine) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	generated := e.tts.Generate(text, e.sid, e.speed)
	if generated == nil || len(generated.Samples) == 0 {
		return nil, fmt.Errorf("[tts] sherpa: 未生成音频")
	}
	return audio.EncodeWAV(audio.Float32ToInt16(generated.Samples), generated.SampleRate, 1), nil
}

// Close 释放模型。
func (e *SherpaEngine) Close() error {
	if e.tts != nil {
		sherpa.DeleteOfflineTts(e.tts)
		e.tts = nil
	}
	return nil
}
