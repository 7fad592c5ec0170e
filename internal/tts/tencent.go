package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	tts "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tts/v20190823"

	"github.com/iabetor/speak/internal/audio"
	"github.com/iabetor/speak/internal/logger"
)

// 腾讯云 TTS 主语言
const (
	tencentLangChinese int64 = 1
	tencentLangEnglish int64 = 2
)

// TencentConfig 腾讯云 TTS 配置。
type TencentConfig struct {
	SecretID   string
	SecretKey  string
	VoiceType  int64
	Region     string
	Speed      float64 // -2 到 6，0 为正常语速
	SampleRate int     // 8000 / 16000 / 24000
}

// TencentEngine 使用腾讯云 TTS 实现语音合成，请求 WAV 编码。
type TencentEngine struct {
	client     *tts.Client
	voiceType  int64
	language   int64
	speed      float64
	sampleRate int
}

// NewTencentEngine 创建腾讯云 TTS 引擎。
func NewTencentEngine(cfg TencentConfig) (*TencentEngine, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("[tts] 腾讯云 TTS 需要 SecretID 和 SecretKey")
	}

	if cfg.VoiceType == 0 {
		cfg.VoiceType = 1001 // 默认音色：智瑜（女声）
	}
	if cfg.Region == "" {
		cfg.Region = "ap-guangzhou"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}

	credential := common.NewCredential(cfg.SecretID, cfg.SecretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = "tts.tencentcloudapi.com"

	client, err := tts.NewClient(credential, cfg.Region, cpf)
	if err != nil {
		return nil, fmt.Errorf("[tts] 创建腾讯云 TTS 客户端失败: %w", err)
	}

	logger.Debugf("[tts] 腾讯云 TTS 引擎已初始化 (voice=%d, region=%s)", cfg.VoiceType, cfg.Region)

	return &TencentEngine{
		client:     client,
		voiceType:  cfg.VoiceType,
		language:   tencentLangChinese,
		speed:      cfg.Speed,
		sampleRate: cfg.SampleRate,
	}, nil
}

func (e *TencentEngine) Name() string { return "tencent" }

// SelectVoice 语音为数字音色 ID，如 "1001"。
func (e *TencentEngine) SelectVoice(voice string) error {
	id, err := strconv.ParseInt(voice, 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("%w: 腾讯云音色必须是正整数 %q", ErrVoiceNotFound, voice)
	}
	e.voiceType = id
	return nil
}

// SetLanguage 中文走主语言 1，其余语言按英文处理。
func (e *TencentEngine) SetLanguage(language string) {
	e.language = tencentPrimaryLanguage(language)
}

func tencentPrimaryLanguage(language string) int64 {
	if strings.HasPrefix(strings.ToLower(language), "zh") {
		return tencentLangChinese
	}
	return tencentLangEnglish
}

func (e *TencentEngine) buildRequest(text string) *tts.TextToVoiceRequest {
	request := tts.NewTextToVoiceRequest()
	request.Text = common.StringPtr(text)
	request.SessionId = common.StringPtr(uuid.NewString())
	request.VoiceType = common.Int64Ptr(e.voiceType)
	request.PrimaryLanguage = common.Int64Ptr(e.language)
	request.Codec = common.StringPtr("wav")
	request.SampleRate = common.Uint64Ptr(uint64(e.sampleRate))
	request.Speed = common.Float64Ptr(e.speed)
	request.Volume = common.Float64Ptr(5.0)
	return request
}

// Synthesize 调用 TextToVoice，返回 WAV 数据。
func (e *TencentEngine) Synthesize(ctx context.Context, text string) ([]byte, error) {
	logger.Debugf("[tts] 腾讯云 TTS: 正在合成 %d 个字符，音色=%d", len([]rune(text)), e.voiceType)

	response, err := e.client.TextToVoiceWithContext(ctx, e.buildRequest(text))
	if err != nil {
		return nil, fmt.Errorf("[tts] 腾讯云 TTS 合成失败: %w", err)
	}
	if response.Response == nil || response.Response.Audio == nil {
		return nil, fmt.Errorf("[tts] 腾讯云 TTS: 未返回音频数据")
	}

	data, err := base64.StdEncoding.DecodeString(*response.Response.Audio)
	if err != nil {
		return nil, fmt.Errorf("[tts] Base64 解码失败: %w", err)
	}
	logger.Debugf("[tts] 腾讯云 TTS: 收到 %d 字节音频", len(data))

	// 个别音色返回裸 PCM，补上 WAV 头
	if !audio.IsWAV(data) {
		data = audio.EncodeWAV(audio.BytesToInt16(data), e.sampleRate, 1)
	}
	return data, nil
}
