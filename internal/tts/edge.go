package tts

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"

	"github.com/iabetor/speak/internal/logger"
)

// edgeVoicePattern 匹配 Edge 神经语音名，如 fr-FR-DeniseNeural、zh-CN-shaanxi-XiaoniNeural。
var edgeVoicePattern = regexp.MustCompile(`^[a-z]{2,3}-[A-Z]{2}(-[A-Za-z]+)?-[A-Za-z]+Neural$`)

// edgeDefaultVoices 是各语言的默认语音。
var edgeDefaultVoices = map[string]string{
	"fr-fr": "fr-FR-DeniseNeural",
	"fr-ca": "fr-CA-SylvieNeural",
	"en-us": "en-US-AriaNeural",
	"en-gb": "en-GB-SoniaNeural",
	"de-de": "de-DE-KatjaNeural",
	"es-es": "es-ES-ElviraNeural",
	"it-it": "it-IT-ElsaNeural",
	"ja-jp": "ja-JP-NanamiNeural",
	"zh-cn": "zh-CN-XiaoxiaoNeural",
	"zh-tw": "zh-TW-HsiaoChenNeural",
}

// EdgeEngine 使用微软 Edge TTS 实现语音合成，返回 MP3 音频。
type EdgeEngine struct {
	voice    string
	explicit bool
}

// NewEdgeEngine 创建 Edge TTS 引擎。voice 为空时按语言选择默认语音。
func NewEdgeEngine(voice string) *EdgeEngine {
	if voice == "" {
		return &EdgeEngine{voice: edgeDefaultVoices["fr-fr"]}
	}
	return &EdgeEngine{voice: voice, explicit: true}
}

func (e *EdgeEngine) Name() string { return "edge" }

// SelectVoice 只校验语音名格式，是否存在由服务端决定。
func (e *EdgeEngine) SelectVoice(voice string) error {
	if !edgeVoicePattern.MatchString(voice) {
		return fmt.Errorf("%w: edge 语音名格式错误 %q", ErrVoiceNotFound, voice)
	}
	e.voice = voice
	e.explicit = true
	return nil
}

// SetLanguage 未显式选择语音时切换到该语言的默认语音。
func (e *EdgeEngine) SetLanguage(language string) {
	if e.explicit {
		return
	}
	if v, ok := edgeDefaultVoices[strings.ToLower(language)]; ok {
		e.voice = v
		return
	}
	logger.Warnf("[tts] edge: 语言 %s 没有默认语音，继续使用 %s", language, e.voice)
}

// Synthesize 通过 edge-tts-go 的 Stream() 收集 MP3 音频块。
func (e *EdgeEngine) Synthesize(ctx context.Context, text string) ([]byte, error) {
	logger.Debugf("[tts] edge-tts: 正在合成 %d 个字符，语音=%s", len([]rune(text)), e.voice)

	comm, err := edge.NewCommunicate(text, edge.WithVoice(e.voice))
	if err != nil {
		return nil, fmt.Errorf("[tts] edge-tts 创建实例失败: %w", err)
	}

	ch, err := comm.Stream()
	if err != nil {
		return nil, fmt.Errorf("[tts] edge-tts 开始流式合成失败: %w", err)
	}

	return collectEdgeAudio(ctx, ch)
}

// collectEdgeAudio 拼接通道中 type=="audio" 条目的 MP3 数据。
// ctx 取消后立即返回，并在后台继续读空通道，避免发送方永远阻塞。
func collectEdgeAudio(ctx context.Context, ch <-chan map[string]interface{}) ([]byte, error) {
	var mp3Buf bytes.Buffer
	for msg := range ch {
		if ctx.Err() != nil {
			go func() {
				for range ch {
				}
			}()
			return nil, ctx.Err()
		}
		if msgType, ok := msg["type"].(string); ok && msgType == "audio" {
			if data, ok := msg["data"].([]byte); ok {
				mp3Buf.Write(data)
			}
		}
	}

	if mp3Buf.Len() == 0 {
		return nil, fmt.Errorf("[tts] edge-tts: 未收到音频数据")
	}
	logger.Debugf("[tts] edge-tts: 收到 %d 字节 MP3 数据", mp3Buf.Len())
	return mp3Buf.Bytes(), nil
}
