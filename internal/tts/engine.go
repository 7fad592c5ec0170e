package tts

import "context"

// Engine 定义语音合成后端接口。
// 引擎不是并发安全的，由 Synthesizer 串行调用。
type Engine interface {
	// Name 返回引擎名称，用于日志和缓存键。
	Name() string
	// SelectVoice 选择语音。语音未安装时返回包装了 ErrVoiceNotFound 的错误，
	// 引擎继续使用之前的语音。
	SelectVoice(voice string) error
	// SetLanguage 设置合成语言（BCP 47，如 "fr-FR"）。
	SetLanguage(language string)
	// Synthesize 将文本转换为编码后的音频（WAV 或 MP3）。
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
