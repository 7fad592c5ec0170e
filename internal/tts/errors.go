package tts

import "errors"

var (
	// ErrVoiceNotFound 表示请求的语音未安装或不被引擎识别。
	ErrVoiceNotFound = errors.New("语音不存在")
	// ErrDisposed 表示合成器已释放。
	ErrDisposed = errors.New("合成器已释放")
	// ErrNotReady 表示合成器尚未初始化。
	ErrNotReady = errors.New("合成器未初始化")
)
