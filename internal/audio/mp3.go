package audio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// mp3Channels 是 go-mp3 解码输出的固定声道数（S16LE 立体声）。
const mp3Channels = 2

// DecodeMP3 使用 go-mp3 将压缩音频完整解码为 PCM 流。
func DecodeMP3(r io.Reader) (*Stream, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("创建 MP3 解码器失败: %w", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("读取 MP3 数据失败: %w", err)
	}

	// 截掉不完整的尾部帧
	const bytesPerFrame = mp3Channels * 2
	pcm = pcm[:len(pcm)/bytesPerFrame*bytesPerFrame]

	return NewStream(BytesToFloat32(pcm), decoder.SampleRate(), mp3Channels), nil
}

// Decode 根据数据头判断编码：RIFF/WAVE 走 WAV 解析，其余按 MP3 解码。
func Decode(data []byte) (*Stream, error) {
	if IsWAV(data) {
		return DecodeWAV(data)
	}
	s, err := DecodeMP3(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return s, nil
}
