package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrUnsupportedFormat 表示无法识别或不支持的音频编码。
var ErrUnsupportedFormat = errors.New("不支持的音频格式")

// WAV 格式码
const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE
)

// wavFormat 是 fmt 块中与解码相关的字段。
type wavFormat struct {
	code          uint16
	channels      int
	sampleRate    int
	bitsPerSample int
}

// IsWAV 判断数据是否以 RIFF/WAVE 头开始。
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// DecodeWAV 解析内存中的 WAV 数据并转换为归一化 PCM 流。
// 支持 8/16/24/32 位整数 PCM 和 32 位浮点；其它编码返回 ErrUnsupportedFormat。
// 流式写出的 WAV（如 espeak --stdout）在 data 块长度字段中填写占位值，
// 此时以实际剩余字节为准。
func DecodeWAV(data []byte) (*Stream, error) {
	if !IsWAV(data) {
		return nil, fmt.Errorf("%w: 缺少 RIFF/WAVE 头", ErrUnsupportedFormat)
	}

	var (
		format  *wavFormat
		payload []byte
	)
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		end := body + size
		if size < 0 || end > len(data) {
			end = len(data)
		}

		switch id {
		case "fmt ":
			f, err := parseFmtChunk(data[body:end])
			if err != nil {
				return nil, err
			}
			format = f
		case "data":
			payload = data[body:end]
		}
		if payload != nil && format != nil {
			break
		}

		// 块按 2 字节对齐
		offset = end + (end-body)%2
	}

	if format == nil {
		return nil, fmt.Errorf("%w: 未找到 fmt 块", ErrUnsupportedFormat)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: 未找到 data 块", ErrUnsupportedFormat)
	}

	samples, err := decodeSamples(format, payload)
	if err != nil {
		return nil, err
	}
	return NewStream(samples, format.sampleRate, format.channels), nil
}

func parseFmtChunk(b []byte) (*wavFormat, error) {
	if len(b) < 16 {
		return nil, fmt.Errorf("%w: fmt 块过短 (%d 字节)", ErrUnsupportedFormat, len(b))
	}
	f := &wavFormat{
		code:          binary.LittleEndian.Uint16(b[0:2]),
		channels:      int(binary.LittleEndian.Uint16(b[2:4])),
		sampleRate:    int(binary.LittleEndian.Uint32(b[4:8])),
		bitsPerSample: int(binary.LittleEndian.Uint16(b[14:16])),
	}
	// WAVE_FORMAT_EXTENSIBLE：真实格式码位于子格式 GUID 的前两个字节
	if f.code == wavFormatExtensible && len(b) >= 26 {
		f.code = binary.LittleEndian.Uint16(b[24:26])
	}
	if f.channels <= 0 || f.sampleRate <= 0 {
		return nil, fmt.Errorf("%w: 声道数 %d, 采样率 %d", ErrUnsupportedFormat, f.channels, f.sampleRate)
	}
	return f, nil
}

func decodeSamples(f *wavFormat, payload []byte) ([]float32, error) {
	switch {
	case f.code == wavFormatPCM && f.bitsPerSample == 8:
		return u8ToFloat32(payload), nil
	case f.code == wavFormatPCM && f.bitsPerSample == 16:
		return BytesToFloat32(payload), nil
	case f.code == wavFormatPCM && f.bitsPerSample == 24:
		return s24ToFloat32(payload), nil
	case f.code == wavFormatPCM && f.bitsPerSample == 32:
		return s32ToFloat32(payload), nil
	case f.code == wavFormatIEEEFloat && f.bitsPerSample == 32:
		return f32ToFloat32(payload), nil
	}
	return nil, fmt.Errorf("%w: 格式码 %d, 位深 %d", ErrUnsupportedFormat, f.code, f.bitsPerSample)
}

// EncodeWAV 将 int16 PCM 封装为标准 44 字节头的 WAV 数据。
func EncodeWAV(samples []int16, sampleRate, channels int) []byte {
	dataSize := len(samples) * 2
	var buf bytes.Buffer
	buf.Grow(44 + dataSize)

	buf.WriteString("RIFF")
	writeLE(&buf, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	writeLE(&buf, uint32(16))
	writeLE(&buf, uint16(wavFormatPCM))
	writeLE(&buf, uint16(channels))
	writeLE(&buf, uint32(sampleRate))
	writeLE(&buf, uint32(sampleRate*channels*2)) // byte rate
	writeLE(&buf, uint16(channels*2))            // block align
	writeLE(&buf, uint16(16))

	buf.WriteString("data")
	writeLE(&buf, uint32(dataSize))
	buf.Write(Int16ToBytes(samples))
	return buf.Bytes()
}

func writeLE(w io.Writer, v any) {
	_ = binary.Write(w, binary.LittleEndian, v)
}
