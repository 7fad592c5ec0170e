package audio

import (
	"encoding/binary"
	"math"
)

// Int16ToFloat32 将 PCM int16 样本转换为 [-1.0, 1.0] 范围的 float32。
func Int16ToFloat32(in []int16) []float32 {
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = float32(s) / math.MaxInt16
	}
	return out
}

// Float32ToInt16 将 [-1.0, 1.0] 范围的 float32 样本转换为 PCM int16，超出范围的值被钳位。
func Float32ToInt16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		out[i] = clampToInt16(s)
	}
	return out
}

func clampToInt16(s float32) int16 {
	if s > 1.0 {
		s = 1.0
	} else if s < -1.0 {
		s = -1.0
	}
	return int16(s * math.MaxInt16)
}

// BytesToInt16 将小端字节切片转换为 int16 样本，末尾不足 2 字节的部分被丢弃。
func BytesToInt16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}

// Int16ToBytes 将 int16 样本转换为小端字节切片。
func Int16ToBytes(in []int16) []byte {
	out := make([]byte, len(in)*2)
	for i, s := range in {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// BytesToFloat32 将 S16LE 字节直接转换为 float32。
func BytesToFloat32(b []byte) []float32 {
	return Int16ToFloat32(BytesToInt16(b))
}

// u8ToFloat32 转换 8 位无符号 PCM（静音点为 128）。
func u8ToFloat32(b []byte) []float32 {
	out := make([]float32, len(b))
	for i, v := range b {
		out[i] = (float32(v) - 128) / 128
	}
	return out
}

// s24ToFloat32 转换 24 位有符号小端 PCM。
func s24ToFloat32(b []byte) []float32 {
	n := len(b) / 3
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int32(b[3*i]) | int32(b[3*i+1])<<8 | int32(b[3*i+2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		out[i] = float32(v) / 0x7FFFFF
	}
	return out
}

// s32ToFloat32 转换 32 位有符号小端 PCM。
func s32ToFloat32(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32(int32(binary.LittleEndian.Uint32(b[4*i:]))) / math.MaxInt32
	}
	return out
}

// f32ToFloat32 转换 IEEE 754 32 位浮点小端 PCM。
func f32ToFloat32(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}
