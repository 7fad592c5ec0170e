package audio

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"
)

// Stream 是解码后的归一化 PCM 音频。
// Samples 按声道交错存储，取值范围 [-1.0, 1.0]。
// 播放游标以帧为单位原子更新，设备回调线程与轮询线程可以同时读取。
type Stream struct {
	Samples    []float32
	SampleRate int
	Channels   int

	pos      atomic.Int64 // 已送入设备的帧数
	drain    atomic.Int64 // 数据耗尽后还需送出的静音帧数
	drained  atomic.Int64
	done     chan struct{}
	doneOnce sync.Once
}

// NewStream 创建一个播放游标位于起点的音频流。
func NewStream(samples []float32, sampleRate, channels int) *Stream {
	if channels <= 0 {
		channels = 1
	}
	return &Stream{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
		done:       make(chan struct{}),
	}
}

// Frames 返回总帧数。
func (s *Stream) Frames() int {
	return len(s.Samples) / s.Channels
}

// Duration 返回音频总时长。
func (s *Stream) Duration() time.Duration {
	return framesToDuration(s.Frames(), s.SampleRate)
}

// Position 返回当前播放位置。
func (s *Stream) Position() time.Duration {
	return framesToDuration(int(s.pos.Load()), s.SampleRate)
}

// Done 在所有样本播放完毕、或流被打断后关闭。
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Interrupt 标记流已结束，不再等待剩余样本。
func (s *Stream) Interrupt() {
	s.doneOnce.Do(func() { close(s.done) })
}

// SetDrain 设置数据耗尽后 Done 关闭前需要额外送出的静音帧数，
// 通常为设备缓冲区的帧数，保证缓冲中的尾音播完。
func (s *Stream) SetDrain(frames int) {
	s.drain.Store(int64(frames))
}

// Read 以 S16LE 格式将下一段样本写入 out，返回写入的有效字节数。
// 数据不足时剩余部分填充静音。最后一帧送出后，下一次回调起开始计算排空的静音帧，
// 达到 SetDrain 设定的帧数后 Done 关闭。
// 由设备回调线程调用，同一时刻只能有一个读者。
func (s *Stream) Read(out []byte) int {
	frameBytes := s.Channels * 2
	total := s.Frames()
	start := int(s.pos.Load())

	frames := len(out) / frameBytes
	if start+frames > total {
		frames = total - start
	}
	if frames < 0 {
		frames = 0
	}

	base := start * s.Channels
	n := frames * s.Channels
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(clampToInt16(s.Samples[base+i])))
	}
	written := frames * frameBytes
	clear(out[written:])

	if frames > 0 {
		s.pos.Add(int64(frames))
		return written
	}
	if s.drained.Add(int64(len(out)/frameBytes)) >= s.drain.Load() {
		s.Interrupt()
	}
	return written
}

// Release 释放样本数据。调用前设备必须已停止读取。
func (s *Stream) Release() {
	s.Interrupt()
	s.Samples = nil
}

func framesToDuration(frames, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}
