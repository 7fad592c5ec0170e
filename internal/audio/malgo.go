package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/iabetor/speak/internal/logger"
)

// MalgoBackend 使用 malgo (miniaudio) 访问系统播放设备。
type MalgoBackend struct {
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	closed bool
}

// NewMalgoBackend 初始化 miniaudio 上下文。
func NewMalgoBackend() (*MalgoBackend, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("初始化播放上下文失败: %w", err)
	}
	return &MalgoBackend{ctx: ctx}, nil
}

// Devices 枚举播放设备。
func (b *MalgoBackend) Devices() ([]DeviceInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("播放上下文已关闭")
	}

	infos, err := b.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("枚举播放设备失败: %w", err)
	}
	devices := make([]DeviceInfo, 0, len(infos))
	for i, info := range infos {
		devices = append(devices, DeviceInfo{
			Index:   i,
			Name:    info.Name(),
			Default: info.IsDefault != 0,
		})
	}
	return devices, nil
}

// Open 打开指定序号的播放设备，并用一次试探性的初始化确认设备可用。
func (b *MalgoBackend) Open(index int) (Sink, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("播放上下文已关闭")
	}

	sink := &malgoSink{ctx: b.ctx.Context, index: index}
	if index != DefaultDevice {
		infos, err := b.ctx.Devices(malgo.Playback)
		if err != nil {
			return nil, fmt.Errorf("枚举播放设备失败: %w", err)
		}
		if index < 0 || index >= len(infos) {
			return nil, fmt.Errorf("设备序号 %d 超出范围 (共 %d 个设备)", index, len(infos))
		}
		id := infos[index].ID
		sink.id = &id
		sink.name = infos[index].Name()
	} else {
		sink.name = "default"
	}

	if err := sink.probe(); err != nil {
		return nil, err
	}
	logger.Infof("[audio] 已打开播放设备 #%d (%s)", index, sink.name)
	return sink, nil
}

// Close 释放 miniaudio 上下文。
func (b *MalgoBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	err := b.ctx.Uninit()
	b.ctx.Free()
	return err
}

// malgoSink 每次播放按流的格式初始化一个 malgo 设备。
type malgoSink struct {
	ctx   malgo.Context
	id    *malgo.DeviceID
	index int
	name  string

	mu      sync.Mutex
	device  *malgo.Device
	current *Stream
	closed  bool
}

func (s *malgoSink) config(sampleRate, channels int) malgo.DeviceConfig {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = uint32(channels)
	cfg.SampleRate = uint32(sampleRate)
	cfg.PeriodSizeInFrames = 1024
	cfg.Periods = 3
	if s.id != nil {
		cfg.Playback.DeviceID = s.id.Pointer()
	}
	return cfg
}

// probe 初始化并立即释放一个设备，用于尽早发现不可用或被独占的设备。
func (s *malgoSink) probe() error {
	device, err := malgo.InitDevice(s.ctx, s.config(48000, 1), malgo.DeviceCallbacks{})
	if err != nil {
		return fmt.Errorf("播放设备 #%d 不可用: %w", s.index, err)
	}
	device.Uninit()
	return nil
}

func (s *malgoSink) Play(st *Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("播放设备已关闭")
	}

	// 只有一个硬件输出：新流直接接管设备
	s.stopLocked()

	callbacks := malgo.DeviceCallbacks{
		Data: func(outputSamples, inputSamples []byte, frameCount uint32) {
			n := int(frameCount) * st.Channels * 2
			if n > len(outputSamples) {
				n = len(outputSamples)
			}
			st.Read(outputSamples[:n])
		},
	}

	cfg := s.config(st.SampleRate, st.Channels)
	// 数据耗尽后再送出一整个设备缓冲区的静音，尾音播完才算结束
	st.SetDrain(int(cfg.PeriodSizeInFrames * cfg.Periods))

	device, err := malgo.InitDevice(s.ctx, cfg, callbacks)
	if err != nil {
		return fmt.Errorf("初始化播放设备失败: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("启动播放设备失败: %w", err)
	}

	s.device = device
	s.current = st
	logger.Debugf("[audio] 设备 #%d 开始播放: %d Hz, %d 声道, %v", s.index, st.SampleRate, st.Channels, st.Duration())
	return nil
}

func (s *malgoSink) Stop(st *Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != st {
		return
	}
	s.stopLocked()
}

func (s *malgoSink) stopLocked() {
	if s.device == nil {
		return
	}
	_ = s.device.Stop()
	s.device.Uninit()
	s.device = nil
	if s.current != nil {
		s.current.Interrupt()
		s.current = nil
	}
}

func (s *malgoSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.stopLocked()
	s.closed = true
	return nil
}
