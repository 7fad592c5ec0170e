package audio

// DefaultDevice 表示使用系统默认播放设备。
const DefaultDevice = -1

// DeviceInfo 描述一个播放设备。
type DeviceInfo struct {
	Index   int
	Name    string
	Default bool
}

// Backend 负责枚举播放设备并打开指定设备。
type Backend interface {
	// Devices 返回可用的播放设备，Index 与 Open 的参数一致。
	Devices() ([]DeviceInfo, error)
	// Open 打开第 index 个播放设备，index 为 DefaultDevice 时使用系统默认设备。
	Open(index int) (Sink, error)
	// Close 释放后端资源。
	Close() error
}

// Sink 是一个已打开的播放设备，同一时刻只播放一个流。
type Sink interface {
	// Play 开始播放 s 并立即返回。正在播放的流会被接管并打断。
	Play(s *Stream) error
	// Stop 停止播放 s；如果 s 已不是当前流则什么也不做。
	Stop(s *Stream)
	// Close 停止播放并释放设备。
	Close() error
}
