package speaker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/iabetor/speak/internal/audio"
	"github.com/iabetor/speak/internal/logger"
)

// PrimaryID 是当前主语音输出的保留标识。
const PrimaryID = "speaking"

var (
	// ErrDeviceUnavailable 表示播放设备序号无效或设备无法打开。
	ErrDeviceUnavailable = errors.New("播放设备不可用")
	// ErrFileNotFound 表示待播放的文件不存在。
	ErrFileNotFound = errors.New("音频文件不存在")
)

// State 记录一次播放请求的状态。
type State struct {
	ID        string
	Token     string // 每次播放唯一，用于区分同一 ID 下被取代的旧流
	StartedAt time.Time
	Timeout   time.Duration
	Playing   bool

	stopped bool // 已被 Stop 或同 ID 的新请求取代，尚未开始的播放直接放弃
}

// DeviceConfig 是 Initialize 时捕获的设备配置快照。
type DeviceConfig struct {
	DeviceIndex int
	Volume      float64 // 0-100
	DelayMs     float64
	Timeout     time.Duration
}

// Options 控制播放循环的时间参数和异步并发度。
type Options struct {
	// StopCooldown 是 stop-all 之后拒绝新播放的时间窗口。
	StopCooldown time.Duration
	// PollInterval 是播放循环检查超时和停止请求的间隔。
	PollInterval time.Duration
	// Workers 是同时进行的异步播放数上限。
	Workers int
	// Now 返回当前时间，测试中可替换。
	Now func() time.Time
}

// DefaultOptions 返回默认选项：1 秒冷却，500 毫秒轮询，4 个异步槽位。
func DefaultOptions() Options {
	return Options{
		StopCooldown: time.Second,
		PollInterval: 500 * time.Millisecond,
		Workers:      4,
		Now:          time.Now,
	}
}

// Manager 独占一个播放设备，维护各播放流的状态并驱动播放。
type Manager struct {
	backend audio.Backend
	opts    Options

	mu        sync.Mutex
	sink      audio.Sink
	cfg       DeviceConfig
	states    map[string]*State
	stoppedAt time.Time // 最近一次 stop-all 的时间

	pool    *errgroup.Group
	pending sync.WaitGroup // 等待空闲槽位、尚未提交到 pool 的异步播放
}

// NewManager 创建播放管理器。opts 中的零值字段使用默认值。
func NewManager(backend audio.Backend, opts Options) *Manager {
	def := DefaultOptions()
	if opts.StopCooldown <= 0 {
		opts.StopCooldown = def.StopCooldown
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}

	pool := &errgroup.Group{}
	pool.SetLimit(opts.Workers)

	return &Manager{
		backend:   backend,
		opts:      opts,
		cfg:       DeviceConfig{DeviceIndex: audio.DefaultDevice, Volume: 100, Timeout: 60 * time.Second},
		states:    make(map[string]*State),
		stoppedAt: opts.Now().Add(-time.Minute),
		pool:      pool,
	}
}

// Initialize 打开 deviceIndex 对应的播放设备并替换全部配置。
// 已持有的设备先被释放。设备无法打开时返回包装了 ErrDeviceUnavailable 的错误。
func (m *Manager) Initialize(deviceIndex int, volume, delayMs float64, timeout time.Duration) error {
	if volume < 0 || volume > 100 {
		logger.Warnf("[speaker] 音量 %.1f 超出 0-100，已截断", volume)
		volume = clamp(volume, 0, 100)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sink != nil {
		if err := m.sink.Close(); err != nil {
			logger.Warnf("[speaker] 释放旧设备失败: %v", err)
		}
		m.sink = nil
	}

	m.cfg = DeviceConfig{
		DeviceIndex: deviceIndex,
		Volume:      volume,
		DelayMs:     delayMs,
		Timeout:     timeout,
	}

	sink, err := m.backend.Open(deviceIndex)
	if err != nil {
		return fmt.Errorf("%w: 设备 #%d: %v", ErrDeviceUnavailable, deviceIndex, err)
	}
	m.sink = sink

	logger.Debugf("[speaker] 初始化完成: 设备=%d 音量=%.0f 延迟=%.0fms 超时=%v",
		deviceIndex, volume, delayMs, timeout)
	return nil
}

// Config 返回当前设备配置。
func (m *Manager) Config() DeviceConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// IsSpeaking 返回主语音流是否正在播放。
func (m *Manager) IsSpeaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[PrimaryID]
	return ok && st.Playing
}

// State 返回 id 对应状态的快照。
func (m *Manager) State(id string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[id]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Stop 请求停止 id 对应的播放。id 为空或为 "true" 时指主语音流。
// id 未登记时什么也不做。all 为 true 时同时开启冷却窗口，
// 窗口内开始的播放会被直接丢弃。
func (m *Manager) Stop(id string, all bool) {
	if id == "" || strings.EqualFold(id, "true") {
		id = PrimaryID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[id]
	if !ok {
		return
	}
	if all {
		m.stoppedAt = m.opts.Now()
	}
	st.Timeout = 0
	st.stopped = true
	logger.Debugf("[speaker] 停止请求: id=%s all=%v", id, all)
}

// PlayBuffer 解码编码后的音频并在 id 下播放。raw 为空时直接返回。
// async 为 true 时在后台播放并立即返回，否则阻塞到播放结束或超时。
func (m *Manager) PlayBuffer(id string, raw []byte, async bool) {
	if len(raw) == 0 {
		return
	}

	st := m.register(id)
	stream, err := audio.Decode(raw)
	if err != nil {
		logger.Errorf("[speaker] playback fault: id=%s 解码失败: %v", id, err)
		m.finish(st)
		return
	}
	m.dispatch(st, stream, async)
}

// PlayFile 播放本地音频文件，id 为文件路径。
// .wav/.wma 按 PCM 解析，其余扩展名按压缩格式解码。
// 文件不存在时记录日志并返回 nil；文件存在但无法读取或解码时返回错误。
func (m *Manager) PlayFile(path string, async bool) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		logger.Warnf("[speaker] %v: %s", ErrFileNotFound, path)
		return nil
	}

	st := m.register(path)
	stream, err := decodeFile(path)
	if err != nil {
		logger.Errorf("[speaker] playback fault: id=%s: %v", path, err)
		m.finish(st)
		return err
	}
	m.dispatch(st, stream, async)
	return nil
}

// decodeFile 按扩展名解码文件：.wav/.wma 按 PCM 解析，其余按压缩格式解码。
func decodeFile(path string) (*audio.Stream, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wma":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取音频文件 %s 失败: %w", path, err)
		}
		stream, err := audio.DecodeWAV(data)
		if err != nil {
			return nil, fmt.Errorf("解析音频文件 %s 失败: %w", path, err)
		}
		return stream, nil
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("打开音频文件 %s 失败: %w", path, err)
		}
		defer f.Close()
		stream, err := audio.DecodeMP3(f)
		if err != nil {
			return nil, fmt.Errorf("解码音频文件 %s 失败: %w", path, err)
		}
		return stream, nil
	}
}

// Wait 等待已提交的异步播放全部结束，包括仍在排队等待槽位的请求。
func (m *Manager) Wait() {
	m.pending.Wait()
	_ = m.pool.Wait()
}

// Dispose 释放播放设备。未调用 Initialize 或重复调用都是安全的。
func (m *Manager) Dispose() error {
	m.mu.Lock()
	sink := m.sink
	m.sink = nil
	m.mu.Unlock()

	if sink == nil {
		return nil
	}
	return sink.Close()
}

// register 在 id 下登记一个新的播放状态。同 ID 下仍在播放的旧请求被标记为停止，
// 其播放循环在一个轮询间隔内退出并让出槽位。
func (m *Manager) register(id string) *State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.states[id]; ok && old.Playing {
		old.Timeout = 0
		old.stopped = true
		logger.Debugf("[speaker] id=%s 的旧播放 token=%s 被取代", id, old.Token)
	}

	st := &State{
		ID:        id,
		Token:     uuid.NewString(),
		StartedAt: m.opts.Now(),
		Timeout:   m.cfg.Timeout,
		Playing:   true,
	}
	m.states[id] = st
	return st
}

func (m *Manager) finish(st *State) {
	m.mu.Lock()
	st.Playing = false
	m.mu.Unlock()
}

func (m *Manager) dispatch(st *State, stream *audio.Stream, async bool) {
	if !async {
		m.play(st, stream)
		return
	}
	task := func() error {
		m.play(st, stream)
		return nil
	}
	if m.pool.TryGo(task) {
		return
	}

	// 槽位已满：在后台等待空闲槽位，调用方不阻塞
	logger.Debugf("[speaker] 异步播放槽位已满 (%d)，id=%s 排队等待", m.opts.Workers, st.ID)
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		m.pool.Go(task)
	}()
}

// play 是播放循环：冷却检查、音量、前置静音、启动设备，
// 然后轮询直到播放完毕或超时，最后停止设备并清理。
// 设备错误只记录日志，按正常结束处理。
func (m *Manager) play(st *State, stream *audio.Stream) {
	defer stream.Release()

	m.mu.Lock()
	now := m.opts.Now()
	if now.Sub(m.stoppedAt) < m.opts.StopCooldown {
		st.Playing = false
		m.mu.Unlock()
		logger.Infof("[speaker] 处于停止冷却期，丢弃播放 id=%s", st.ID)
		return
	}
	if st.stopped {
		st.Playing = false
		m.mu.Unlock()
		logger.Debugf("[speaker] 播放开始前已被停止 id=%s token=%s", st.ID, st.Token)
		return
	}
	st.StartedAt = now
	sink := m.sink
	cfg := m.cfg
	m.mu.Unlock()

	defer m.finish(st)

	audio.ApplyVolume(stream.Samples, cfg.Volume/100)
	audio.PrependSilence(stream, audio.SilenceSamples(stream.SampleRate, stream.Channels, cfg.DelayMs))

	if sink == nil {
		logger.Errorf("[speaker] playback fault: id=%s 播放设备未初始化", st.ID)
		return
	}
	if err := sink.Play(stream); err != nil {
		logger.Errorf("[speaker] playback fault: id=%s: %v", st.ID, err)
		return
	}
	logger.Debugf("[speaker] 开始播放 id=%s token=%s 时长=%v", st.ID, st.Token, stream.Duration())

	m.waitPlayback(st, stream)
	sink.Stop(stream)
	logger.Debugf("[speaker] 播放结束 id=%s token=%s 位置=%v", st.ID, st.Token, stream.Position())
}

// waitPlayback 阻塞到流播放完毕或状态超时。超时（包括 Stop 清零）
// 最多在一个轮询间隔后被发现。
func (m *Manager) waitPlayback(st *State, stream *audio.Stream) {
	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		if m.expired(st) {
			logger.Infof("[speaker] 播放超时或被停止 id=%s", st.ID)
			return
		}
		select {
		case <-stream.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) expired(st *State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opts.Now().Sub(st.StartedAt) >= st.Timeout
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
