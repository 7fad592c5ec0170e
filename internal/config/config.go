package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 是 speak 的顶层配置结构。
type Config struct {
	Speaker SpeakerConfig `yaml:"speaker"`
	TTS     TTSConfig     `yaml:"tts"`
	Cache   CacheConfig   `yaml:"cache"`
	Log     LogConfig     `yaml:"log"`
	DataDir string        `yaml:"data_dir"`
}

// SpeakerConfig 播放设备配置。
type SpeakerConfig struct {
	Device       int           `yaml:"device"`        // 设备序号，-1 为系统默认设备
	Volume       float64       `yaml:"volume"`        // 0-100
	DelayMs      float64       `yaml:"delay_ms"`      // 播放前的静音时长
	Timeout      time.Duration `yaml:"timeout"`       // 单次播放最长时间
	StopCooldown time.Duration `yaml:"stop_cooldown"` // stop-all 后拒绝新播放的时间
	PollInterval time.Duration `yaml:"poll_interval"`
	Workers      int           `yaml:"workers"` // 异步播放并发上限
}

// TTSConfig 语音合成配置。
type TTSConfig struct {
	Engine   string        `yaml:"engine"`
	Fallback []string      `yaml:"fallback"` // 主引擎失败后依次尝试的引擎
	Voice    string        `yaml:"voice"`
	Language string        `yaml:"language"`
	Espeak   EspeakConfig  `yaml:"espeak"`
	Piper    PiperConfig   `yaml:"piper"`
	Edge     EdgeConfig    `yaml:"edge"`
	Tencent  TencentConfig `yaml:"tencent"`
	Sherpa   SherpaConfig  `yaml:"sherpa"`
}

// EspeakConfig espeak-ng 配置。
type EspeakConfig struct {
	Binary string `yaml:"binary"`
	Speed  int    `yaml:"speed"`
}

// PiperConfig Piper TTS 配置。
type PiperConfig struct {
	Binary    string `yaml:"binary"`
	ModelPath string `yaml:"model_path"`
}

// EdgeConfig Edge TTS 配置。
type EdgeConfig struct {
	Voice string `yaml:"voice"`
}

// TencentConfig 腾讯云 TTS 配置。
type TencentConfig struct {
	SecretID   string  `yaml:"secret_id"`
	SecretKey  string  `yaml:"secret_key"`
	VoiceType  int64   `yaml:"voice_type"`
	Region     string  `yaml:"region"`
	Speed      float64 `yaml:"speed"`
	SampleRate int     `yaml:"sample_rate"`
}

// SherpaConfig sherpa-onnx 离线 TTS 配置。
type SherpaConfig struct {
	ModelPath  string  `yaml:"model_path"`
	TokensPath string  `yaml:"tokens_path"`
	DataDir    string  `yaml:"data_dir"`
	NumThreads int     `yaml:"num_threads"`
	Speed      float32 `yaml:"speed"`
}

// CacheConfig 合成缓存配置。
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	Dir       string `yaml:"dir"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// Default 返回完整填充默认值的配置。
func Default() *Config {
	cfg := baseConfig()
	setDefaults(cfg)
	return cfg
}

// baseConfig 返回不含派生路径的默认值。DataDir 和 Cache.Dir 留空，
// 由 setDefaults 在用户配置合并之后推导。
func baseConfig() *Config {
	return &Config{
		Speaker: SpeakerConfig{
			Device:       -1,
			Volume:       100,
			Timeout:      60 * time.Second,
			StopCooldown: time.Second,
			PollInterval: 500 * time.Millisecond,
			Workers:      4,
		},
		TTS: TTSConfig{
			Language: "fr-FR",
		},
		Cache: CacheConfig{MaxSizeMB: 64},
		Log:   LogConfig{Level: "warn"},
	}
}

// DefaultPath 返回默认配置文件路径 ~/.speak/speak.yaml。
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".speak", "speak.yaml")
}

// Load 读取 YAML 配置文件并返回 Config，未出现的字段保留默认值。
// 支持 ${VAR_NAME} 形式的环境变量展开；配置文件同目录和当前目录的 .env 会先被加载。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env")

	// 展开环境变量，如 ${TENCENTCLOUD_SECRET_ID}
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := baseConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	setDefaults(cfg)
	return cfg, nil
}

// LoadOrDefault 在 path 为空时尝试默认路径，文件不存在则返回默认配置。
// 显式指定的 path 不存在时返回错误。
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	if def := DefaultPath(); def != "" {
		if _, err := os.Stat(def); err == nil {
			return Load(def)
		}
	}
	loadDotEnv(".env")
	return Default(), nil
}

// loadDotEnv 加载存在的 .env 文件，不覆盖已有环境变量。
func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "speak: 加载 %s 失败: %v\n", p, err)
		}
	}
}

// defaultEngine 按平台选择默认引擎。
func defaultEngine() string {
	if runtime.GOOS == "darwin" {
		return "say"
	}
	return "espeak"
}

// setDefaults 为未设置或无效的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Speaker.Volume < 0 {
		cfg.Speaker.Volume = 0
	} else if cfg.Speaker.Volume > 100 {
		cfg.Speaker.Volume = 100
	}
	if cfg.Speaker.Timeout <= 0 {
		cfg.Speaker.Timeout = 60 * time.Second
	}
	if cfg.Speaker.StopCooldown <= 0 {
		cfg.Speaker.StopCooldown = time.Second
	}
	if cfg.Speaker.PollInterval <= 0 {
		cfg.Speaker.PollInterval = 500 * time.Millisecond
	}
	if cfg.Speaker.Workers <= 0 {
		cfg.Speaker.Workers = 4
	}

	if cfg.TTS.Engine == "" {
		cfg.TTS.Engine = defaultEngine()
	}
	if cfg.TTS.Language == "" {
		cfg.TTS.Language = "fr-FR"
	}
	if cfg.TTS.Tencent.SecretID == "" {
		cfg.TTS.Tencent.SecretID = os.Getenv("TENCENTCLOUD_SECRET_ID")
	}
	if cfg.TTS.Tencent.SecretKey == "" {
		cfg.TTS.Tencent.SecretKey = os.Getenv("TENCENTCLOUD_SECRET_KEY")
	}
	// 去除密钥两端可能的空白（环境变量展开后常见）
	cfg.TTS.Tencent.SecretID = strings.TrimSpace(cfg.TTS.Tencent.SecretID)
	cfg.TTS.Tencent.SecretKey = strings.TrimSpace(cfg.TTS.Tencent.SecretKey)

	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}

	if cfg.DataDir == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.DataDir = filepath.Join(home, ".speak")
		} else {
			cfg.DataDir = "./.speak-data"
		}
	}
	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.TTS.Piper.ModelPath = expandHome(cfg.TTS.Piper.ModelPath)
	cfg.TTS.Sherpa.ModelPath = expandHome(cfg.TTS.Sherpa.ModelPath)
	cfg.TTS.Sherpa.TokensPath = expandHome(cfg.TTS.Sherpa.TokensPath)
	cfg.TTS.Sherpa.DataDir = expandHome(cfg.TTS.Sherpa.DataDir)
	cfg.Log.File = expandHome(cfg.Log.File)

	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = filepath.Join(cfg.DataDir, "tts-cache")
	}
	cfg.Cache.Dir = expandHome(cfg.Cache.Dir)
	if cfg.Cache.MaxSizeMB <= 0 {
		cfg.Cache.Enabled = false
	}
}

// expandHome 展开开头的 ~/，Go 不会自动处理。
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return path
	}
	return filepath.Join(home, path[2:])
}
