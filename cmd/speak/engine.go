package main

import (
	"fmt"
	"path/filepath"

	"github.com/iabetor/speak/internal/config"
	"github.com/iabetor/speak/internal/database"
	"github.com/iabetor/speak/internal/logger"
	"github.com/iabetor/speak/internal/tts"
)

// newEngine 按名称创建单个合成引擎。
func newEngine(name string, cfg config.TTSConfig) (tts.Engine, error) {
	switch name {
	case "espeak":
		return tts.NewEspeakEngine(tts.EspeakConfig{Binary: cfg.Espeak.Binary, Speed: cfg.Espeak.Speed})
	case "say":
		return tts.NewSayEngine(""), nil
	case "piper":
		return tts.NewPiperEngine(tts.PiperConfig{Binary: cfg.Piper.Binary, ModelPath: cfg.Piper.ModelPath})
	case "edge":
		return tts.NewEdgeEngine(cfg.Edge.Voice), nil
	case "tencent":
		return tts.NewTencentEngine(tts.TencentConfig{
			SecretID:   cfg.Tencent.SecretID,
			SecretKey:  cfg.Tencent.SecretKey,
			VoiceType:  cfg.Tencent.VoiceType,
			Region:     cfg.Tencent.Region,
			Speed:      cfg.Tencent.Speed,
			SampleRate: cfg.Tencent.SampleRate,
		})
	case "sherpa":
		return tts.NewSherpaEngine(tts.SherpaConfig{
			ModelPath:  cfg.Sherpa.ModelPath,
			TokensPath: cfg.Sherpa.TokensPath,
			DataDir:    cfg.Sherpa.DataDir,
			NumThreads: cfg.Sherpa.NumThreads,
			Speed:      cfg.Sherpa.Speed,
		})
	}
	return nil, fmt.Errorf("未知的合成引擎: %s", name)
}

// buildEngine 创建主引擎，按配置叠加兜底引擎和合成缓存。
// 返回的 cleanup 关闭缓存数据库。
func buildEngine(cfg *config.Config) (tts.Engine, func(), error) {
	cleanup := func() {}

	primary, err := newEngine(cfg.TTS.Engine, cfg.TTS)
	if err != nil {
		return nil, cleanup, err
	}

	engine := primary
	if len(cfg.TTS.Fallback) > 0 {
		engines := []tts.Engine{primary}
		for _, name := range cfg.TTS.Fallback {
			if name == cfg.TTS.Engine {
				continue
			}
			e, err := newEngine(name, cfg.TTS)
			if err != nil {
				logger.Warnf("[main] 兜底引擎 %s 不可用: %v", name, err)
				continue
			}
			engines = append(engines, e)
		}
		if len(engines) > 1 {
			engine, err = tts.NewFallbackEngine(engines, 0)
			if err != nil {
				return nil, cleanup, err
			}
		}
	}

	if !cfg.Cache.Enabled {
		return engine, cleanup, nil
	}

	db, err := database.Open(filepath.Join(cfg.DataDir, "speak.db"))
	if err != nil {
		logger.Warnf("[main] 合成缓存不可用: %v", err)
		return engine, cleanup, nil
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		logger.Warnf("[main] 合成缓存不可用: %v", err)
		return engine, cleanup, nil
	}
	cached, err := tts.NewCachedEngine(engine, db, cfg.Cache.Dir, cfg.Cache.MaxSizeMB)
	if err != nil {
		db.Close()
		logger.Warnf("[main] 合成缓存不可用: %v", err)
		return engine, cleanup, nil
	}
	return cached, func() { db.Close() }, nil
}
