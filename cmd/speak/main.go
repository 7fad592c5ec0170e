package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/iabetor/speak/internal/audio"
	"github.com/iabetor/speak/internal/config"
	"github.com/iabetor/speak/internal/logger"
	"github.com/iabetor/speak/internal/speaker"
	"github.com/iabetor/speak/internal/tts"
)

// 退出码
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, fs, err := parseFlags(args)
	if err != nil {
		fmt.Fprintf(stderr, "speak: %v\n", err)
		fmt.Fprintln(stderr, "Try `speak --help' for more information.")
		return exitUsage
	}
	if opts.help {
		printUsage(stdout, fs)
		return exitOK
	}

	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "speak: %v\n", err)
		return exitError
	}
	applyOverrides(cfg, opts)

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	}); err != nil {
		fmt.Fprintf(stderr, "speak: 初始化日志失败: %v\n", err)
		return exitError
	}
	defer logger.Close()
	defer logger.Sync()

	backend, err := audio.NewMalgoBackend()
	if err != nil {
		fmt.Fprintf(stderr, "speak: %v\n", err)
		return exitError
	}
	defer backend.Close()

	if opts.listDevices {
		return listDevices(backend, stdout, stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := speak(ctx, cfg, opts, backend); err != nil {
		fmt.Fprintf(stderr, "speak: %v\n", err)
		return exitError
	}
	return exitOK
}

// speak 是单次调用的主流程：合成，同步播放，可选地再播放一个文件。
func speak(ctx context.Context, cfg *config.Config, opts *options, backend audio.Backend) error {
	engine, cleanup, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	synth := tts.NewSynthesizer(engine)
	defer synth.Dispose()
	if err := synth.Init(cfg.TTS.Voice, cfg.TTS.Language); err != nil && !errors.Is(err, tts.ErrVoiceNotFound) {
		return err
	}
	logger.Debugf("[main] 合成引擎: %s 语言=%s", synth.Engine().Name(), cfg.TTS.Language)

	mgr := speaker.NewManager(backend, speaker.Options{
		StopCooldown: cfg.Speaker.StopCooldown,
		PollInterval: cfg.Speaker.PollInterval,
		Workers:      cfg.Speaker.Workers,
	})
	defer mgr.Dispose()
	defer mgr.Wait()
	if err := mgr.Initialize(cfg.Speaker.Device, cfg.Speaker.Volume, cfg.Speaker.DelayMs, cfg.Speaker.Timeout); err != nil {
		return err
	}

	// 收到中断信号时停止所有播放
	go func() {
		<-ctx.Done()
		mgr.Stop(speaker.PrimaryID, true)
		if opts.play != "" {
			mgr.Stop(opts.play, true)
		}
	}()

	buf, err := synth.Synthesize(ctx, opts.text, "", "")
	if err != nil {
		return err
	}
	mgr.PlayBuffer(speaker.PrimaryID, buf, false)

	if opts.play != "" && ctx.Err() == nil {
		if err := mgr.PlayFile(opts.play, false); err != nil {
			return err
		}
	}
	logger.Debug("[main] 播放完成")
	return nil
}

// applyOverrides 用显式给出的命令行选项覆盖配置。
func applyOverrides(cfg *config.Config, opts *options) {
	if opts.changed["speaker"] {
		cfg.Speaker.Device = opts.speaker
	}
	if opts.changed["volume"] {
		cfg.Speaker.Volume = opts.volume
	}
	if opts.changed["delay"] {
		cfg.Speaker.DelayMs = opts.delay
	}
	if opts.changed["timeout"] {
		cfg.Speaker.Timeout = opts.timeout
	}
	if opts.changed["voice"] {
		cfg.TTS.Voice = opts.voice
	}
	if opts.changed["language"] {
		cfg.TTS.Language = opts.language
	}
	if opts.changed["engine"] {
		cfg.TTS.Engine = opts.engine
	}
}

func listDevices(backend audio.Backend, stdout, stderr io.Writer) int {
	devices, err := backend.Devices()
	if err != nil {
		fmt.Fprintf(stderr, "speak: %v\n", err)
		return exitError
	}
	for _, d := range devices {
		mark := " "
		if d.Default {
			mark = "*"
		}
		fmt.Fprintf(stdout, "%s %2d  %s\n", mark, d.Index, d.Name)
	}
	return exitOK
}
