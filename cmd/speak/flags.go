package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

const usageHeader = `用法: speak [选项] [文本...]

将文本合成为语音并通过指定设备播放。

选项:
`

// options 是命令行解析结果。changed 记录显式给出的选项，只有这些覆盖配置文件。
type options struct {
	text        string
	speaker     int
	volume      float64
	voice       string
	language    string
	play        string
	delay       float64
	timeout     time.Duration
	engine      string
	configPath  string
	listDevices bool
	help        bool

	changed map[string]bool
}

func newFlagSet(opts *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("speak", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false

	fs.StringVar(&opts.text, "tts", "", "要合成并播放的文本")
	fs.IntVar(&opts.speaker, "speaker", -1, "输出设备序号，-1 为系统默认设备")
	fs.Float64Var(&opts.volume, "volume", 100, "播放音量 (0-100)")
	fs.StringVar(&opts.voice, "voice", "", "合成语音，默认使用引擎默认语音")
	fs.StringVarP(&opts.language, "language", "l", "fr-FR", "发音语言")
	fs.StringVar(&opts.play, "play", "", "合成语音之后播放的本地音频文件")
	fs.Float64Var(&opts.delay, "delay", 0, "播放前插入的静音（毫秒）")
	fs.DurationVar(&opts.timeout, "timeout", 60*time.Second, "单次播放最长时间")
	fs.StringVar(&opts.engine, "engine", "", "合成引擎: espeak, say, piper, edge, tencent, sherpa")
	fs.StringVar(&opts.configPath, "config", "", "配置文件路径，默认 ~/.speak/speak.yaml（存在时）")
	fs.BoolVar(&opts.listDevices, "list-devices", false, "列出播放设备后退出")
	fs.BoolVarP(&opts.help, "help", "h", false, "显示帮助")
	return fs
}

// parseFlags 解析命令行。未给出 --tts 时，剩余的位置参数拼接为文本。
func parseFlags(args []string) (*options, *pflag.FlagSet, error) {
	opts := &options{changed: map[string]bool{}}
	fs := newFlagSet(opts)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			opts.help = true
			return opts, fs, nil
		}
		return nil, fs, err
	}
	fs.Visit(func(f *pflag.Flag) { opts.changed[f.Name] = true })

	if opts.volume < 0 || opts.volume > 100 {
		return nil, fs, fmt.Errorf("invalid argument %q for \"--volume\" flag: 必须在 0 到 100 之间", fmt.Sprint(opts.volume))
	}
	if opts.delay < 0 {
		return nil, fs, fmt.Errorf("invalid argument %q for \"--delay\" flag: 不能为负数", fmt.Sprint(opts.delay))
	}
	if opts.timeout <= 0 && opts.changed["timeout"] {
		return nil, fs, fmt.Errorf("invalid argument %q for \"--timeout\" flag: 必须大于 0", opts.timeout)
	}

	if opts.text == "" && fs.NArg() > 0 {
		opts.text = strings.Join(fs.Args(), " ")
	}
	return opts, fs, nil
}

func printUsage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprint(w, usageHeader)
	fmt.Fprint(w, fs.FlagUsages())
}
