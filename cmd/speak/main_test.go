package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iabetor/speak/internal/config"
)

func TestParseFlags_Defaults(t *testing.T) {
	opts, _, err := parseFlags(nil)
	require.NoError(t, err)

	assert.Equal(t, -1, opts.speaker)
	assert.Equal(t, 100.0, opts.volume)
	assert.Equal(t, "fr-FR", opts.language)
	assert.Equal(t, 60*time.Second, opts.timeout)
	assert.Empty(t, opts.changed)
}

func TestParseFlags_Values(t *testing.T) {
	opts, _, err := parseFlags([]string{
		"--tts=bonjour le monde", "--speaker", "2", "--volume=35.5", "--voice", "fr-FR-HenriNeural",
		"-l", "en-GB", "--delay", "120", "--timeout", "3s", "--play", "ding.wav",
	})
	require.NoError(t, err)

	assert.Equal(t, "bonjour le monde", opts.text)
	assert.Equal(t, 2, opts.speaker)
	assert.Equal(t, 35.5, opts.volume)
	assert.Equal(t, "fr-FR-HenriNeural", opts.voice)
	assert.Equal(t, "en-GB", opts.language)
	assert.Equal(t, 120.0, opts.delay)
	assert.Equal(t, 3*time.Second, opts.timeout)
	assert.Equal(t, "ding.wav", opts.play)
	assert.True(t, opts.changed["language"])
	assert.False(t, opts.changed["engine"])
}

func TestParseFlags_PositionalText(t *testing.T) {
	opts, _, err := parseFlags([]string{"hello", "there"})
	require.NoError(t, err)
	assert.Equal(t, "hello there", opts.text)
}

func TestRun_UsageErrors(t *testing.T) {
	tests := [][]string{
		{"--bogus"},
		{"--speaker=abc"},
		{"--volume=150"},
		{"--volume", "-1"},
		{"--timeout=0s"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(args, &stdout, &stderr)

			assert.Equal(t, exitUsage, code)
			lines := strings.Split(strings.TrimSpace(stderr.String()), "\n")
			require.Len(t, lines, 2)
			assert.True(t, strings.HasPrefix(lines[0], "speak: "), lines[0])
			assert.Equal(t, "Try `speak --help' for more information.", lines[1])
			assert.Empty(t, stdout.String())
		})
	}
}

func TestRun_Help(t *testing.T) {
	for _, flag := range []string{"-h", "--help"} {
		var stdout, stderr bytes.Buffer
		code := run([]string{flag, "--tts=ignored"}, &stdout, &stderr)

		assert.Equal(t, exitOK, code)
		assert.Contains(t, stdout.String(), "--tts")
		assert.Contains(t, stdout.String(), "-l, --language")
		assert.Empty(t, stderr.String())
	}
}

func TestApplyOverrides_OnlyExplicitFlags(t *testing.T) {
	cfg := config.Default()
	cfg.Speaker.Volume = 30
	cfg.TTS.Language = "de-DE"

	opts, _, err := parseFlags([]string{"--speaker", "1", "--engine", "edge"})
	require.NoError(t, err)
	applyOverrides(cfg, opts)

	assert.Equal(t, 1, cfg.Speaker.Device)
	assert.Equal(t, "edge", cfg.TTS.Engine)
	assert.Equal(t, 30.0, cfg.Speaker.Volume, "unset flags must not override config")
	assert.Equal(t, "de-DE", cfg.TTS.Language)
}

func TestNewEngine_Unknown(t *testing.T) {
	_, err := newEngine("festival", config.Default().TTS)
	assert.Error(t, err)
}
