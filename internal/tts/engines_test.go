package tts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/iabetor/speak/internal/audio"
)

const espeakVoicesOutput = `Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 5  en-us           --/M      English_(America)  gmw/en-US            (en 3)
 5  fr-be           --/M      French_(Belgium)   roa/fr-BE            (fr 8)
 5  fr-fr           --/M      French_(France)    roa/fr               (fr 5)
 5  de              --/M      German             gmw/de
`

// scriptedRunner 记录调用参数，并按程序名返回预设输出。
type scriptedRunner struct {
	outputs map[string][]byte
	calls   [][]string
	stdin   []string
}

func (r *scriptedRunner) run(_ context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	r.stdin = append(r.stdin, string(stdin))
	key := name
	if len(args) > 0 && (args[0] == "--voices" || args[0] == "-v" && len(args) > 1 && args[1] == "?") {
		key = name + " voices"
	}
	out, ok := r.outputs[key]
	if !ok {
		return nil, errors.New("unexpected command " + key)
	}
	return out, nil
}

func newTestEspeak(r *scriptedRunner) *EspeakEngine {
	return &EspeakEngine{bin: "espeak-ng", run: r.run}
}

func TestParseEspeakVoices(t *testing.T) {
	voices := parseEspeakVoices(espeakVoicesOutput)
	if len(voices) != 5 {
		t.Fatalf("expected 5 voices, got %d", len(voices))
	}
	want := espeakVoice{Language: "fr-fr", Name: "French_(France)", File: "roa/fr"}
	if voices[3] != want {
		t.Fatalf("unexpected voice: %+v", voices[3])
	}
}

func TestEspeak_SelectVoice(t *testing.T) {
	r := &scriptedRunner{outputs: map[string][]byte{"espeak-ng voices": []byte(espeakVoicesOutput)}}
	e := newTestEspeak(r)

	for _, v := range []string{"French_(France)", "roa/fr", "FR-FR"} {
		e.voice = ""
		if err := e.SelectVoice(v); err != nil {
			t.Fatalf("SelectVoice(%q) failed: %v", v, err)
		}
		if e.voice != "fr-fr" {
			t.Fatalf("SelectVoice(%q): expected fr-fr, got %q", v, e.voice)
		}
	}

	if err := e.SelectVoice("klingon"); !errors.Is(err, ErrVoiceNotFound) {
		t.Fatalf("expected ErrVoiceNotFound, got %v", err)
	}
	if len(r.calls) != 1 {
		t.Fatalf("voice list should be fetched once, got %d calls", len(r.calls))
	}
}

func TestEspeak_SynthesizeArgs(t *testing.T) {
	wav := audio.EncodeWAV([]int16{1, 2, 3}, 22050, 1)
	tests := []struct {
		name     string
		language string
		speed    int
		want     []string
	}{
		{"完整语言代码", "fr-FR", 0, []string{"espeak-ng", "--stdout", "--stdin", "-v", "fr-fr"}},
		{"退回主语言", "de-AT", 0, []string{"espeak-ng", "--stdout", "--stdin", "-v", "de"}},
		{"未知语言用默认语音", "xx-YY", 0, []string{"espeak-ng", "--stdout", "--stdin"}},
		{"语速", "en-US", 150, []string{"espeak-ng", "--stdout", "--stdin", "-v", "en-us", "-s", "150"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &scriptedRunner{outputs: map[string][]byte{
				"espeak-ng voices": []byte(espeakVoicesOutput),
				"espeak-ng":        wav,
			}}
			e := newTestEspeak(r)
			e.speed = tt.speed
			e.SetLanguage(tt.language)

			out, err := e.Synthesize(context.Background(), "bonjour")
			if err != nil {
				t.Fatalf("Synthesize failed: %v", err)
			}
			if len(out) != len(wav) {
				t.Fatalf("expected WAV passthrough")
			}
			last := r.calls[len(r.calls)-1]
			if !reflect.DeepEqual(last, tt.want) {
				t.Fatalf("args = %v, want %v", last, tt.want)
			}
			if r.stdin[len(r.stdin)-1] != "bonjour" {
				t.Fatalf("text should be passed on stdin")
			}
		})
	}
}

func TestEspeak_RejectsNonWAVOutput(t *testing.T) {
	r := &scriptedRunner{outputs: map[string][]byte{"espeak-ng": []byte("garbage")}}
	if _, err := newTestEspeak(r).Synthesize(context.Background(), "x"); err == nil {
		t.Fatal("expected error for non-WAV output")
	}
}

const sayVoicesOutput = `Albert              en_US    # Hello! My name is Albert.
Amélie              fr_CA    # Bonjour, je m’appelle Amélie.
Good News           en_US    # Hello! My name is Good News.
Thomas              fr_FR    # Bonjour, je m’appelle Thomas.
Tingting            zh_CN    # 你好，我叫婷婷。
`

func TestParseSayVoices(t *testing.T) {
	voices := parseSayVoices(sayVoicesOutput)
	if len(voices) != 5 {
		t.Fatalf("expected 5 voices, got %d", len(voices))
	}
	if voices[2] != (sayVoice{Name: "Good News", Locale: "en_US"}) {
		t.Fatalf("unexpected voice: %+v", voices[2])
	}
}

func TestSay_LanguagePicksFirstVoice(t *testing.T) {
	r := &scriptedRunner{outputs: map[string][]byte{"say voices": []byte(sayVoicesOutput)}}
	s := &SayEngine{run: r.run}

	s.SetLanguage("fr-FR")
	if s.voice != "Thomas" {
		t.Fatalf("expected Thomas, got %q", s.voice)
	}

	if err := s.SelectVoice("good news"); err != nil {
		t.Fatalf("SelectVoice failed: %v", err)
	}
	s.SetLanguage("zh-CN")
	if s.voice != "Good News" {
		t.Fatalf("explicit voice must survive SetLanguage, got %q", s.voice)
	}

	if err := s.SelectVoice("Nobody"); !errors.Is(err, ErrVoiceNotFound) {
		t.Fatalf("expected ErrVoiceNotFound, got %v", err)
	}
}

func TestSay_Args(t *testing.T) {
	s := &SayEngine{voice: "Thomas"}
	want := []string{"-o", "/tmp/a.aiff", "-v", "Thomas", "-f", "-"}
	if got := s.sayArgs("/tmp/a.aiff"); !reflect.DeepEqual(got, want) {
		t.Fatalf("sayArgs = %v, want %v", got, want)
	}
	wantConv := []string{"-f", "WAVE", "-d", "LEI16@22050", "-c", "1", "in.aiff", "out.wav"}
	if got := convertArgs("in.aiff", "out.wav"); !reflect.DeepEqual(got, wantConv) {
		t.Fatalf("convertArgs = %v, want %v", got, wantConv)
	}
}

func TestPiper_SynthesizeWrapsPCM(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "fr_FR-siwis-medium.onnx")
	if err := os.WriteFile(model, []byte("onnx"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(model+".json", []byte(`{"audio": {"sample_rate": 16000}}`), 0644); err != nil {
		t.Fatal(err)
	}

	r := &scriptedRunner{outputs: map[string][]byte{"piper": audio.Int16ToBytes([]int16{100, -100, 200})}}
	p := &PiperEngine{bin: "piper", sampleRate: piperSampleRate, run: r.run}
	if err := p.SelectVoice(model); err != nil {
		t.Fatalf("SelectVoice failed: %v", err)
	}

	out, err := p.Synthesize(context.Background(), "salut")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	s, err := audio.DecodeWAV(out)
	if err != nil {
		t.Fatalf("output is not WAV: %v", err)
	}
	if s.SampleRate != 16000 || s.Frames() != 3 {
		t.Fatalf("unexpected stream: %d Hz, %d frames", s.SampleRate, s.Frames())
	}
	want := []string{"piper", "--model", model, "--output-raw"}
	if !reflect.DeepEqual(r.calls[0], want) {
		t.Fatalf("args = %v, want %v", r.calls[0], want)
	}
}

func TestPiper_MissingModel(t *testing.T) {
	p := &PiperEngine{bin: "piper", run: runCommand}
	if err := p.SelectVoice(filepath.Join(t.TempDir(), "nope.onnx")); !errors.Is(err, ErrVoiceNotFound) {
		t.Fatalf("expected ErrVoiceNotFound, got %v", err)
	}
	if _, err := p.Synthesize(context.Background(), "x"); err == nil {
		t.Fatal("expected error without a model")
	}
}

func TestPiperModelSampleRate_Default(t *testing.T) {
	if rate := piperModelSampleRate(filepath.Join(t.TempDir(), "m.onnx")); rate != piperSampleRate {
		t.Fatalf("expected default %d, got %d", piperSampleRate, rate)
	}
}

func TestEdge_VoiceAndLanguage(t *testing.T) {
	e := NewEdgeEngine("")
	if e.voice != "fr-FR-DeniseNeural" {
		t.Fatalf("unexpected default voice %q", e.voice)
	}

	e.SetLanguage("en-GB")
	if e.voice != "en-GB-SoniaNeural" {
		t.Fatalf("expected locale default voice, got %q", e.voice)
	}

	for _, bad := range []string{"Denise", "fr-fr-DeniseNeural", "fr-FR-Denise"} {
		if err := e.SelectVoice(bad); !errors.Is(err, ErrVoiceNotFound) {
			t.Fatalf("SelectVoice(%q): expected ErrVoiceNotFound, got %v", bad, err)
		}
	}
	for _, good := range []string{"zh-CN-shaanxi-XiaoniNeural", "en-US-AndrewMultilingualNeural"} {
		if err := e.SelectVoice(good); err != nil {
			t.Fatalf("SelectVoice(%q) failed: %v", good, err)
		}
	}

	e.SetLanguage("de-DE")
	if e.voice != "en-US-AndrewMultilingualNeural" {
		t.Fatalf("explicit voice must survive SetLanguage, got %q", e.voice)
	}
}

func TestTencent_BuildRequest(t *testing.T) {
	e := &TencentEngine{voiceType: 1001, language: tencentLangChinese, sampleRate: 16000}

	if err := e.SelectVoice("101016"); err != nil {
		t.Fatalf("SelectVoice failed: %v", err)
	}
	e.SetLanguage("en-US")

	req := e.buildRequest("hello")
	if *req.Text != "hello" || *req.Codec != "wav" {
		t.Fatalf("unexpected request: text=%q codec=%q", *req.Text, *req.Codec)
	}
	if *req.VoiceType != 101016 {
		t.Fatalf("expected voice 101016, got %d", *req.VoiceType)
	}
	if *req.PrimaryLanguage != tencentLangEnglish {
		t.Fatalf("expected English primary language, got %d", *req.PrimaryLanguage)
	}
	if *req.SampleRate != 16000 {
		t.Fatalf("expected 16000 Hz, got %d", *req.SampleRate)
	}
	if req.SessionId == nil || *req.SessionId == "" {
		t.Fatal("session id must be set")
	}
	if next := e.buildRequest("hello"); *next.SessionId == *req.SessionId {
		t.Fatal("session id must be unique per request")
	}
}

func TestTencent_SelectVoiceRejectsNames(t *testing.T) {
	e := &TencentEngine{voiceType: 1001}
	for _, bad := range []string{"zhiyu", "-3", "0"} {
		if err := e.SelectVoice(bad); !errors.Is(err, ErrVoiceNotFound) {
			t.Fatalf("SelectVoice(%q): expected ErrVoiceNotFound, got %v", bad, err)
		}
	}
	if e.voiceType != 1001 {
		t.Fatalf("failed selection must keep previous voice, got %d", e.voiceType)
	}
}

func TestTencentPrimaryLanguage(t *testing.T) {
	tests := map[string]int64{
		"zh-CN": tencentLangChinese,
		"ZH-tw": tencentLangChinese,
		"fr-FR": tencentLangEnglish,
		"":      tencentLangEnglish,
	}
	for lang, want := range tests {
		if got := tencentPrimaryLanguage(lang); got != want {
			t.Errorf("tencentPrimaryLanguage(%q) = %d, want %d", lang, got, want)
		}
	}
}

func TestNewTencentEngine_RequiresCredentials(t *testing.T) {
	if _, err := NewTencentEngine(TencentConfig{SecretID: "id"}); err == nil {
		t.Fatal("expected error without secret key")
	}
}

func TestSherpa_SpeakerID(t *testing.T) {
	if sid, err := parseSpeakerID("3"); err != nil || sid != 3 {
		t.Fatalf("expected 3, got %d (%v)", sid, err)
	}
	for _, bad := range []string{"alice", "-1"} {
		if _, err := parseSpeakerID(bad); !errors.Is(err, ErrVoiceNotFound) {
			t.Fatalf("parseSpeakerID(%q): expected ErrVoiceNotFound, got %v", bad, err)
		}
	}
}

func TestCheckSpeakerID(t *testing.T) {
	tests := []struct {
		sid, speakers int
		ok            bool
	}{
		{0, 1, true},
		{0, 0, true},
		{1, 0, false},
		{1, 1, false},
		{108, 109, true},
		{109, 109, false},
	}
	for _, tt := range tests {
		err := checkSpeakerID(tt.sid, tt.speakers)
		if tt.ok && err != nil {
			t.Errorf("checkSpeakerID(%d, %d): unexpected error %v", tt.sid, tt.speakers, err)
		}
		if !tt.ok && !errors.Is(err, ErrVoiceNotFound) {
			t.Errorf("checkSpeakerID(%d, %d): expected ErrVoiceNotFound, got %v", tt.sid, tt.speakers, err)
		}
	}
}

func TestNewSherpaEngine_MissingModel(t *testing.T) {
	_, err := NewSherpaEngine(SherpaConfig{ModelPath: filepath.Join(t.TempDir(), "vits.onnx")})
	if err == nil || !strings.Contains(err.Error(), "不存在") {
		t.Fatalf("expected missing model error, got %v", err)
	}
}
