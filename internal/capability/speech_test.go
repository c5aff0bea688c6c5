package capability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rsclarke/aiconnect/internal/api"
	"github.com/rsclarke/aiconnect/internal/auth"
	"github.com/rsclarke/aiconnect/internal/envelope"
	"github.com/rsclarke/aiconnect/internal/provider"
)

func synthesizeReq() api.SynthesizeRequest {
	return api.SynthesizeRequest{Message: "Your order has shipped", MessageID: "m1", UXID: "ux1", ProcessCode: "PC"}
}

func TestSynthesizeWritesAudio(t *testing.T) {
	fb := newFakeBackend()
	s := newTestService(t, fb)
	s.now = func() time.Time { return time.Unix(0, 1700000000000000000) }
	sess := testSession("openai", auth.TextToSpeech)

	resp, err := s.Synthesize(context.Background(), sess, synthesizeReq())
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	want := "https://cdn.example.com/audio/tts-1700000000000000000.mp3"
	if resp.Audio != want {
		t.Errorf("expected %s, got %s", want, resp.Audio)
	}
	data, err := os.ReadFile(filepath.Join(s.cfg.AudioDir, "tts-1700000000000000000.mp3"))
	if err != nil {
		t.Fatalf("expected audio file: %v", err)
	}
	if string(data) != "ID3audio" {
		t.Errorf("unexpected audio %q", data)
	}

	req := fb.speech[0]
	if req.Voice != "alloy" || req.Speed != 1.0 || req.Format != "mp3" {
		t.Errorf("unexpected speech request %+v", req)
	}
	if fb.Calls("generate") != 0 {
		t.Error("expected no localisation without LanguageCode")
	}

	if _, err := s.Synthesize(context.Background(), sess, synthesizeReq()); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if n := fb.Calls("synthesize"); n != 1 {
		t.Errorf("expected cached second call, got %d", n)
	}
}

func TestSynthesizeLocalisesAndPicksVoice(t *testing.T) {
	fb := newFakeBackend()
	fb.generate = func(p string) (string, error) {
		if !strings.Contains(p, "'fr-FR'") {
			t.Errorf("expected language code in prompt, got %q", p)
		}
		return `"Votre commande a été expédiée"`, nil
	}
	s := newTestService(t, fb)
	b := synthesizeReq()
	b.LanguageCode = "fr-FR"
	b.VoiceModel = "nova"
	b.SpeakingRate = 1.25

	if _, err := s.Synthesize(context.Background(), testSession("openai", auth.TextToSpeech), b); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	req := fb.speech[0]
	if req.Text != "Votre commande a été expédiée" {
		t.Errorf("expected localised unquoted text, got %q", req.Text)
	}
	if req.Voice != "nova" || req.Speed != 1.25 || req.LanguageCode != "fr-FR" {
		t.Errorf("unexpected speech request %+v", req)
	}
}

func TestVoice(t *testing.T) {
	s := newTestService(t)
	tests := []struct {
		platform, requested, want string
	}{
		{"openai", "", "alloy"},
		{"openai", "shimmer", "shimmer"},
		{"OpenAI", "robot", "alloy"},
		{"googlecloud", "en-US-Wavenet-D", "en-US-Wavenet-D"},
		{"googlecloud", "", ""},
	}
	for _, tt := range tests {
		if got := s.voice(tt.platform, tt.requested); got != tt.want {
			t.Errorf("voice(%s, %q): expected %q, got %q", tt.platform, tt.requested, tt.want, got)
		}
	}
}

func TestTranscribe(t *testing.T) {
	audio := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("RIFFdata"))
	}))
	defer audio.Close()

	fb := newFakeBackend()
	var got provider.TranscribeRequest
	fb.transcribe = func(req provider.TranscribeRequest) (string, error) {
		got = req
		return " hello there ", nil
	}
	s := newTestService(t, fb)

	resp, err := s.Transcribe(context.Background(), testSession("openai", auth.SpeechToText), api.TranscribeRequest{
		AudioURL: audio.URL + "/calls/rec-1.wav", MessageID: "m1", UXID: "ux1", ProcessCode: "PC", LanguageCode: "en-US",
	})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if resp.Transcript != "hello there" {
		t.Errorf("expected trimmed transcript, got %q", resp.Transcript)
	}
	if string(got.Audio) != "RIFFdata" || got.FileName != "rec-1.wav" || got.LanguageCode != "en-US" {
		t.Errorf("unexpected transcribe request %+v", got)
	}
}

func TestTranscribeRejectsBadURL(t *testing.T) {
	fb := newFakeBackend()
	s := newTestService(t, fb)
	_, err := s.Transcribe(context.Background(), testSession("openai", auth.SpeechToText), api.TranscribeRequest{
		AudioURL: "file:///etc/passwd", MessageID: "m1", UXID: "ux1", ProcessCode: "PC",
	})
	requireFailure(t, err, 400, envelope.CodeSessionInitFailed)
	if fb.Calls("transcribe") != 0 {
		t.Error("expected no provider call")
	}
}

func TestTranscribeDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := newTestService(t, newFakeBackend())
	_, err := s.Transcribe(context.Background(), testSession("openai", auth.SpeechToText), api.TranscribeRequest{
		AudioURL: srv.URL + "/missing.mp3", MessageID: "m1", UXID: "ux1", ProcessCode: "PC",
	})
	requireFailure(t, err, 502, CodeTranscribeError)
}

func TestAudioName(t *testing.T) {
	tests := map[string]string{
		"https://x/a/b/call.mp3?sig=1": "call.mp3",
		"https://x/":                   "audio.wav",
		"https://x/stream":             "audio.wav",
	}
	for in, want := range tests {
		if got := audioName(in); got != want {
			t.Errorf("audioName(%q): expected %q, got %q", in, want, got)
		}
	}
}
