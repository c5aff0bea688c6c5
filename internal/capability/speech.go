package capability

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/rsclarke/aiconnect/internal/api"
	"github.com/rsclarke/aiconnect/internal/auth"
	"github.com/rsclarke/aiconnect/internal/cache"
	"github.com/rsclarke/aiconnect/internal/envelope"
	"github.com/rsclarke/aiconnect/internal/prompt"
	"github.com/rsclarke/aiconnect/internal/provider"
)

const (
	CodeTextToSpeechSuccess = "TextToSpeechSuccess"
	CodeTextToSpeechError   = "TextToSpeechError"
	CodeTranscribeSuccess   = "TranscribeSuccess"
	CodeTranscribeError     = "TranscribeError"

	MsgTextToSpeechSuccess = "Text to Speech completed successfully"
	MsgTextToSpeechError   = "Text-to-speech synthesis failed"
	MsgTranscribeSuccess   = "Transcription completed successfully"
	MsgTranscribeError     = "Transcription failed"
)

const defaultVoice = "alloy"

// Synthesize renders a message to an audio file under the audio directory
// and returns its public URL.
func (s *Service) Synthesize(ctx context.Context, sess *auth.Session, b api.SynthesizeRequest) (*api.SynthesizeResponse, error) {
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	if err := envelope.Required(req, "Message", b.Message, "MessageID", b.MessageID, "UXID", b.UXID, "ProcessCode", b.ProcessCode); err != nil {
		return nil, err
	}

	key := cache.Fingerprint(string(cache.TTS), b.ProcessCode, b.MessageID, b.Message, b.LanguageCode, b.VoiceModel, sess.TenantCode)
	if rec, ok := s.cache.Load(ctx, cache.TTS, key); ok {
		var resp api.SynthesizeResponse
		if err := rec.Decode(&resp); err == nil {
			return &resp, nil
		}
	}

	text := b.Message
	if b.LanguageCode != "" {
		localized, err := provider.Call(ctx, s.providers.Generators, sess.XPlatformID,
			func(ctx context.Context, g provider.Generator) (string, error) {
				return g.Generate(ctx, sess.XPlatformUA, prompt.SpeechLanguage(b.Message, b.LanguageCode))
			})
		if err != nil {
			return nil, upstream(err, MsgTextToSpeechError, CodeTextToSpeechError, req)
		}
		text = strings.Trim(strings.TrimSpace(localized), `"`)
	}

	speed := b.SpeakingRate
	if speed <= 0 {
		speed = 1.0
	}
	audio, err := provider.Call(ctx, s.providers.Synthesizers, sess.XPlatformID,
		func(ctx context.Context, syn provider.Synthesizer) (*provider.Audio, error) {
			return syn.Synthesize(ctx, sess.XPlatformUA, provider.SpeechRequest{
				Text:         text,
				Voice:        s.voice(sess.XPlatformID, b.VoiceModel),
				LanguageCode: b.LanguageCode,
				Format:       s.cfg.AudioFormat,
				Speed:        speed,
			})
		})
	if err != nil {
		return nil, upstream(err, MsgTextToSpeechError, CodeTextToSpeechError, req)
	}

	name, err := s.writeAudio(audio)
	if err != nil {
		return nil, internalFault(err, MsgTextToSpeechError, req)
	}

	resp := api.SynthesizeResponse{Audio: s.cfg.AudioPublicURL + "/" + name}
	s.cache.Save(ctx, cache.TTS, key, cache.Record{
		Token:       sess.Token,
		TenantCode:  sess.TenantCode,
		ProcessCode: b.ProcessCode,
		UXID:        b.UXID,
		MessageID:   b.MessageID,
		Meta:        map[string]any{"File": name},
	}, resp)
	return &resp, nil
}

// voice picks the OpenAI voice, falling back to alloy for names outside the
// configured set. Other platforms receive the requested voice unchanged.
func (s *Service) voice(platform, requested string) string {
	p, err := provider.ParsePlatform(platform)
	if err != nil || p != provider.OpenAI {
		return requested
	}
	if requested == "" || !s.cfg.VoiceAllowed(requested) {
		return defaultVoice
	}
	return requested
}

func (s *Service) writeAudio(audio *provider.Audio) (string, error) {
	if audio == nil || len(audio.Data) == 0 {
		return "", errors.New("empty audio")
	}
	ext := audio.Format
	if ext == "" {
		ext = s.cfg.AudioFormat
	}
	if err := os.MkdirAll(s.cfg.AudioDir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	name := fmt.Sprintf("tts-%d.%s", s.now().UnixNano(), ext)
	if err := os.WriteFile(filepath.Join(s.cfg.AudioDir, name), audio.Data, 0o644); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	s.logger.Debug("audio written", zap.String("file", name), zap.Int("bytes", len(audio.Data)))
	return name, nil
}

// Transcribe downloads the audio at AudioURL and converts it to text.
// Results are not cached.
func (s *Service) Transcribe(ctx context.Context, sess *auth.Session, q api.TranscribeRequest) (*api.TranscribeResponse, error) {
	req := envelope.Request{ReqID: q.ReqID, ReqCode: q.ReqCode}
	if err := envelope.Required(req, "AudioUrl", q.AudioURL, "MessageID", q.MessageID, "UXID", q.UXID, "ProcessCode", q.ProcessCode); err != nil {
		return nil, err
	}

	data, err := provider.Download(ctx, s.http, q.AudioURL)
	if errors.Is(err, provider.ErrBadURL) {
		return nil, envelope.Invalid("AudioUrl must be an http or https URL", req).WithCause(err)
	}
	if err != nil {
		return nil, upstream(err, MsgTranscribeError, CodeTranscribeError, req)
	}

	text, err := provider.Call(ctx, s.providers.Transcribers, sess.XPlatformID,
		func(ctx context.Context, t provider.Transcriber) (string, error) {
			return t.Transcribe(ctx, sess.XPlatformUA, provider.TranscribeRequest{
				Audio:        data,
				FileName:     audioName(q.AudioURL),
				LanguageCode: q.LanguageCode,
			})
		})
	if err != nil {
		return nil, upstream(err, MsgTranscribeError, CodeTranscribeError, req)
	}
	return &api.TranscribeResponse{Transcript: strings.TrimSpace(text)}, nil
}

func audioName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "audio.wav"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || !strings.Contains(name, ".") {
		return "audio.wav"
	}
	return name
}
