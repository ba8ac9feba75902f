package transcribe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dyfetch/internal/config"
)

type capturedUpload struct {
	auth     string
	path     string
	model    string
	language string
	file     []byte
}

func newWhisperServer(t *testing.T, status int, text string, got *capturedUpload) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.auth = r.Header.Get("Authorization")
		got.path = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			got.model = r.FormValue("model")
			got.language = r.FormValue("language")
			if f, _, err := r.FormFile("file"); err == nil {
				got.file, _ = io.ReadAll(f)
				f.Close()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "invalid file format", "type": "invalid_request_error"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"text": text})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func whisperConfig(baseURL string) config.Transcribe {
	cfg := config.Default().Transcribe
	cfg.Engine = config.EngineWhisper
	cfg.OpenAIKey = "sk-test"
	cfg.OpenAIBaseURL = baseURL + "/v1/"
	cfg.Language = "zh"
	return cfg
}

func TestWhisperTranscribe(t *testing.T) {
	var got capturedUpload
	srv := newWhisperServer(t, http.StatusOK, " 大家好，欢迎来到我的频道。 ", &got)

	engine, err := NewWhisper(whisperConfig(srv.URL), zerolog.Nop())
	require.NoError(t, err)

	res, err := engine.Transcribe(context.Background(), Request{AudioPath: writeAudio(t)})
	require.NoError(t, err)

	assert.Equal(t, "大家好，欢迎来到我的频道。", res.Text)
	assert.Equal(t, config.EngineWhisper, res.Engine)
	assert.Equal(t, "Bearer sk-test", got.auth)
	assert.Equal(t, "/v1/audio/transcriptions", got.path)
	assert.Equal(t, "whisper-1", got.model)
	assert.Equal(t, "zh", got.language)
	assert.Equal(t, "RIFF....WAVE", string(got.file))
}

func TestWhisperModelOverride(t *testing.T) {
	var got capturedUpload
	srv := newWhisperServer(t, http.StatusOK, "ok", &got)

	engine, err := NewWhisper(whisperConfig(srv.URL), zerolog.Nop())
	require.NoError(t, err)

	_, err = engine.Transcribe(context.Background(), Request{AudioPath: writeAudio(t), Model: "gpt-4o-transcribe"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-transcribe", got.model)
}

func TestWhisperAPIError(t *testing.T) {
	var got capturedUpload
	srv := newWhisperServer(t, http.StatusBadRequest, "", &got)

	engine, err := NewWhisper(whisperConfig(srv.URL), zerolog.Nop())
	require.NoError(t, err)

	_, err = engine.Transcribe(context.Background(), Request{AudioPath: writeAudio(t)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTranscription)
	assert.Contains(t, err.Error(), "invalid file format")
}

func TestWhisperEmptyText(t *testing.T) {
	var got capturedUpload
	srv := newWhisperServer(t, http.StatusOK, "   ", &got)

	engine, err := NewWhisper(whisperConfig(srv.URL), zerolog.Nop())
	require.NoError(t, err)

	_, err = engine.Transcribe(context.Background(), Request{AudioPath: writeAudio(t)})
	assert.ErrorIs(t, err, ErrTranscription)
}

func TestWhisperRejectsMissingAudioBeforeUpload(t *testing.T) {
	var got capturedUpload
	srv := newWhisperServer(t, http.StatusOK, "ok", &got)

	engine, err := NewWhisper(whisperConfig(srv.URL), zerolog.Nop())
	require.NoError(t, err)

	_, err = engine.Transcribe(context.Background(), Request{AudioPath: "/nonexistent/clip.wav"})
	assert.ErrorIs(t, err, ErrTranscription)
	assert.Empty(t, got.path, "no request should be sent")
}
