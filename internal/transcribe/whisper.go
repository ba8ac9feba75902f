package transcribe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"dyfetch/internal/config"
)

// Whisper sends audio to an OpenAI-compatible transcription endpoint.
type Whisper struct {
	client   *openai.Client
	model    string
	language string
	logger   zerolog.Logger
}

// NewWhisper creates a Whisper engine. An API key is required.
func NewWhisper(cfg config.Transcribe, logger zerolog.Logger) (*Whisper, error) {
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("whisper engine needs an API key: set OPENAI_API_KEY or transcribe.openai_api_key")
	}

	clientCfg := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.OpenAIBaseURL, "/")
	}

	return &Whisper{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    firstNonEmpty(cfg.WhisperModel, openai.Whisper1),
		language: cfg.Language,
		logger:   logger,
	}, nil
}

func (w *Whisper) Name() string { return config.EngineWhisper }

// Transcribe uploads req.AudioPath. A non-empty req.Model must name an API
// model and overrides the configured one; the FunASR-specific fields are ignored.
func (w *Whisper) Transcribe(ctx context.Context, req Request) (*Result, error) {
	if err := checkAudio(req.AudioPath); err != nil {
		return nil, err
	}

	model := firstNonEmpty(req.Model, w.model)
	w.logger.Debug().Str("model", model).Str("file", req.AudioPath).Msg("Sending transcription request")
	start := time.Now()

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: req.AudioPath,
		Language: w.language,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: transcription API request failed: %v", ErrTranscription, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: transcription API returned empty text", ErrTranscription)
	}

	w.logger.Debug().Dur("took", time.Since(start)).Msg("Transcription received")
	return &Result{Text: text, Engine: w.Name()}, nil
}
