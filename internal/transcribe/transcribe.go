// Package transcribe converts downloaded audio into text through a
// pluggable speech-recognition engine.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"dyfetch/internal/config"
)

// ErrTranscription wraps every engine failure.
var ErrTranscription = errors.New("transcription failed")

// Request names the audio to transcribe. Empty model fields use the engine's
// configured defaults.
type Request struct {
	AudioPath string
	Model     string
	VADModel  string
	PuncModel string
}

// Result is a finished transcript.
type Result struct {
	Text   string
	Engine string
}

// Engine is a speech-to-text backend.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, req Request) (*Result, error)
}

// New returns the engine selected by cfg.Engine.
func New(cfg config.Transcribe, logger zerolog.Logger) (Engine, error) {
	switch strings.ToLower(cfg.Engine) {
	case config.EngineFunASR:
		return NewFunASR(cfg, logger), nil
	case config.EngineWhisper:
		return NewWhisper(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown transcription engine %q", cfg.Engine)
	}
}

// checkAudio rejects missing and empty audio files before an engine spends
// time loading models.
func checkAudio(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: audio file does not exist: %s", ErrTranscription, path)
		}
		return fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: audio path is a directory: %s", ErrTranscription, path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: audio file is empty: %s", ErrTranscription, path)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
