package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dyfetch/internal/config"
)

// funasrTimeout bounds a single CLI run, model loading included.
const funasrTimeout = 5 * time.Minute

const funasrInstallHint = "FunASR is not installed. Install it with: pip install torch>=1.13 torchaudio funasr>=1.0.0"

// FunASR runs the funasr command-line tool.
type FunASR struct {
	bin       string
	model     string
	vadModel  string
	puncModel string
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewFunASR creates a FunASR engine with the configured binary and models.
func NewFunASR(cfg config.Transcribe, logger zerolog.Logger) *FunASR {
	return &FunASR{
		bin:       firstNonEmpty(cfg.FunASRBin, "funasr"),
		model:     cfg.Model,
		vadModel:  cfg.VADModel,
		puncModel: cfg.PuncModel,
		timeout:   funasrTimeout,
		logger:    logger,
	}
}

func (f *FunASR) Name() string { return config.EngineFunASR }

// Transcribe runs funasr on req.AudioPath and parses the transcript from stdout.
func (f *FunASR) Transcribe(ctx context.Context, req Request) (*Result, error) {
	if err := checkAudio(req.AudioPath); err != nil {
		return nil, err
	}

	binPath, err := exec.LookPath(f.bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTranscription, funasrInstallHint)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	// Explicit argument slice; the audio path is never passed through a shell.
	args := []string{
		"++model=" + firstNonEmpty(req.Model, f.model),
		fmt.Sprintf("++vad_model=%q", firstNonEmpty(req.VADModel, f.vadModel)),
		fmt.Sprintf("++punc_model=%q", firstNonEmpty(req.PuncModel, f.puncModel)),
		"++input=" + req.AudioPath,
	}

	cmd := exec.CommandContext(ctx, binPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	f.logger.Debug().Str("bin", binPath).Strs("args", args).Msg("Running FunASR")
	start := time.Now()

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: funasr timed out after %s", ErrTranscription, f.timeout)
		}
		msg := stderr.String()
		if strings.Contains(msg, "command not found") || strings.Contains(msg, "No such file or directory: 'funasr'") {
			return nil, fmt.Errorf("%w: %s", ErrTranscription, funasrInstallHint)
		}
		return nil, fmt.Errorf("%w: funasr exited: %v: %s", ErrTranscription, err, strings.TrimSpace(msg))
	}

	text := parseFunASROutput(stdout.String())
	if text == "" {
		return nil, fmt.Errorf("%w: no transcript in funasr output", ErrTranscription)
	}

	f.logger.Debug().Dur("took", time.Since(start)).Int("chars", len([]rune(text))).Msg("FunASR finished")
	return &Result{Text: text, Engine: f.Name()}, nil
}

// logKeywords mark lines FunASR writes while loading models.
var logKeywords = []string{"error", "warning", "info", "debug", "loading", "building", "download"}

func isLogLine(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range logKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// parseFunASROutput picks the transcript out of funasr's stdout. It prefers
// the first plain-text line that is not a log line or a JSON/list dump, then
// falls back to all non-log lines joined, then to the raw output.
func parseFunASROutput(output string) string {
	output = strings.TrimSpace(output)
	if output == "" {
		return ""
	}
	lines := strings.Split(output, "\n")

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "[") || strings.HasPrefix(line, "INFO") || strings.HasPrefix(line, "{") {
			continue
		}
		if isLogLine(line) {
			continue
		}
		return line
	}

	var kept []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "[") || isLogLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) > 0 {
		return strings.Join(kept, " ")
	}
	return output
}
