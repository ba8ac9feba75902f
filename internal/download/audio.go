package download

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ffmpegBinary is the executable looked up on PATH. Tests swap it out.
var ffmpegBinary = "ffmpeg"

// HasFFmpeg reports whether ffmpeg is on PATH.
func HasFFmpeg() bool {
	_, err := exec.LookPath(ffmpegBinary)
	return err == nil
}

// ExtractAudio writes the audio track of videoPath to dir as a 16 kHz mono
// WAV, the input format speech recognizers expect, and returns its path.
// A failed run leaves no partial file behind.
func ExtractAudio(ctx context.Context, videoPath, dir string) (string, error) {
	ffmpegPath, err := exec.LookPath(ffmpegBinary)
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating audio directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	outputPath := filepath.Join(dir, base+".wav")

	// Explicit argument slice; paths are never passed through a shell.
	args := []string{
		"-y",
		"-i", videoPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("ffmpeg audio extraction failed: %w: %s", err, lastLine(stderr.String()))
	}

	return outputPath, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
