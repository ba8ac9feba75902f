package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"dyfetch/internal/download"
	"dyfetch/internal/history"
	"dyfetch/internal/httputil"
	"dyfetch/internal/media"
	"dyfetch/internal/provider"
	"dyfetch/internal/transcribe"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Width(8)
	urlStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

// fetchRun is the default command: dyfetch <share-url-or-text>
func fetchRun(cmd *cobra.Command, args []string) error {
	input := strings.TrimSpace(strings.Join(args, " "))
	if input == "" {
		return cmd.Help()
	}
	if flagTranscribe && flagNoDownload {
		return errors.New("--transcribe needs the downloaded video; drop --no-download")
	}

	ctx := cmd.Context()
	shareURL := provider.FindShareURL(input)
	logger.Debug().Str("url", shareURL).Msg("Share URL")

	client := httputil.NewClient(
		httputil.WithUserAgent(cfg.UserAgent),
		httputil.WithRetry(cfg.RetryConfig()),
		httputil.WithLogger(logger),
	)
	resolver := provider.NewDouyin(client, provider.Timeouts{
		Probe: cfg.Timeouts.Probe,
		Page:  cfg.Timeouts.Page,
	}, logger)

	desc, err := resolver.Resolve(ctx, shareURL)
	if err != nil {
		logger.Error().
			Err(err).
			Str("kind", media.KindOf(err).String()).
			Str("url", shareURL).
			Msg("Resolve failed")
		return err
	}

	recordHistory(ctx, shareURL, desc)

	out := cmd.OutOrStdout()
	if flagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(desc); err != nil {
			return err
		}
	} else {
		printSummary(out, desc)
	}

	if flagNoDownload {
		return nil
	}

	dir, err := cfg.ExpandOutputDir()
	if err != nil {
		return fmt.Errorf("resolving output dir: %w", err)
	}

	f := &fetcher{transport: client, dir: dir}

	var videoPath string
	if desc.VideoURL != "" {
		videoPath, err = f.save(ctx, desc.VideoURL, download.Filename(desc.ID, "", ".mp4"), true)
		if err != nil {
			return fmt.Errorf("downloading video: %w", err)
		}
	}

	if flagCover && desc.CoverURL != "" {
		name := download.Filename(desc.ID, "cover", download.Extension(desc.CoverURL, ".jpg"))
		if _, err := f.save(ctx, desc.CoverURL, name, false); err != nil {
			return fmt.Errorf("downloading cover: %w", err)
		}
	}

	if desc.IsGallery() {
		if !flagImages {
			logger.Info().Int("images", len(desc.Images)).Msg("Gallery post; pass --images to save it")
		} else if err := f.saveGallery(ctx, desc); err != nil {
			return err
		}
	}

	if flagTranscribe {
		if videoPath == "" {
			logger.Warn().Str("content_id", desc.ID).Msg("Gallery posts have no audio to transcribe")
			return nil
		}
		return transcribeVideo(ctx, out, videoPath, desc.ID, dir)
	}
	return nil
}

func printSummary(out io.Writer, desc *media.Descriptor) {
	title := desc.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintln(out, titleStyle.Render(title))

	row := func(label, value string) {
		if value != "" {
			fmt.Fprintln(out, labelStyle.Render(label)+value)
		}
	}
	row("id", desc.ID)
	if desc.Author.Name != "" {
		row("author", "@"+desc.Author.Name)
	}
	if desc.VideoURL != "" {
		row("video", urlStyle.Render(desc.VideoURL))
	}
	if desc.CoverURL != "" {
		row("cover", urlStyle.Render(desc.CoverURL))
	}
	for i, img := range desc.Images {
		row(fmt.Sprintf("img %02d", i+1), urlStyle.Render(img.URL))
		if img.LivePhotoURL != "" {
			row("  live", urlStyle.Render(img.LivePhotoURL))
		}
	}
}

// recordHistory saves desc when history is enabled. Failures are logged only.
func recordHistory(ctx context.Context, shareURL string, desc *media.Descriptor) {
	if !cfg.History {
		return
	}
	store, err := history.OpenDefault()
	if err != nil {
		logger.Debug().Err(err).Msg("Opening history failed")
		return
	}
	defer store.Close()

	if err := store.Save(ctx, shareURL, desc); err != nil {
		logger.Debug().Err(err).Msg("Saving history failed")
	}
}

// fetcher writes media files into one output directory.
type fetcher struct {
	transport httputil.Transport
	dir       string
}

// save downloads rawURL to name inside the output directory. Only a single
// foreground download draws a progress bar.
func (f *fetcher) save(ctx context.Context, rawURL, name string, showProgress bool) (string, error) {
	dest, err := httputil.SafeDownloadPath(f.dir, name)
	if err != nil {
		return "", err
	}

	opts := download.Options{Timeout: cfg.Timeouts.Download}
	var bar *progressReporter
	if showProgress {
		bar = newProgressReporter(name)
		opts.OnProgress = bar.Report
	}

	n, err := download.File(ctx, f.transport, rawURL, dest, opts)
	if bar != nil {
		bar.Done()
	}
	if err != nil {
		return "", err
	}

	logger.Info().Str("path", dest).Str("size", formatBytes(n)).Msg("Saved")
	return dest, nil
}

// galleryConcurrency caps simultaneous gallery downloads.
const galleryConcurrency = 4

// saveGallery downloads every still and live clip, at most
// galleryConcurrency at a time, and reports all failures together.
func (f *fetcher) saveGallery(ctx context.Context, desc *media.Descriptor) error {
	var g multierror.Group
	sem := semaphore.NewWeighted(galleryConcurrency)

	// spawn blocks until a slot is free.
	spawn := func(fn func() error) error {
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		g.Go(func() error {
			defer sem.Release(1)
			return fn()
		})
		return nil
	}

	var result error
	for i, img := range desc.Images {
		img := img // per-iteration copy for goroutine closures (go < 1.22 loop semantics)
		label := fmt.Sprintf("%02d", i+1)

		err := spawn(func() error {
			name := download.Filename(desc.ID, label, download.Extension(img.URL, ".jpg"))
			if _, err := f.save(ctx, img.URL, name, false); err != nil {
				return fmt.Errorf("image %s: %w", label, err)
			}
			return nil
		})
		if err != nil {
			result = multierror.Append(result, err)
			break
		}

		if img.LivePhotoURL != "" {
			err := spawn(func() error {
				name := download.Filename(desc.ID, label+"_live", download.Extension(img.LivePhotoURL, ".mp4"))
				if _, err := f.save(ctx, img.LivePhotoURL, name, false); err != nil {
					return fmt.Errorf("live photo %s: %w", label, err)
				}
				return nil
			})
			if err != nil {
				result = multierror.Append(result, err)
				break
			}
		}
	}

	if err := g.Wait().ErrorOrNil(); err != nil {
		result = multierror.Append(result, err)
	}
	if result != nil {
		return fmt.Errorf("downloading gallery: %w", result)
	}
	return nil
}

// transcribeVideo runs the configured engine, writes <id>.txt beside the video
// and echoes the transcript to out unless JSON output was requested.
func transcribeVideo(ctx context.Context, out io.Writer, videoPath, id, dir string) error {
	engine, err := transcribe.New(cfg.Transcribe, logger)
	if err != nil {
		return err
	}

	audioPath := videoPath
	if cfg.Transcribe.ExtractAudio {
		if download.HasFFmpeg() {
			audioPath, err = download.ExtractAudio(ctx, videoPath, filepath.Join(dir, "audio"))
			if err != nil {
				return err
			}
			defer os.Remove(audioPath)
		} else {
			logger.Debug().Msg("ffmpeg not found; transcribing the video file directly")
		}
	}

	logger.Info().Str("engine", engine.Name()).Str("content_id", id).Msg("Transcribing")
	// Models come from cfg.Transcribe, which already carries the flag
	// overrides; each engine reads its own fields.
	res, err := engine.Transcribe(ctx, transcribe.Request{AudioPath: audioPath})
	if err != nil {
		return err
	}

	dest, err := httputil.SafeDownloadPath(dir, download.Filename(id, "", ".txt"))
	if err != nil {
		return err
	}
	if err := os.WriteFile(dest, []byte(res.Text+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing transcript: %w", err)
	}

	logger.Info().Str("path", dest).Msg("Transcript saved")
	if !flagJSON {
		fmt.Fprintln(out, res.Text)
	}
	return nil
}
