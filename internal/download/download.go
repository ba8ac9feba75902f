// Package download streams media to disk. Files are written beside the target
// as .part and renamed into place only once the stream completes.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"dyfetch/internal/httputil"
)

// ErrIncomplete reports a stream that ended before Content-Length bytes arrived.
var ErrIncomplete = errors.New("download incomplete")

// chunkSize is the read granularity and progress reporting interval.
const chunkSize = 8 * 1024

// partSuffix marks an in-flight download.
const partSuffix = ".part"

// Progress is reported after every chunk.
type Progress struct {
	Written int64
	Total   int64   // 0 when the server sent no Content-Length
	Percent float64 // 0 when Total is unknown
}

// Known reports whether the total size is known.
func (p Progress) Known() bool {
	return p.Total > 0
}

// Options configures a single download.
type Options struct {
	Timeout    time.Duration // Zero means no deadline beyond ctx
	OnProgress func(Progress)
}

// File streams rawURL into dest and returns the number of bytes written.
// On any failure nothing is left at dest or at dest.part.
func File(ctx context.Context, transport httputil.Transport, rawURL, dest string, opts Options) (int64, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("creating output directory: %w", err)
	}

	resp, err := transport.Stream(ctx, httputil.Request{URL: rawURL, FollowRedirects: true})
	if err != nil {
		return 0, fmt.Errorf("requesting %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	partPath := dest + partSuffix
	f, err := os.Create(partPath)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", partPath, err)
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	written, err := copyChunks(f, resp.Body, total, opts.OnProgress)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("closing %s: %w", partPath, closeErr)
	}
	if err == nil && total > 0 && written < total {
		err = fmt.Errorf("%w: got %d of %d bytes", ErrIncomplete, written, total)
	}
	if err != nil {
		os.Remove(partPath)
		return 0, err
	}

	if err := os.Rename(partPath, dest); err != nil {
		os.Remove(partPath)
		return 0, fmt.Errorf("moving download into place: %w", err)
	}
	return written, nil
}

func copyChunks(w io.Writer, r io.Reader, total int64, onProgress func(Progress)) (int64, error) {
	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("writing: %w", err)
			}
			written += int64(n)
			if onProgress != nil {
				p := Progress{Written: written, Total: total}
				if total > 0 {
					p.Percent = float64(written) / float64(total) * 100
				}
				onProgress(p)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, fmt.Errorf("reading stream: %w", readErr)
		}
	}
}

// knownExts are extensions trusted from a CDN URL path.
var knownExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".heic": true,
	".gif": true, ".mp4": true, ".mov": true, ".m4a": true, ".mp3": true,
}

// Extension returns the media extension of rawURL's path, or fallback when the
// path has none worth trusting. Image CDN paths often end in template
// suffixes such as "~tplv-dy:q75.webp".
func Extension(rawURL, fallback string) string {
	p := rawURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	ext := strings.ToLower(path.Ext(p))
	if knownExts[ext] {
		return ext
	}
	return fallback
}

// Filename builds a sanitized file name from a content ID, an optional label
// and an extension: "7312…567.mp4", "7312…567_cover.jpeg", "7312…567_02_live.mp4".
func Filename(id, label, ext string) string {
	name := id
	if label != "" {
		name += "_" + label
	}
	return httputil.SanitizeFilename(name + ext)
}
