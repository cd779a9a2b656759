package download

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultChunkSize = 64 * 1024
	progressEvery    = 500 * time.Millisecond
)

var filenameCleaner = regexp.MustCompile(`[^a-zA-Z0-9._\- ]+`)

var rateUnits = map[string]float64{
	"":    1,
	"B":   1,
	"K":   1 << 10,
	"KB":  1 << 10,
	"KIB": 1 << 10,
	"M":   1 << 20,
	"MB":  1 << 20,
	"MIB": 1 << 20,
}

func SanitizeFileName(name string) string {
	clean := strings.TrimSpace(name)
	clean = filenameCleaner.ReplaceAllString(clean, "_")
	clean = strings.Trim(clean, "._ ")
	if clean == "" {
		return "thumbnail"
	}
	return clean
}

// ThumbnailPath names the file for a session thumbnail inside baseDir.
// The session id keeps two sessions with the same title apart.
func ThumbnailPath(baseDir, sessionName, sessionID, contentType string) string {
	name := SanitizeFileName(sessionName)
	if sessionID != "" {
		name += "-" + SanitizeFileName(sessionID)
	}
	return filepath.Join(baseDir, name+ExtensionFor(contentType))
}

// ExtensionFor maps an image content type to a file extension, defaulting
// to .jpg which is what the remote frame grabber serves.
func ExtensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".jpg"
	}
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".jpg"
}

type progressWriter struct {
	ctx        context.Context
	dst        io.Writer
	limiter    *rate.Limiter
	total      int64
	written    int64
	lastUpdate time.Time
	onProgress func(int64, int64)
}

func (w *progressWriter) Write(p []byte) (int, error) {
	var n int
	for len(p) > 0 {
		chunk := p
		if w.limiter != nil {
			if burst := w.limiter.Burst(); burst > 0 && len(chunk) > burst {
				chunk = chunk[:burst]
			}
			if err := w.limiter.WaitN(w.ctx, len(chunk)); err != nil {
				return n, err
			}
		}
		wn, err := w.dst.Write(chunk)
		n += wn
		w.written += int64(wn)
		if err != nil {
			return n, err
		}
		p = p[len(chunk):]
	}
	if w.onProgress != nil && time.Since(w.lastUpdate) > progressEvery {
		w.lastUpdate = time.Now()
		w.onProgress(w.written, w.total)
	}
	return n, nil
}

// CopyWithProgress copies src to dst, pacing writes on limiter when one is
// given and reporting progress periodically and once at the end.
func CopyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64, limiter *rate.Limiter, onProgress func(int64, int64)) (int64, error) {
	pw := &progressWriter{
		ctx:        ctx,
		dst:        dst,
		limiter:    limiter,
		total:      total,
		lastUpdate: time.Now(),
		onProgress: onProgress,
	}
	_, err := io.CopyBuffer(pw, src, make([]byte, defaultChunkSize))
	if err != nil {
		return pw.written, err
	}
	if onProgress != nil {
		onProgress(pw.written, total)
	}
	return pw.written, nil
}

// SaveFile writes src to path through CopyWithProgress. On any failure the
// partial file is removed.
func SaveFile(ctx context.Context, path string, src io.Reader, total int64, limiter *rate.Limiter, onProgress func(int64, int64)) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, err
	}
	n, err := CopyWithProgress(ctx, f, src, total, limiter, onProgress)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return n, err
	}
	return n, nil
}

// ParseRateLimit parses a byte rate such as "500K" or "2M". Empty means no
// limit and returns nil.
func ParseRateLimit(rateStr string) (*rate.Limiter, error) {
	rateStr = strings.TrimSpace(rateStr)
	if rateStr == "" {
		return nil, nil
	}

	idx := strings.IndexFunc(rateStr, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	numPart, unitPart := rateStr, ""
	if idx >= 0 {
		numPart, unitPart = rateStr[:idx], strings.TrimSpace(rateStr[idx:])
	}
	if numPart == "" {
		return nil, fmt.Errorf("missing rate value")
	}
	value, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid rate value: %w", err)
	}
	multiplier, ok := rateUnits[strings.ToUpper(unitPart)]
	if !ok {
		return nil, fmt.Errorf("unknown rate unit: %s", unitPart)
	}

	bytesPerSec := value * multiplier
	if bytesPerSec < 1 {
		return nil, fmt.Errorf("rate must be at least 1 byte/s")
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec)), nil
}
