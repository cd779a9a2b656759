package relink

import (
	"context"
	"strings"

	"github.com/julianfbeck/panopto-relink-cli/internal/panopto"
	"golang.org/x/time/rate"
)

type BatchResult struct {
	Group   string           `json:"group"`
	Session *panopto.Session `json:"session,omitempty"`
	Err     error            `json:"-"`
}

// Batch resolves names one after another, waiting on limiter (if any)
// before each lookup. Blank names are skipped; the rest are passed to
// Resolve unchanged. A failed lookup does not stop the batch; only a
// canceled context does.
func Batch(ctx context.Context, r *Resolver, names []string, limiter *rate.Limiter, fn func(BatchResult)) error {
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		session, err := r.Resolve(ctx, name)
		fn(BatchResult{Group: name, Session: session, Err: err})
	}
	return nil
}
