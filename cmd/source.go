// File: cmd/source.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/consentry/internal/browser"
	"github.com/xkilldash9x/consentry/internal/config"
	"github.com/xkilldash9x/consentry/internal/detect"
	"github.com/xkilldash9x/consentry/internal/page"
)

// snapshotSource resolves the --file/--url pair into a snapshot producer.
// In url mode the returned session is live and must be closed via cleanup;
// in file mode the session is nil and every call re-parses the fixture.
func snapshotSource(ctx context.Context, file, url string, c *config.Config, log *zap.Logger) (*browser.Session, detect.SnapshotFunc, func(), error) {
	switch {
	case file != "" && url != "":
		return nil, nil, nil, fmt.Errorf("--file and --url are mutually exclusive")

	case file != "":
		fn := func(context.Context) (*page.Snapshot, error) {
			return page.ParseFile(file, page.Options{
				ViewportW: float64(c.Chrome.ViewportWidth),
				ViewportH: float64(c.Chrome.ViewportHeight),
			})
		}
		return nil, fn, func() {}, nil

	case url != "":
		sess, err := browser.NewSession(ctx, c.Chrome, log)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := sess.Navigate(ctx, url); err != nil {
			sess.Close()
			return nil, nil, nil, err
		}
		return sess, sess.Snapshot, sess.Close, nil

	default:
		return nil, nil, nil, fmt.Errorf("one of --file or --url is required")
	}
}

// settle waits the configured post-load delay so late-injected banners get a
// chance to appear before the first pass.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
