// File: cmd/watch.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/consentry/internal/actuate"
	"github.com/xkilldash9x/consentry/internal/browser"
	"github.com/xkilldash9x/consentry/internal/config"
	"github.com/xkilldash9x/consentry/internal/control"
	"github.com/xkilldash9x/consentry/internal/detect"
	"github.com/xkilldash9x/consentry/internal/monitor"
	"github.com/xkilldash9x/consentry/internal/notify"
	"github.com/xkilldash9x/consentry/internal/observability"
	"github.com/xkilldash9x/consentry/internal/patterns"
	"github.com/xkilldash9x/consentry/internal/policy"
	"github.com/xkilldash9x/consentry/internal/store"
)

func newWatchCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Hold a live session open: detect, rescan on mutations, actuate per policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" {
				return fmt.Errorf("--url is required")
			}
			return runWatch(cmd.Context(), target)
		},
	}
	cmd.Flags().StringVar(&target, "url", "", "page URL to watch")
	return cmd
}

func runWatch(ctx context.Context, target string) error {
	logger := observability.GetLogger()
	db := patterns.LoadOrFallback(cfg.PatternDB.Path, logger)

	sess, err := browser.NewSession(ctx, cfg.Chrome, logger)
	if err != nil {
		return err
	}
	defer sess.Close()
	if err := sess.Navigate(ctx, target); err != nil {
		return err
	}

	host := ""
	if u, err := url.Parse(target); err == nil {
		host = u.Hostname()
	}

	sinks := notify.Multi{notify.NewLogger(logger)}
	if cfg.DB.URL != "" {
		st, err := store.Connect(ctx, cfg.DB, logger)
		if err != nil {
			// Event history is optional; the session runs without it.
			logger.Warn("Statistics store unavailable.", zap.Error(err))
		} else {
			sinks = append(sinks, st)
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				st.Close(closeCtx)
			}()
		}
	}

	det := detect.New(sess.Snapshot, db, cfg.Detect, logger)
	act := actuate.New(db, browser.NewDispatcher(sess), det, sinks, cfg.Act, logger)
	agent := &watchAgent{
		det:      det,
		act:      act,
		cfg:      cfg,
		host:     host,
		url:      target,
		notifier: sinks,
		log:      logger.Named("watch"),
	}

	mon := monitor.New(cfg.Watch, func() { agent.pass(ctx) }, logger)
	defer mon.Stop()
	if err := sess.WatchMutations(mon.Bump); err != nil {
		logger.Warn("Mutation watch unavailable; rescans rely on the control surface.", zap.Error(err))
	}

	if cfg.Ctl.Enabled {
		srv := control.NewServer(agent, logger)
		if err := srv.Start(cfg.Ctl.Listen); err != nil {
			return err
		}
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutCtx)
		}()
	}

	if err := settle(ctx, cfg.Detect.SettleDelay); err != nil {
		return err
	}
	agent.pass(ctx)

	<-ctx.Done()
	logger.Info("Watch session ending.")
	return nil
}

// watchAgent is the running session behind the control surface and the
// mutation-driven rescan loop.
type watchAgent struct {
	det      *detect.Detector
	act      *actuate.Actuator
	cfg      *config.Config
	host     string
	url      string
	notifier notify.Notifier
	log      *zap.Logger

	mu sync.Mutex
}

func (a *watchAgent) Detect(ctx context.Context) (*detect.Result, error) {
	return a.det.Detect(ctx)
}

func (a *watchAgent) Actuate(ctx context.Context, polarity patterns.Polarity) (*actuate.Outcome, error) {
	res, err := a.det.Detect(ctx)
	if err != nil {
		return nil, err
	}
	return a.act.Actuate(ctx, res, polarity)
}

func (a *watchAgent) Configure(_ context.Context, change control.ConfigChange) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if change.Mode != nil {
		mode := config.Mode(*change.Mode)
		switch mode {
		case config.ModeAccept, config.ModeReject, config.ModeOff:
			a.cfg.SetMode(mode)
		default:
			return fmt.Errorf("unknown mode %q", *change.Mode)
		}
	}
	if change.Debug != nil {
		a.cfg.SetDebug(*change.Debug)
		a.det.SetDebug(*change.Debug)
	}
	if change.Policy != nil {
		a.cfg.SetPolicy(config.PolicyConfig{
			Allow: change.Policy.Allow,
			Deny:  change.Policy.Deny,
		})
	}
	a.log.Info("Runtime configuration updated.")
	return nil
}

// pass runs one detect-and-maybe-actuate cycle. Busy detections are dropped;
// the monitor schedules another pass on the next mutation.
func (a *watchAgent) pass(ctx context.Context) {
	a.mu.Lock()
	verdict := policy.Decide(a.host, a.cfg.Policy())
	mode := a.cfg.Detector().Mode
	a.mu.Unlock()

	if verdict == policy.Skip {
		return
	}

	res, err := a.det.Detect(ctx)
	if errors.Is(err, detect.ErrBusy) {
		return
	}
	if err != nil {
		a.log.Warn("Detection pass failed.", zap.Error(err))
		return
	}
	if res == nil {
		return
	}
	a.notifier.BannerObserved(ctx, notify.BannerObserved{
		ID:         uuid.New(),
		Time:       time.Now(),
		URL:        a.url,
		Method:     string(res.Method),
		CMPName:    res.CMPName,
		Confidence: res.Confidence,
	})

	polarity := patterns.PolarityAccept
	switch {
	case verdict == policy.ForceAccept:
	case mode == config.ModeReject:
		polarity = patterns.PolarityReject
	case mode == config.ModeOff:
		return
	}

	if _, err := a.act.Actuate(ctx, res, polarity); err != nil {
		if !errors.Is(err, actuate.ErrNoControl) {
			a.log.Warn("Auto-actuation failed.", zap.Error(err))
		}
	}
}
