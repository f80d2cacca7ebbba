// File: cmd/act.go
package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/consentry/internal/actuate"
	"github.com/xkilldash9x/consentry/internal/browser"
	"github.com/xkilldash9x/consentry/internal/detect"
	"github.com/xkilldash9x/consentry/internal/notify"
	"github.com/xkilldash9x/consentry/internal/observability"
	"github.com/xkilldash9x/consentry/internal/patterns"
)

// actionReport is the act command's stdout document.
type actionReport struct {
	Actuated bool   `json:"actuated"`
	Polarity string `json:"polarity,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
	Error    string `json:"error,omitempty"`
}

func newActCmd() *cobra.Command {
	var file, url, polarityFlag string

	cmd := &cobra.Command{
		Use:   "act",
		Short: "Detect a banner and click the control for the requested polarity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			polarity, err := parsePolarityFlag(polarityFlag)
			if err != nil {
				return err
			}

			db := patterns.LoadOrFallback(cfg.PatternDB.Path, logger)
			sess, snapFn, cleanup, err := snapshotSource(ctx, file, url, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			if sess != nil {
				if err := settle(ctx, cfg.Detect.SettleDelay); err != nil {
					return err
				}
			}

			det := detect.New(snapFn, db, cfg.Detect, logger)
			res, err := det.Detect(ctx)
			if err != nil {
				return err
			}

			// File mode records the pointer sequence instead of delivering it.
			var disp actuate.Dispatcher = &actuate.Recorder{}
			if sess != nil {
				disp = browser.NewDispatcher(sess)
			}
			act := actuate.New(db, disp, det, notify.NewLogger(logger), cfg.Act, logger)

			outcome, err := act.Actuate(ctx, res, polarity)
			switch {
			case errors.Is(err, actuate.ErrNoBanner):
				return printAction(cmd.OutOrStdout(), actionReport{Error: "no banner detected"})
			case errors.Is(err, actuate.ErrNoControl):
				return printAction(cmd.OutOrStdout(), actionReport{Error: "no control found for requested polarity"})
			case err != nil:
				return err
			}
			return printAction(cmd.OutOrStdout(), actionReport{
				Actuated: true,
				Polarity: string(outcome.Polarity),
				Fallback: outcome.Fallback,
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "local HTML fixture to scan")
	cmd.Flags().StringVar(&url, "url", "", "page URL to scan in a live browser")
	cmd.Flags().StringVar(&polarityFlag, "polarity", "accept", "control to actuate: accept or reject")
	return cmd
}

func parsePolarityFlag(raw string) (patterns.Polarity, error) {
	switch raw {
	case "accept":
		return patterns.PolarityAccept, nil
	case "reject", "deny":
		return patterns.PolarityReject, nil
	default:
		return "", fmt.Errorf("--polarity must be accept or reject, got %q", raw)
	}
}

func printAction(w io.Writer, report actionReport) error {
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding action report: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
