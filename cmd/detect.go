// File: cmd/detect.go
package cmd

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/consentry/internal/detect"
	"github.com/xkilldash9x/consentry/internal/observability"
	"github.com/xkilldash9x/consentry/internal/patterns"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// verdict is the detect command's stdout document.
type verdict struct {
	Detected bool           `json:"detected"`
	Result   *detect.Result `json:"result,omitempty"`
}

func newDetectCmd() *cobra.Command {
	var file, url string

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run one detection pass and print the verdict as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

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
			return printVerdict(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "local HTML fixture to scan")
	cmd.Flags().StringVar(&url, "url", "", "page URL to scan in a live browser")
	return cmd
}

func printVerdict(w io.Writer, res *detect.Result) error {
	out, err := json.MarshalIndent(verdict{Detected: res != nil, Result: res}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding verdict: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
