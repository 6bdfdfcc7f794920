package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/native-abi/binding"
	"github.com/wippyai/native-abi/config"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/linker"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [flags]",
		Short: "Arrange every signature of a catalogue",
		Long:  `Batch arranges all catalogue entries concurrently and reports every failure at once`,
		Args:  cobra.NoArgs,
		RunE:  runBatch,
	}
	cmd.Flags().Int("jobs", runtime.GOMAXPROCS(0), "number of concurrent arrangements")
	cmd.Flags().String("out-dir", "", "write each calling sequence to <out-dir>/<name>.plan")
	return cmd
}

func runBatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg == nil {
		return errors.InvalidInput(errors.PhaseConfig, "batch needs --config")
	}
	plans, err := cfg.Plans()
	if err != nil {
		return err
	}

	jobs, _ := cmd.Flags().GetInt("jobs")
	outDir, _ := cmd.Flags().GetString("out-dir")

	results, err := arrangeAll(cmd.Context(), linker.New(nil, nil), plans, jobs)
	if err != nil && results == nil {
		return err
	}

	styled := useColor(cmd, os.Stdout)
	out := cmd.OutOrStdout()
	for i, p := range plans {
		cs := results[i]
		if cs == nil {
			continue
		}
		fmt.Fprintln(out, renderPlan(p.Name, p, cs, styled))
		if outDir != "" {
			if werr := writePlan(filepath.Join(outDir, p.Name+".plan"), cs); werr != nil {
				return werr
			}
		}
	}
	return err
}

// arrangeAll arranges plans concurrently. Results are in plan order, nil
// for failed plans; the failures are reported together as a BatchError.
func arrangeAll(ctx context.Context, l *linker.Linker, plans []*config.Plan, jobs int) ([]*binding.CallingSequence, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]*binding.CallingSequence, len(plans))
	failed := make([]error, len(plans))

	g, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, p := range plans {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cs, err := arrange(l, p)
			if err != nil {
				failed[i] = err
				return nil
			}
			results[i] = cs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var failures []errors.Failure
	for i, err := range failed {
		if err != nil {
			failures = append(failures, errors.Failure{Name: plans[i].Name, Err: err})
		}
	}
	if len(failures) > 0 {
		return results, errors.NewBatchError(failures)
	}
	return results, nil
}
