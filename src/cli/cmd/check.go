package cmd

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dglib/buildpipe/src/output"
	"github.com/dglib/buildpipe/src/pipeline"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that every configured tool and input exists",
	Long: `Check the build tool, archivers, documentation generator, solution files,
header tree and documentation config before a run. Nothing is built.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	addOverrideFlags(checkCmd)
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	color := output.UseColor()
	start := time.Now()

	reqs := pipeline.New(cfg, nil, nil).Requirements()
	errs := make([]error, len(reqs))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU() * 2)
	for i, r := range reqs {
		g.Go(func() error {
			errs[i] = r.Check()
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	sec := output.NewSection(w, "Preflight", time.Since(start), color)
	for i, r := range reqs {
		ok := errs[i] == nil
		if !ok {
			failed++
		}
		output.CheckRow(sec, r.Name, r.Path, ok, color)
	}
	if failed > 0 {
		sec.Separator()
		for _, err := range errs {
			if err != nil {
				sec.Row("%s", err)
			}
		}
	}
	sec.Close()

	if failed > 0 {
		return fmt.Errorf("%d of %d preflight checks failed", failed, len(reqs))
	}
	return nil
}
