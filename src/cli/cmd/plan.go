package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dglib/buildpipe/src/output"
	"github.com/dglib/buildpipe/src/pipeline"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print every step a run would take, without running it",
	Args:  cobra.NoArgs,
	RunE:  runPlan,
}

func init() {
	addOverrideFlags(planCmd)
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	color := output.UseColor()

	steps, err := pipeline.New(cfg, nil, nil).Plan()
	if err != nil {
		return fmt.Errorf("planning: %w", err)
	}

	commands := 0
	sec := output.NewSection(w, "Plan", 0, color)
	for i, s := range steps {
		target := ""
		if s.Target != nil {
			target = s.Target.String()
		}
		action := s.Action
		if s.Command != nil {
			commands++
		} else {
			action = output.Dimmed(action, color)
		}
		output.PlanRow(sec, i+1, string(s.Stage), target, action)
	}
	sec.Separator()
	sec.Row("%d steps, %d commands, %d targets", len(steps), commands, len(pipeline.Targets(cfg)))
	sec.Close()
	return nil
}
