package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dglib/buildpipe/src/badge"
	"github.com/dglib/buildpipe/src/buildlog"
	"github.com/dglib/buildpipe/src/gitver"
	"github.com/dglib/buildpipe/src/manifest"
	"github.com/dglib/buildpipe/src/output"
	"github.com/dglib/buildpipe/src/pipeline"
	"github.com/dglib/buildpipe/src/retention"
	"github.com/dglib/buildpipe/src/runner"
)

// junitFile is the stage report written to the test results directory.
const junitFile = "buildpipe.xml"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full build pipeline",
	Long: `Run compile, test, archive and package for every platform and
configuration, then copy headers and generate documentation.

The deployment directory is recreated from scratch. The first failure ends
the run with a non-zero exit status.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	addOverrideFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	started := time.Now()

	log, err := buildlog.Open(cfg.Resolve(cfg.Paths.Logs), started, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer log.Close()

	// Everything below goes through the log; keep the file free of escapes.
	color := false

	if err := pruneLogs(log); err != nil {
		output.Warn(log, color, "%v", err)
	}

	info, gitErr := gitver.DetectVersion(cfg.Root)
	if gitErr != nil && verbose {
		output.Warn(log, color, "version detection: %v", gitErr)
	}
	pkgVersion := gitver.ResolveVersion(cfg.Version, info)

	var sha, branch string
	if info != nil {
		sha, branch = info.SHA, info.Branch
	}
	output.Banner(log, output.NewBannerInfo(pkgVersion, sha, branch))
	output.CIHeader(log)

	p := pipeline.New(cfg, runner.New(log, verbose), log)
	output.ContextBlock(log, runContext(p.RunID, pkgVersion))
	fmt.Fprintln(log)

	res := p.Run(context.Background())

	if err := writeJUnit(res); err != nil {
		output.Warn(log, color, "%v", err)
	}
	if res.Err == nil {
		path, err := writeManifest(res, pkgVersion, info)
		if err != nil {
			// The pipeline already reported success; correct the record.
			res.Err = err
			log.Printf("\nFailed to write the deployment manifest: %v", err)
			log.Printf("Build Failed")
		} else if verbose {
			log.Printf("manifest: %s", path)
		}
	}
	if err := writeBadge(res); err != nil {
		output.Warn(log, color, "%v", err)
	}

	output.Summary(log, summaryLines(res), res.Duration(), res.Status(), color)
	output.Outcome(log, res.Status(), log.Path(), color)

	if err := log.Close(); err != nil {
		return err
	}
	return res.Err
}

// runContext is the key-value header printed before the first stage.
func runContext(runID, pkgVersion string) []output.KV {
	source := cfg.Source
	if source == "" {
		source = "(defaults)"
	} else if rel, err := filepath.Rel(cfg.Root, source); err == nil {
		source = rel
	}
	return []output.KV{
		{Key: "library", Value: cfg.Library},
		{Key: "version", Value: pkgVersion},
		{Key: "platforms", Value: strings.Join(cfg.Platforms, ",")},
		{Key: "configs", Value: strings.Join(cfg.Configurations, ",")},
		{Key: "config", Value: source},
		{Key: "run", Value: runID},
	}
}

func summaryLines(res *pipeline.Result) []output.SummaryLine {
	lines := make([]output.SummaryLine, 0, len(res.Stages))
	for _, r := range res.Stages {
		lines = append(lines, output.SummaryLine{
			Name:    r.Name(),
			Status:  r.Status,
			Detail:  r.Detail,
			Elapsed: r.Duration,
		})
	}
	return lines
}

func writeJUnit(res *pipeline.Result) error {
	if cfg.Paths.TestResults == "" {
		return nil
	}
	cases := make([]output.StageCase, 0, len(res.Stages))
	for _, r := range res.Stages {
		suite := "run"
		if r.Target != nil {
			suite = r.Target.String()
		}
		cases = append(cases, output.StageCase{
			Suite:   suite,
			Name:    string(r.Stage),
			Status:  r.Status,
			Detail:  r.Detail,
			Elapsed: r.Duration,
		})
	}
	path := filepath.Join(cfg.Resolve(cfg.Paths.TestResults), junitFile)
	return output.WriteStageJUnit(path, "buildpipe", cases, res.Duration())
}

func writeManifest(res *pipeline.Result, pkgVersion string, info *gitver.VersionInfo) (string, error) {
	m := &manifest.Manifest{
		Library: cfg.Library,
		Version: pkgVersion,
		RunID:   res.RunID,
		BuiltAt: res.Started.UTC(),
	}
	if info != nil {
		m.Revision = info.Commit
		m.Branch = info.Branch
		m.Dirty = info.Dirty
	}
	root := cfg.DeployRoot()
	for _, lib := range res.Libraries {
		if err := m.AddLibrary(root, lib.Target.Platform, lib.Target.Configuration, lib.Path); err != nil {
			return "", fmt.Errorf("recording %s: %w", lib.Target, err)
		}
	}
	path, err := m.Write(root)
	if err != nil {
		return "", err
	}

	written, err := manifest.Read(root)
	if err != nil {
		return "", err
	}
	if err := written.Verify(root); err != nil {
		return "", fmt.Errorf("verifying manifest: %w", err)
	}
	return path, nil
}

func writeBadge(res *pipeline.Result) error {
	if !cfg.Badge.Enabled {
		return nil
	}
	var (
		metrics *badge.Metrics
		err     error
	)
	if cfg.Badge.Font != "" {
		metrics, err = badge.MetricsFromFile(cfg.Resolve(cfg.Badge.Font), cfg.Badge.FontSize)
	} else {
		metrics, err = badge.DefaultMetrics(cfg.Badge.FontSize)
	}
	if err != nil {
		return fmt.Errorf("loading badge font: %w", err)
	}
	return badge.NewRenderer(metrics).WriteFile(cfg.Resolve(cfg.Badge.Path), badge.ForStatus(cfg.Badge.Label, res.Status()))
}

// pruneLogs removes old build logs according to the retention policy.
// The log of the current run is never a candidate.
func pruneLogs(log *buildlog.Log) error {
	if !cfg.LogRetention.Active() {
		return nil
	}
	store := retention.DirStore{
		Dir:     filepath.Dir(log.Path()),
		Pattern: buildlog.Pattern,
		Protect: filepath.Base(log.Path()),
	}
	res, err := retention.Apply(context.Background(), store, cfg.LogRetention)
	if err != nil {
		return fmt.Errorf("pruning build logs: %w", err)
	}
	if verbose && len(res.Deleted) > 0 {
		log.Printf("pruned %d old build logs, kept %d", len(res.Deleted), res.Kept)
	}
	return errors.Join(res.Errors...)
}
