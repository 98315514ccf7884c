package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/scoreml/dataset"
	"github.com/YuminosukeSato/scoreml/pkg/errors"
	"github.com/YuminosukeSato/scoreml/pkg/log"
	"github.com/YuminosukeSato/scoreml/preprocessing"
	"github.com/YuminosukeSato/scoreml/registry"
	"github.com/YuminosukeSato/scoreml/report"
	"github.com/YuminosukeSato/scoreml/training"
)

func newIngestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Copy the raw table into the artifacts directory and split it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := a.ingest()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "raw:   %s\ntrain: %s\ntest:  %s\n", paths.Raw, paths.Train, paths.Test)
			return nil
		},
	}
}

func (a *app) ingest() (dataset.Paths, error) {
	return dataset.Ingest(dataset.IngestConfig{
		DataPath:     a.cfg.DataPath,
		ArtifactsDir: a.cfg.ArtifactsDir,
		TestSize:     a.cfg.TestSize,
		RandomState:  a.cfg.RandomState,
	}, a.logger)
}

func newTrainCmd(a *app) *cobra.Command {
	var skipIngest bool
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Ingest, transform, select the best model and save it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths := dataset.ArtifactPaths(a.cfg.ArtifactsDir)
			if !skipIngest {
				var err error
				if paths, err = a.ingest(); err != nil {
					return err
				}
			}
			arrays, err := preprocessing.PrepareArrays(paths.Train, paths.Test, a.cfg.PreprocessorPath, a.logger)
			if err != nil {
				return err
			}

			observers, err := a.observers()
			if err != nil {
				return err
			}

			evaluator := training.NewEvaluator(
				training.WithCVFolds(a.cfg.CVFolds),
				training.WithWorkers(a.cfg.Workers),
				training.WithLogger(a.logger),
				training.WithTracerProvider(a.tracer),
			)
			trainer := training.NewTrainer(
				training.WithGrids(a.cfg.TrainingGrids()),
				training.WithThreshold(a.cfg.QualityThreshold),
				training.WithModelPath(a.cfg.ModelPath),
				training.WithEvaluator(evaluator),
				training.WithTrainerLogger(a.logger),
				training.WithObservers(observers...),
			)

			outcome, err := trainer.Train(cmd.Context(), arrays.Train, arrays.Test)
			if outcome != nil && outcome.Report != nil {
				printOutcome(cmd.OutOrStdout(), outcome)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&skipIngest, "skip-ingest", false, "reuse the train and test files already in the artifacts directory")
	return cmd
}

// observers opens the optional run sinks named in the config.
func (a *app) observers() ([]training.Observer, error) {
	var obs []training.Observer
	if a.cfg.RegistryDir != "" {
		store, err := registry.Open(registry.Config{Dir: a.cfg.RegistryDir, Logger: a.logger})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		obs = append(obs, store)
	}
	if a.cfg.MetricsPath != "" {
		obs = append(obs, report.NewMetrics().TextfileObserver(a.cfg.MetricsPath))
	}
	if a.cfg.PlotPath != "" {
		obs = append(obs, report.PlotObserver(a.cfg.PlotPath))
	}
	return obs, nil
}

func printOutcome(w io.Writer, o *training.Outcome) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CANDIDATE\tTRAIN R2\tTEST R2\tCV\tSEARCHED")
	for _, r := range o.Report.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", r.Name, fmtScore(r.TrainR2), fmtScore(r.TestR2), fmtScore(r.CVScore), r.Searched)
	}
	tw.Flush()

	verdict := "saved to " + o.ModelPath
	if !o.Passed {
		verdict = fmt.Sprintf("below threshold %.2f, nothing saved", o.Threshold)
	}
	fmt.Fprintf(w, "\nbest: %s (test R2 %s) %s\nrun:  %s\n", o.Selection.Name, fmtScore(o.TestR2()), verdict, o.RunID)
}

func fmtScore(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}

func newRunsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded training runs or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.RegistryDir == "" {
				return errors.NewValidationError("registry_dir", "runs needs a registry", a.cfg.RegistryDir)
			}
			store, err := registry.Open(registry.Config{Dir: a.cfg.RegistryDir, Logger: a.logger})
			if err != nil {
				return err
			}
			a.closers = append(a.closers, store.Close)
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				run, err := store.Get(args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(run)
			}

			runs, err := store.List()
			if err != nil {
				return err
			}
			a.logger.Debug("Runs listed", log.ComponentKey, "registry", "count", len(runs))
			if asJSON {
				return json.NewEncoder(out).Encode(runs)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tWINNER\tTEST R2\tPASSED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n",
					r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Winner, fmtScore(float64(r.TestR2)), r.Passed)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the runs as JSON")
	return cmd
}
