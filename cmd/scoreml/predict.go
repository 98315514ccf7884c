package main

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/scoreml/dataset"
	"github.com/YuminosukeSato/scoreml/pkg/errors"
	"github.com/YuminosukeSato/scoreml/prediction"
)

// studentFlags maps predict flags onto the columns of a StudentRecord.
type studentFlags struct {
	record  dataset.StudentRecord
	reading float64
	writing float64
}

var categoricalFlags = []struct {
	flag   string
	column string
}{
	{"gender", dataset.ColGender},
	{"race-ethnicity", dataset.ColRaceEthnicity},
	{"parental-level-of-education", dataset.ColParentalLevelOfEducation},
	{"lunch", dataset.ColLunch},
	{"test-preparation-course", dataset.ColTestPreparationCourse},
}

func (s *studentFlags) field(column string) *string {
	switch column {
	case dataset.ColGender:
		return &s.record.Gender
	case dataset.ColRaceEthnicity:
		return &s.record.RaceEthnicity
	case dataset.ColParentalLevelOfEducation:
		return &s.record.ParentalLevelOfEducation
	case dataset.ColLunch:
		return &s.record.Lunch
	case dataset.ColTestPreparationCourse:
		return &s.record.TestPreparationCourse
	}
	return nil
}

func newPredictCmd(a *app) *cobra.Command {
	var (
		sf          studentFlags
		input       string
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict math scores with the saved preprocessor and model",
		Example: `  scoreml predict --gender female --race-ethnicity "group B" \
    --parental-level-of-education "bachelor's degree" --lunch standard \
    --test-preparation-course none --reading-score 72 --writing-score 74
  scoreml predict --input students.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pipeline := prediction.NewPipeline(a.logger)
			pipeline.PreprocessorPath = a.cfg.PreprocessorPath
			pipeline.ModelPath = a.cfg.ModelPath
			out := cmd.OutOrStdout()

			if input != "" {
				records, err := dataset.ReadCSV(input)
				if err != nil {
					return err
				}
				preds, err := pipeline.Predict(records)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "row,prediction")
				for i, p := range preds {
					fmt.Fprintf(out, "%d,%s\n", i+1, strconv.FormatFloat(p, 'f', 4, 64))
				}
				return nil
			}

			missing := sf.missing(cmd)
			if len(missing) > 0 {
				if !interactive && !a.interactiveStdin() {
					return errors.NewValidationError("predict", "missing flags", strings.Join(missing, ", "))
				}
				if err := sf.ask(); err != nil {
					return errors.Wrap(err, "predict form")
				}
			}
			sf.record.MathScore = math.NaN()
			sf.record.ReadingScore = sf.reading
			sf.record.WritingScore = sf.writing

			preds, err := pipeline.Predict([]dataset.StudentRecord{sf.record})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%.4f\n", preds[0])
			return nil
		},
	}

	for _, cf := range categoricalFlags {
		cmd.Flags().StringVar(sf.field(cf.column), cf.flag, "",
			"one of: "+strings.Join(dataset.Levels[cf.column], ", "))
	}
	cmd.Flags().Float64Var(&sf.reading, "reading-score", math.NaN(), "reading score (0-100)")
	cmd.Flags().Float64Var(&sf.writing, "writing-score", math.NaN(), "writing score (0-100)")
	cmd.Flags().StringVar(&input, "input", "", "CSV file with the student columns; prints one prediction per row")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "ask for missing values even when stdin is not a terminal")
	return cmd
}

func (s *studentFlags) missing(cmd *cobra.Command) []string {
	var out []string
	for _, cf := range categoricalFlags {
		if !cmd.Flags().Changed(cf.flag) {
			out = append(out, "--"+cf.flag)
		}
	}
	for _, name := range []string{"reading-score", "writing-score"} {
		if !cmd.Flags().Changed(name) {
			out = append(out, "--"+name)
		}
	}
	return out
}

// ask fills the unset values through a terminal form.
func (s *studentFlags) ask() error {
	var fields []huh.Field
	for _, cf := range categoricalFlags {
		dst := s.field(cf.column)
		if *dst != "" {
			continue
		}
		fields = append(fields, huh.NewSelect[string]().
			Title(strings.ReplaceAll(cf.column, "_", " ")).
			Options(huh.NewOptions(dataset.Levels[cf.column]...)...).
			Value(dst))
	}

	scores := []struct {
		title string
		dst   *float64
		raw   string
	}{
		{title: "reading score", dst: &s.reading},
		{title: "writing score", dst: &s.writing},
	}
	for i := range scores {
		if !math.IsNaN(*scores[i].dst) {
			continue
		}
		fields = append(fields, huh.NewInput().
			Title(scores[i].title).
			Value(&scores[i].raw).
			Validate(validScore))
	}
	if len(fields) == 0 {
		return nil
	}

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return err
	}
	for _, sc := range scores {
		if sc.raw == "" {
			continue
		}
		v, err := parseScore(sc.raw)
		if err != nil {
			return err
		}
		*sc.dst = v
	}
	return nil
}

func parseScore(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, errors.NewValidationError("score", "not a number", raw)
	}
	if v < 0 || v > 100 {
		return 0, errors.NewValidationError("score", "must be between 0 and 100", v)
	}
	return v, nil
}

func validScore(raw string) error {
	_, err := parseScore(raw)
	return err
}

func (a *app) interactiveStdin() bool {
	if a.stdinIsTerminal != nil {
		return a.stdinIsTerminal()
	}
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
