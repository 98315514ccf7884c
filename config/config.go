// Package config loads the pipeline settings from scoreml.yaml and the
// environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/scoreml/pkg/errors"
	"github.com/YuminosukeSato/scoreml/pkg/log"
	"github.com/YuminosukeSato/scoreml/preprocessing"
	"github.com/YuminosukeSato/scoreml/sklearn/model_selection"
	"github.com/YuminosukeSato/scoreml/training"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "scoreml.yaml"

// LogConfig controls the run log.
type LogConfig struct {
	Dir   string `yaml:"dir" validate:"required"`
	Level string `yaml:"level"`
}

// Config holds every setting of the pipeline.
type Config struct {
	DataPath         string  `yaml:"data_path" validate:"required"`
	ArtifactsDir     string  `yaml:"artifacts_dir" validate:"required"`
	ModelPath        string  `yaml:"model_path" validate:"required"`
	PreprocessorPath string  `yaml:"preprocessor_path" validate:"required"`
	TestSize         float64 `yaml:"test_size" validate:"gt=0,lt=1"`
	RandomState      int64   `yaml:"random_state"`
	QualityThreshold float64 `yaml:"quality_threshold" validate:"gte=-1,lte=1"`
	CVFolds          int     `yaml:"cv_folds" validate:"gte=2"`
	Workers          int     `yaml:"workers" validate:"gte=1"`

	Log LogConfig `yaml:"log"`

	RegistryDir string `yaml:"registry_dir"`
	MetricsPath string `yaml:"metrics_path"`
	PlotPath    string `yaml:"plot_path"`

	// Grids replaces the search grid of the named candidates. An empty
	// mapping for a candidate disables its search.
	Grids map[string]map[string][]interface{} `yaml:"grids" validate:"dive,keys,required,endkeys"`
}

// Default returns the standard settings.
func Default() Config {
	return Config{
		DataPath:         filepath.Join("notebooks", "data", "stud.csv"),
		ArtifactsDir:     "artifacts",
		ModelPath:        training.DefaultModelPath,
		PreprocessorPath: preprocessing.DefaultPreprocessorPath,
		TestSize:         0.3,
		RandomState:      42,
		QualityThreshold: training.DefaultThreshold,
		CVFolds:          3,
		Workers:          1,
		Log: LogConfig{
			Dir:   "logs",
			Level: "info",
		},
		RegistryDir: filepath.Join("artifacts", "registry"),
		MetricsPath: filepath.Join("artifacts", "metrics.prom"),
		PlotPath:    filepath.Join("artifacts", "scores.png"),
	}
}

var validate = validator.New()

// Load reads path over the defaults, applies SCOREML_* environment
// overrides and validates the result. A missing file at the default path
// is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse %s", path)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return cfg, errors.Wrapf(err, "read %s", path)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errors.NewValidationError(fe.Namespace(), "failed "+fe.Tag()+" "+fe.Param(), fe.Value())
		}
		return errors.Wrap(err, "validate config")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	for name, grid := range c.Grids {
		for param, values := range grid {
			if len(values) == 0 {
				return errors.NewValidationError("grids."+name+"."+param, "needs at least one value", values)
			}
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	strVars := map[string]*string{
		"SCOREML_DATA_PATH":     &cfg.DataPath,
		"SCOREML_ARTIFACTS_DIR": &cfg.ArtifactsDir,
		"SCOREML_MODEL_PATH":    &cfg.ModelPath,
		"SCOREML_LOG_DIR":       &cfg.Log.Dir,
		"SCOREML_LOG_LEVEL":     &cfg.Log.Level,
	}
	for name, dst := range strVars {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv("SCOREML_WORKERS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.NewValidationError("SCOREML_WORKERS", "not an integer", v)
		}
		cfg.Workers = n
	}
	if v, ok := os.LookupEnv("SCOREML_QUALITY_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return errors.NewValidationError("SCOREML_QUALITY_THRESHOLD", "not a number", v)
		}
		cfg.QualityThreshold = f
	}
	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (log.Level, error) {
	return log.ParseLevel(c.Log.Level)
}

// TrainingGrids returns the default grids with the configured overrides.
func (c *Config) TrainingGrids() training.Grids {
	override := make(training.Grids, len(c.Grids))
	for name, g := range c.Grids {
		override[name] = model_selection.ParamGrid(g)
	}
	return training.DefaultGrids().Merge(override)
}
