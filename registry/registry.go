// Package registry keeps a history of training runs in a badger database.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/YuminosukeSato/scoreml/pkg/errors"
	"github.com/YuminosukeSato/scoreml/pkg/log"
	"github.com/YuminosukeSato/scoreml/training"
)

const keyPrefix = "run/"

// ErrRunNotFound is returned by Get for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Score is a float64 that encodes non-finite values as JSON null and decodes
// null as NaN.
type Score float64

// MarshalJSON implements json.Marshaler.
func (s Score) MarshalJSON() ([]byte, error) {
	f := float64(s)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Score) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = Score(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*s = Score(f)
	return nil
}

// CandidateScore is the stored evaluation of one candidate.
type CandidateScore struct {
	Name       string                 `json:"name"`
	TrainR2    Score                  `json:"train_r2"`
	TestR2     Score                  `json:"test_r2"`
	CVScore    Score                  `json:"cv_score,omitempty"`
	Searched   bool                   `json:"searched"`
	Params     map[string]interface{} `json:"params,omitempty"`
	DurationMs int64                  `json:"duration_ms"`
}

// Run is the stored summary of a training run.
type Run struct {
	ID         string           `json:"id"`
	StartedAt  time.Time        `json:"started_at"`
	Winner     string           `json:"winner"`
	TestR2     Score            `json:"test_r2"`
	Threshold  float64          `json:"threshold"`
	Passed     bool             `json:"passed"`
	ModelPath  string           `json:"model_path,omitempty"`
	Candidates []CandidateScore `json:"candidates"`
}

// RunFromOutcome summarizes a training outcome.
func RunFromOutcome(o *training.Outcome) Run {
	run := Run{
		ID:        o.RunID,
		StartedAt: o.StartedAt.UTC(),
		Winner:    o.Selection.Name,
		TestR2:    Score(o.Selection.TestR2),
		Threshold: o.Threshold,
		Passed:    o.Passed,
		ModelPath: o.ModelPath,
	}
	if o.Report != nil {
		for _, r := range o.Report.Results {
			run.Candidates = append(run.Candidates, CandidateScore{
				Name:       r.Name,
				TrainR2:    Score(r.TrainR2),
				TestR2:     Score(r.TestR2),
				CVScore:    Score(r.CVScore),
				Searched:   r.Searched,
				Params:     r.BestParams,
				DurationMs: r.Duration.Milliseconds(),
			})
		}
	}
	return run
}

// Config selects where the registry lives.
type Config struct {
	Dir      string
	InMemory bool
	Logger   log.Logger
}

// Store records and lists training runs.
type Store struct {
	db     *badger.DB
	logger log.Logger
}

var _ training.Observer = (*Store)(nil)

// badgerLogger forwards badger's internal messages to a log.Logger.
type badgerLogger struct {
	logger log.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open opens (or creates) the registry.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.NewValidationError("registry_dir", "required for a persistent registry", cfg.Dir)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, errors.NewPersistenceError("open", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithLogger(badgerLogger{logger: logger.With(log.ComponentKey, "registry")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.NewPersistenceError("open", cfg.Dir, err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores run under run/<id>, replacing any run with the same ID.
func (s *Store) Record(run Run) error {
	if run.ID == "" {
		return errors.NewValidationError("id", "run ID is required", run.ID)
	}
	data, err := json.Marshal(run)
	if err != nil {
		return errors.Wrap(err, "encode run")
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+run.ID), data)
	})
	if err != nil {
		return errors.NewPersistenceError("save", keyPrefix+run.ID, err)
	}
	return nil
}

// Get returns the run with the given ID.
func (s *Store) Get(id string) (Run, error) {
	var run Run
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &run)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Run{}, errors.Wrapf(ErrRunNotFound, "id %s", id)
	}
	if err != nil {
		return Run{}, errors.NewPersistenceError("load", keyPrefix+id, err)
	}
	return run, nil
}

// List returns every stored run, most recent first.
func (s *Store) List() ([]Run, error) {
	var runs []Run
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var run Run
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &run)
			}); err != nil {
				return errors.Wrapf(err, "decode %s", it.Item().Key())
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewPersistenceError("load", keyPrefix, err)
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}

// Observe records a finished training outcome.
func (s *Store) Observe(_ context.Context, outcome *training.Outcome) error {
	run := RunFromOutcome(outcome)
	if err := s.Record(run); err != nil {
		return err
	}
	s.logger.Debug("Run recorded", log.RunIDKey, run.ID, "passed", run.Passed)
	return nil
}
