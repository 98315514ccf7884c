package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/scoreml/pkg/errors"
)

// Saver persists a fitted estimator. The trainer calls it exactly once per
// successful run.
type Saver interface {
	Save(path string, obj Regressor) error
}

// Loader restores an estimator written by a Saver.
type Loader interface {
	Load(path string) (Regressor, error)
}

// envelope carries a Regressor through gob. The concrete type must have been
// registered with Register.
type envelope struct {
	Version int
	Model   Regressor
}

const envelopeVersion = 1

// Register makes a concrete estimator type known to gob. Estimator packages
// call it from init.
func Register(r Regressor) {
	gob.Register(r)
}

// GobStore saves and loads estimators as gob files.
//
// Example:
//
//	var store model.GobStore
//	if err := store.Save("artifacts/model.gob", best); err != nil { ... }
//	restored, err := store.Load("artifacts/model.gob")
type GobStore struct{}

var (
	_ Saver  = GobStore{}
	_ Loader = GobStore{}
)

// Save writes obj to path, creating parent directories as needed.
func (GobStore) Save(path string, obj Regressor) error {
	if obj == nil {
		return errors.NewPersistenceError("save", path, errors.New("nil estimator"))
	}
	if err := SaveGob(path, &envelope{Version: envelopeVersion, Model: obj}); err != nil {
		return errors.NewPersistenceError("save", path, err)
	}
	return nil
}

// Load reads an estimator previously written by Save.
func (GobStore) Load(path string) (Regressor, error) {
	var env envelope
	if err := LoadGob(path, &env); err != nil {
		return nil, errors.NewPersistenceError("load", path, err)
	}
	if env.Version != envelopeVersion {
		return nil, errors.NewPersistenceError("load", path,
			errors.Newf("unsupported envelope version %d", env.Version))
	}
	if env.Model == nil {
		return nil, errors.NewPersistenceError("load", path, errors.New("empty envelope"))
	}
	return env.Model, nil
}

// SaveGob encodes v to path. The file is written to a temporary sibling and
// renamed into place so readers never see a partial file.
func SaveGob(path string, v interface{}) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create directory")
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create file")
	}
	defer os.Remove(tmp.Name())

	if err := EncodeTo(tmp, v); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "rename file")
}

// LoadGob decodes path into v, which must be a pointer.
func LoadGob(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open file")
	}
	defer f.Close()
	return DecodeFrom(f, v)
}

// EncodeTo writes v to w with gob.
func EncodeTo(w io.Writer, v interface{}) error {
	if err := gob.NewEncoder(w).Encode(v); err != nil {
		return errors.Wrap(err, "encode")
	}
	return nil
}

// DecodeFrom reads a gob value from r into v.
func DecodeFrom(r io.Reader, v interface{}) error {
	if err := gob.NewDecoder(r).Decode(v); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}
