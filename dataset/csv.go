package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/scoreml/pkg/errors"
)

// ReadCSV reads student records from path. Columns are matched by header
// name, so their order does not matter; every column of Header must be
// present.
func ReadCSV(path string) ([]StudentRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	records, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return records, nil
}

// Decode parses CSV data with a header row.
func Decode(r io.Reader) ([]StudentRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.NewValueError("dataset.Decode", "missing header row")
		}
		return nil, errors.Wrap(err, "read header")
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(h)] = i
	}
	for _, col := range Header {
		if _, ok := pos[col]; !ok {
			return nil, errors.NewValidationError(col, "column missing from header", header)
		}
	}

	var out []StudentRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}

		num := func(col string) (float64, error) {
			s := strings.TrimSpace(row[pos[col]])
			if s == "" {
				return math.NaN(), nil
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return 0, errors.NewValidationError(col, "line "+strconv.Itoa(line)+": not a number", s)
			}
			return v, nil
		}
		rec := StudentRecord{
			Gender:                   strings.TrimSpace(row[pos[ColGender]]),
			RaceEthnicity:            strings.TrimSpace(row[pos[ColRaceEthnicity]]),
			ParentalLevelOfEducation: strings.TrimSpace(row[pos[ColParentalLevelOfEducation]]),
			Lunch:                    strings.TrimSpace(row[pos[ColLunch]]),
			TestPreparationCourse:    strings.TrimSpace(row[pos[ColTestPreparationCourse]]),
		}
		if rec.MathScore, err = num(ColMathScore); err != nil {
			return nil, err
		}
		if rec.ReadingScore, err = num(ColReadingScore); err != nil {
			return nil, err
		}
		if rec.WritingScore, err = num(ColWritingScore); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if len(out) == 0 {
		return nil, errors.NewModelError("dataset.Decode", "empty data", errors.ErrEmptyData)
	}
	return out, nil
}

// WriteCSV writes records to path with a header row, creating parent
// directories as needed.
func WriteCSV(path string, records []StudentRecord) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := Encode(f, records); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

// Encode writes records as CSV with a header row.
func Encode(w io.Writer, records []StudentRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, r := range records {
		row := []string{
			r.Gender,
			r.RaceEthnicity,
			r.ParentalLevelOfEducation,
			r.Lunch,
			r.TestPreparationCourse,
			formatScore(r.MathScore),
			formatScore(r.ReadingScore),
			formatScore(r.WritingScore),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "write row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush")
}

func formatScore(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
