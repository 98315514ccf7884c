// Package dataset reads and writes the student performance table and splits
// it into the train and test files the rest of the pipeline consumes.
package dataset

import (
	"math"
)

// Column names of the student table.
const (
	ColGender                   = "gender"
	ColRaceEthnicity            = "race_ethnicity"
	ColParentalLevelOfEducation = "parental_level_of_education"
	ColLunch                    = "lunch"
	ColTestPreparationCourse    = "test_preparation_course"
	ColMathScore                = "math_score"
	ColReadingScore             = "reading_score"
	ColWritingScore             = "writing_score"
)

// Header is the column order used when writing CSV files.
var Header = []string{
	ColGender,
	ColRaceEthnicity,
	ColParentalLevelOfEducation,
	ColLunch,
	ColTestPreparationCourse,
	ColMathScore,
	ColReadingScore,
	ColWritingScore,
}

// NumericFeatures are the numeric input columns.
var NumericFeatures = []string{ColWritingScore, ColReadingScore}

// CategoricalFeatures are the categorical input columns.
var CategoricalFeatures = []string{
	ColGender,
	ColRaceEthnicity,
	ColParentalLevelOfEducation,
	ColLunch,
	ColTestPreparationCourse,
}

// Levels lists the categories observed in the published student table for
// each categorical column.
var Levels = map[string][]string{
	ColGender:        {"female", "male"},
	ColRaceEthnicity: {"group A", "group B", "group C", "group D", "group E"},
	ColParentalLevelOfEducation: {
		"associate's degree",
		"bachelor's degree",
		"high school",
		"master's degree",
		"some college",
		"some high school",
	},
	ColLunch:                 {"free/reduced", "standard"},
	ColTestPreparationCourse: {"completed", "none"},
}

// Target is the column the models predict.
const Target = ColMathScore

// StudentRecord is one row of the student table. Missing numeric values are
// NaN and missing categorical values are empty strings.
type StudentRecord struct {
	Gender                   string
	RaceEthnicity            string
	ParentalLevelOfEducation string
	Lunch                    string
	TestPreparationCourse    string
	MathScore                float64
	ReadingScore             float64
	WritingScore             float64
}

// Categorical returns the value of a categorical column.
func (r StudentRecord) Categorical(col string) (string, bool) {
	switch col {
	case ColGender:
		return r.Gender, true
	case ColRaceEthnicity:
		return r.RaceEthnicity, true
	case ColParentalLevelOfEducation:
		return r.ParentalLevelOfEducation, true
	case ColLunch:
		return r.Lunch, true
	case ColTestPreparationCourse:
		return r.TestPreparationCourse, true
	}
	return "", false
}

// Numeric returns the value of a numeric column.
func (r StudentRecord) Numeric(col string) (float64, bool) {
	switch col {
	case ColMathScore:
		return r.MathScore, true
	case ColReadingScore:
		return r.ReadingScore, true
	case ColWritingScore:
		return r.WritingScore, true
	}
	return math.NaN(), false
}

// Frame is a column-oriented view of records, the input of the
// column transformer.
type Frame struct {
	NumRows     int
	Numeric     map[string][]float64
	Categorical map[string][]string
}

// NewFrame builds a Frame holding every column of records.
func NewFrame(records []StudentRecord) *Frame {
	f := &Frame{
		NumRows:     len(records),
		Numeric:     make(map[string][]float64),
		Categorical: make(map[string][]string),
	}
	for _, col := range []string{ColMathScore, ColReadingScore, ColWritingScore} {
		vals := make([]float64, len(records))
		for i, r := range records {
			vals[i], _ = r.Numeric(col)
		}
		f.Numeric[col] = vals
	}
	for _, col := range CategoricalFeatures {
		vals := make([]string, len(records))
		for i, r := range records {
			vals[i], _ = r.Categorical(col)
		}
		f.Categorical[col] = vals
	}
	return f
}

// Targets returns the math scores of records.
func Targets(records []StudentRecord) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.MathScore
	}
	return out
}
