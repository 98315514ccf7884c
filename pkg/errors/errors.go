// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// scikit-learnの警告・例外システムにインスパイアされており、構造化されたエラー情報を提供します。
//
// Every constructor attaches a cockroachdb stack trace. The pipeline-level kinds
// (InputShapeError, FitError, SearchError, QualityGateError, PersistenceError)
// additionally record the Site at which they were raised so that a single log
// line can point at the failing file and line.
package errors

import (
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("scoreml-warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
// nilを渡すとデフォルトのハンドラに戻ります。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが利用可能な場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	scikit-learn互換の警告型
//
// ===========================================================================

// UndefinedMetricWarning は評価指標が通常の定義では計算できない場合に発生する警告です。
// 例えば、目的変数の分散が0の場合のR²など。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // この条件で返される値
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

// NewUndefinedMetricWarning は新しいUndefinedMetricWarningを作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `Predict` や `Transform` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("scoreml: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("scoreml: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("scoreml: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("scoreml: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ModelError は機械学習モデルに関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scoreml: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("scoreml: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	modelErr := &ModelError{Op: op, Kind: kind, Err: err}
	return errors.WithStack(modelErr)
}

// ===========================================================================
//
//	パイプライン境界のエラー型
//
// ===========================================================================

// Site is the source location captured when a pipeline error was raised.
type Site struct {
	File string
	Line int
}

func (s Site) String() string {
	if s.File == "" {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(s.File), s.Line)
}

// captureSite records the caller of the exported constructor.
func captureSite() Site {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return Site{}
	}
	return Site{File: file, Line: line}
}

// Located is implemented by errors that carry the Site they were raised at.
type Located interface {
	Site() Site
}

// SiteOf returns the Site of the outermost located error in err's chain.
func SiteOf(err error) (Site, bool) {
	var l Located
	if errors.As(err, &l) {
		return l.Site(), true
	}
	return Site{}, false
}

// InputShapeError は入力データの形状が期待と異なる場合のエラーです。
// DimensionErrorより詳細で、訓練時と推論時の不整合を検出します。
type InputShapeError struct {
	Phase    string // "training", "evaluation", "prediction", "transform"
	Expected []int  // 期待される形状
	Got      []int  // 実際の形状
	Feature  string // 問題のある特徴量名や配列名（オプション）
	site     Site
}

func (e *InputShapeError) Error() string {
	expectedStr := fmt.Sprintf("%v", e.Expected)
	gotStr := fmt.Sprintf("%v", e.Got)
	if e.Feature != "" {
		return fmt.Sprintf("scoreml: input shape mismatch in %s phase for '%s'. Expected shape %s, got %s",
			e.Phase, e.Feature, expectedStr, gotStr)
	}
	return fmt.Sprintf("scoreml: input shape mismatch in %s phase. Expected shape %s, got %s",
		e.Phase, expectedStr, gotStr)
}

// Site implements Located.
func (e *InputShapeError) Site() Site { return e.site }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *InputShapeError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("phase", e.Phase).
		Ints("expected", e.Expected).
		Ints("got", e.Got).
		Str("feature", e.Feature).
		Str("site", e.site.String()).
		Str("type", "InputShapeError")
}

// NewInputShapeError は新しいInputShapeErrorを作成します。
func NewInputShapeError(phase string, expected, got []int) error {
	err := &InputShapeError{
		Phase:    phase,
		Expected: expected,
		Got:      got,
		site:     captureSite(),
	}
	return errors.WithStack(err)
}

// NewFeatureShapeError is NewInputShapeError naming the offending array.
func NewFeatureShapeError(phase, feature string, expected, got []int) error {
	err := &InputShapeError{
		Phase:    phase,
		Expected: expected,
		Got:      got,
		Feature:  feature,
		site:     captureSite(),
	}
	return errors.WithStack(err)
}

// FitError reports that fitting a candidate estimator with fixed parameters failed.
type FitError struct {
	Model string
	Err   error
	site  Site
}

func (e *FitError) Error() string {
	return fmt.Sprintf("scoreml: fitting %q failed at %s: %v", e.Model, e.site, e.Err)
}

func (e *FitError) Unwrap() error { return e.Err }

// Site implements Located.
func (e *FitError) Site() Site { return e.site }

// NewFitError wraps err as a FitError for the named model.
func NewFitError(model string, err error) error {
	return errors.WithStack(&FitError{Model: model, Err: err, site: captureSite()})
}

// SearchError reports a failure during a cross-validated grid search.
// Params is the configuration being evaluated when the failure happened (may be nil).
type SearchError struct {
	Model  string
	Params map[string]interface{}
	Err    error
	site   Site
}

func (e *SearchError) Error() string {
	if len(e.Params) == 0 {
		return fmt.Sprintf("scoreml: grid search for %q failed at %s: %v", e.Model, e.site, e.Err)
	}
	return fmt.Sprintf("scoreml: grid search for %q failed at %s with params %s: %v",
		e.Model, e.site, FormatParams(e.Params), e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// Site implements Located.
func (e *SearchError) Site() Site { return e.site }

// NewSearchError wraps err as a SearchError.
func NewSearchError(model string, params map[string]interface{}, err error) error {
	return errors.WithStack(&SearchError{Model: model, Params: params, Err: err, site: captureSite()})
}

// QualityGateError is raised when the best candidate does not reach the minimum test R².
type QualityGateError struct {
	Best      string
	Score     float64
	Threshold float64
	site      Site
}

func (e *QualityGateError) Error() string {
	return fmt.Sprintf("scoreml: no acceptable model found: best candidate %q scored test R² %.5f, below threshold %.5f",
		e.Best, e.Score, e.Threshold)
}

// Site implements Located.
func (e *QualityGateError) Site() Site { return e.site }

// MarshalZerologObject adds the gate decision to a zerolog event.
func (e *QualityGateError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("best", e.Best).
		Float64("score", e.Score).
		Float64("threshold", e.Threshold).
		Str("site", e.site.String()).
		Str("type", "QualityGateError")
}

// NewQualityGateError creates a QualityGateError.
func NewQualityGateError(best string, score, threshold float64) error {
	return errors.WithStack(&QualityGateError{Best: best, Score: score, Threshold: threshold, site: captureSite()})
}

// PersistenceError reports a failure to save or load an artifact.
type PersistenceError struct {
	Op   string // "save" or "load"
	Path string
	Err  error
	site Site
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("scoreml: %s %s failed at %s: %v", e.Op, e.Path, e.site, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Site implements Located.
func (e *PersistenceError) Site() Site { return e.site }

// NewPersistenceError wraps err as a PersistenceError.
func NewPersistenceError(op, path string, err error) error {
	return errors.WithStack(&PersistenceError{Op: op, Path: path, Err: err, site: captureSite()})
}

// FormatParams renders a parameter assignment with sorted keys, e.g. "{learning_rate=0.1 n_estimators=64}".
func FormatParams(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix は特異行列の場合のエラーです。
	ErrSingularMatrix = New("singular matrix")
)
