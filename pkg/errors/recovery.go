package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"
)

// PanicError は Fit / Predict の内部で発生した panic を通常のエラーに変換したものです。
// 木の成長中の添字エラーなどがここに入り、評価ループ側で FitError として包まれます。
type PanicError struct {
	Op    string      // panic を回収した処理（例: "DecisionTreeRegressor.Fit"）
	Value interface{} // panic に渡された値
	Stack []byte      // 回収時点の goroutine スタック
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
}

// Unwrap は panic の値が error だった場合にそれを返します。
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Recover は名前付きの error 戻り値へのポインタと共に defer します。
//
//	func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
//	    defer errors.Recover(&err, "DecisionTreeRegressor.Fit")
//	    ...
//	}
//
// *err が既に設定されている場合、元のエラーは副次エラーとして残ります。
func Recover(err *error, op string) {
	r := recover()
	if r == nil {
		return
	}
	pe := errors.WithStack(&PanicError{Op: op, Value: r, Stack: debug.Stack()})
	if *err != nil {
		pe = errors.WithSecondaryError(pe, *err)
	}
	*err = pe
}
