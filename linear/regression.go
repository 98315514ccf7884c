// Package linear provides ordinary least squares regression.
package linear

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scoreml/core/model"
	"github.com/YuminosukeSato/scoreml/core/parallel"
	"github.com/YuminosukeSato/scoreml/pkg/errors"
)

func init() {
	model.Register(&LinearRegression{})
}

// LinearRegression は最小二乗法による線形回帰モデル
//
// The problem is solved with an SVD of the centred design matrix, which yields
// the minimum-norm solution when features are collinear or when there are
// fewer samples than features.
type LinearRegression struct {
	State        *model.StateManager
	FitIntercept bool

	Coef      []float64 // 重み（係数）
	Intercept float64   // 切片
	Rank      int       // 有効ランク
	Singular  []float64 // 特異値
}

var _ model.Regressor = (*LinearRegression)(nil)

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{
		State:        model.NewStateManager(),
		FitIntercept: true,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習させる
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}

	xMean := make([]float64, c)
	yMean := 0.0
	if lr.FitIntercept {
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				xMean[j] += X.At(i, j)
			}
			yMean += y.At(i, 0)
		}
		for j := range xMean {
			xMean[j] /= float64(r)
		}
		yMean /= float64(r)
	}

	// 中心化した計画行列
	Xc := mat.NewDense(r, c, nil)
	const parallelThreshold = 1000
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				Xc.Set(i, j, X.At(i, j)-xMean[j])
			}
		}
	})
	yc := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		yc.SetVec(i, y.At(i, 0)-yMean)
	}

	coef, rank, sv, err := solveMinNorm(Xc, yc)
	if err != nil {
		return err
	}

	intercept := 0.0
	if lr.FitIntercept {
		intercept = yMean
		for j := 0; j < c; j++ {
			intercept -= xMean[j] * coef[j]
		}
	}

	lr.Coef = coef
	lr.Intercept = intercept
	lr.Rank = rank
	lr.Singular = sv
	if lr.State == nil {
		lr.State = model.NewStateManager()
	}
	lr.State.SetFitted(c, r)
	return nil
}

// solveMinNorm returns w = V Σ⁺ Uᵀ b, discarding singular values below
// max(n, p)·eps·σmax in the same way LAPACK's gelsd does.
func solveMinNorm(A *mat.Dense, b *mat.VecDense) ([]float64, int, []float64, error) {
	n, p := A.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(A, mat.SVDThin); !ok {
		return nil, 0, nil, errors.NewModelError("LinearRegression.Fit", "SVD factorization failed", errors.ErrSingularMatrix)
	}
	values := svd.Values(nil)

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	cutoff := 0.0
	if len(values) > 0 {
		cutoff = float64(max(n, p)) * eps * values[0]
	}

	coef := make([]float64, p)
	rank := 0
	for k, s := range values {
		if s <= cutoff {
			continue
		}
		rank++
		// (u_kᵀ b) / σ_k
		proj := 0.0
		for i := 0; i < n; i++ {
			proj += u.At(i, k) * b.AtVec(i)
		}
		proj /= s
		for j := 0; j < p; j++ {
			coef[j] += v.At(j, k) * proj
		}
	}
	return coef, rank, values, nil
}

var eps = math.Nextafter(1, 2) - 1

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.State.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	if err := lr.State.CheckFeatures("LinearRegression.Predict", c); err != nil {
		return nil, err
	}

	// 予測: y = X * coef + intercept
	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		v := lr.Intercept
		for j := 0; j < c; j++ {
			v += X.At(i, j) * lr.Coef[j]
		}
		predictions.Set(i, 0, v)
	}
	return predictions, nil
}

// GetParams returns the hyperparameters.
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.FitIntercept,
	}
}

// SetParams sets the hyperparameters.
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	if err := model.UnknownParams("LinearRegression", params, "fit_intercept"); err != nil {
		return err
	}
	if v, ok := params["fit_intercept"]; ok {
		b, err := model.ParamBool("fit_intercept", v)
		if err != nil {
			return err
		}
		lr.FitIntercept = b
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (lr *LinearRegression) Clone() model.Regressor {
	return NewLinearRegression(WithFitIntercept(lr.FitIntercept))
}

// Weights は学習された重みを返す
func (lr *LinearRegression) Weights() []float64 {
	out := make([]float64, len(lr.Coef))
	copy(out, lr.Coef)
	return out
}
