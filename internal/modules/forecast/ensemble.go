package forecast

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/esgrade/pkg/formulas"
)

// member is one bagged ridge regressor: a random feature subset fitted on
// a bootstrap sample, with per-column standardization folded into the
// stored coefficients' inputs.
type member struct {
	Columns []int     `msgpack:"columns"`
	Mean    []float64 `msgpack:"mean"`
	Std     []float64 `msgpack:"std"`
	YMean   float64   `msgpack:"y_mean"`
	Beta    []float64 `msgpack:"beta"`
}

// predict evaluates the member on a full design vector.
func (m member) predict(x []float64) float64 {
	yhat := m.YMean
	for j, col := range m.Columns {
		std := m.Std[j]
		if std == 0 {
			continue
		}
		yhat += m.Beta[j] * (x[col] - m.Mean[j]) / std
	}
	return yhat
}

// ensemble is the bag of members for one metric.
type ensemble struct {
	Members []member `msgpack:"members"`
}

// predict returns the members' mean prediction and spread for one design
// vector. Members producing non-finite output are dropped; ok reports
// whether any member survived.
func (e ensemble) predict(x []float64) (mean, spread float64, ok bool) {
	preds := make([]float64, 0, len(e.Members))
	for _, m := range e.Members {
		p := m.predict(x)
		if !math.IsNaN(p) && !math.IsInf(p, 0) {
			preds = append(preds, p)
		}
	}
	if len(preds) == 0 {
		return 0, 0, false
	}
	return formulas.Mean(preds), formulas.PopStdDev(preds), true
}

// fitEnsemble bags size ridge members over the training pairs. Each
// member draws its bootstrap rows and feature subset from rng, so a fixed
// seed reproduces the exact same ensemble.
func fitEnsemble(xs [][]float64, ys []float64, size int, featureFraction, lambda float64, rng *rand.Rand) (ensemble, error) {
	if len(xs) == 0 {
		return ensemble{}, fmt.Errorf("no training pairs")
	}

	width := len(xs[0])
	subset := int(math.Round(featureFraction * float64(width)))
	if subset < 3 {
		subset = 3
	}
	if subset > width {
		subset = width
	}

	members := make([]member, 0, size)
	for i := 0; i < size; i++ {
		rows := bootstrapRows(len(xs), rng)
		columns := sampleColumns(width, subset, rng)

		m, err := fitRidgeMember(xs, ys, rows, columns, lambda)
		if err != nil {
			return ensemble{}, fmt.Errorf("member %d: %w", i, err)
		}
		members = append(members, m)
	}

	return ensemble{Members: members}, nil
}

// bootstrapRows samples n row indices with replacement.
func bootstrapRows(n int, rng *rand.Rand) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = rng.Intn(n)
	}
	return rows
}

// sampleColumns draws k distinct column indices, in draw order.
func sampleColumns(width, k int, rng *rand.Rand) []int {
	perm := rng.Perm(width)
	return perm[:k]
}

// fitRidgeMember solves the standardized ridge normal equations
// (XᵀX + λI)β = Xᵀy over the member's bootstrap sample.
func fitRidgeMember(xs [][]float64, ys []float64, rows, columns []int, lambda float64) (member, error) {
	n := len(rows)
	p := len(columns)

	// Column moments over the bootstrap sample.
	mean := make([]float64, p)
	std := make([]float64, p)
	for j, col := range columns {
		var sum float64
		for _, r := range rows {
			sum += xs[r][col]
		}
		mean[j] = sum / float64(n)

		var sq float64
		for _, r := range rows {
			d := xs[r][col] - mean[j]
			sq += d * d
		}
		std[j] = math.Sqrt(sq / float64(n))
	}

	var ySum float64
	for _, r := range rows {
		ySum += ys[r]
	}
	yMean := ySum / float64(n)

	// Standardized design matrix and centered target. Constant columns
	// stay zero and contribute nothing.
	X := mat.NewDense(n, p, nil)
	y := mat.NewVecDense(n, nil)
	for i, r := range rows {
		for j := range columns {
			if std[j] > 0 {
				X.Set(i, j, (xs[r][columns[j]]-mean[j])/std[j])
			}
		}
		y.SetVec(i, ys[r]-yMean)
	}

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	for j := 0; j < p; j++ {
		xtx.Set(j, j, xtx.At(j, j)+lambda)
	}

	var xty mat.VecDense
	xty.MulVec(X.T(), y)

	var beta mat.VecDense
	if err := beta.SolveVec(&xtx, &xty); err != nil {
		return member{}, fmt.Errorf("ridge solve failed: %w", err)
	}

	coeffs := make([]float64, p)
	for j := 0; j < p; j++ {
		coeffs[j] = beta.AtVec(j)
	}

	return member{
		Columns: columns,
		Mean:    mean,
		Std:     std,
		YMean:   yMean,
		Beta:    coeffs,
	}, nil
}
