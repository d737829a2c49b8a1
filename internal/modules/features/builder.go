// Package features turns a company's monthly E/S/G history into the
// feature matrix the forecaster trains on.
package features

import (
	"fmt"
	"time"

	"github.com/aristath/esgrade/internal/domain"
	"github.com/aristath/esgrade/pkg/formulas"
)

// Window sizes for the rolling features. The long window bounds how much
// history a complete feature row needs.
const (
	ShortWindow = 3
	LongWindow  = 6
	MomentumLag = 3
)

// periodLayout parses "2006-01" style year-month labels.
const periodLayout = "2006-01"

// MetricFeatures holds one pillar's engineered columns at one period.
// Incomplete windows surface as NaN, never as fabricated values.
type MetricFeatures struct {
	Value        float64 `json:"value"`
	RollMean3    float64 `json:"roll_mean_3"`
	RollMean6    float64 `json:"roll_mean_6"`
	RollStd6     float64 `json:"roll_std_6"`
	Momentum3    float64 `json:"momentum_3"` // percent change over a 3-period lag
	SeasonalMean float64 `json:"seasonal_mean"`
}

// NumMetricFeatures is the per-metric regression input width: the six
// metric columns plus month, quarter, and cross-metric balance.
const NumMetricFeatures = 9

// Vector returns the regression inputs in fixed column order.
func (m MetricFeatures) vector(month, quarter int, balance float64) []float64 {
	return []float64{
		m.Value,
		m.RollMean3,
		m.RollMean6,
		m.RollStd6,
		m.Momentum3,
		m.SeasonalMean,
		float64(month),
		float64(quarter),
		balance,
	}
}

// FeatureRow is the full feature set for one historical period.
type FeatureRow struct {
	Index     int    `json:"index"`
	YearMonth string `json:"year_month"`
	Month     int    `json:"month"`
	Quarter   int    `json:"quarter"`
	Year      int    `json:"year"`

	// Balance is the population standard deviation of {E,S,G} at this
	// period, one scalar per row.
	Balance float64 `json:"balance"`

	E MetricFeatures `json:"e"`
	S MetricFeatures `json:"s"`
	G MetricFeatures `json:"g"`

	// Complete reports whether every engineered column is a real number.
	// Warmup rows are retained with Complete=false so callers choose
	// whether to drop them before fitting.
	Complete bool `json:"complete"`
}

// Metric returns the feature set for one pillar.
func (r FeatureRow) Metric(p domain.Pillar) MetricFeatures {
	switch p {
	case domain.PillarEnvironmental:
		return r.E
	case domain.PillarSocial:
		return r.S
	case domain.PillarGovernance:
		return r.G
	}
	return MetricFeatures{}
}

// DesignVector returns the regression inputs for one pillar at this row.
func (r FeatureRow) DesignVector(p domain.Pillar) []float64 {
	return r.Metric(p).vector(r.Month, r.Quarter, r.Balance)
}

// FeatureVector is the feature matrix for one company's series, one row
// per historical period, in series order.
type FeatureVector struct {
	Rows []FeatureRow `json:"rows"`
}

// CompleteRows returns the indices of rows with full feature windows.
func (v FeatureVector) CompleteRows() []int {
	var idx []int
	for i, row := range v.Rows {
		if row.Complete {
			idx = append(idx, i)
		}
	}
	return idx
}

// Builder constructs feature matrices. Stateless; a single builder is
// safe for concurrent use.
type Builder struct{}

// NewBuilder returns a feature builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build computes the feature matrix for a series. Short series never
// error: rows whose windows lack history carry NaN and Complete=false.
// Errors are reserved for malformed input (unparseable periods,
// duplicates, out-of-order points, non-finite or out-of-range values).
func (b *Builder) Build(series domain.HistoricalSeries) (FeatureVector, error) {
	periods, err := validateSeries(series)
	if err != nil {
		return FeatureVector{}, err
	}

	n := len(series)
	rows := make([]FeatureRow, n)

	type metricColumns struct {
		mean3, mean6, std6, mom3 []float64
		seasonal                 map[int]float64
	}
	columns := make(map[domain.Pillar]metricColumns, len(domain.Pillars))

	for _, p := range domain.Pillars {
		values := series.MetricValues(p)
		columns[p] = metricColumns{
			mean3:    rollingMean(values, ShortWindow),
			mean6:    rollingMean(values, LongWindow),
			std6:     rollingStd(values, LongWindow),
			mom3:     momentum(values, MomentumLag),
			seasonal: seasonalMeans(values, periods),
		}
	}

	for i := 0; i < n; i++ {
		t := periods[i]
		quarter := int(t.Month()-1)/3 + 1

		row := FeatureRow{
			Index:     i,
			YearMonth: series[i].YearMonth,
			Month:     int(t.Month()),
			Quarter:   quarter,
			Year:      t.Year(),
			Balance:   formulas.PopStdDev([]float64{series[i].E, series[i].S, series[i].G}),
		}

		complete := true
		for _, p := range domain.Pillars {
			c := columns[p]
			m := MetricFeatures{
				Value:        series[i].Metric(p),
				RollMean3:    c.mean3[i],
				RollMean6:    c.mean6[i],
				RollStd6:     c.std6[i],
				Momentum3:    c.mom3[i],
				SeasonalMean: c.seasonal[quarter],
			}
			if !isFinite(m.RollMean3) || !isFinite(m.RollMean6) || !isFinite(m.RollStd6) ||
				!isFinite(m.Momentum3) || !isFinite(m.SeasonalMean) {
				complete = false
			}

			switch p {
			case domain.PillarEnvironmental:
				row.E = m
			case domain.PillarSocial:
				row.S = m
			case domain.PillarGovernance:
				row.G = m
			}
		}
		row.Complete = complete

		rows[i] = row
	}

	return FeatureVector{Rows: rows}, nil
}

// seasonalMeans averages a metric by calendar quarter across the whole
// series. The feature is rebuilt fresh at every call, so it only ever
// sees history available at build time.
func seasonalMeans(values []float64, periods []time.Time) map[int]float64 {
	sums := make(map[int]float64, 4)
	counts := make(map[int]int, 4)

	for i, t := range periods {
		q := int(t.Month()-1)/3 + 1
		sums[q] += values[i]
		counts[q]++
	}

	means := make(map[int]float64, 4)
	for q := 1; q <= 4; q++ {
		if counts[q] > 0 {
			means[q] = sums[q] / float64(counts[q])
		} else {
			// A quarter never observed has no seasonal signal; fall back
			// to the overall mean rather than poisoning rows with NaN.
			means[q] = formulas.Mean(values)
		}
	}
	return means
}

// validateSeries parses every period label and checks ordering and value
// ranges.
func validateSeries(series domain.HistoricalSeries) ([]time.Time, error) {
	periods := make([]time.Time, len(series))

	for i, point := range series {
		t, err := time.Parse(periodLayout, point.YearMonth)
		if err != nil {
			return nil, domain.ValidationError{
				Subject: "historical series",
				Field:   point.YearMonth,
				Message: "period must be formatted as YYYY-MM",
			}
		}
		periods[i] = t

		if i > 0 && !periods[i-1].Before(t) {
			return nil, domain.ValidationError{
				Subject: "historical series",
				Field:   point.YearMonth,
				Message: fmt.Sprintf("period must come after %s (duplicates and out-of-order points are rejected)", series[i-1].YearMonth),
			}
		}

		for _, p := range domain.Pillars {
			v := point.Metric(p)
			if !isFinite(v) || v < 0 || v > 100 {
				return nil, domain.ValidationError{
					Subject: "historical series",
					Field:   fmt.Sprintf("%s %s", point.YearMonth, p),
					Message: fmt.Sprintf("value %v outside [0,100]", v),
				}
			}
		}
	}

	return periods, nil
}

// NextPeriod returns the year-month label one month after the given one.
func NextPeriod(yearMonth string) (string, error) {
	t, err := time.Parse(periodLayout, yearMonth)
	if err != nil {
		return "", fmt.Errorf("invalid period %q: %w", yearMonth, err)
	}
	return t.AddDate(0, 1, 0).Format(periodLayout), nil
}
