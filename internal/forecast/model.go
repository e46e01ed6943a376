// Package forecast trains and serves the monthly sighting-count forecast.
//
// The model is a degree-2 polynomial in the bucket index t, fitted by ridge
// regression with an unpenalized intercept:
//
//	count(t) ≈ c0 + c1·t + c2·t²
//
// Training reads the full monthly series from the store and writes an
// Artifact. Serving reads only the Artifact.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/couchcryptid/tick-sightings/internal/domain"
)

const (
	// Degree of the polynomial features.
	Degree = 2
	// Alpha is the ridge penalty.
	Alpha = 1.0
	// Horizon is the number of future months forecast.
	Horizon = 3
	// MinSeriesLength is the fewest monthly buckets training accepts.
	MinSeriesLength = 3
)

// Trend classifies the slope at the end of the fitted curve.
type Trend string

const (
	Increasing Trend = "increasing"
	Decreasing Trend = "decreasing"
	Stable     Trend = "stable"
)

// Artifact is the persisted, trained model.
type Artifact struct {
	Coefficients []float64 `json:"coefficients"` // intercept, t, t²
	SeriesLength int       `json:"series_length"`
	LastYear     int       `json:"last_year"`
	LastMonth    int       `json:"last_month"`
	Degree       int       `json:"degree"`
	Alpha        float64   `json:"alpha"`
	TrainedAt    time.Time `json:"trained_at"`
}

// Predict evaluates the fitted polynomial at bucket index t.
func (a *Artifact) Predict(t float64) float64 {
	c := a.Coefficients
	return c[0] + c[1]*t + c[2]*t*t
}

// Validate reports whether the artifact can be served.
func (a *Artifact) Validate() error {
	if len(a.Coefficients) != Degree+1 {
		return fmt.Errorf("expected %d coefficients, got %d", Degree+1, len(a.Coefficients))
	}
	for _, c := range a.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return errors.New("non-finite coefficient")
		}
	}
	if a.SeriesLength < 2 {
		return fmt.Errorf("series length %d too short", a.SeriesLength)
	}
	if a.LastMonth < 1 || a.LastMonth > 12 {
		return fmt.Errorf("last month %d out of range", a.LastMonth)
	}
	return nil
}

// Prediction is the forecast count of one future month.
type Prediction struct {
	Month          string `json:"month"`
	Year           int    `json:"year"`
	PredictedCount int    `json:"predicted_count"`
}

// Forecast is the served result.
type Forecast struct {
	Predictions []Prediction `json:"predictions"`
	Trend       Trend        `json:"trend"`
	Slope       float64      `json:"slope"`
}

// Project computes the Horizon-month forecast from a trained artifact.
// Counts are floored at zero and rounded half to even. The trend is the sign
// of predict(n-1) − predict(n-2).
func Project(a *Artifact) *Forecast {
	n := a.SeriesLength
	f := &Forecast{Predictions: make([]Prediction, 0, Horizon)}

	for i := 1; i <= Horizon; i++ {
		pred := a.Predict(float64(n - 1 + i))
		offset := a.LastMonth + i - 1
		f.Predictions = append(f.Predictions, Prediction{
			Month:          time.Month(offset%12 + 1).String(),
			Year:           a.LastYear + offset/12,
			PredictedCount: int(math.RoundToEven(math.Max(pred, 0))),
		})
	}

	slope := a.Predict(float64(n-1)) - a.Predict(float64(n-2))
	switch {
	case slope > 0:
		f.Trend = Increasing
	case slope < 0:
		f.Trend = Decreasing
	default:
		f.Trend = Stable
	}
	f.Slope = roundPlaces(slope, 2)
	return f
}

// Fit trains the ridge model on a chronological monthly series.
func Fit(series []domain.MonthlyCount) (*Artifact, error) {
	n := len(series)
	if n < MinSeriesLength {
		return nil, fmt.Errorf("%d monthly buckets, need at least %d: %w", n, MinSeriesLength, domain.ErrInsufficientData)
	}

	y := make([]float64, n)
	for i, b := range series {
		y[i] = float64(b.Count)
	}
	c0, c1, c2 := fitQuadraticRidge(y, Alpha)

	last := series[n-1]
	return &Artifact{
		Coefficients: []float64{c0, c1, c2},
		SeriesLength: n,
		LastYear:     last.Year,
		LastMonth:    int(last.Month),
		Degree:       Degree,
		Alpha:        Alpha,
	}, nil
}

// fitQuadraticRidge regresses y[t] on (t, t²) for t = 0..len(y)-1. Features
// and target are centered so the intercept is not penalized, then the 2×2
// normal equations (XᵀX + αI)w = Xᵀy are solved in closed form.
func fitQuadraticRidge(y []float64, alpha float64) (c0, c1, c2 float64) {
	n := float64(len(y))
	var mx1, mx2, my float64
	for t, v := range y {
		ft := float64(t)
		mx1 += ft
		mx2 += ft * ft
		my += v
	}
	mx1 /= n
	mx2 /= n
	my /= n

	var s11, s12, s22, s1y, s2y float64
	for t, v := range y {
		ft := float64(t)
		d1 := ft - mx1
		d2 := ft*ft - mx2
		dy := v - my
		s11 += d1 * d1
		s12 += d1 * d2
		s22 += d2 * d2
		s1y += d1 * dy
		s2y += d2 * dy
	}

	a, b, d := s11+alpha, s12, s22+alpha
	det := a*d - b*b
	c1 = (d*s1y - b*s2y) / det
	c2 = (a*s2y - b*s1y) / det
	c0 = my - c1*mx1 - c2*mx2
	return c0, c1, c2
}

// roundPlaces rounds half to even on the exact binary value, the way
// decimal formatting does.
func roundPlaces(x float64, places int) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'f', places, 64), 64)
	return r
}
