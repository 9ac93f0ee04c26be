package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	apperrors "fiscalcli/internal/errors"
)

// PooledEntityID labels the cross-entity regression fitted over the whole
// feature matrix alongside the per-entity fits.
const PooledEntityID = "PAN_AFRICA"

// featureColumns fixes the design-matrix column order after the intercept
var featureColumns = []string{
	FeatureRevenueVolatility,
	FeatureWageProxyPctGDP,
	FeatureFiscalBurden,
	FeatureGDPGrowth,
}

// Regressor fits the fiscal driver model: deficit ratio against an
// intercept plus the engineered features, ordinary least squares per
// entity. No regularization or multicollinearity correction is applied.
type Regressor struct {
	minObservations int
	logger          *slog.Logger
}

// NewRegressor creates a driver regressor. minObservations is the complete
// observation count below which an entity is reported as insufficient_data.
func NewRegressor(minObservations int, logger *slog.Logger) *Regressor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Regressor{minObservations: minObservations, logger: logger}
}

// Fit runs the pooled regression plus one regression per entity. Entities
// below the observation floor or with singular designs are emitted with a
// status instead of aborting the batch.
func (r *Regressor) Fit(ctx context.Context, rows []FeatureRow) ([]RegressionResult, []*apperrors.ModelFitError) {
	byEntity := make(map[string][]FeatureRow)
	for _, row := range rows {
		byEntity[row.EntityID] = append(byEntity[row.EntityID], row)
	}

	entities := make([]string, 0, len(byEntity))
	for entity := range byEntity {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	results := make([]RegressionResult, 0, len(entities)+1)
	var fitErrs []*apperrors.ModelFitError

	if len(rows) >= r.minObservations {
		pooled, err := r.fitEntity(PooledEntityID, rows)
		results = append(results, pooled)
		if err != nil {
			fitErrs = append(fitErrs, err)
		}
	}

	for _, entity := range entities {
		subset := byEntity[entity]
		if len(subset) < r.minObservations {
			results = append(results, RegressionResult{
				EntityID:   entity,
				NObs:       len(subset),
				Status:     StatusInsufficientData,
				Diagnostic: fmt.Sprintf("%d complete observations, need %d", len(subset), r.minObservations),
			})
			continue
		}

		res, err := r.fitEntity(entity, subset)
		results = append(results, res)
		if err != nil {
			fitErrs = append(fitErrs, err)
		}
	}

	r.logger.InfoContext(ctx, "driver regressions complete",
		slog.Int("entities", len(entities)),
		slog.Int("fit_failures", len(fitErrs)),
	)

	return results, fitErrs
}

// fitEntity solves one OLS problem via QR decomposition
func (r *Regressor) fitEntity(entityID string, rows []FeatureRow) (RegressionResult, *apperrors.ModelFitError) {
	n := len(rows)
	k := len(featureColumns) + 1 // intercept

	failed := func(reason string, cause error) (RegressionResult, *apperrors.ModelFitError) {
		return RegressionResult{
			EntityID:   entityID,
			NObs:       n,
			Status:     StatusFitFailed,
			Diagnostic: reason,
		}, apperrors.NewModelFitError(entityID, "deficit_pct_gdp", reason, cause)
	}

	if n <= k {
		return failed(fmt.Sprintf("%d observations cannot identify %d coefficients", n, k), nil)
	}

	design := mat.NewDense(n, k, nil)
	target := mat.NewVecDense(n, nil)
	for i, row := range rows {
		design.Set(i, 0, 1)
		design.Set(i, 1, row.RevenueVolatility)
		design.Set(i, 2, row.WageProxyPctGDP)
		design.Set(i, 3, row.FiscalBurden)
		design.Set(i, 4, row.GDPGrowth)
		target.SetVec(i, row.DeficitPctGDP)
	}

	var qr mat.QR
	qr.Factorize(design)

	beta := mat.NewDense(k, 1, nil)
	if err := qr.SolveTo(beta, false, target); err != nil {
		return failed("singular design matrix", err)
	}

	// Residual variance and the coefficient covariance diagonal.
	var fitted mat.Dense
	fitted.Mul(design, beta)

	var rss, tss, meanY float64
	for i := 0; i < n; i++ {
		meanY += target.AtVec(i)
	}
	meanY /= float64(n)
	for i := 0; i < n; i++ {
		resid := target.AtVec(i) - fitted.At(i, 0)
		rss += resid * resid
		dev := target.AtVec(i) - meanY
		tss += dev * dev
	}

	var xtx, xtxInv mat.Dense
	xtx.Mul(design.T(), design)
	if err := xtxInv.Inverse(&xtx); err != nil {
		return failed("design matrix not invertible", err)
	}

	dof := float64(n - k)
	sigma2 := rss / dof
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dof}

	betas := make(map[string]float64, len(featureColumns))
	pValues := make(map[string]float64, len(featureColumns))
	for j, name := range featureColumns {
		col := j + 1 // skip intercept
		b := beta.At(col, 0)
		se := math.Sqrt(sigma2 * xtxInv.At(col, col))

		betas[name] = b
		if se == 0 {
			pValues[name] = 1
			continue
		}
		t := b / se
		pValues[name] = 2 * tDist.Survival(math.Abs(t))
	}

	rsquared := 0.0
	if tss > 0 {
		rsquared = 1 - rss/tss
	}

	return RegressionResult{
		EntityID: entityID,
		Betas:    betas,
		PValues:  pValues,
		RSquared: rsquared,
		NObs:     n,
		Status:   StatusOK,
	}, nil
}
