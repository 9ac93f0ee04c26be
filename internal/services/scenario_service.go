package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	apperrors "fiscalcli/internal/errors"
	"fiscalcli/internal/simulator"
)

// ScenarioResponse bundles the restructuring outcome with the opportunity
// cost conversion of the freed fiscal space.
type ScenarioResponse struct {
	Result          simulator.ScenarioResult     `json:"result"`
	OpportunityCost map[simulator.UnitType]int64 `json:"opportunity_cost,omitempty"`
}

// ScenarioService validates and evaluates debt restructuring scenarios.
// Evaluation is stateless; nothing is persisted between calls.
type ScenarioService struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewScenarioService creates a scenario service
func NewScenarioService(logger *slog.Logger) *ScenarioService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScenarioService{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Evaluate checks the input against its declared constraints, runs the
// simulation, and converts any non-negative freed fiscal space into
// development units. Validation failures come back as CalculationErrors
// naming the offending field.
func (s *ScenarioService) Evaluate(ctx context.Context, input simulator.ScenarioInput) (ScenarioResponse, error) {
	if err := s.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return ScenarioResponse{}, apperrors.NewCalculationError(
				jsonFieldName(first.Field()),
				fmt.Sprintf("failed %s constraint", first.Tag()),
			)
		}
		return ScenarioResponse{}, apperrors.NewCalculationError("", err.Error())
	}

	result, err := simulator.Simulate(input)
	if err != nil {
		return ScenarioResponse{}, err
	}

	response := ScenarioResponse{Result: result}
	if result.FiscalSpaceFreed > 0 {
		breakdown, err := simulator.OpportunityBreakdown(result.FiscalSpaceFreed)
		if err != nil {
			return ScenarioResponse{}, err
		}
		response.OpportunityCost = breakdown
	}

	s.logger.InfoContext(ctx, "scenario evaluated",
		slog.Float64("principal", input.Principal),
		slog.Float64("fiscal_space_freed", result.FiscalSpaceFreed),
		slog.Bool("assumptions_defaulted", result.AssumptionsDefaulted),
	)
	return response, nil
}

// jsonFieldName maps ScenarioInput struct field names to their wire names
func jsonFieldName(field string) string {
	switch field {
	case "Principal":
		return "principal"
	case "Rate":
		return "rate"
	case "MaturityPeriods":
		return "maturity_periods"
	case "RateReduction":
		return "rate_reduction"
	case "MaturityExtension":
		return "maturity_extension"
	case "HaircutFraction":
		return "haircut_fraction"
	case "GDPUSD":
		return "gdp_usd"
	default:
		return field
	}
}
