package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "fiscalcli/internal/errors"
	"fiscalcli/internal/services"
	"fiscalcli/internal/simulator"
)

// ScenarioEvaluator runs one restructuring scenario synchronously
type ScenarioEvaluator interface {
	Evaluate(ctx context.Context, input simulator.ScenarioInput) (services.ScenarioResponse, error)
}

// ScenarioHandler exposes the debt restructuring simulator. Requests are
// stateless; nothing is stored between calls.
type ScenarioHandler struct {
	evaluator ScenarioEvaluator
	logger    *slog.Logger
}

// NewScenarioHandler creates a scenario handler
func NewScenarioHandler(evaluator ScenarioEvaluator, logger *slog.Logger) *ScenarioHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScenarioHandler{
		evaluator: evaluator,
		logger:    logger.With(slog.String("component", "scenario_handler")),
	}
}

// Routes returns the scenario routes
func (h *ScenarioHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Post("/", h.Evaluate)
	return r
}

// Evaluate decodes a scenario, runs the simulator, and returns the result
// with its opportunity cost breakdown. Malformed bodies get 400; parameter
// combinations the simulator rejects get 422.
func (h *ScenarioHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var input simulator.ScenarioInput
	if err := render.DecodeJSON(r.Body, &input); err != nil {
		render.Render(w, r, apierrors.NewValidationError([]apierrors.ValidationError{
			{Field: "body", Message: err.Error()},
		}))
		return
	}

	response, err := h.evaluator.Evaluate(r.Context(), input)
	if err != nil {
		var calcErr *apierrors.CalculationError
		if errors.As(err, &calcErr) {
			render.Render(w, r, apierrors.NewWithDetails(
				http.StatusUnprocessableEntity,
				"SCENARIO_INVALID",
				calcErr.Message,
				map[string]string{"field": calcErr.Field},
			))
			return
		}

		h.logger.ErrorContext(r.Context(), "scenario evaluation failed",
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.ErrInternalServer)
		return
	}

	render.JSON(w, r, response)
}
