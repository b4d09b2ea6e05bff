package handler

import (
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/rs/zerolog"
)

// UsageHandler exposes the usage and cost ledgers

type UsageHandler struct {
	usageService service.UsageService
	costService  service.CostService
	logger       zerolog.Logger
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(usageService service.UsageService, costService service.CostService, logger zerolog.Logger) *UsageHandler {
	return &UsageHandler{
		usageService: usageService,
		costService:  costService,
		logger:       logger,
	}
}

// RegisterRoutes mounts usage routes under /usage
func (h *UsageHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/usage", authMw(http.HandlerFunc(h.getUsage)))
	mux.Handle("/usage/costs", authMw(http.HandlerFunc(h.getCosts)))
}

func usageDTO(s *model.UsageSnapshot) dto.UsageResponseDTO {
	return dto.UsageResponseDTO{
		Plan:             s.PlanName,
		AllowedMinutes:   s.AllowedMinutes,
		UsedMinutes:      s.UsedMinutes,
		RemainingMinutes: s.RemainingMinutes,
		IsOverLimit:      s.IsOverLimit,
		CycleStart:       s.CycleStart,
	}
}

// getUsage godoc
// @Summary Get usage snapshot
// @Description Returns the current cycle's transcription usage against the plan allowance.
// @Tags usage
// @Produce json
// @Success 200 {object} dto.UsageResponseDTO
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Router /usage [get]
func (h *UsageHandler) getUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized: User ID not found in context")
		return
	}
	snapshot, err := h.usageService.SnapshotOrProvision(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, usageDTO(snapshot))
}

// getCosts godoc
// @Summary Get spending snapshot
// @Description Returns the current cycle's API spend and lifetime totals.
// @Tags usage
// @Produce json
// @Success 200 {object} dto.CostResponseDTO
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Router /usage/costs [get]
func (h *UsageHandler) getCosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized: User ID not found in context")
		return
	}
	rec, err := h.costService.Snapshot(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, dto.CostResponseDTO{
		TotalCostUSD:   rec.TotalCostUSD.StringFixed(4),
		MonthlyCostUSD: rec.MonthlyCostUSD.StringFixed(4),
		MonthlyCalls:   rec.MonthlyCalls,
		TotalCalls:     rec.TotalCalls,
		CycleStart:     rec.CycleStart,
	})
}
