package audit

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/emr/consent/internal/platform/auth"
	"github.com/emr/consent/pkg/pagination"
)

// Handler exposes the read-only audit export feed for compliance
// collaborators.
type Handler struct {
	ledger Ledger
}

func NewHandler(ledger Ledger) *Handler {
	return &Handler{ledger: ledger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("compliance"))
	read.GET("/audit-events", h.ListEvents)
}

// ListEvents returns an ordered, paginated feed of audit events, filterable
// by contract_id, patient_id, and event_type.
func (h *Handler) ListEvents(c echo.Context) error {
	var f Filter

	if v := c.QueryParam("contract_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid contract_id")
		}
		f.ContractID = &id
	}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("event_type"); v != "" {
		f.EventType = EventType(v)
	}

	pg := pagination.FromContext(c)
	events, total, err := h.ledger.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "audit export failed")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(events, total, pg.Limit, pg.Offset))
}
