package revocation

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/emr/consent/internal/domain/grant"
	"github.com/emr/consent/internal/platform/auth"
)

type Handler struct {
	trigger *Trigger
	svc     *grant.Service
}

func NewHandler(trigger *Trigger, svc *grant.Service) *Handler {
	return &Handler{trigger: trigger, svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/signals", h.HandleSignal, auth.RequireRole("admin", "security"))
	api.POST("/grants/:id/withdraw", h.WithdrawGrant, auth.RequireRole("patient"))
}

type signalResponse struct {
	Revoked int `json:"revoked"`
}

// HandleSignal accepts a revocation signal from an administrative or
// security system.
func (h *Handler) HandleSignal(c echo.Context) error {
	var sig Signal
	if err := c.Bind(&sig); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if sig.Actor == "" {
		sig.Actor = auth.UserIDFromContext(c.Request().Context())
	}

	revoked, err := h.trigger.HandleSignal(c.Request().Context(), &sig)
	if err != nil {
		var ve *grant.ValidationError
		switch {
		case errors.As(err, &ve):
			return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
		case errors.Is(err, grant.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "grant not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, signalResponse{Revoked: revoked})
}

type withdrawRequest struct {
	Reason string `json:"reason,omitempty"`
}

// WithdrawGrant is the patient-facing path: it revokes one grant as a
// patient withdrawal. Withdrawing a grant that already ended succeeds as a
// no-op.
func (h *Handler) WithdrawGrant(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body withdrawRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sig := Signal{
		Type:       SignalPatientWithdrawal,
		ContractID: &id,
		Actor:      auth.UserIDFromContext(c.Request().Context()),
		Detail:     body.Reason,
	}
	if sig.Actor == "" {
		sig.Actor = "patient"
	}

	if _, err := h.trigger.HandleSignal(c.Request().Context(), &sig); err != nil {
		if errors.Is(err, grant.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "grant not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	g, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, g.ToResource())
}
