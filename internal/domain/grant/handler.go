package grant

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/emr/consent/internal/domain/policy"
	"github.com/emr/consent/internal/platform/auth"
	"github.com/emr/consent/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	requester := api.Group("", auth.RequireRole("requester", "patient"))
	requester.POST("/grants", h.SubmitGrant)
	requester.GET("/grants/:id", h.GetGrant)
	requester.GET("/patients/:id/grants", h.ListPatientGrants)

	admin := api.Group("", auth.RequireRole("admin"))
	admin.POST("/grants/:id/approve", h.ApproveGrant)
	admin.POST("/grants/:id/reject", h.RejectGrant)
}

// SubmitRequest is the wire form of a grant request. Duration is a Go
// duration string ("72h"); timeRestrictions is "HH:MM-HH:MM" in UTC.
type SubmitRequest struct {
	PatientID           uuid.UUID `json:"patientId"`
	RequesterID         uuid.UUID `json:"requesterId"`
	DataTypes           []string  `json:"dataTypes"`
	Purpose             string    `json:"purpose"`
	PurposeCode         string    `json:"purposeCode"`
	PurposeRestrictions []string  `json:"purposeRestrictions,omitempty"`
	Duration            string    `json:"duration"`
	AccessLevel         string    `json:"accessLevel,omitempty"`
	TimeRestrictions    string    `json:"timeRestrictions,omitempty"`
}

// SubmitResponse pairs the stored grant with the policy decision so
// requesters can see why a request was clamped, queued, or rejected.
type SubmitResponse struct {
	Grant    *Resource `json:"grant"`
	Decision string    `json:"decision"`
	Reason   string    `json:"reason,omitempty"`
}

type actionRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) SubmitGrant(c echo.Context) error {
	var body SubmitRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	req, err := body.toRequest()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	g, dec, err := h.svc.Submit(c.Request().Context(), req)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, SubmitResponse{
		Grant:    g.ToResource(),
		Decision: string(dec.Outcome),
		Reason:   dec.Reason,
	})
}

func (b *SubmitRequest) toRequest() (*Request, error) {
	duration, err := time.ParseDuration(b.Duration)
	if err != nil {
		return nil, &ValidationError{Field: "duration", Msg: "must be a duration string like 72h"}
	}
	level, ok := policy.ParseAccessLevel(b.AccessLevel)
	if !ok {
		return nil, &ValidationError{Field: "accessLevel", Msg: "must be read-summary or read-full"}
	}

	var window *TimeWindow
	if b.TimeRestrictions != "" {
		window, err = ParseTimeWindow(b.TimeRestrictions)
		if err != nil {
			return nil, &ValidationError{Field: "timeRestrictions", Msg: err.Error()}
		}
	}

	return &Request{
		PatientID:           b.PatientID,
		RequesterID:         b.RequesterID,
		DataTypes:           b.DataTypes,
		Purpose:             b.Purpose,
		PurposeCode:         b.PurposeCode,
		PurposeRestrictions: b.PurposeRestrictions,
		Duration:            duration,
		AccessLevel:         level,
		TimeRestrictions:    window,
	}, nil
}

func (h *Handler) GetGrant(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	g, err := h.svc.Get(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "grant not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, g.ToResource())
}

func (h *Handler) ListPatientGrants(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	grants, total, err := h.svc.ListForPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resources := make([]*Resource, 0, len(grants))
	for _, g := range grants {
		resources = append(resources, g.ToResource())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(resources, total, pg.Limit, pg.Offset))
}

func (h *Handler) ApproveGrant(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	g, err := h.svc.Approve(c.Request().Context(), id, h.actor(c))
	if err != nil {
		return transitionError(err)
	}
	return c.JSON(http.StatusOK, g.ToResource())
}

func (h *Handler) RejectGrant(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body actionRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	g, err := h.svc.Reject(c.Request().Context(), id, h.actor(c), body.Reason)
	if err != nil {
		return transitionError(err)
	}
	return c.JSON(http.StatusOK, g.ToResource())
}

func (h *Handler) actor(c echo.Context) string {
	if userID := auth.UserIDFromContext(c.Request().Context()); userID != "" {
		return userID
	}
	return "unknown"
}

func transitionError(err error) error {
	var ve *ValidationError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "grant not found")
	case errors.Is(err, ErrConcurrentModification):
		return echo.NewHTTPError(http.StatusConflict, "grant was concurrently modified, retry")
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	default:
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
}
