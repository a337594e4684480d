package access

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/emr/consent/internal/platform/auth"
)

type Handler struct {
	gate *Gate
}

func NewHandler(gate *Gate) *Handler {
	return &Handler{gate: gate}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/access-checks", h.CheckAccess, auth.RequireRole("requester", "gateway"))
}

type checkRequest struct {
	PatientID   uuid.UUID `json:"patientId"`
	RequesterID uuid.UUID `json:"requesterId"`
	DataType    string    `json:"dataType"`
}

type checkResponse struct {
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason,omitempty"`
	ContractID string `json:"contractId,omitempty"`
}

func (h *Handler) CheckAccess(c echo.Context) error {
	var body checkRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.PatientID == uuid.Nil || body.RequesterID == uuid.Nil || body.DataType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patientId, requesterId and dataType are required")
	}

	dec, err := h.gate.CheckAccess(c.Request().Context(), CheckRequest{
		PatientID:   body.PatientID,
		RequesterID: body.RequesterID,
		DataType:    body.DataType,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := checkResponse{Allowed: dec.Allowed, Reason: dec.Reason}
	if dec.GrantID != nil {
		resp.ContractID = dec.GrantID.String()
	}
	return c.JSON(http.StatusOK, resp)
}
