package prescription

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rxdesk/rxdesk/internal/domain/reference"
	"github.com/rxdesk/rxdesk/internal/platform/auth"
	"github.com/rxdesk/rxdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – admin, physician, pharmacist, nurse
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "pharmacist", "nurse"))
	readGroup.GET("/prescriptions", h.ListPrescriptions)

	// Write endpoints – admin, physician, pharmacist
	writeGroup := api.Group("", auth.RequireRole("admin", "physician", "pharmacist"))
	writeGroup.DELETE("/prescriptions/:id", h.DeletePrescription)
	writeGroup.POST("/prescriptions/:id/drafts", h.OpenEdit)
	writeGroup.POST("/prescription-drafts", h.OpenAdd)

	drafts := writeGroup.Group("/prescription-drafts/:draftId")
	drafts.GET("", h.GetDraft)
	drafts.DELETE("", h.CancelDraft)
	drafts.PUT("/doctor", h.SetDoctor)
	drafts.PUT("/patient", h.SetPatient)
	drafts.PUT("/pharmacy", h.SetPharmacy)
	drafts.PUT("/date", h.SetDate)
	drafts.POST("/items", h.AddLineItem)
	drafts.PUT("/items/:index", h.SetLineItem)
	drafts.PUT("/items/:index/quantity", h.SetQuantity)
	drafts.DELETE("/items/:index", h.RemoveLineItem)
	drafts.POST("/validate", h.Validate)
	drafts.POST("/submit", h.Submit)
}

// draftResponse is the body returned for every draft operation.
type draftResponse struct {
	DraftID   uuid.UUID `json:"draft_id"`
	CreatedAt time.Time `json:"created_at"`
	View
}

func respondDraft(c echo.Context, status int, sess *Session) error {
	return c.JSON(status, draftResponse{
		DraftID:   sess.ID,
		CreatedAt: sess.CreatedAt,
		View:      sess.Editor.View(),
	})
}

// toHTTPError maps editor and service errors onto status codes.
func toHTTPError(err error) error {
	var ve *ValidationError
	var re *RemoteError
	switch {
	case errors.As(err, &ve):
		body := echo.Map{"message": ve.Message, "error": ve.Message, "field": ve.Field}
		if ve.Index > 0 {
			body["index"] = ve.Index
		}
		return echo.NewHTTPError(http.StatusUnprocessableEntity, body)
	case errors.As(err, &re):
		return echo.NewHTTPError(http.StatusBadGateway, re.Error())
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrPrescriptionMissing):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDraftForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrOverwriteDeclined):
		return echo.NewHTTPError(http.StatusConflict, warnReplace)
	case errors.Is(err, ErrNotOpen), errors.Is(err, ErrSubmitInFlight):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrIndexOutOfRange), errors.Is(err, ErrInvalidDate):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) session(c echo.Context) (*Session, error) {
	id, err := uuid.Parse(c.Param("draftId"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid draft id")
	}
	sess, err := h.svc.Session(c.Request().Context(), id)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return sess, nil
}

func indexParam(c echo.Context) (int, error) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid item index")
	}
	return i, nil
}

// mutateDraft resolves the session, applies fn and returns the new view.
func (h *Handler) mutateDraft(c echo.Context, fn func(ed *Editor) error) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	if err := fn(sess.Editor); err != nil {
		return toHTTPError(err)
	}
	return respondDraft(c, http.StatusOK, sess)
}

// -- Prescriptions --

func (h *Handler) ListPrescriptions(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, err := h.svc.ListPrescriptions(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "failed to fetch data: "+err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Page(items, pg), len(items), pg.Limit, pg.Offset))
}

func (h *Handler) DeletePrescription(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeletePrescription(c.Request().Context(), id); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Drafts --

func (h *Handler) OpenAdd(c echo.Context) error {
	sess, err := h.svc.OpenAdd(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "failed to fetch data: "+err.Error())
	}
	return respondDraft(c, http.StatusCreated, sess)
}

func (h *Handler) OpenEdit(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sess, err := h.svc.OpenEdit(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrPrescriptionMissing) {
			return toHTTPError(err)
		}
		return echo.NewHTTPError(http.StatusBadGateway, "failed to fetch data: "+err.Error())
	}
	return respondDraft(c, http.StatusCreated, sess)
}

func (h *Handler) GetDraft(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	return respondDraft(c, http.StatusOK, sess)
}

func (h *Handler) CancelDraft(c echo.Context) error {
	id, err := uuid.Parse(c.Param("draftId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid draft id")
	}
	if err := h.svc.Cancel(c.Request().Context(), id); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type doctorRequest struct {
	DoctorID int64 `json:"doctor_id"`
}

type patientRequest struct {
	PatientID int64 `json:"patient_id"`
}

type dateRequest struct {
	Date string `json:"date"`
}

// quantityRequest accepts the quantity as a JSON number or string so raw
// form input reaches ParseQuantity unchanged.
type quantityRequest struct {
	Quantity json.RawMessage `json:"quantity"`
}

func (q quantityRequest) raw() string {
	var s string
	if err := json.Unmarshal(q.Quantity, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(q.Quantity))
}

func (h *Handler) SetDoctor(c echo.Context) error {
	var req doctorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.mutateDraft(c, func(ed *Editor) error { return ed.SetDoctor(req.DoctorID) })
}

func (h *Handler) SetPatient(c echo.Context) error {
	var req patientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.mutateDraft(c, func(ed *Editor) error { return ed.SetPatient(req.PatientID) })
}

func (h *Handler) SetPharmacy(c echo.Context) error {
	var req reference.Pharmacy
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.mutateDraft(c, func(ed *Editor) error { return ed.SetPharmacy(req) })
}

func (h *Handler) SetDate(c echo.Context) error {
	var req dateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.mutateDraft(c, func(ed *Editor) error { return ed.SetDate(req.Date) })
}

func (h *Handler) AddLineItem(c echo.Context) error {
	return h.mutateDraft(c, func(ed *Editor) error { return ed.AddLineItem() })
}

func (h *Handler) SetLineItem(c echo.Context) error {
	i, err := indexParam(c)
	if err != nil {
		return err
	}
	var req reference.Drug
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.mutateDraft(c, func(ed *Editor) error { return ed.SetLineItem(i, req) })
}

func (h *Handler) SetQuantity(c echo.Context) error {
	i, err := indexParam(c)
	if err != nil {
		return err
	}
	var req quantityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.mutateDraft(c, func(ed *Editor) error { return ed.SetQuantity(i, req.raw()) })
}

func (h *Handler) RemoveLineItem(c echo.Context) error {
	i, err := indexParam(c)
	if err != nil {
		return err
	}
	return h.mutateDraft(c, func(ed *Editor) error { return ed.RemoveLineItem(i) })
}

func (h *Handler) Validate(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	if err := sess.Editor.Validate(); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"valid": true})
}

func (h *Handler) Submit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("draftId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid draft id")
	}
	confirm, _ := strconv.ParseBool(c.QueryParam("confirm_overwrite"))
	res, err := h.svc.Submit(c.Request().Context(), id, confirm)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":  res.Message(),
		"updated":  res.Updated,
		"replaced": res.Replaced,
	})
}
