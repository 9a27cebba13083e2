package reference

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/rxdesk/rxdesk/internal/platform/auth"
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
	readGroup.GET("/dashboard", h.Dashboard)
	readGroup.GET("/doctors", h.ListDoctors)
	readGroup.GET("/patients", h.ListPatients)
	readGroup.GET("/pharmacies", h.ListPharmacies)
	readGroup.GET("/pharmaceutical-companies", h.ListCompanies)
	readGroup.GET("/pharmaceutical-companies/:name/drugs", h.ListCompanyDrugs)
	readGroup.GET("/drugs", h.ListDrugs)
	readGroup.GET("/pharmacy-drugs", h.ListPharmacyDrugs)
	readGroup.GET("/pharmacy-contracts", h.ListContracts)

	// Write endpoints – admin only
	writeGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	writeGroup.POST("/doctors", h.AddDoctor)
	writeGroup.PUT("/doctors/:id", h.UpdateDoctor)
	writeGroup.DELETE("/doctors/:id", h.DeleteDoctor)
	writeGroup.POST("/patients", h.AddPatient)
	writeGroup.PUT("/patients/:id", h.UpdatePatient)
	writeGroup.DELETE("/patients/:id", h.DeletePatient)
	writeGroup.POST("/pharmacies", h.AddPharmacy)
	writeGroup.PUT("/pharmacies", h.UpdatePharmacy)
	writeGroup.DELETE("/pharmacies", h.DeletePharmacy)
	writeGroup.POST("/pharmaceutical-companies", h.AddCompany)
	writeGroup.PUT("/pharmaceutical-companies/:name", h.UpdateCompany)
	writeGroup.DELETE("/pharmaceutical-companies/:name", h.DeleteCompany)
	writeGroup.POST("/drugs", h.AddDrug)
	writeGroup.PUT("/drugs", h.UpdateDrug)
	writeGroup.DELETE("/drugs", h.DeleteDrug)
	writeGroup.POST("/pharmacy-drugs", h.AddPharmacyDrug)
	writeGroup.PUT("/pharmacy-drugs", h.UpdatePharmacyDrug)
	writeGroup.DELETE("/pharmacy-drugs", h.DeletePharmacyDrug)
	writeGroup.POST("/pharmacy-contracts", h.AddContract)
	writeGroup.PUT("/pharmacy-contracts", h.UpdateContract)
	writeGroup.DELETE("/pharmacy-contracts", h.DeleteContract)
}

// toHTTPError maps service errors onto status codes.
func toHTTPError(err error) error {
	var ve *ValidationError
	var we *WriteError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusUnprocessableEntity,
			echo.Map{"message": ve.Message, "error": ve.Message, "field": ve.Field})
	case errors.As(err, &we):
		return echo.NewHTTPError(http.StatusBadGateway, we.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func fetchError(what string, err error) error {
	return echo.NewHTTPError(http.StatusBadGateway, "failed to fetch "+what+": "+err.Error())
}

func idParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Reads --

func (h *Handler) Dashboard(c echo.Context) error {
	counts, err := h.svc.Counts(c.Request().Context())
	if err != nil {
		return fetchError("counts", err)
	}
	return c.JSON(http.StatusOK, counts)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	items, err := h.svc.Doctors(c.Request().Context())
	if err != nil {
		return fetchError("doctors", err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListPatients(c echo.Context) error {
	items, err := h.svc.Patients(c.Request().Context())
	if err != nil {
		return fetchError("patients", err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListPharmacies(c echo.Context) error {
	items, err := h.svc.Pharmacies(c.Request().Context())
	if err != nil {
		return fetchError("pharmacies", err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListCompanies(c echo.Context) error {
	items, err := h.svc.Companies(c.Request().Context())
	if err != nil {
		return fetchError("pharmaceutical companies", err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListCompanyDrugs(c echo.Context) error {
	items, err := h.svc.Drugs(c.Request().Context(), c.Param("name"))
	if err != nil {
		return fetchError("drugs for this company", err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListDrugs(c echo.Context) error {
	items, err := h.svc.Drugs(c.Request().Context(), c.QueryParam("company"))
	if err != nil {
		return fetchError("drugs", err)
	}
	return c.JSON(http.StatusOK, items)
}

// ListPharmacyDrugs lists prices. A pharmacy query parameter filters by
// pharmacy name and must not be blank when present.
func (h *Handler) ListPharmacyDrugs(c echo.Context) error {
	search := c.QueryParam("pharmacy")
	if c.QueryParams().Has("pharmacy") && search == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Please enter a pharmacy name")
	}
	items, err := h.svc.PharmacyDrugs(c.Request().Context(), search)
	if err != nil {
		return fetchError("pharmacy drugs", err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListContracts(c echo.Context) error {
	items, err := h.svc.Contracts(c.Request().Context())
	if err != nil {
		return fetchError("pharmacy contracts", err)
	}
	return c.JSON(http.StatusOK, items)
}

// -- Doctors --

func (h *Handler) AddDoctor(c echo.Context) error {
	var d Doctor
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.AddDoctor(c.Request().Context(), d); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var d Doctor
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d.ID = id
	if err := h.svc.UpdateDoctor(c.Request().Context(), d); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDoctor(c.Request().Context(), id); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Patients --

func (h *Handler) AddPatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p.PhysicianName = nil
	if err := h.svc.AddPatient(c.Request().Context(), p); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p.ID = id
	p.PhysicianName = nil
	if err := h.svc.UpdatePatient(c.Request().Context(), p); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeletePatient(c.Request().Context(), id); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Pharmacies --
//
// Pharmacies, drugs, prices and contracts have composite keys. Updates
// carry the key in the body; deletes carry it in the query string.

func (h *Handler) AddPharmacy(c echo.Context) error {
	var p PharmacyRecord
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.AddPharmacy(c.Request().Context(), p); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) UpdatePharmacy(c echo.Context) error {
	var p PharmacyRecord
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.UpdatePharmacy(c.Request().Context(), p); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func pharmacyQuery(c echo.Context, nameParam string) Pharmacy {
	return Pharmacy{Name: c.QueryParam(nameParam), Address: c.QueryParam("address")}
}

func (h *Handler) DeletePharmacy(c echo.Context) error {
	if err := h.svc.DeletePharmacy(c.Request().Context(), pharmacyQuery(c, "name")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Pharmaceutical companies --

func (h *Handler) AddCompany(c echo.Context) error {
	var co Company
	if err := c.Bind(&co); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.AddCompany(c.Request().Context(), co); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, co)
}

func (h *Handler) UpdateCompany(c echo.Context) error {
	var co Company
	if err := c.Bind(&co); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	co.Name = c.Param("name")
	if err := h.svc.UpdateCompany(c.Request().Context(), co); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, co)
}

func (h *Handler) DeleteCompany(c echo.Context) error {
	if err := h.svc.DeleteCompany(c.Request().Context(), c.Param("name")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Drugs --

func (h *Handler) AddDrug(c echo.Context) error {
	var d DrugRecord
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d.CompanyPhone = nil
	if err := h.svc.AddDrug(c.Request().Context(), d); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) UpdateDrug(c echo.Context) error {
	var d DrugRecord
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d.CompanyPhone = nil
	if err := h.svc.UpdateDrug(c.Request().Context(), d); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func drugQuery(c echo.Context, nameParam string) Drug {
	return Drug{Company: c.QueryParam("company"), TradeName: c.QueryParam(nameParam)}
}

func (h *Handler) DeleteDrug(c echo.Context) error {
	if err := h.svc.DeleteDrug(c.Request().Context(), drugQuery(c, "trade_name")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Pharmacy drugs --

func (h *Handler) AddPharmacyDrug(c echo.Context) error {
	var pd PharmacyDrug
	if err := c.Bind(&pd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	pd.CompanyPhone = nil
	if err := h.svc.AddPharmacyDrug(c.Request().Context(), pd); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, pd)
}

func (h *Handler) UpdatePharmacyDrug(c echo.Context) error {
	var pd PharmacyDrug
	if err := c.Bind(&pd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	pd.CompanyPhone = nil
	if err := h.svc.UpdatePharmacyDrug(c.Request().Context(), pd); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, pd)
}

func (h *Handler) DeletePharmacyDrug(c echo.Context) error {
	err := h.svc.DeletePharmacyDrug(c.Request().Context(), pharmacyQuery(c, "pharmacy"), drugQuery(c, "drug"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Contracts --

func (h *Handler) AddContract(c echo.Context) error {
	var ct Contract
	if err := c.Bind(&ct); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ct.PharmacyPhone = nil
	if err := h.svc.AddContract(c.Request().Context(), ct); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, ct)
}

func (h *Handler) UpdateContract(c echo.Context) error {
	var ct Contract
	if err := c.Bind(&ct); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ct.PharmacyPhone = nil
	if err := h.svc.UpdateContract(c.Request().Context(), ct); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, ct)
}

func (h *Handler) DeleteContract(c echo.Context) error {
	key := ContractKey{Pharmacy: pharmacyQuery(c, "pharmacy"), Company: c.QueryParam("company")}
	if err := h.svc.DeleteContract(c.Request().Context(), key); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
