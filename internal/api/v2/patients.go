// internal/api/v2/patients.go
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/healthdesk/internal/datastore"
)

const patientsCacheKey = "patients"

// PatientRequest is the body of POST /patients. DOB is YYYY-MM-DD.
type PatientRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	DOB       string `json:"dob"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Address   string `json:"address"`
}

func (c *Controller) initPatientRoutes() {
	c.Group.GET("/patients", c.ListPatients)
	c.Group.POST("/patients", c.CreatePatient, c.AuthMiddleware)
	c.Group.DELETE("/patients/:id", c.DeletePatient, c.AuthMiddleware)
}

// ListPatients handles GET /patients
func (c *Controller) ListPatients(ctx echo.Context) error {
	if cached, found := c.listCache.Get(patientsCacheKey); found {
		if patients, ok := cached.([]datastore.Patient); ok {
			return ctx.JSON(http.StatusOK, patients)
		}
	}

	patients, err := c.DS.ListPatients(ctx.Request().Context())
	if err != nil {
		return c.failWithToast(ctx, err, msgLoadFailed)
	}
	if patients == nil {
		patients = []datastore.Patient{}
	}
	c.listCache.Set(patientsCacheKey, patients, cache.DefaultExpiration)
	return ctx.JSON(http.StatusOK, patients)
}

// CreatePatient handles POST /patients
func (c *Controller) CreatePatient(ctx echo.Context) error {
	var req PatientRequest
	if err := ctx.Bind(&req); err != nil {
		c.announceError(msgRequiredFields, "")
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	p := datastore.Patient{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Phone:     strings.TrimSpace(req.Phone),
		Email:     strings.TrimSpace(req.Email),
		Address:   strings.TrimSpace(req.Address),
	}
	if p.FirstName == "" || p.LastName == "" {
		c.announceError(msgRequiredFields, "")
		return c.HandleError(ctx, nil, "first_name and last_name are required", http.StatusBadRequest)
	}
	if dob := strings.TrimSpace(req.DOB); dob != "" {
		parsed, err := datastore.ParseDate(dob)
		if err != nil {
			c.announceError(msgRequiredFields, "Date of birth must be YYYY-MM-DD.")
			return c.HandleError(ctx, err, "Invalid date of birth", http.StatusBadRequest)
		}
		p.DOB = &parsed
	}

	if err := c.DS.CreatePatient(ctx.Request().Context(), &p); err != nil {
		return c.failWithToast(ctx, err, msgSaveFailed)
	}
	c.listCache.Delete(patientsCacheKey)

	c.announceSuccess("Patient added successfully.")
	return ctx.JSON(http.StatusOK, p)
}

// DeletePatient handles DELETE /patients/:id. The patient's records go with
// them.
func (c *Controller) DeletePatient(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err, msgInvalidID, http.StatusBadRequest)
	}

	if err := c.DS.DeletePatient(ctx.Request().Context(), id); err != nil {
		return c.failWithToast(ctx, err, "Failed to delete patient.")
	}
	c.listCache.Delete(patientsCacheKey)

	c.announceSuccess("Patient deleted.")
	return ctx.JSON(http.StatusOK, map[string]bool{"ok": true})
}
