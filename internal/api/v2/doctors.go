// internal/api/v2/doctors.go
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/healthdesk/internal/datastore"
)

const doctorsCacheKey = "doctors"

// DoctorRequest is the body of POST /doctors.
type DoctorRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Specialty string `json:"specialty"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

func (c *Controller) initDoctorRoutes() {
	c.Group.GET("/doctors", c.ListDoctors)
	c.Group.POST("/doctors", c.CreateDoctor, c.AuthMiddleware)
	c.Group.DELETE("/doctors/:id", c.DeleteDoctor, c.AuthMiddleware)
}

// ListDoctors handles GET /doctors
func (c *Controller) ListDoctors(ctx echo.Context) error {
	if cached, found := c.listCache.Get(doctorsCacheKey); found {
		if doctors, ok := cached.([]datastore.Doctor); ok {
			return ctx.JSON(http.StatusOK, doctors)
		}
	}

	doctors, err := c.DS.ListDoctors(ctx.Request().Context())
	if err != nil {
		return c.failWithToast(ctx, err, msgLoadFailed)
	}
	if doctors == nil {
		doctors = []datastore.Doctor{}
	}
	c.listCache.Set(doctorsCacheKey, doctors, cache.DefaultExpiration)
	return ctx.JSON(http.StatusOK, doctors)
}

// CreateDoctor handles POST /doctors
func (c *Controller) CreateDoctor(ctx echo.Context) error {
	var req DoctorRequest
	if err := ctx.Bind(&req); err != nil {
		c.announceError(msgRequiredFields, "")
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	d := datastore.Doctor{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Specialty: strings.TrimSpace(req.Specialty),
		Phone:     strings.TrimSpace(req.Phone),
		Email:     strings.TrimSpace(req.Email),
	}
	if d.FirstName == "" || d.LastName == "" {
		c.announceError(msgRequiredFields, "")
		return c.HandleError(ctx, nil, "first_name and last_name are required", http.StatusBadRequest)
	}

	if err := c.DS.CreateDoctor(ctx.Request().Context(), &d); err != nil {
		return c.failWithToast(ctx, err, msgSaveFailed)
	}
	c.listCache.Delete(doctorsCacheKey)

	c.announceSuccess("Doctor added successfully.")
	return ctx.JSON(http.StatusOK, d)
}

// DeleteDoctor handles DELETE /doctors/:id
func (c *Controller) DeleteDoctor(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err, msgInvalidID, http.StatusBadRequest)
	}

	if err := c.DS.DeleteDoctor(ctx.Request().Context(), id); err != nil {
		return c.failWithToast(ctx, err, "Failed to delete doctor.")
	}
	c.listCache.Delete(doctorsCacheKey)

	c.announceSuccess("Doctor deleted.")
	return ctx.JSON(http.StatusOK, map[string]bool{"ok": true})
}
