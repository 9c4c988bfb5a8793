// internal/api/v2/records.go
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/healthdesk/internal/datastore"
)

// PatientRecordRequest is the body of POST /patient_records.
type PatientRecordRequest struct {
	Date      string `json:"date"`
	Notes     string `json:"notes"`
	HeightIn  *int   `json:"height_in"`
	WeightLb  *int   `json:"weight_lb"`
	Diagnosis string `json:"diagnosis"`
	PatientID uint   `json:"patient_id"`
	DoctorID  *uint  `json:"doctor_id"`
}

func (c *Controller) initRecordRoutes() {
	c.Group.GET("/patient_records/:patient_id", c.ListPatientRecords)
	c.Group.POST("/patient_records", c.CreatePatientRecord, c.AuthMiddleware)
	c.Group.DELETE("/patient_records/:id", c.DeletePatientRecord, c.AuthMiddleware)
}

// ListPatientRecords handles GET /patient_records/:patient_id, newest first
func (c *Controller) ListPatientRecords(ctx echo.Context) error {
	patientID, err := parseID(ctx, "patient_id")
	if err != nil {
		return c.HandleError(ctx, err, msgInvalidID, http.StatusBadRequest)
	}

	records, err := c.DS.ListPatientRecords(ctx.Request().Context(), patientID)
	if err != nil {
		return c.failWithToast(ctx, err, msgLoadFailed)
	}
	if records == nil {
		records = []datastore.PatientRecord{}
	}
	return ctx.JSON(http.StatusOK, records)
}

// CreatePatientRecord handles POST /patient_records
func (c *Controller) CreatePatientRecord(ctx echo.Context) error {
	var req PatientRecordRequest
	if err := ctx.Bind(&req); err != nil {
		c.announceError(msgRequiredFields, "")
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	date, err := datastore.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		c.announceError(msgRequiredFields, "Record date must be YYYY-MM-DD.")
		return c.HandleError(ctx, err, "Invalid date", http.StatusBadRequest)
	}

	r := datastore.PatientRecord{
		Date:      date,
		Notes:     req.Notes,
		HeightIn:  req.HeightIn,
		WeightLb:  req.WeightLb,
		Diagnosis: strings.TrimSpace(req.Diagnosis),
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
	}
	if err := c.DS.CreatePatientRecord(ctx.Request().Context(), &r); err != nil {
		return c.failWithToast(ctx, err, msgSaveFailed)
	}

	c.announceSuccess("Record added successfully.")
	return ctx.JSON(http.StatusOK, r)
}

// DeletePatientRecord handles DELETE /patient_records/:id
func (c *Controller) DeletePatientRecord(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err, msgInvalidID, http.StatusBadRequest)
	}

	if err := c.DS.DeletePatientRecord(ctx.Request().Context(), id); err != nil {
		return c.failWithToast(ctx, err, "Failed to delete record.")
	}

	c.announceSuccess("Record deleted.")
	return ctx.JSON(http.StatusOK, map[string]bool{"ok": true})
}
