package handlers_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/myloveankyy/xkey-auction-sub000/internal/api/handlers"
	"github.com/myloveankyy/xkey-auction-sub000/internal/models"
	"github.com/myloveankyy/xkey-auction-sub000/internal/services"
	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

func TestRestLeadHandler_Create(t *testing.T) {
	mockLeadSvc := new(MockLeadService)
	handler := handlers.NewRestLeadHandler(mockLeadSvc)
	r := newRouter()
	r.POST("/api/leads/", handler.Create)

	vehicleID, missing := utils.NewSixID(), utils.NewSixID()
	lead := &models.Lead{Base: models.Base{ID: utils.NewSixID()}, Vehicle: vehicleID, PhoneNumber: "+91 98765 43210", Status: models.LeadStatusNew}
	mockLeadSvc.On("Create", mock.Anything, services.LeadInput{VehicleID: vehicleID, PhoneNumber: "+91 98765 43210"}).Return(lead, nil)
	mockLeadSvc.On("Create", mock.Anything, services.LeadInput{VehicleID: missing, PhoneNumber: "1"}).Return(nil, services.ErrVehicleNotFound)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest("POST", "/api/leads/", map[string]string{"vehicleId": vehicleID.String(), "phoneNumber": "+91 98765 43210"}))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"new"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest("POST", "/api/leads/", map[string]string{"vehicleId": missing.String(), "phoneNumber": "1"}))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "VEHICLE_NOT_FOUND", decodeError(t, w).Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest("POST", "/api/leads/", map[string]string{"vehicleId": "bad", "phoneNumber": "1"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_BODY", decodeError(t, w).Code)
}

func TestRestLeadHandler_UpdateRecordsAdmin(t *testing.T) {
	admin := newUser(models.RoleAdmin)
	leadID := utils.NewSixID()
	mockLeadSvc := new(MockLeadService)
	handler := handlers.NewRestLeadHandler(mockLeadSvc)
	r := newRouter()
	r.PUT("/api/leads/:id", asUser(admin), handler.Update)

	input := services.LeadUpdateInput{Status: models.LeadStatusContacted, AdminNotes: "call back after 6pm"}
	mockLeadSvc.On("Update", mock.Anything, admin.ID, leadID, input).
		Return(&models.Lead{Base: models.Base{ID: leadID}, Status: models.LeadStatusContacted, HandledBy: &admin.ID}, nil)
	mockLeadSvc.On("Update", mock.Anything, admin.ID, leadID, services.LeadUpdateInput{Status: "lost"}).
		Return(nil, services.ErrInvalidLeadStatus)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest("PUT", "/api/leads/"+leadID.String(), input))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), admin.ID.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest("PUT", "/api/leads/"+leadID.String(), map[string]string{"status": "lost"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_STATUS", decodeError(t, w).Code)

	mockLeadSvc.AssertExpectations(t)
}

func TestRestLeadHandler_Export(t *testing.T) {
	mockLeadSvc := new(MockLeadService)
	handler := handlers.NewRestLeadHandler(mockLeadSvc)
	r := newRouter()
	r.GET("/api/leads/export", handler.Export)

	mockLeadSvc.On("ExportXLSX", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		_, _ = io.WriteString(args.Get(1).(io.Writer), "PK-workbook")
	}).Return(nil).Once()
	mockLeadSvc.On("ExportXLSX", mock.Anything, mock.Anything).Return(assert.AnError).Once()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/leads/export", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.Regexp(t, `^attachment; filename="leads-\d{8}\.xlsx"$`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "PK-workbook", w.Body.String())

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/leads/export", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get("Content-Disposition"))
}

func TestRestLeadHandler_ListAndDelete(t *testing.T) {
	mockLeadSvc := new(MockLeadService)
	handler := handlers.NewRestLeadHandler(mockLeadSvc)
	r := newRouter()
	r.GET("/api/leads/", handler.List)
	r.DELETE("/api/leads/:id", handler.Delete)

	gone := utils.NewSixID()
	mockLeadSvc.On("List", mock.Anything).Return([]models.LeadView{{
		Lead:        models.Lead{PhoneNumber: "555"},
		VehicleName: "Honda City ZX",
	}}, nil)
	mockLeadSvc.On("Delete", mock.Anything, gone).Return(services.ErrLeadNotFound)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/leads/", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"vehicleName":"Honda City ZX"`)
	assert.Contains(t, w.Body.String(), `"phoneNumber":"555"`)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("DELETE", "/api/leads/"+gone.String(), nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
