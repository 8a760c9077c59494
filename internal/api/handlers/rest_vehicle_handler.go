package handlers

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/myloveankyy/xkey-auction-sub000/internal/api/middleware"
	"github.com/myloveankyy/xkey-auction-sub000/internal/apperr"
	"github.com/myloveankyy/xkey-auction-sub000/internal/models"
	"github.com/myloveankyy/xkey-auction-sub000/internal/services"
	"github.com/myloveankyy/xkey-auction-sub000/internal/storage"
)

var (
	errInvalidPrice = apperr.Validation("INVALID_PRICE", "prices must be numbers")
	errInvalidSpecs = apperr.Validation("INVALID_SPECS", "specs must be a JSON object")
	errInvalidList  = apperr.Validation("INVALID_LIST", "pros and cons must be lists of strings")
)

// RestVehicleHandler exposes the vehicle lifecycle.
type RestVehicleHandler struct {
	vehicleService services.IVehicleService
}

func NewRestVehicleHandler(vehicleService services.IVehicleService) *RestVehicleHandler {
	return &RestVehicleHandler{vehicleService: vehicleService}
}

// Create handles POST /api/vehicles/ as multipart/form-data: text fields named as in
// the JSON representation, one "thumbnail" file and any number of "gallery" files.
func (h *RestVehicleHandler) Create(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, errInvalidBody.Wrap(err))
		return
	}

	input, err := vehicleInputFromForm(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var files []multipart.File
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	open := func(fh *multipart.FileHeader) (storage.Upload, error) {
		f, err := fh.Open()
		if err != nil {
			return storage.Upload{}, err
		}
		files = append(files, f)
		return storage.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		}, nil
	}

	var thumbnail *storage.Upload
	if fhs := form.File["thumbnail"]; len(fhs) > 0 {
		u, err := open(fhs[0])
		if err != nil {
			respondError(c, services.ErrInvalidImage.Wrap(err))
			return
		}
		thumbnail = &u
	}
	var gallery []storage.Upload
	for _, fh := range form.File["gallery"] {
		u, err := open(fh)
		if err != nil {
			respondError(c, services.ErrInvalidImage.Wrap(err))
			return
		}
		gallery = append(gallery, u)
	}

	vehicle, err := h.vehicleService.Create(c.Request.Context(), middleware.Actor(c), input, thumbnail, gallery)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, vehicle)
}

func vehicleInputFromForm(c *gin.Context) (services.VehicleInput, error) {
	input := services.VehicleInput{
		Name:            strings.TrimSpace(c.PostForm("name")),
		Category:        strings.TrimSpace(c.PostForm("category")),
		LongDescription: strings.TrimSpace(c.PostForm("longDescription")),
		ListingType:     models.ListingType(c.PostForm("listingType")),
	}

	var err error
	if input.SellingPrice, err = formFloat(c.PostForm("sellingPrice")); err != nil {
		return input, errInvalidPrice.Wrap(err)
	}
	if input.OriginalPrice, err = optionalFloat(c.PostForm("originalPrice")); err != nil {
		return input, errInvalidPrice.Wrap(err)
	}
	if input.ExShowroomPrice, err = optionalFloat(c.PostForm("exShowroomPrice")); err != nil {
		return input, errInvalidPrice.Wrap(err)
	}

	// Specs arrive either as one JSON field or as specs[key] fields.
	if raw := c.PostForm("specs"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &input.Specs); err != nil {
			return input, errInvalidSpecs.Wrap(err)
		}
	} else if m := c.PostFormMap("specs"); len(m) > 0 {
		b, _ := json.Marshal(m)
		if err := json.Unmarshal(b, &input.Specs); err != nil {
			return input, errInvalidSpecs.Wrap(err)
		}
	}

	if input.Pros, err = formList(c, "pros"); err != nil {
		return input, err
	}
	if input.Cons, err = formList(c, "cons"); err != nil {
		return input, err
	}
	return input, nil
}

func formFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func optionalFloat(s string) (*float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	f, err := formFloat(s)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// formList accepts repeated fields or a single JSON array. Blank entries are dropped
// and order is kept.
func formList(c *gin.Context, key string) ([]string, error) {
	values := c.PostFormArray(key)
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		var decoded []string
		if err := json.Unmarshal([]byte(values[0]), &decoded); err != nil {
			return nil, errInvalidList.Wrap(err)
		}
		values = decoded
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

// ListPublic handles GET /api/vehicles/?category=&q=
func (h *RestVehicleHandler) ListPublic(c *gin.Context) {
	vehicles, err := h.vehicleService.ListPublic(c.Request.Context(), services.VehicleFilter{
		Category: c.Query("category"),
		Query:    c.Query("q"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicles)
}

// Get handles GET /api/vehicles/:id
func (h *RestVehicleHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	vehicle, err := h.vehicleService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

// MyListings handles GET /api/vehicles/my-listings
func (h *RestVehicleHandler) MyListings(c *gin.Context) {
	vehicles, err := h.vehicleService.ListBySeller(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicles)
}

// AdminAll handles GET /api/vehicles/admin/all?status=
func (h *RestVehicleHandler) AdminAll(c *gin.Context) {
	vehicles, err := h.vehicleService.ListAll(c.Request.Context(), models.VehicleStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicles)
}

// Approve handles PUT /api/vehicles/:id/approve-listing
func (h *RestVehicleHandler) Approve(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	vehicle, err := h.vehicleService.Approve(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// Reject handles PUT /api/vehicles/:id/reject-listing
func (h *RestVehicleHandler) Reject(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req rejectRequest
	if !bindJSON(c, &req) {
		return
	}
	vehicle, err := h.vehicleService.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

// Negotiate handles POST /api/vehicles/:id/negotiate
func (h *RestVehicleHandler) Negotiate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input services.OfferInput
	if !bindJSON(c, &input) {
		return
	}
	vehicle, err := h.vehicleService.SubmitOffer(c.Request.Context(), middleware.Actor(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

// AcceptOffer handles POST /api/vehicles/:id/accept-offer
func (h *RestVehicleHandler) AcceptOffer(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	vehicle, err := h.vehicleService.AcceptOffer(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

// Delete handles DELETE /api/vehicles/:id
func (h *RestVehicleHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.vehicleService.Delete(c.Request.Context(), middleware.Actor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "vehicle removed"})
}
