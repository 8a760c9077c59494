package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/myloveankyy/xkey-auction-sub000/internal/apperr"
	"github.com/myloveankyy/xkey-auction-sub000/internal/config"
	"github.com/myloveankyy/xkey-auction-sub000/internal/db"
	"github.com/myloveankyy/xkey-auction-sub000/internal/models"
	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

var (
	ErrLeadNotFound      = apperr.NotFound("LEAD_NOT_FOUND", "lead not found")
	ErrInvalidLeadStatus = apperr.Validation("INVALID_STATUS", "status must be one of: new, contacted, accepted, declined")
)

// LeadAdminLink is where lead notifications point.
const LeadAdminLink = "/admin/leads"

// LeadInput is the public callback request form.
type LeadInput struct {
	VehicleID   utils.SixID `json:"vehicleId" validate:"required"`
	PhoneNumber string      `json:"phoneNumber" validate:"required,max=32"`
}

// LeadUpdateInput merges into an existing lead. Empty fields mean "no change";
// ClearNotes is the only way to blank the notes.
type LeadUpdateInput struct {
	Status     models.LeadStatus `json:"status"`
	AdminNotes string            `json:"adminNotes" validate:"max=2000"`
	ClearNotes bool              `json:"clearNotes"`
}

// ILeadService handles buyer callback requests.
type ILeadService interface {
	Create(ctx context.Context, input LeadInput) (*models.Lead, error)
	List(ctx context.Context) ([]models.LeadView, error)
	Update(ctx context.Context, adminID, leadID utils.SixID, input LeadUpdateInput) (*models.Lead, error)
	Delete(ctx context.Context, leadID utils.SixID) error
	ExportXLSX(ctx context.Context, w io.Writer) error
}

const leadsCollection = "leads"

type leadService struct {
	db                  *mongo.Database
	cfg                 *config.Config
	vehicleService      IVehicleService
	userService         IUserService
	notificationService INotificationService
	jobs                IJobQueue
}

func NewLeadService(db *mongo.Database, cfg *config.Config, vehicleService IVehicleService, userService IUserService, notificationService INotificationService, jobs IJobQueue) ILeadService {
	return &leadService{
		db:                  db,
		cfg:                 cfg,
		vehicleService:      vehicleService,
		userService:         userService,
		notificationService: notificationService,
		jobs:                jobs,
	}
}

// LeadNotificationMessage is the inbox text admins receive for a new lead.
func LeadNotificationMessage(vehicleName, phone string) string {
	return fmt.Sprintf("New lead for %s — phone %s", vehicleName, phone)
}

// Create stores the lead and then tells every admin about it. The lead is the
// authoritative result: notification and email failures are logged only.
func (s *leadService) Create(ctx context.Context, input LeadInput) (*models.Lead, error) {
	input.PhoneNumber = normalizeText(input.PhoneNumber)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	vehicle, err := s.vehicleService.Get(ctx, input.VehicleID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	lead := &models.Lead{
		Vehicle:     vehicle.ID,
		PhoneNumber: input.PhoneNumber,
		Status:      models.LeadStatusNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	collection := s.db.Collection(leadsCollection)
	err = db.Try(ctx, func() error {
		lead.GenID()
		_, insertErr := collection.InsertOne(ctx, lead)
		return insertErr
	})
	if err != nil {
		return nil, fmt.Errorf("error inserting lead: %w", err)
	}
	log.Printf("Lead %s created for vehicle %s", lead.ID, vehicle.ID)

	s.alertAdmins(ctx, lead, vehicle)
	return lead, nil
}

func (s *leadService) alertAdmins(ctx context.Context, lead *models.Lead, vehicle *models.Vehicle) {
	admins, err := s.userService.ListAdmins(ctx)
	if err != nil {
		log.Printf("WARNING: lead %s: failed to load admins for notification: %v", lead.ID, err)
		return
	}
	adminIDs := make([]utils.SixID, 0, len(admins))
	for _, a := range admins {
		adminIDs = append(adminIDs, a.ID)
	}
	message := LeadNotificationMessage(vehicle.Name, lead.PhoneNumber)
	if n, err := s.notificationService.NotifyUsers(ctx, adminIDs, message, LeadAdminLink); err != nil {
		log.Printf("WARNING: lead %s: notified %d of %d admins: %v", lead.ID, n, len(adminIDs), err)
	}

	if s.jobs == nil {
		return
	}
	data := map[string]any{
		"vehicle_name": vehicle.Name,
		"phone_number": lead.PhoneNumber,
		"leads_url":    s.cfg.AdminPanelURL + LeadAdminLink,
		"app_name":     s.cfg.AppName,
	}
	for _, admin := range admins {
		if err := s.jobs.EnqueueEmail(ctx, admin.Email, TemplateNewLead, data); err != nil {
			log.Printf("WARNING: lead %s: failed to enqueue email to %s: %v", lead.ID, admin.Email, err)
		}
	}
}

// List returns all leads newest first, joined with their vehicle names.
func (s *leadService) List(ctx context.Context) ([]models.LeadView, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(leadsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying leads: %w", err)
	}
	var leads []models.Lead
	if err := cursor.All(ctx, &leads); err != nil {
		return nil, fmt.Errorf("error decoding leads: %w", err)
	}

	names, err := s.vehicleNames(ctx, leads)
	if err != nil {
		return nil, err
	}
	views := make([]models.LeadView, 0, len(leads))
	for _, l := range leads {
		views = append(views, models.LeadView{Lead: l, VehicleName: names[l.Vehicle]})
	}
	return views, nil
}

func (s *leadService) vehicleNames(ctx context.Context, leads []models.Lead) (map[utils.SixID]string, error) {
	names := make(map[utils.SixID]string)
	if len(leads) == 0 {
		return names, nil
	}
	ids := make([]utils.SixID, 0, len(leads))
	for _, l := range leads {
		ids = append(ids, l.Vehicle)
	}
	opts := options.Find().SetProjection(bson.M{"name": 1})
	cursor, err := s.db.Collection(vehiclesCollection).Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("error loading vehicle names: %w", err)
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var v struct {
			ID   utils.SixID `bson:"_id"`
			Name string      `bson:"name"`
		}
		if err := cursor.Decode(&v); err != nil {
			return nil, fmt.Errorf("error decoding vehicle name: %w", err)
		}
		names[v.ID] = v.Name
	}
	return names, cursor.Err()
}

func (s *leadService) Update(ctx context.Context, adminID, leadID utils.SixID, input LeadUpdateInput) (*models.Lead, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	set := bson.M{"handled_by": adminID, "updated_at": time.Now().UTC()}
	update := bson.M{"$set": set}
	if input.Status != "" {
		if !input.Status.Valid() {
			return nil, ErrInvalidLeadStatus
		}
		set["status"] = input.Status
	}
	if notes := normalizeText(input.AdminNotes); notes != "" {
		set["admin_notes"] = notes
	} else if input.ClearNotes {
		update["$unset"] = bson.M{"admin_notes": ""}
	}

	var lead models.Lead
	err := s.db.Collection(leadsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": leadID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&lead)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("error updating lead %s: %w", leadID, err)
	}
	return &lead, nil
}

func (s *leadService) Delete(ctx context.Context, leadID utils.SixID) error {
	res, err := s.db.Collection(leadsCollection).DeleteOne(ctx, bson.M{"_id": leadID})
	if err != nil {
		return fmt.Errorf("error deleting lead %s: %w", leadID, err)
	}
	if res.DeletedCount == 0 {
		return ErrLeadNotFound
	}
	return nil
}

var leadExportHeader = []interface{}{"Lead ID", "Vehicle", "Phone", "Status", "Admin Notes", "Handled By", "Created At"}

// ExportXLSX writes every lead as one spreadsheet row.
func (s *leadService) ExportXLSX(ctx context.Context, w io.Writer) error {
	leads, err := s.List(ctx)
	if err != nil {
		return err
	}
	return WriteLeadsXLSX(w, leads)
}

// WriteLeadsXLSX renders leads into a single-sheet workbook.
func WriteLeadsXLSX(w io.Writer, leads []models.LeadView) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Leads"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &leadExportHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, l := range leads {
		handledBy := ""
		if l.HandledBy != nil {
			handledBy = l.HandledBy.String()
		}
		row := []interface{}{
			l.ID.String(), l.VehicleName, l.PhoneNumber, string(l.Status),
			l.AdminNotes, handledBy, l.CreatedAt.Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write lead %s: %w", l.ID, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
