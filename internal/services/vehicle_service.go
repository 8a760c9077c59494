package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/myloveankyy/xkey-auction-sub000/internal/apperr"
	"github.com/myloveankyy/xkey-auction-sub000/internal/config"
	"github.com/myloveankyy/xkey-auction-sub000/internal/db"
	"github.com/myloveankyy/xkey-auction-sub000/internal/lifecycle"
	"github.com/myloveankyy/xkey-auction-sub000/internal/models"
	"github.com/myloveankyy/xkey-auction-sub000/internal/storage"
	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

var (
	ErrVehicleNotFound    = apperr.NotFound("VEHICLE_NOT_FOUND", "vehicle not found")
	ErrStaleVehicle       = apperr.Conflict("STALE_VEHICLE", "vehicle was modified concurrently, retry")
	ErrThumbnailRequired  = apperr.Validation("INVALID_THUMBNAIL", "thumbnail is required")
	ErrTooManyImages      = apperr.Validation("TOO_MANY_IMAGES", "too many gallery images")
	ErrInvalidImage       = apperr.Validation("INVALID_IMAGE", "invalid image")
	ErrReasonRequired     = apperr.Validation("INVALID_REASON", "rejection reason is required")
	ErrInvalidStatusQuery = apperr.Validation("INVALID_STATUS", "unknown vehicle status")
)

// VehicleInput is the submission form. Images travel separately as storage.Upload values.
type VehicleInput struct {
	Name            string              `json:"name" validate:"required,max=200"`
	Category        string              `json:"category" validate:"max=100"`
	Specs           models.VehicleSpecs `json:"specs"`
	LongDescription string              `json:"longDescription" validate:"required"`
	Pros            []string            `json:"pros"`
	Cons            []string            `json:"cons"`
	OriginalPrice   *float64            `json:"originalPrice" validate:"omitempty,gt=0"`
	ExShowroomPrice *float64            `json:"exShowroomPrice" validate:"omitempty,gt=0"`
	SellingPrice    float64             `json:"sellingPrice" validate:"required,gt=0"`
	ListingType     models.ListingType  `json:"listingType"`
}

// OfferInput is a negotiation move.
type OfferInput struct {
	Amount  float64 `json:"amount"`
	Message string  `json:"message" validate:"max=1000"`
}

// VehicleFilter narrows the public browse list.
type VehicleFilter struct {
	Category string
	Query    string
}

// IVehicleService is the vehicle lifecycle engine.
type IVehicleService interface {
	Create(ctx context.Context, actor lifecycle.Actor, input VehicleInput, thumbnail *storage.Upload, gallery []storage.Upload) (*models.Vehicle, error)
	Get(ctx context.Context, id utils.SixID) (*models.Vehicle, error)
	ListPublic(ctx context.Context, filter VehicleFilter) ([]models.Vehicle, error)
	ListBySeller(ctx context.Context, sellerID utils.SixID) ([]models.Vehicle, error)
	ListAll(ctx context.Context, status models.VehicleStatus) ([]models.Vehicle, error)
	Approve(ctx context.Context, id utils.SixID) (*models.Vehicle, error)
	Reject(ctx context.Context, id utils.SixID, reason string) (*models.Vehicle, error)
	SubmitOffer(ctx context.Context, actor lifecycle.Actor, id utils.SixID, input OfferInput) (*models.Vehicle, error)
	AcceptOffer(ctx context.Context, actor lifecycle.Actor, id utils.SixID) (*models.Vehicle, error)
	Delete(ctx context.Context, actor lifecycle.Actor, id utils.SixID) error
}

const vehiclesCollection = "vehicles"

type vehicleService struct {
	db      *mongo.Database
	cfg     *config.Config
	storage storage.IStorage
	jobs    IJobQueue // nil disables image post-processing
}

func NewVehicleService(db *mongo.Database, cfg *config.Config, store storage.IStorage, jobs IJobQueue) IVehicleService {
	return &vehicleService{db: db, cfg: cfg, storage: store, jobs: jobs}
}

func (s *vehicleService) Create(ctx context.Context, actor lifecycle.Actor, input VehicleInput, thumbnail *storage.Upload, gallery []storage.Upload) (*models.Vehicle, error) {
	placement, err := lifecycle.Place(actor.IsAdmin, input.ListingType)
	if err != nil {
		return nil, err
	}
	// Trim first so that whitespace-only text fails the required checks.
	input.Name = normalizeText(input.Name)
	input.Category = normalizeText(input.Category)
	input.LongDescription = normalizeText(input.LongDescription)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if thumbnail == nil {
		return nil, ErrThumbnailRequired
	}
	if len(gallery) > s.cfg.MaxGalleryImages {
		return nil, ErrTooManyImages.Wrap(fmt.Errorf("got %d, at most %d allowed", len(gallery), s.cfg.MaxGalleryImages))
	}
	for _, u := range append([]storage.Upload{*thumbnail}, gallery...) {
		if err := storage.ValidateImage(u, s.cfg.ImageMaxSizeMB); err != nil {
			return nil, ErrInvalidImage.Wrap(err)
		}
	}

	// Images are written before the record so a vehicle never points at a missing file.
	var storedKeys []string
	store := func(u storage.Upload) (string, error) {
		key := storage.VehicleImageKey(actor.UserID.String(), u.ContentType)
		if err := s.storage.Save(ctx, key, u.Body, u.Size, u.ContentType); err != nil {
			return "", err
		}
		storedKeys = append(storedKeys, key)
		return s.storage.URL(key), nil
	}
	cleanup := func() {
		for _, key := range storedKeys {
			if err := s.storage.Delete(context.Background(), key); err != nil {
				log.Printf("WARNING: failed to remove orphaned upload %s: %v", key, err)
			}
		}
	}

	thumbURL, err := store(*thumbnail)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to store thumbnail: %w", err)
	}
	galleryURLs := make([]string, 0, len(gallery))
	for _, u := range gallery {
		url, err := store(u)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to store gallery image: %w", err)
		}
		galleryURLs = append(galleryURLs, url)
	}

	now := time.Now().UTC()
	vehicle := &models.Vehicle{
		Name:             input.Name,
		Category:         input.Category,
		Specs:            input.Specs,
		LongDescription:  input.LongDescription,
		Pros:             cleanList(input.Pros),
		Cons:             cleanList(input.Cons),
		Thumbnail:        thumbURL,
		Gallery:          galleryURLs,
		OriginalPrice:    input.OriginalPrice,
		ExShowroomPrice:  input.ExShowroomPrice,
		SellingPrice:     input.SellingPrice,
		Seller:           actor.UserID,
		SellerType:       placement.SellerType,
		ListingType:      placement.ListingType,
		Status:           placement.Status,
		ValuationHistory: []models.Offer{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	collection := s.db.Collection(vehiclesCollection)
	err = db.Try(ctx, func() error {
		vehicle.GenID()
		_, insertErr := collection.InsertOne(ctx, vehicle)
		return insertErr
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("error inserting vehicle: %w", err)
	}
	log.Printf("Vehicle %s created by %s with status %s", vehicle.ID, actor.UserID, vehicle.Status)

	if s.jobs != nil {
		for _, key := range storedKeys {
			if err := s.jobs.EnqueueImageProcess(ctx, key, vehicle.ID); err != nil {
				log.Printf("WARNING: failed to enqueue image processing for %s: %v", key, err)
			}
		}
	}
	return vehicle, nil
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = normalizeText(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (s *vehicleService) Get(ctx context.Context, id utils.SixID) (*models.Vehicle, error) {
	var v models.Vehicle
	err := s.db.Collection(vehiclesCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&v)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrVehicleNotFound
		}
		return nil, fmt.Errorf("error finding vehicle %s: %w", id, err)
	}
	return &v, nil
}

func (s *vehicleService) ListPublic(ctx context.Context, filter VehicleFilter) ([]models.Vehicle, error) {
	query := bson.M{"status": models.StatusListed}
	if filter.Category != "" {
		query["category"] = normalizeText(filter.Category)
	}
	if q := normalizeText(filter.Query); q != "" {
		query["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
	}
	return s.find(ctx, query)
}

func (s *vehicleService) ListBySeller(ctx context.Context, sellerID utils.SixID) ([]models.Vehicle, error) {
	return s.find(ctx, bson.M{"seller": sellerID})
}

func (s *vehicleService) ListAll(ctx context.Context, status models.VehicleStatus) ([]models.Vehicle, error) {
	query := bson.M{}
	if status != "" {
		switch status {
		case models.StatusPendingApproval, models.StatusListed, models.StatusRejected,
			models.StatusPendingValuation, models.StatusNegotiating, models.StatusSold:
			query["status"] = status
		default:
			return nil, ErrInvalidStatusQuery
		}
	}
	return s.find(ctx, query)
}

func (s *vehicleService) find(ctx context.Context, query bson.M) ([]models.Vehicle, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(vehiclesCollection).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying vehicles: %w", err)
	}
	vehicles := []models.Vehicle{}
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, fmt.Errorf("error decoding vehicles: %w", err)
	}
	return vehicles, nil
}

// Approve lists a vehicle that is waiting for review. The status guard lives in the
// update filter, so a second approval matches nothing and fails.
func (s *vehicleService) Approve(ctx context.Context, id utils.SixID) (*models.Vehicle, error) {
	return s.review(ctx, id, bson.M{
		"$set":   bson.M{"status": models.StatusListed, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"rejection_reason": ""},
	})
}

func (s *vehicleService) Reject(ctx context.Context, id utils.SixID, reason string) (*models.Vehicle, error) {
	reason = normalizeText(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	return s.review(ctx, id, bson.M{
		"$set": bson.M{"status": models.StatusRejected, "rejection_reason": reason, "updated_at": time.Now().UTC()},
	})
}

func (s *vehicleService) review(ctx context.Context, id utils.SixID, update bson.M) (*models.Vehicle, error) {
	var v models.Vehicle
	err := s.db.Collection(vehiclesCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": models.StatusPendingApproval},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&v)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, lifecycle.ErrNotPendingApproval
		}
		return nil, fmt.Errorf("error reviewing vehicle %s: %w", id, err)
	}
	log.Printf("Vehicle %s reviewed, now %s", id, v.Status)
	return &v, nil
}

// SubmitOffer appends to the valuation ledger. The update only applies to the snapshot
// the turn check ran on: same statuses and same ledger length.
func (s *vehicleService) SubmitOffer(ctx context.Context, actor lifecycle.Actor, id utils.SixID, input OfferInput) (*models.Vehicle, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	v, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	party, err := lifecycle.PartyOf(actor, v)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CheckOffer(v, party, input.Amount); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	offer := models.Offer{OfferBy: party, Amount: input.Amount, Message: normalizeText(input.Message), Timestamp: now}
	filter := bson.M{
		"_id":               id,
		"status":            bson.M{"$in": []models.VehicleStatus{models.StatusListed, models.StatusNegotiating, models.StatusPendingValuation}},
		"valuation_history": bson.M{"$size": len(v.ValuationHistory)},
	}
	update := bson.M{
		"$push": bson.M{"valuation_history": offer},
		"$set":  bson.M{"status": models.StatusNegotiating, "updated_at": now},
	}
	updated, err := s.compareAndSwap(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	log.Printf("Offer of %.2f by %s on vehicle %s", offer.Amount, party, id)
	return updated, nil
}

// AcceptOffer closes the negotiation at the outstanding offer's amount.
func (s *vehicleService) AcceptOffer(ctx context.Context, actor lifecycle.Actor, id utils.SixID) (*models.Vehicle, error) {
	v, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	party, err := lifecycle.PartyOf(actor, v)
	if err != nil {
		return nil, err
	}
	offer, err := lifecycle.CheckAccept(v, party)
	if err != nil {
		return nil, err
	}

	filter := bson.M{
		"_id":               id,
		"status":            models.StatusNegotiating,
		"valuation_history": bson.M{"$size": len(v.ValuationHistory)},
	}
	update := bson.M{"$set": bson.M{
		"status":        models.StatusSold,
		"selling_price": offer.Amount,
		"updated_at":    time.Now().UTC(),
	}}
	updated, err := s.compareAndSwap(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	log.Printf("Vehicle %s sold for %.2f (%s accepted %s's offer)", id, offer.Amount, party, offer.OfferBy)
	return updated, nil
}

func (s *vehicleService) compareAndSwap(ctx context.Context, filter, update bson.M) (*models.Vehicle, error) {
	var v models.Vehicle
	err := s.db.Collection(vehiclesCollection).FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&v)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrStaleVehicle
		}
		return nil, fmt.Errorf("error updating vehicle: %w", err)
	}
	return &v, nil
}

func (s *vehicleService) Delete(ctx context.Context, actor lifecycle.Actor, id utils.SixID) error {
	v, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := lifecycle.CheckDelete(actor, v); err != nil {
		return err
	}
	res, err := s.db.Collection(vehiclesCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("error deleting vehicle %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrVehicleNotFound
	}

	for _, url := range append([]string{v.Thumbnail}, v.Gallery...) {
		key, ok := s.storage.KeyFor(url)
		if !ok {
			continue
		}
		if err := s.storage.Delete(ctx, key); err != nil {
			log.Printf("WARNING: failed to delete image %s of vehicle %s: %v", key, id, err)
		}
	}
	log.Printf("Vehicle %s deleted by %s", id, actor.UserID)
	return nil
}
