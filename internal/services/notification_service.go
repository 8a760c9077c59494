package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/myloveankyy/xkey-auction-sub000/internal/apperr"
	"github.com/myloveankyy/xkey-auction-sub000/internal/config"
	"github.com/myloveankyy/xkey-auction-sub000/internal/db"
	"github.com/myloveankyy/xkey-auction-sub000/internal/models"
	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

var ErrNotificationNotFound = apperr.NotFound("NOTIFICATION_NOT_FOUND", "notification not found")

// MessageInput is an admin-authored notification.
type MessageInput struct {
	Message string `json:"message" validate:"required,max=1000"`
	Link    string `json:"link" validate:"max=500"`
}

// DirectMessageInput addresses one user.
type DirectMessageInput struct {
	UserID utils.SixID `json:"userId" validate:"required"`
	MessageInput
}

// INotificationService manages per-user inboxes.
type INotificationService interface {
	Inbox(ctx context.Context, userID utils.SixID) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID utils.SixID) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID utils.SixID) (int64, error)
	NotifyUsers(ctx context.Context, userIDs []utils.SixID, message, link string) (int, error)
	SendToAll(ctx context.Context, input MessageInput) (int, error)
	SendToUser(ctx context.Context, input DirectMessageInput) (*models.Notification, error)
}

const (
	notificationsCollection = "notifications"
	inboxLimitKey           = "NOTIFICATION_INBOX_LIMIT"
)

type notificationService struct {
	db            *mongo.Database
	cfg           *config.Config
	configService IConfigService
	userService   IUserService
}

func NewNotificationService(db *mongo.Database, cfg *config.Config, configService IConfigService, userService IUserService) INotificationService {
	return &notificationService{db: db, cfg: cfg, configService: configService, userService: userService}
}

// Inbox returns the newest notifications first. Older ones are kept but not returned.
func (s *notificationService) Inbox(ctx context.Context, userID utils.SixID) ([]models.Notification, error) {
	limit := s.cfg.NotificationInboxLimit
	if s.configService != nil {
		limit = s.configService.GetInt(ctx, inboxLimitKey, limit)
	}
	if limit <= 0 {
		limit = 50
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.db.Collection(notificationsCollection).Find(ctx, bson.M{"user": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error fetching notifications for user %s: %w", userID, err)
	}
	notifications := []models.Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("error decoding notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead flips one notification. Someone else's notification is reported as not found.
func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID utils.SixID) (*models.Notification, error) {
	var updated models.Notification
	err := s.db.Collection(notificationsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": notificationID, "user": userID},
		bson.M{"$set": bson.M{"is_read": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("error marking notification %s read: %w", notificationID, err)
	}
	return &updated, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID utils.SixID) (int64, error) {
	res, err := s.db.Collection(notificationsCollection).UpdateMany(ctx,
		bson.M{"user": userID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("error marking notifications read for user %s: %w", userID, err)
	}
	return res.ModifiedCount, nil
}

// NotifyUsers inserts one notification per recipient in a single batch.
// No recipients is a successful no-op.
func (s *notificationService) NotifyUsers(ctx context.Context, userIDs []utils.SixID, message, link string) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(userIDs))
	for _, id := range userIDs {
		n := &models.Notification{User: id, Message: message, Link: link, CreatedAt: now}
		n.GenID()
		docs = append(docs, n)
	}

	// Unordered so that one bad document does not stop the rest of the batch.
	res, err := s.db.Collection(notificationsCollection).InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	inserted := 0
	if res != nil {
		inserted = len(res.InsertedIDs)
	}
	if err != nil {
		return inserted, fmt.Errorf("error inserting %d notifications (%d stored): %w", len(docs), inserted, err)
	}
	return inserted, nil
}

func (s *notificationService) SendToAll(ctx context.Context, input MessageInput) (int, error) {
	input.Message = normalizeText(input.Message)
	if err := validateInput(input); err != nil {
		return 0, err
	}
	ids, err := s.userService.ListActiveUserIDs(ctx)
	if err != nil {
		return 0, err
	}
	count, err := s.NotifyUsers(ctx, ids, input.Message, input.Link)
	if err != nil {
		return count, err
	}
	log.Printf("Sent notification to %d users", count)
	return count, nil
}

func (s *notificationService) SendToUser(ctx context.Context, input DirectMessageInput) (*models.Notification, error) {
	input.Message = normalizeText(input.Message)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if _, err := s.userService.FindByID(ctx, input.UserID); err != nil {
		return nil, err
	}
	n := &models.Notification{
		User:      input.UserID,
		Message:   input.Message,
		Link:      input.Link,
		CreatedAt: time.Now().UTC(),
	}
	collection := s.db.Collection(notificationsCollection)
	err := db.Try(ctx, func() error {
		n.GenID()
		_, insertErr := collection.InsertOne(ctx, n)
		return insertErr
	})
	if err != nil {
		return nil, fmt.Errorf("error sending notification to user %s: %w", input.UserID, err)
	}
	return n, nil
}
