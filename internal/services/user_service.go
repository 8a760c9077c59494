package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/myloveankyy/xkey-auction-sub000/internal/apperr"
	"github.com/myloveankyy/xkey-auction-sub000/internal/auth"
	"github.com/myloveankyy/xkey-auction-sub000/internal/config"
	"github.com/myloveankyy/xkey-auction-sub000/internal/db"
	"github.com/myloveankyy/xkey-auction-sub000/internal/models"
	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

var (
	ErrEmailExists        = apperr.Validation("EMAIL_EXISTS", "user already exists")
	ErrInvalidCredentials = apperr.Authentication("INVALID_CREDENTIALS", "invalid email or password")
	ErrUserNotFound       = apperr.NotFound("USER_NOT_FOUND", "user not found")
	ErrWeakPassword       = apperr.Validation("WEAK_PASSWORD", "password does not meet the requirements")
	ErrPasswordTooLong    = apperr.Validation("PASSWORD_TOO_LONG", fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
)

// RegisterInput is the self-service sign-up form.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginInput carries credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	ID    utils.SixID `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	Token string      `json:"token"`
}

// IUserService defines the interface for user-related operations.
type IUserService interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, input LoginInput) (*AuthResult, error)
	FindByID(ctx context.Context, userID utils.SixID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateAdmin(ctx context.Context, input RegisterInput) (*models.User, error)
	DeleteUser(ctx context.Context, userID utils.SixID) error
	ListAdmins(ctx context.Context) ([]models.User, error)
	ListActiveUserIDs(ctx context.Context) ([]utils.SixID, error)
}

const usersCollection = "users"

type userService struct {
	db            *mongo.Database
	cfg           *config.Config
	passwordRegex *regexp.Regexp
}

// NewUserService creates a new UserService.
func NewUserService(db *mongo.Database, cfg *config.Config) IUserService {
	s := &userService{db: db, cfg: cfg}
	if cfg.PasswordRegexp != "" {
		re, err := regexp.Compile(cfg.PasswordRegexp)
		if err != nil {
			log.Printf("WARNING: invalid PASSWORD_REGEXP %q, password strength not enforced: %v", cfg.PasswordRegexp, err)
		} else {
			s.passwordRegex = re
		}
	}
	return s
}

func (s *userService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.Name = normalizeText(input.Name)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	user, err := s.insertUser(ctx, input, models.RoleSeller)
	if err != nil {
		return nil, err
	}
	return s.issueToken(user)
}

func (s *userService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	user, err := s.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.issueToken(user)
}

func (s *userService) issueToken(user *models.User) (*AuthResult, error) {
	token, err := auth.GenerateJWT(user.ID, s.cfg.JwtSecret, s.cfg.JwtTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token for user %s: %w", user.ID, err)
	}
	return &AuthResult{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role, Token: token}, nil
}

// insertUser hashes the password and stores a new user, retrying on ID collisions.
func (s *userService) insertUser(ctx context.Context, input RegisterInput, role models.Role) (*models.User, error) {
	if len(input.Password) > auth.MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}
	if s.passwordRegex != nil && !s.passwordRegex.MatchString(input.Password) {
		return nil, ErrWeakPassword
	}
	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	collection := s.db.Collection(usersCollection)
	now := time.Now().UTC()
	user := &models.User{
		Name:         input.Name,
		Email:        normalizeEmail(input.Email),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = db.Try(ctx, func() error {
		user.GenID()
		_, insertErr := collection.InsertOne(ctx, user)
		return insertErr
	})
	if err != nil {
		if db.IsDuplicateKeyOn(err, "email_1") {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("error inserting user %s: %w", user.Email, err)
	}
	log.Printf("Created %s user %s (%s)", role, user.ID, user.Email)
	return user, nil
}

// FindByID finds a non-deleted user by their ID.
func (s *userService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": userID, "deleted": false})
}

// FindByEmail finds a non-deleted user by their email address.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": normalizeEmail(email), "deleted": false})
}

func (s *userService) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error finding user: %w", err)
	}
	return &user, nil
}

func (s *userService) ListUsers(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(usersCollection).Find(ctx, bson.M{"deleted": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("error decoding users: %w", err)
	}
	return users, nil
}

// CreateAdmin creates a new admin, or elevates the existing user registered with that email.
// Elevation keeps the existing password.
func (s *userService) CreateAdmin(ctx context.Context, input RegisterInput) (*models.User, error) {
	existing, err := s.FindByEmail(ctx, input.Email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.IsAdmin() {
			return existing, nil
		}
		now := time.Now().UTC()
		res, err := s.db.Collection(usersCollection).UpdateOne(ctx,
			bson.M{"_id": existing.ID, "deleted": false},
			bson.M{"$set": bson.M{"role": models.RoleAdmin, "updated_at": now}},
		)
		if err != nil {
			return nil, fmt.Errorf("error elevating user %s: %w", existing.ID, err)
		}
		if res.MatchedCount == 0 {
			return nil, ErrUserNotFound
		}
		existing.Role = models.RoleAdmin
		existing.UpdatedAt = now
		log.Printf("Elevated user %s (%s) to admin", existing.ID, existing.Email)
		return existing, nil
	}

	input.Name = normalizeText(input.Name)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	return s.insertUser(ctx, input, models.RoleAdmin)
}

// DeleteUser soft-deletes the user. Their vehicles are left in place with a dangling seller.
func (s *userService) DeleteUser(ctx context.Context, userID utils.SixID) error {
	now := time.Now().UTC()
	res, err := s.db.Collection(usersCollection).UpdateOne(ctx,
		bson.M{"_id": userID, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "deleted_at": now, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("error deleting user %s: %w", userID, err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	log.Printf("Soft-deleted user %s", userID)
	return nil
}

func (s *userService) ListAdmins(ctx context.Context) ([]models.User, error) {
	cursor, err := s.db.Collection(usersCollection).Find(ctx, bson.M{"role": models.RoleAdmin, "deleted": false})
	if err != nil {
		return nil, fmt.Errorf("error listing admins: %w", err)
	}
	admins := []models.User{}
	if err := cursor.All(ctx, &admins); err != nil {
		return nil, fmt.Errorf("error decoding admins: %w", err)
	}
	return admins, nil
}

func (s *userService) ListActiveUserIDs(ctx context.Context) ([]utils.SixID, error) {
	return s.listIDs(ctx, bson.M{"deleted": false})
}

func (s *userService) listIDs(ctx context.Context, filter bson.M) ([]utils.SixID, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := s.db.Collection(usersCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying user IDs: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []utils.SixID
	for cursor.Next(ctx) {
		var doc struct {
			ID utils.SixID `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("error decoding user ID: %w", err)
		}
		ids = append(ids, doc.ID)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user IDs: %w", err)
	}
	return ids, nil
}
