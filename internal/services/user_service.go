package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"opalpixel/invoicing/internal/auth"
	"opalpixel/invoicing/internal/db"
	"opalpixel/invoicing/internal/models"
	"opalpixel/invoicing/internal/repository"
)

// ErrInvalidCredentials is returned when a login does not match any user.
var ErrInvalidCredentials = errors.New("invalid name, worker id or password")

// CreateUserInput provisions a new staff member.
type CreateUserInput struct {
	FullName    string      `json:"full_name" validate:"required,max=100"`
	Role        models.Role `json:"role" validate:"required,oneof=admin worker"`
	Position    string      `json:"position" validate:"max=100"`
	Nationality string      `json:"nationality" validate:"max=100"`
	Location    string      `json:"location" validate:"max=100"`
	Address     string      `json:"address" validate:"max=255"`
	ImagePath   string      `json:"image_path" validate:"max=255"`
	Password    string      `json:"password" validate:"omitempty,min=8,max=72"`
}

// UpdateUserInput carries only the fields an admin edit changes.
type UpdateUserInput struct {
	FullName    *string      `json:"full_name" validate:"omitempty,max=100"`
	Role        *models.Role `json:"role" validate:"omitempty,oneof=admin worker"`
	Position    *string      `json:"position" validate:"omitempty,max=100"`
	Nationality *string      `json:"nationality" validate:"omitempty,max=100"`
	Location    *string      `json:"location" validate:"omitempty,max=100"`
	Address     *string      `json:"address" validate:"omitempty,max=255"`
	ImagePath   *string      `json:"image_path" validate:"omitempty,max=255"`
}

// IUserService defines the interface for user-related operations.
type IUserService interface {
	Create(ctx context.Context, actor models.Identity, in CreateUserInput) (*models.User, error)
	FindByID(ctx context.Context, actor models.Identity, userID primitive.ObjectID) (*models.User, error)
	FindByWorkerID(ctx context.Context, workerID string) (*models.User, error)
	List(ctx context.Context, actor models.Identity, role models.Role) ([]models.User, error)
	Update(ctx context.Context, actor models.Identity, userID primitive.ObjectID, in UpdateUserInput) (*models.User, error)
	SetPassword(ctx context.Context, actor models.Identity, userID primitive.ObjectID, password string) error
	Delete(ctx context.Context, actor models.Identity, userID primitive.ObjectID) error
	Authenticate(ctx context.Context, fullName, workerID, password string) (*models.User, error)
	EnsureAdmin(ctx context.Context, fullName, password string) (*models.User, error)
}

type userService struct {
	users     repository.UserRepository
	invoices  repository.InvoiceRepository
	validate  *validator.Validate
	idPrefix  string
	logger    *zap.Logger
	newWorker func() string
}

func NewUserService(users repository.UserRepository, invoices repository.InvoiceRepository, idPrefix string, logger *zap.Logger) IUserService {
	return &userService{
		users:     users,
		invoices:  invoices,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		idPrefix:  idPrefix,
		logger:    logger,
		newWorker: func() string { return NewWorkerID(idPrefix) },
	}
}

// NewWorkerID returns prefix followed by 8 random digits.
func NewWorkerID(prefix string) string {
	return fmt.Sprintf("%s-%08d", prefix, rand.IntN(100_000_000))
}

// NormalizeWorkerID is the form worker ids are stored and looked up in.
func NormalizeWorkerID(workerID string) string {
	return strings.ToUpper(strings.TrimSpace(workerID))
}

func (s *userService) check(in any) error {
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return validationError(fmt.Sprintf("%s failed on '%s'", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return validationError(err.Error())
	}
	return nil
}

func (s *userService) Create(ctx context.Context, actor models.Identity, in CreateUserInput) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.create(ctx, in)
}

func (s *userService) create(ctx context.Context, in CreateUserInput) (*models.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	if err := s.check(in); err != nil {
		return nil, err
	}

	var hash string
	if in.Password != "" {
		var err error
		if hash, err = auth.HashPassword(in.Password); err != nil {
			return nil, validationError(err.Error())
		}
	}

	now := time.Now().UTC()
	var user *models.User
	operation := func() error {
		user = &models.User{
			ID:           primitive.NewObjectID(),
			FullName:     in.FullName,
			WorkerID:     s.newWorker(), // regenerated on each attempt
			Role:         in.Role,
			Position:     strings.TrimSpace(in.Position),
			Nationality:  strings.TrimSpace(in.Nationality),
			Location:     strings.TrimSpace(in.Location),
			Address:      strings.TrimSpace(in.Address),
			ImagePath:    strings.TrimSpace(in.ImagePath),
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return s.users.Insert(ctx, user)
	}

	if err := db.Try(operation); err != nil {
		if db.DuplicateKeyOn(db.IndexWorkerID)(err) {
			return nil, fmt.Errorf("%w: could not allocate a unique worker id", ErrConflict)
		}
		return nil, fmt.Errorf("error inserting user %q: %w", in.FullName, err)
	}

	s.logger.Info("user created", zap.String("worker_id", user.WorkerID), zap.String("role", string(user.Role)))
	return user, nil
}

func (s *userService) find(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding user %s: %w", userID.Hex(), err)
	}
	return user, nil
}

// FindByID returns a user to an admin, or a user to themselves.
func (s *userService) FindByID(ctx context.Context, actor models.Identity, userID primitive.ObjectID) (*models.User, error) {
	if actor.IsZero() {
		return nil, ErrForbidden
	}
	if !actor.IsAdmin() && actor.UserID != userID {
		return nil, ErrForbidden
	}
	return s.find(ctx, userID)
}

func (s *userService) FindByWorkerID(ctx context.Context, workerID string) (*models.User, error) {
	user, err := s.users.FindByWorkerID(ctx, NormalizeWorkerID(workerID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding user by worker id: %w", err)
	}
	return user, nil
}

func (s *userService) List(ctx context.Context, actor models.Identity, role models.Role) ([]models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	switch role {
	case "", models.RoleAdmin, models.RoleWorker:
	default:
		return nil, validationError(fmt.Sprintf("unknown role %q", role))
	}
	users, err := s.users.List(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	return users, nil
}

func (s *userService) Update(ctx context.Context, actor models.Identity, userID primitive.ObjectID, in UpdateUserInput) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.check(in); err != nil {
		return nil, err
	}
	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			return nil, validationError("full name cannot be blank")
		}
		user.FullName = name
	}
	if in.Role != nil {
		if userID == actor.UserID && *in.Role != models.RoleAdmin {
			return nil, validationError("you cannot remove your own admin role")
		}
		user.Role = *in.Role
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&user.Position, in.Position)
	set(&user.Nationality, in.Nationality)
	set(&user.Location, in.Location)
	set(&user.Address, in.Address)
	set(&user.ImagePath, in.ImagePath)

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error updating user %s: %w", userID.Hex(), err)
	}
	return updated, nil
}

func (s *userService) SetPassword(ctx context.Context, actor models.Identity, userID primitive.ObjectID, password string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return validationError(err.Error())
	}
	if err := s.users.SetPasswordHash(ctx, userID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("error setting password for user %s: %w", userID.Hex(), err)
	}
	return nil
}

// Delete removes a user. Users who still own invoices are kept.
func (s *userService) Delete(ctx context.Context, actor models.Identity, userID primitive.ObjectID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if actor.UserID == userID {
		return validationError("you cannot delete your own account")
	}
	if _, err := s.find(ctx, userID); err != nil {
		return err
	}

	owned, err := s.invoices.CountByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("error counting invoices of user %s: %w", userID.Hex(), err)
	}
	if owned > 0 {
		return fmt.Errorf("%w: user still owns %d invoices", ErrConflict, owned)
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("error deleting user %s: %w", userID.Hex(), err)
	}
	s.logger.Info("user deleted", zap.String("user_id", userID.Hex()), zap.String("by", actor.UserID.Hex()))
	return nil
}

// Authenticate matches a login. The name is compared case-insensitively and
// a password is only required for users that have one.
func (s *userService) Authenticate(ctx context.Context, fullName, workerID, password string) (*models.User, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" || strings.TrimSpace(workerID) == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.FindByWorkerID(ctx, workerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(user.FullName), fullName) {
		return nil, ErrInvalidCredentials
	}
	if user.PasswordHash != "" && !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// EnsureAdmin creates the first admin when there is none yet.
func (s *userService) EnsureAdmin(ctx context.Context, fullName, password string) (*models.User, error) {
	admins, err := s.users.List(ctx, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("error listing admins: %w", err)
	}
	if len(admins) > 0 {
		return &admins[0], nil
	}
	user, err := s.create(ctx, CreateUserInput{FullName: fullName, Role: models.RoleAdmin, Password: password})
	if err != nil {
		return nil, err
	}
	s.logger.Warn("bootstrap admin created", zap.String("full_name", user.FullName), zap.String("worker_id", user.WorkerID))
	return user, nil
}
