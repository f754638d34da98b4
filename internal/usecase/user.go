package usecase

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/core/port"
	"github.com/komiwalnut/AuthentiCute/internal/infra/logger"
	"github.com/komiwalnut/AuthentiCute/internal/repository"
)

const (
	maxPhoneLength = 20
	maxBioLength   = 500
)

// ProfileService reads and edits user profiles.
type ProfileService struct {
	users  port.UserRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewProfileService(users port.UserRepository, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{
		users:  users,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *ProfileService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// GetUser loads a user by id. Malformed ids are reported as ErrUserNotFound.
func (s *ProfileService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return nil, ErrUserNotFound
	}

	user, err := s.users.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storageError("lookup user", err)
	}
	user.PasswordHash = nil
	return user, nil
}

// UpdateProfile applies the provided fields. An empty string clears phone or bio; name may not be blank.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (*domain.User, error) {
	if err := validateProfileUpdate(update); err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return s.GetUser(ctx, userID)
	}

	user, err := s.users.UpdateProfile(ctx, userID, update, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storageError("update profile", err)
	}

	fields := []zap.Field{zap.String("user_id", userID)}
	if update.Phone != nil {
		fields = append(fields, zap.String("phone", logger.MaskPhone(*update.Phone)))
	}
	s.logger.Info("profile updated", fields...)
	user.PasswordHash = nil
	return user, nil
}

func validateProfileUpdate(update domain.ProfileUpdate) error {
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return &ValidationError{Field: "name", Message: "name cannot be empty"}
		}
		if utf8.RuneCountInString(name) > maxNameLength {
			return &ValidationError{Field: "name", Message: "name is too long"}
		}
	}
	if update.Phone != nil && len(strings.TrimSpace(*update.Phone)) > maxPhoneLength {
		return &ValidationError{Field: "phone", Message: "phone is too long"}
	}
	if update.Bio != nil && utf8.RuneCountInString(strings.TrimSpace(*update.Bio)) > maxBioLength {
		return &ValidationError{Field: "bio", Message: "bio is too long"}
	}
	return nil
}
