package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/storage"
	svcerrors "github.com/R3E-Network/storefront/internal/errors"
	"github.com/R3E-Network/storefront/internal/validation"
	"github.com/R3E-Network/storefront/pkg/logger"
)

var (
	// ErrDuplicateAccount is returned when the username or email is taken.
	ErrDuplicateAccount = svcerrors.Conflict("accounts: username or email already registered", nil)
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = svcerrors.Unauthorized("accounts: invalid email or password")
)

// Registration is the sign-up form.
type Registration struct {
	Username string    `form:"username" validate:"required,max=64"`
	Email    string    `form:"email" validate:"required,email,max=120"`
	Password string    `form:"password" validate:"required"`
	Role     user.Role `form:"role" validate:"required,oneof=buyer seller"`
}

// Profile is the self-service edit form. An empty Password keeps the current one.
type Profile struct {
	Username string `form:"username" validate:"required,max=64"`
	Email    string `form:"email" validate:"required,email,max=120"`
	Password string `form:"password"`
}

// AdminEdit is the admin user form.
type AdminEdit struct {
	Username string    `form:"username" validate:"required,max=64"`
	Email    string    `form:"email" validate:"required,email,max=120"`
	Role     user.Role `form:"role" validate:"required,oneof=buyer seller admin"`
}

// Service manages user accounts.
type Service struct {
	store storage.UserStore
	log   *logger.Logger
	cost  int
	now   func() time.Time
}

// New constructs an accounts service hashing with bcrypt.DefaultCost.
func New(store storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	return &Service{
		store: store,
		log:   log,
		cost:  bcrypt.DefaultCost,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithHashCost overrides the bcrypt cost. Values outside bcrypt's range are ignored.
func (s *Service) WithHashCost(cost int) *Service {
	if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
		s.cost = cost
	}
	return s
}

// Register creates a buyer or seller account.
func (s *Service) Register(ctx context.Context, in Registration) (user.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.Role = user.Role(strings.TrimSpace(string(in.Role)))
	if err := validation.Struct(in); err != nil {
		return user.User{}, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return user.User{}, err
	}
	u, err := s.store.CreateUser(ctx, user.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		LastActivity: s.now(),
	})
	if err != nil {
		return user.User{}, mapStoreErr(err)
	}
	s.log.WithField("user_id", u.ID).
		WithField("role", u.Role).
		Info("account registered")
	return u, nil
}

// Authenticate returns the user owning email when password matches.
func (s *Service) Authenticate(ctx context.Context, email, password string) (user.User, error) {
	u, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, ErrInvalidCredentials
		}
		return user.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return user.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// UpdateProfile changes the caller's own username, email and optionally password.
func (s *Service) UpdateProfile(ctx context.Context, id int64, in Profile) (user.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return user.User{}, err
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	u.Username = in.Username
	u.Email = in.Email
	if in.Password != "" {
		hash, err := s.hash(in.Password)
		if err != nil {
			return user.User{}, err
		}
		u.PasswordHash = hash
	}
	u, err = s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, mapStoreErr(err)
	}
	s.log.WithField("user_id", u.ID).Info("profile updated")
	return u, nil
}

// AdminUpdate lets an admin change any user's username, email and role.
func (s *Service) AdminUpdate(ctx context.Context, id int64, in AdminEdit) (user.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.Role = user.Role(strings.TrimSpace(string(in.Role)))
	if err := validation.Struct(in); err != nil {
		return user.User{}, err
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	u.Username = in.Username
	u.Email = in.Email
	u.Role = in.Role
	u, err = s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, mapStoreErr(err)
	}
	s.log.WithField("user_id", u.ID).
		WithField("role", u.Role).
		Info("user updated by admin")
	return u, nil
}

func (s *Service) Get(ctx context.Context, id int64) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]user.User, error) {
	return s.store.ListUsers(ctx)
}

// Delete removes the user along with their products and orders.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.log.WithField("user_id", id).Info("user deleted")
	return nil
}

// Touch records activity for id.
func (s *Service) Touch(ctx context.Context, id int64) error {
	return s.store.TouchUser(ctx, id, s.now())
}

// EnsureAdmin returns the account registered under email, creating an admin
// with the given credentials when none exists.
func (s *Service) EnsureAdmin(ctx context.Context, username, email, password string) (user.User, bool, error) {
	email = normalizeEmail(email)
	existing, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return user.User{}, false, err
	}
	hash, err := s.hash(password)
	if err != nil {
		return user.User{}, false, err
	}
	u, err := s.store.CreateUser(ctx, user.User{
		Username:     strings.TrimSpace(username),
		Email:        email,
		PasswordHash: hash,
		Role:         user.RoleAdmin,
		LastActivity: s.now(),
	})
	if err != nil {
		return user.User{}, false, mapStoreErr(err)
	}
	s.log.WithField("user_id", u.ID).Info("admin account created")
	return u, true, nil
}

func (s *Service) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapStoreErr(err error) error {
	if errors.Is(err, storage.ErrDuplicate) {
		return fmt.Errorf("%w: %v", ErrDuplicateAccount, err)
	}
	return err
}
