// internal/domain/user/service.go
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/pkg/auth"
	"github.com/your-org/storefront-backend/internal/pkg/retry"
	"gorm.io/gorm"
)

var (
	// ErrInvalidCredentials is returned for any failed login
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken is returned when the registration email already exists
	ErrEmailTaken = errors.New("user with this email already exists")

	// ErrUserNotFound is returned when no active user matches
	ErrUserNotFound = errors.New("user not found")

	// ErrSessionRevoked is returned for refresh tokens that were logged out
	ErrSessionRevoked = errors.New("session has been revoked")
)

// CartMerger folds a guest cart into the user's on login or registration
type CartMerger interface {
	MergeGuestIntoUser(ctx context.Context, userID uint, guestToken string) (*cart.Cart, error)
}

// Service handles user business logic
type Service struct {
	db              *gorm.DB
	config          *config.Config
	passwordManager *auth.PasswordManager
	jwtManager      *auth.JWTManager
	sessions        SessionRegistry
	carts           CartMerger
	log             *logrus.Logger
}

// NewService creates a new user service
func NewService(db *gorm.DB, cfg *config.Config, sessions SessionRegistry, carts CartMerger, log *logrus.Logger) *Service {
	return &Service{
		db:              db,
		config:          cfg,
		passwordManager: auth.NewPasswordManager(cfg),
		jwtManager:      auth.NewJWTManager(cfg),
		sessions:        sessions,
		carts:           carts,
		log:             log,
	}
}

// RegisterRequest represents user registration data
type RegisterRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	FirstName       string `json:"first_name" binding:"required"`
	LastName        string `json:"last_name" binding:"required"`
	Phone           string `json:"phone"`
}

// LoginRequest represents user login data
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Register creates a new user account. A guest cart token, if carried into
// registration, becomes the new user's cart.
func (s *Service) Register(ctx context.Context, req *RegisterRequest, guestCartToken string) (*AuthResponse, error) {
	if req.Password != req.ConfirmPassword {
		return nil, fmt.Errorf("passwords do not match")
	}

	var existingUser User
	result := s.db.WithContext(ctx).Where("email = ?", req.Email).First(&existingUser)
	if result.Error == nil {
		return nil, ErrEmailTaken
	}

	hashedPassword, err := s.passwordManager.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser := User{
		Email:     req.Email,
		Password:  hashedPassword,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		IsActive:  true,
		IsAdmin:   false,
	}

	if err := s.db.WithContext(ctx).Create(&newUser).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.mergeGuestCart(ctx, newUser.ID, guestCartToken)

	return s.issueTokens(ctx, &newUser)
}

// Login authenticates a user. The guest cart, when one rode along on the
// request, merges into the user's cart as part of the login.
func (s *Service) Login(ctx context.Context, req *LoginRequest, guestCartToken string) (*AuthResponse, error) {
	var u User
	result := s.db.WithContext(ctx).Where("email = ? AND is_active = ?", req.Email, true).First(&u)
	if result.Error != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.passwordManager.VerifyPassword(req.Password, u.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	s.mergeGuestCart(ctx, u.ID, guestCartToken)

	return s.issueTokens(ctx, &u)
}

// mergeGuestCart folds the guest cart into the user's. Lock contention with
// a concurrent request on the same carts can abort the merge, so it retries
// a few times. A merge that still fails must not block authentication.
func (s *Service) mergeGuestCart(ctx context.Context, userID uint, guestCartToken string) {
	if guestCartToken == "" {
		return
	}

	err := retry.Do(ctx, retry.Options{Attempts: 3, Delay: 50 * time.Millisecond}, func() error {
		_, err := s.carts.MergeGuestIntoUser(ctx, userID, guestCartToken)
		return err
	})
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
		}).Error("Failed to merge guest cart on authentication")
	}
}

// issueTokens builds the token pair and records the refresh session
func (s *Service) issueTokens(ctx context.Context, u *User) (*AuthResponse, error) {
	accessToken, err := s.jwtManager.GenerateAccessToken(u.ID, u.Email, u.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, jti, err := s.jwtManager.GenerateRefreshToken(u.ID, u.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	if err := s.sessions.Register(ctx, u.ID, jti, s.config.JWT.RefreshTokenExpiry); err != nil {
		return nil, fmt.Errorf("failed to register session: %w", err)
	}

	now := time.Now().UTC()
	u.LastLoginAt = &now
	s.db.WithContext(ctx).Model(u).Update("last_login_at", now)

	u.Password = ""

	return &AuthResponse{
		User:         u,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.config.JWT.AccessTokenExpiry.Seconds()),
	}, nil
}

// RefreshToken rotates the token pair. The presented refresh token must
// still be registered; rotation revokes it so it cannot be replayed.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	live, err := s.sessions.Valid(ctx, claims.UserID, claims.ID)
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, ErrSessionRevoked
	}

	var u User
	result := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", claims.UserID, true).First(&u)
	if result.Error != nil {
		return nil, ErrUserNotFound
	}

	if err := s.sessions.Revoke(ctx, claims.UserID, claims.ID); err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, &u)
}

// Logout revokes the presented refresh session
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return ErrInvalidCredentials
	}
	return s.sessions.Revoke(ctx, claims.UserID, claims.ID)
}

// LogoutEverywhere revokes every refresh session the user has
func (s *Service) LogoutEverywhere(ctx context.Context, userID uint) error {
	return s.sessions.RevokeAll(ctx, userID)
}

// GetProfile gets user profile by ID
func (s *Service) GetProfile(ctx context.Context, userID uint) (*User, error) {
	var u User
	result := s.db.WithContext(ctx).Preload("Addresses").
		Where("id = ? AND is_active = ?", userID, true).First(&u)
	if result.Error != nil {
		return nil, ErrUserNotFound
	}
	u.Password = ""
	return &u, nil
}

// UpdateProfileRequest carries the editable profile fields
type UpdateProfileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// UpdateProfile updates the user's editable fields
func (s *Service) UpdateProfile(ctx context.Context, userID uint, req *UpdateProfileRequest) (*User, error) {
	var u User
	result := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", userID, true).First(&u)
	if result.Error != nil {
		return nil, ErrUserNotFound
	}

	updates := map[string]interface{}{
		"first_name": req.FirstName,
		"last_name":  req.LastName,
		"phone":      req.Phone,
	}
	if err := s.db.WithContext(ctx).Model(&u).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	u.Password = ""
	return &u, nil
}

// ChangePassword replaces the password and logs the user out everywhere,
// so stolen refresh tokens die with the old password.
func (s *Service) ChangePassword(ctx context.Context, userID uint, currentPassword, newPassword string) error {
	var u User
	result := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", userID, true).First(&u)
	if result.Error != nil {
		return ErrUserNotFound
	}

	if err := s.passwordManager.VerifyPassword(currentPassword, u.Password); err != nil {
		return ErrInvalidCredentials
	}

	hashed, err := s.passwordManager.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&u).Update("password", hashed).Error; err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return s.sessions.RevokeAll(ctx, userID)
}
