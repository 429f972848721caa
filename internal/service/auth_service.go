package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"costcompass/internal/middleware"
	"costcompass/internal/model"
	"costcompass/internal/permission"
	"costcompass/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
)

// --- DTOs ---

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// MeResponse is the session snapshot the frontend boots from: identity plus
// the subject's effective permission set and property grants.
type MeResponse struct {
	ID          string                   `json:"id"`
	Username    string                   `json:"username"`
	Email       string                   `json:"email"`
	Role        string                   `json:"role"`
	Permissions []string                 `json:"permissions"`
	Properties  []PropertyAccessResponse `json:"properties"`
}

// --- Interface ---

// AuthService handles login, token refresh and session introspection.
// Refresh tokens are single-use and rotated on every refresh.
type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, sub permission.Subject) (*MeResponse, error)
}

type authService struct {
	users  repository.UserRepository
	tokens repository.TokenRepository
	props  repository.PropertyRepository
	eval   *permission.Evaluator
	now    func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	tokens repository.TokenRepository,
	props repository.PropertyRepository,
	eval *permission.Evaluator,
) AuthService {
	return &authService{users: users, tokens: tokens, props: props, eval: eval, now: time.Now}
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, errors.New("invalid email or password")
	}
	if !user.IsActive {
		return nil, errors.New("account is deactivated")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errors.New("invalid email or password")
	}

	return s.issueTokens(ctx, user)
}

// RefreshToken exchanges a valid refresh token for a new token pair. The old
// token is deleted first so it can never be replayed.
func (s *authService) RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error) {
	row, err := s.tokens.Find(ctx, req.RefreshToken)
	if err != nil {
		return nil, errors.New("invalid refresh token")
	}
	if !row.ExpiresAt.After(s.now()) {
		_ = s.tokens.Delete(ctx, req.RefreshToken)
		return nil, errors.New("refresh token expired")
	}

	user, err := s.users.GetByID(ctx, row.UserID)
	if err != nil {
		return nil, errors.New("user not found")
	}
	if !user.IsActive {
		return nil, errors.New("account is deactivated")
	}

	if err := s.tokens.Delete(ctx, req.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	return s.issueTokens(ctx, user)
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.tokens.Delete(ctx, refreshToken)
}

func (s *authService) Me(ctx context.Context, sub permission.Subject) (*MeResponse, error) {
	user, err := s.users.GetByID(ctx, sub.ID)
	if err != nil {
		return nil, errors.New("user not found")
	}

	perms, err := s.eval.EffectivePermissions(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve permissions: %w", err)
	}

	accessRows, err := s.props.ListAccessByUser(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch property access: %w", err)
	}
	properties := make([]PropertyAccessResponse, 0, len(accessRows))
	for _, row := range accessRows {
		resp := toAccessResponse(row)
		resp.Property = row.Property.Name
		properties = append(properties, resp)
	}

	return &MeResponse{
		ID:          user.ID.String(),
		Username:    user.Username,
		Email:       user.Email,
		Role:        user.Role,
		Permissions: perms,
		Properties:  properties,
	}, nil
}

func (s *authService) issueTokens(ctx context.Context, user *model.User) (*TokenResponse, error) {
	access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"exp":  s.now().Add(accessTokenTTL).Unix(),
	})
	accessToken, err := access.SignedString(middleware.GetJWTSecret())
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, errors.New("failed to generate refresh token")
	}
	refreshToken := hex.EncodeToString(raw)

	if err := s.tokens.Create(ctx, &model.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: s.now().Add(refreshTokenTTL),
	}); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenResponse{Token: accessToken, RefreshToken: refreshToken}, nil
}
