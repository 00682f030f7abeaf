// Package services contains server-side business logic: the global limits
// guard, the upload lifecycle engine, the gallery queries and user
// provisioning.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/rapidphotos/internal/common"
	"github.com/dmitrijs2005/rapidphotos/internal/server/auth"
	"github.com/dmitrijs2005/rapidphotos/internal/server/config"
	"github.com/dmitrijs2005/rapidphotos/internal/server/models"
	"github.com/dmitrijs2005/rapidphotos/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// UserService provisions accounts and mints their bearer tokens.
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	limits                      *LimitsService
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, limits *LimitsService, cfg *config.Config) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		limits:                      limits,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

// Provision creates a user, subject to the user ceiling, and returns it
// together with an access token.
func (s *UserService) Provision(ctx context.Context, email string) (*models.User, string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, "", common.NewValidationError("Email is required")
	}

	if err := s.limits.CheckUserLimit(ctx); err != nil {
		return nil, "", err
	}

	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{ID: uuid.NewString(), Email: email})
	if err != nil {
		return nil, "", fmt.Errorf("error creating user: %w", err)
	}

	token, err := s.generateAccessToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// IssueToken mints a fresh token for an existing user.
func (s *UserService) IssueToken(ctx context.Context, userID string) (string, error) {
	exists, err := s.repomanager.Users(s.db).Exists(ctx, userID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", common.NewNotFoundError(msgUserNotFound)
	}
	return s.generateAccessToken(userID)
}

func (s *UserService) generateAccessToken(userID string) (string, error) {
	token, err := auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", common.ErrorInternal
	}
	return token, nil
}
