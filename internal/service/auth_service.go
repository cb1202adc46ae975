package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"usergate/api/internal/config"
	"usergate/api/internal/ids"
	"usergate/api/internal/models"
	"usergate/api/internal/repository"
	"usergate/api/internal/security"
)

var (
	ErrValidation = errors.New("missing required fields")
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// the response never reveals whether an account exists.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account inactive")
)

const auditLimit = 50

type AuthService struct {
	store repository.Store
	cfg   *config.AppConfig
	log   zerolog.Logger
}

func NewAuthService(store repository.Store, cfg *config.AppConfig, log zerolog.Logger) *AuthService {
	return &AuthService{
		store: store,
		cfg:   cfg,
		log:   log,
	}
}

type RegisterInput struct {
	Email      string
	Password   string
	GivenName  *string
	FamilyName *string
}

// Register creates the user and its default role assignment in one
// transaction. No session is issued; the caller logs in separately.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	if input.Email == "" || input.Password == "" {
		return models.User{}, ErrValidation
	}

	var created models.User
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := tx.UserByEmail(ctx, input.Email); err == nil {
			return repository.ErrEmailTaken
		} else if !errors.Is(err, repository.ErrUserNotFound) {
			return err
		}

		passwordHash, err := security.HashPasswordWithParams(input.Password, security.Argon2Params{
			Time:    s.cfg.Security.HashTime,
			Memory:  s.cfg.Security.HashMemory,
			Threads: s.cfg.Security.HashThreads,
		})
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		user := models.User{
			ID:           ids.New(),
			Email:        input.Email,
			PasswordHash: passwordHash,
			GivenName:    input.GivenName,
			FamilyName:   input.FamilyName,
			Active:       true,
		}

		created, err = tx.InsertUser(ctx, user)
		if err != nil {
			return err
		}
		return tx.AssignRole(ctx, created.ID, models.RoleUser)
	})
	if err != nil {
		return models.User{}, err
	}
	return created, nil
}

type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      models.User
}

// Login runs every check inside one transaction. Failed attempts are
// committed facts: the audit row survives the denial, which is carried as a
// typed outcome rather than an error so the wrapper commits.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	if input.Email == "" || input.Password == "" {
		return LoginResult{}, ErrValidation
	}

	var (
		result LoginResult
		denial error
	)
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		user, err := tx.UserByEmail(ctx, input.Email)
		if errors.Is(err, repository.ErrUserNotFound) {
			denial = ErrInvalidCredentials
			return tx.InsertAudit(ctx, auditEntry(nil, input.Email, false, input.IPAddress))
		}
		if err != nil {
			return err
		}

		if !user.Active {
			denial = ErrAccountInactive
			return tx.InsertAudit(ctx, auditEntry(&user.ID, input.Email, false, input.IPAddress))
		}

		ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
		if err != nil {
			return fmt.Errorf("verify password: %w", err)
		}
		if !ok {
			denial = ErrInvalidCredentials
			return tx.InsertAudit(ctx, auditEntry(&user.ID, input.Email, false, input.IPAddress))
		}

		token, err := security.GenerateSessionToken()
		if err != nil {
			return err
		}
		expiresAt := time.Now().Add(s.cfg.Security.SessionTTL)

		if err := tx.InsertSession(ctx, models.Session{
			Token:     token,
			UserID:    user.ID,
			ExpiresAt: expiresAt,
		}); err != nil {
			return err
		}
		if err := tx.InsertAudit(ctx, auditEntry(&user.ID, input.Email, true, input.IPAddress)); err != nil {
			return err
		}

		result = LoginResult{Token: token, ExpiresAt: expiresAt, User: user}
		return nil
	})
	if err != nil {
		return LoginResult{}, err
	}
	if denial != nil {
		return LoginResult{}, denial
	}
	return result, nil
}

// Logout revokes the session by setting its expiry to now, keeping the row
// visible, and records the logout in the same transaction.
func (s *AuthService) Logout(ctx context.Context, identity models.Identity, token, ipAddress string) error {
	if token == "" {
		return ErrValidation
	}

	return s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := tx.ExpireSession(ctx, token, time.Now()); err != nil {
			return err
		}
		return tx.InsertAudit(ctx, auditEntry(&identity.ID, identity.Email, true, ipAddress))
	})
}

func (s *AuthService) Profile(ctx context.Context, userID string) (models.UserWithRoles, error) {
	return s.store.UserWithRoles(ctx, userID)
}

// LoginAudit returns the caller's most recent attempt records, newest first.
func (s *AuthService) LoginAudit(ctx context.Context, userID string) ([]models.AuditEntry, error) {
	return s.store.AuditByUser(ctx, userID, auditLimit)
}

func auditEntry(userID *string, email string, success bool, ip string) models.AuditEntry {
	return models.AuditEntry{
		ID:        ids.New(),
		UserID:    userID,
		Email:     email,
		Success:   success,
		IPAddress: ip,
	}
}
