package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/studioops/studioops/internal/shared"
)

const magicLinkTTL = 15 * time.Minute

// Service wraps authentication business rules.
type Service struct {
	repo      Repository
	jwtSecret []byte
	now       func() time.Time
}

// NewService constructs a Service. jwtSecret signs client magic links.
func NewService(repo Repository, jwtSecret []byte) *Service {
	return &Service{repo: repo, jwtSecret: jwtSecret, now: time.Now}
}

// Authenticate resolves email/password against admins, then employees, then
// clients. The first directory containing the email wins; a wrong password
// there does not fall through to the next directory.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Principal, error) {
	principal, err := s.resolve(ctx, email)
	if err != nil {
		return nil, err
	}
	if !principal.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if principal.PasswordHash == "" {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return principal, nil
}

func (s *Service) resolve(ctx context.Context, email string) (*Principal, error) {
	lookups := []func(context.Context, string) (*Principal, error){
		s.repo.FindAdminByEmail,
		s.repo.FindEmployeeByEmail,
		s.repo.FindClientByEmail,
	}
	for _, find := range lookups {
		principal, err := find(ctx, email)
		if err == nil {
			return principal, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}
	return nil, shared.ErrInvalidCredentials
}

// Identity builds the session identity for a resolved principal.
func (s *Service) Identity(p *Principal) shared.Identity {
	identity := shared.Identity{
		UserID:   p.ID,
		TenantID: p.TenantID,
		Role:     p.Role,
		Email:    p.Email,
		Name:     p.Name,
	}
	if p.Role == shared.RoleEmployee {
		identity.EmployeeID = p.ID
	}
	return identity
}

type magicLinkClaims struct {
	TenantID string `json:"tid"`
	jwt.RegisteredClaims
}

// IssueMagicLink signs a short-lived token a client can exchange for a
// session without a password. The client must already exist and be active.
func (s *Service) IssueMagicLink(ctx context.Context, email string) (*MagicLink, error) {
	client, err := s.repo.FindClientByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if !client.IsActive {
		return nil, shared.ErrNotFound
	}

	expiresAt := s.now().Add(magicLinkTTL)
	claims := magicLinkClaims{
		TenantID: client.TenantID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   client.Email,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign magic link: %w", err)
	}
	return &MagicLink{Token: token, ExpiresAt: expiresAt}, nil
}

// ConsumeMagicLink verifies a magic-link token and returns the client
// principal it was issued to.
func (s *Service) ConsumeMagicLink(ctx context.Context, token string) (*Principal, error) {
	claims := &magicLinkClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return nil, shared.ErrInvalidCredentials
	}

	client, err := s.repo.FindClientByEmail(ctx, claims.Subject)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !client.IsActive || client.TenantID != parseUUID(claims.TenantID) {
		return nil, shared.ErrInvalidCredentials
	}
	return client, nil
}

func parseUUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}
