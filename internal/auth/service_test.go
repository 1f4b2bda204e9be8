package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/studioops/studioops/internal/shared"
)

type memoryDirectory struct {
	admins    map[string]*Principal
	employees map[string]*Principal
	clients   map[string]*Principal
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{
		admins:    map[string]*Principal{},
		employees: map[string]*Principal{},
		clients:   map[string]*Principal{},
	}
}

func (m *memoryDirectory) FindAdminByEmail(_ context.Context, email string) (*Principal, error) {
	return m.find(m.admins, email)
}

func (m *memoryDirectory) FindEmployeeByEmail(_ context.Context, email string) (*Principal, error) {
	return m.find(m.employees, email)
}

func (m *memoryDirectory) FindClientByEmail(_ context.Context, email string) (*Principal, error) {
	return m.find(m.clients, email)
}

func (m *memoryDirectory) find(dir map[string]*Principal, email string) (*Principal, error) {
	p, ok := dir[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func hash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func principal(t *testing.T, role shared.Role, email, password string) *Principal {
	t.Helper()
	return &Principal{
		ID:           uuid.New(),
		TenantID:     uuid.New(),
		Role:         role,
		Email:        email,
		Name:         "Test Person",
		PasswordHash: hash(t, password),
		IsActive:     true,
	}
}

func TestAuthenticateResolvesDirectoriesInOrder(t *testing.T) {
	dir := newMemoryDirectory()
	dir.admins["shared@example.com"] = principal(t, shared.RoleAdmin, "shared@example.com", "admin-pass")
	dir.employees["shared@example.com"] = principal(t, shared.RoleEmployee, "shared@example.com", "employee-pass")
	dir.employees["worker@example.com"] = principal(t, shared.RoleEmployee, "worker@example.com", "worker-pass")
	dir.clients["client@example.com"] = principal(t, shared.RoleClient, "client@example.com", "client-pass")

	svc := NewService(dir, []byte("secret"))
	ctx := context.Background()

	got, err := svc.Authenticate(ctx, "shared@example.com", "admin-pass")
	require.NoError(t, err)
	require.Equal(t, shared.RoleAdmin, got.Role)

	got, err = svc.Authenticate(ctx, "worker@example.com", "worker-pass")
	require.NoError(t, err)
	require.Equal(t, shared.RoleEmployee, got.Role)

	got, err = svc.Authenticate(ctx, "client@example.com", "client-pass")
	require.NoError(t, err)
	require.Equal(t, shared.RoleClient, got.Role)
}

func TestAuthenticateDoesNotFallThroughOnWrongPassword(t *testing.T) {
	dir := newMemoryDirectory()
	dir.admins["shared@example.com"] = principal(t, shared.RoleAdmin, "shared@example.com", "admin-pass")
	dir.employees["shared@example.com"] = principal(t, shared.RoleEmployee, "shared@example.com", "employee-pass")

	svc := NewService(dir, []byte("secret"))

	// The employee password is valid in the employee directory, but the
	// admin entry owns the address.
	_, err := svc.Authenticate(context.Background(), "shared@example.com", "employee-pass")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateRejectsInactiveAndUnknown(t *testing.T) {
	dir := newMemoryDirectory()
	inactive := principal(t, shared.RoleEmployee, "gone@example.com", "some-pass")
	inactive.IsActive = false
	dir.employees["gone@example.com"] = inactive

	svc := NewService(dir, []byte("secret"))

	_, err := svc.Authenticate(context.Background(), "gone@example.com", "some-pass")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "nobody@example.com", "whatever!")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestIdentityCarriesEmployeeID(t *testing.T) {
	dir := newMemoryDirectory()
	svc := NewService(dir, []byte("secret"))

	emp := principal(t, shared.RoleEmployee, "worker@example.com", "worker-pass")
	identity := svc.Identity(emp)
	require.Equal(t, emp.ID, identity.EmployeeID)
	require.Equal(t, emp.TenantID, identity.TenantID)

	adm := principal(t, shared.RoleAdmin, "boss@example.com", "admin-pass")
	identity = svc.Identity(adm)
	require.Equal(t, uuid.Nil, identity.EmployeeID)
}

func TestMagicLinkRoundTrip(t *testing.T) {
	dir := newMemoryDirectory()
	client := principal(t, shared.RoleClient, "client@example.com", "")
	client.PasswordHash = ""
	dir.clients["client@example.com"] = client

	svc := NewService(dir, []byte("secret"))

	link, err := svc.IssueMagicLink(context.Background(), "client@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, link.Token)

	got, err := svc.ConsumeMagicLink(context.Background(), link.Token)
	require.NoError(t, err)
	require.Equal(t, client.ID, got.ID)
	require.Equal(t, shared.RoleClient, got.Role)
}

func TestMagicLinkExpires(t *testing.T) {
	dir := newMemoryDirectory()
	client := principal(t, shared.RoleClient, "client@example.com", "")
	dir.clients["client@example.com"] = client

	svc := NewService(dir, []byte("secret"))
	issued := time.Now()
	svc.now = func() time.Time { return issued }

	link, err := svc.IssueMagicLink(context.Background(), "client@example.com")
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(magicLinkTTL + time.Minute) }
	_, err = svc.ConsumeMagicLink(context.Background(), link.Token)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestMagicLinkRejectsTamperedToken(t *testing.T) {
	dir := newMemoryDirectory()
	client := principal(t, shared.RoleClient, "client@example.com", "")
	dir.clients["client@example.com"] = client

	issuer := NewService(dir, []byte("secret-a"))
	verifier := NewService(dir, []byte("secret-b"))

	link, err := issuer.IssueMagicLink(context.Background(), "client@example.com")
	require.NoError(t, err)

	_, err = verifier.ConsumeMagicLink(context.Background(), link.Token)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
