package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service applies directory business rules on top of the repository.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateEmployee registers a new staff member. A password is required so the
// employee can sign in to the staff portal.
func (s *Service) CreateEmployee(ctx context.Context, tenantID uuid.UUID, input EmployeeInput) (*Employee, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if err := validatePerson(input.Name, input.Email); err != nil {
		return nil, err
	}
	if len(input.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	employee := &Employee{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Name:        strings.TrimSpace(input.Name),
		Email:       normalizeEmail(input.Email),
		Phone:       input.Phone,
		Designation: input.Designation,
		JoiningDate: input.JoiningDate,
		Salary:      input.Salary,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.InsertEmployee(ctx, employee, string(hashed)); err != nil {
		return nil, err
	}
	return employee, nil
}

// UpdateEmployee rewrites the mutable employee fields. The password is
// changed only when a new one is supplied.
func (s *Service) UpdateEmployee(ctx context.Context, tenantID, id uuid.UUID, input EmployeeInput) (*Employee, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if err := validatePerson(input.Name, input.Email); err != nil {
		return nil, err
	}

	employee, err := s.repo.GetEmployee(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	employee.Name = strings.TrimSpace(input.Name)
	employee.Email = normalizeEmail(input.Email)
	employee.Phone = input.Phone
	employee.Designation = input.Designation
	employee.JoiningDate = input.JoiningDate
	employee.Salary = input.Salary

	if err := s.repo.UpdateEmployee(ctx, employee); err != nil {
		return nil, err
	}

	if input.Password != "" {
		if len(input.Password) < 8 {
			return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		if err := s.repo.SetEmployeePassword(ctx, tenantID, id, string(hashed)); err != nil {
			return nil, err
		}
	}
	return employee, nil
}

// GetEmployee fetches a single employee within the tenant.
func (s *Service) GetEmployee(ctx context.Context, tenantID, id uuid.UUID) (*Employee, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	return s.repo.GetEmployee(ctx, tenantID, id)
}

// ListEmployees returns the tenant's employees, optionally active only.
func (s *Service) ListEmployees(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]Employee, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	return s.repo.ListEmployees(ctx, tenantID, activeOnly)
}

// DeactivateEmployee disables login without deleting history.
func (s *Service) DeactivateEmployee(ctx context.Context, tenantID, id uuid.UUID) error {
	if tenantID == uuid.Nil {
		return ErrUnauthorized
	}
	return s.repo.SetEmployeeActive(ctx, tenantID, id, false)
}

// CreateClient registers a new client. The password is optional; clients
// without one sign in through magic links.
func (s *Service) CreateClient(ctx context.Context, tenantID uuid.UUID, input ClientInput) (*Client, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if err := validatePerson(input.Name, input.Email); err != nil {
		return nil, err
	}

	var hashed string
	if input.Password != "" {
		if len(input.Password) < 8 {
			return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
		}
		h, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		hashed = string(h)
	}

	client := &Client{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Name:        strings.TrimSpace(input.Name),
		Email:       normalizeEmail(input.Email),
		Phone:       input.Phone,
		CompanyName: input.CompanyName,
		Address:     input.Address,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.InsertClient(ctx, client, hashed); err != nil {
		return nil, err
	}
	return client, nil
}

// UpdateClient rewrites the mutable client fields.
func (s *Service) UpdateClient(ctx context.Context, tenantID, id uuid.UUID, input ClientInput) (*Client, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if err := validatePerson(input.Name, input.Email); err != nil {
		return nil, err
	}

	client, err := s.repo.GetClient(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	client.Name = strings.TrimSpace(input.Name)
	client.Email = normalizeEmail(input.Email)
	client.Phone = input.Phone
	client.CompanyName = input.CompanyName
	client.Address = input.Address

	if err := s.repo.UpdateClient(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// GetClient fetches a single client within the tenant.
func (s *Service) GetClient(ctx context.Context, tenantID, id uuid.UUID) (*Client, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	return s.repo.GetClient(ctx, tenantID, id)
}

// ListClients returns the tenant's clients, optionally active only.
func (s *Service) ListClients(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]Client, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	return s.repo.ListClients(ctx, tenantID, activeOnly)
}

// DeactivateClient disables portal access without deleting history.
func (s *Service) DeactivateClient(ctx context.Context, tenantID, id uuid.UUID) error {
	if tenantID == uuid.Nil {
		return ErrUnauthorized
	}
	return s.repo.SetClientActive(ctx, tenantID, id, false)
}

func validatePerson(name, email string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
