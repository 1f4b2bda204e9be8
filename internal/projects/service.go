package projects

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/studioops/studioops/internal/shared"
)

// Service applies project business rules on top of the repository.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateProject registers a new engagement. Status defaults to PLANNING.
func (s *Service) CreateProject(ctx context.Context, tenantID uuid.UUID, input ProjectInput) (*Project, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if input.Status == "" {
		input.Status = StatusPlanning
	}
	if !validStatus(input.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, input.Status)
	}

	project := &Project{
		ID:          uuid.New(),
		TenantID:    tenantID,
		ClientID:    input.ClientID,
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Status:      input.Status,
		StartDate:   input.StartDate,
		Deadline:    input.Deadline,
		Budget:      input.Budget,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.InsertProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// UpdateProject rewrites the mutable project fields.
func (s *Service) UpdateProject(ctx context.Context, tenantID, id uuid.UUID, input ProjectInput) (*Project, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !validStatus(input.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, input.Status)
	}

	project, err := s.repo.GetProject(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	project.ClientID = input.ClientID
	project.Name = strings.TrimSpace(input.Name)
	project.Description = input.Description
	project.Status = input.Status
	project.StartDate = input.StartDate
	project.Deadline = input.Deadline
	project.Budget = input.Budget

	if err := s.repo.UpdateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// GetProject fetches one project, enforcing portal visibility: employees
// must be assigned, clients must own the engagement.
func (s *Service) GetProject(ctx context.Context, identity *shared.Identity, id uuid.UUID) (*Project, error) {
	if identity == nil || identity.TenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	project, err := s.repo.GetProject(ctx, identity.TenantID, id)
	if err != nil {
		return nil, err
	}
	switch identity.Role {
	case shared.RoleAdmin:
		return project, nil
	case shared.RoleEmployee:
		assigned, err := s.repo.IsEmployeeAssigned(ctx, id, identity.EmployeeID)
		if err != nil {
			return nil, err
		}
		if !assigned {
			return nil, ErrNotFound
		}
		return project, nil
	case shared.RoleClient:
		if project.ClientID == nil || *project.ClientID != identity.UserID {
			return nil, ErrNotFound
		}
		return project, nil
	}
	return nil, ErrUnauthorized
}

// ListProjects returns the projects visible to the identity: all for
// admins, assigned ones for employees, owned ones for clients.
func (s *Service) ListProjects(ctx context.Context, identity *shared.Identity) ([]Project, error) {
	if identity == nil || identity.TenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	switch identity.Role {
	case shared.RoleAdmin:
		return s.repo.ListProjects(ctx, identity.TenantID)
	case shared.RoleEmployee:
		return s.repo.ListProjectsForEmployee(ctx, identity.TenantID, identity.EmployeeID)
	case shared.RoleClient:
		return s.repo.ListProjectsForClient(ctx, identity.TenantID, identity.UserID)
	}
	return nil, ErrUnauthorized
}

// DeleteProject removes the project and everything hanging off it.
func (s *Service) DeleteProject(ctx context.Context, tenantID, id uuid.UUID) error {
	if tenantID == uuid.Nil {
		return ErrUnauthorized
	}
	return s.repo.DeleteProject(ctx, tenantID, id)
}

// AssignEmployee adds an employee to the project team. Assigning twice is a
// no-op.
func (s *Service) AssignEmployee(ctx context.Context, tenantID, projectID, employeeID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return ErrUnauthorized
	}
	if _, err := s.repo.GetProject(ctx, tenantID, projectID); err != nil {
		return err
	}
	return s.repo.AssignEmployee(ctx, projectID, employeeID)
}

// UnassignEmployee removes an employee from the project team.
func (s *Service) UnassignEmployee(ctx context.Context, tenantID, projectID, employeeID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return ErrUnauthorized
	}
	if _, err := s.repo.GetProject(ctx, tenantID, projectID); err != nil {
		return err
	}
	return s.repo.UnassignEmployee(ctx, projectID, employeeID)
}

// TeamMemberIDs lists the employees assigned to a project.
func (s *Service) TeamMemberIDs(ctx context.Context, tenantID, projectID uuid.UUID) ([]uuid.UUID, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if _, err := s.repo.GetProject(ctx, tenantID, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListAssignedEmployeeIDs(ctx, projectID)
}

// AddModule appends a module (or submodule when parentID is set) at the end
// of its sibling group.
func (s *Service) AddModule(ctx context.Context, tenantID, projectID uuid.UUID, parentID *uuid.UUID, name string) (*Module, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if _, err := s.repo.GetProject(ctx, tenantID, projectID); err != nil {
		return nil, err
	}

	position, err := s.repo.NextModulePosition(ctx, projectID, parentID)
	if err != nil {
		return nil, err
	}
	module := &Module{
		ID:        uuid.New(),
		ProjectID: projectID,
		ParentID:  parentID,
		Name:      strings.TrimSpace(name),
		Position:  position,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.InsertModule(ctx, module); err != nil {
		return nil, err
	}
	return module, nil
}

// RenameModule changes a module's name.
func (s *Service) RenameModule(ctx context.Context, tenantID, projectID, moduleID uuid.UUID, name string) error {
	if tenantID == uuid.Nil {
		return ErrUnauthorized
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if _, err := s.repo.GetProject(ctx, tenantID, projectID); err != nil {
		return err
	}
	return s.repo.RenameModule(ctx, projectID, moduleID, strings.TrimSpace(name))
}

// RemoveModule deletes a module and its submodules.
func (s *Service) RemoveModule(ctx context.Context, tenantID, projectID, moduleID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return ErrUnauthorized
	}
	if _, err := s.repo.GetProject(ctx, tenantID, projectID); err != nil {
		return err
	}
	return s.repo.DeleteModule(ctx, projectID, moduleID)
}

// ListModules returns the project's module tree flattened, parents before
// children, siblings in position order.
func (s *Service) ListModules(ctx context.Context, tenantID, projectID uuid.UUID) ([]Module, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if _, err := s.repo.GetProject(ctx, tenantID, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListModules(ctx, projectID)
}

// ReorderModules rewrites sibling positions in one transaction. orderedIDs
// must contain exactly the modules under parentID, in the desired order; a
// partial or padded list aborts without touching anything.
func (s *Service) ReorderModules(ctx context.Context, tenantID, projectID uuid.UUID, parentID *uuid.UUID, orderedIDs []uuid.UUID) error {
	if tenantID == uuid.Nil {
		return ErrUnauthorized
	}
	if _, err := s.repo.GetProject(ctx, tenantID, projectID); err != nil {
		return err
	}

	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.ModuleIDsForUpdate(ctx, projectID, parentID)
		if err != nil {
			return err
		}
		if len(current) != len(orderedIDs) {
			return ErrReorderMismatch
		}
		existing := make(map[uuid.UUID]bool, len(current))
		for _, id := range current {
			existing[id] = true
		}
		seen := make(map[uuid.UUID]bool, len(orderedIDs))
		for _, id := range orderedIDs {
			if !existing[id] || seen[id] {
				return ErrReorderMismatch
			}
			seen[id] = true
		}
		for i, id := range orderedIDs {
			if err := tx.SetModulePosition(ctx, id, i); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordDailyLog appends a work log to the project. Employees may only log
// against projects they are assigned to.
func (s *Service) RecordDailyLog(ctx context.Context, identity *shared.Identity, input DailyLogInput) (*DailyLog, error) {
	if identity == nil || identity.TenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if input.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if _, err := s.repo.GetProject(ctx, identity.TenantID, input.ProjectID); err != nil {
		return nil, err
	}

	employeeID := input.EmployeeID
	if identity.Role == shared.RoleEmployee {
		employeeID = identity.EmployeeID
		assigned, err := s.repo.IsEmployeeAssigned(ctx, input.ProjectID, employeeID)
		if err != nil {
			return nil, err
		}
		if !assigned {
			return nil, ErrUnauthorized
		}
	}
	if employeeID == uuid.Nil {
		return nil, fmt.Errorf("%w: employee is required", ErrInvalidInput)
	}

	log := &DailyLog{
		ID:          uuid.New(),
		ProjectID:   input.ProjectID,
		EmployeeID:  employeeID,
		Date:        input.Date,
		Description: strings.TrimSpace(input.Description),
		Hours:       input.Hours,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.InsertDailyLog(ctx, log); err != nil {
		return nil, err
	}
	return log, nil
}

// RecordSystemLog writes a daily log on behalf of the system, bypassing the
// assignment check. Used for automatic entries such as task completions.
func (s *Service) RecordSystemLog(ctx context.Context, tenantID, projectID, employeeID uuid.UUID, date time.Time, description string) error {
	if tenantID == uuid.Nil {
		return ErrUnauthorized
	}
	if _, err := s.repo.GetProject(ctx, tenantID, projectID); err != nil {
		return err
	}
	return s.repo.InsertDailyLog(ctx, &DailyLog{
		ID:          uuid.New(),
		ProjectID:   projectID,
		EmployeeID:  employeeID,
		Date:        date,
		Description: description,
		Hours:       decimal.Zero,
		CreatedAt:   time.Now().UTC(),
	})
}

// ListDailyLogs returns the project's logs, newest first.
func (s *Service) ListDailyLogs(ctx context.Context, tenantID, projectID uuid.UUID, from, to *time.Time) ([]DailyLog, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if _, err := s.repo.GetProject(ctx, tenantID, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListDailyLogs(ctx, projectID, from, to)
}
