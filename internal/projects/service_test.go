package projects

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/studioops/studioops/internal/shared"
)

type memoryRepo struct {
	projects    map[uuid.UUID]*Project
	modules     map[uuid.UUID]*Module
	assignments map[uuid.UUID]map[uuid.UUID]bool
	logs        []DailyLog
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		projects:    map[uuid.UUID]*Project{},
		modules:     map[uuid.UUID]*Module{},
		assignments: map[uuid.UUID]map[uuid.UUID]bool{},
	}
}

type memoryTx struct {
	repo     *memoryRepo
	snapshot map[uuid.UUID]Module
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[uuid.UUID]Module, len(m.modules))
	for id, mod := range m.modules {
		snapshot[id] = *mod
	}
	if err := fn(ctx, &memoryTx{repo: m}); err != nil {
		m.modules = make(map[uuid.UUID]*Module, len(snapshot))
		for id, mod := range snapshot {
			cp := mod
			m.modules[id] = &cp
		}
		return err
	}
	return nil
}

func (t *memoryTx) ModuleIDsForUpdate(_ context.Context, projectID uuid.UUID, parentID *uuid.UUID) ([]uuid.UUID, error) {
	var mods []Module
	for _, mod := range t.repo.modules {
		if mod.ProjectID == projectID && sameParent(mod.ParentID, parentID) {
			mods = append(mods, *mod)
		}
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Position < mods[j].Position })
	ids := make([]uuid.UUID, len(mods))
	for i, mod := range mods {
		ids[i] = mod.ID
	}
	return ids, nil
}

func (t *memoryTx) SetModulePosition(_ context.Context, id uuid.UUID, position int) error {
	mod, ok := t.repo.modules[id]
	if !ok {
		return ErrNotFound
	}
	mod.Position = position
	return nil
}

func (m *memoryRepo) InsertProject(_ context.Context, p *Project) error {
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *memoryRepo) UpdateProject(_ context.Context, p *Project) error {
	if _, ok := m.projects[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *memoryRepo) GetProject(_ context.Context, tenantID, id uuid.UUID) (*Project, error) {
	p, ok := m.projects[id]
	if !ok || p.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memoryRepo) ListProjects(_ context.Context, tenantID uuid.UUID) ([]Project, error) {
	var out []Project
	for _, p := range m.projects {
		if p.TenantID == tenantID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListProjectsForEmployee(_ context.Context, tenantID, employeeID uuid.UUID) ([]Project, error) {
	var out []Project
	for _, p := range m.projects {
		if p.TenantID == tenantID && m.assignments[p.ID][employeeID] {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListProjectsForClient(_ context.Context, tenantID, clientID uuid.UUID) ([]Project, error) {
	var out []Project
	for _, p := range m.projects {
		if p.TenantID == tenantID && p.ClientID != nil && *p.ClientID == clientID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memoryRepo) DeleteProject(_ context.Context, tenantID, id uuid.UUID) error {
	p, ok := m.projects[id]
	if !ok || p.TenantID != tenantID {
		return ErrNotFound
	}
	delete(m.projects, id)
	return nil
}

func (m *memoryRepo) AssignEmployee(_ context.Context, projectID, employeeID uuid.UUID) error {
	if m.assignments[projectID] == nil {
		m.assignments[projectID] = map[uuid.UUID]bool{}
	}
	m.assignments[projectID][employeeID] = true
	return nil
}

func (m *memoryRepo) UnassignEmployee(_ context.Context, projectID, employeeID uuid.UUID) error {
	delete(m.assignments[projectID], employeeID)
	return nil
}

func (m *memoryRepo) ListAssignedEmployeeIDs(_ context.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for id := range m.assignments[projectID] {
		out = append(out, id)
	}
	return out, nil
}

func (m *memoryRepo) IsEmployeeAssigned(_ context.Context, projectID, employeeID uuid.UUID) (bool, error) {
	return m.assignments[projectID][employeeID], nil
}

func (m *memoryRepo) InsertModule(_ context.Context, mod *Module) error {
	cp := *mod
	m.modules[mod.ID] = &cp
	return nil
}

func (m *memoryRepo) RenameModule(_ context.Context, projectID, id uuid.UUID, name string) error {
	mod, ok := m.modules[id]
	if !ok || mod.ProjectID != projectID {
		return ErrNotFound
	}
	mod.Name = name
	return nil
}

func (m *memoryRepo) DeleteModule(_ context.Context, projectID, id uuid.UUID) error {
	mod, ok := m.modules[id]
	if !ok || mod.ProjectID != projectID {
		return ErrNotFound
	}
	delete(m.modules, id)
	return nil
}

func (m *memoryRepo) ListModules(_ context.Context, projectID uuid.UUID) ([]Module, error) {
	var out []Module
	for _, mod := range m.modules {
		if mod.ProjectID == projectID {
			out = append(out, *mod)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memoryRepo) NextModulePosition(_ context.Context, projectID uuid.UUID, parentID *uuid.UUID) (int, error) {
	next := 0
	for _, mod := range m.modules {
		if mod.ProjectID == projectID && sameParent(mod.ParentID, parentID) && mod.Position >= next {
			next = mod.Position + 1
		}
	}
	return next, nil
}

func (m *memoryRepo) InsertDailyLog(_ context.Context, l *DailyLog) error {
	m.logs = append(m.logs, *l)
	return nil
}

func (m *memoryRepo) ListDailyLogs(_ context.Context, projectID uuid.UUID, _, _ *time.Time) ([]DailyLog, error) {
	var out []DailyLog
	for _, l := range m.logs {
		if l.ProjectID == projectID {
			out = append(out, l)
		}
	}
	return out, nil
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func adminIdentity(tenant uuid.UUID) *shared.Identity {
	return &shared.Identity{UserID: uuid.New(), TenantID: tenant, Role: shared.RoleAdmin}
}

func seedProject(t *testing.T, svc *Service, tenant uuid.UUID) *Project {
	t.Helper()
	project, err := svc.CreateProject(context.Background(), tenant, ProjectInput{Name: "Website Redesign"})
	require.NoError(t, err)
	return project
}

func TestCreateProjectDefaultsToPlanning(t *testing.T) {
	svc := NewService(newMemoryRepo())
	project := seedProject(t, svc, uuid.New())
	require.Equal(t, StatusPlanning, project.Status)
	require.True(t, project.Budget.IsZero())
}

func TestModulesAppendAtEndOfSiblingGroup(t *testing.T) {
	svc := NewService(newMemoryRepo())
	tenant := uuid.New()
	project := seedProject(t, svc, tenant)
	ctx := context.Background()

	first, err := svc.AddModule(ctx, tenant, project.ID, nil, "Backend")
	require.NoError(t, err)
	second, err := svc.AddModule(ctx, tenant, project.ID, nil, "Frontend")
	require.NoError(t, err)
	require.Equal(t, 0, first.Position)
	require.Equal(t, 1, second.Position)

	// Submodules get their own position sequence.
	sub, err := svc.AddModule(ctx, tenant, project.ID, &first.ID, "API")
	require.NoError(t, err)
	require.Equal(t, 0, sub.Position)
}

func TestReorderModulesRewritesPositions(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	tenant := uuid.New()
	project := seedProject(t, svc, tenant)
	ctx := context.Background()

	a, _ := svc.AddModule(ctx, tenant, project.ID, nil, "A")
	b, _ := svc.AddModule(ctx, tenant, project.ID, nil, "B")
	c, _ := svc.AddModule(ctx, tenant, project.ID, nil, "C")

	require.NoError(t, svc.ReorderModules(ctx, tenant, project.ID, nil, []uuid.UUID{c.ID, a.ID, b.ID}))

	modules, err := svc.ListModules(ctx, tenant, project.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"C", "A", "B"}, []string{modules[0].Name, modules[1].Name, modules[2].Name})
}

func TestReorderModulesRejectsPartialList(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	tenant := uuid.New()
	project := seedProject(t, svc, tenant)
	ctx := context.Background()

	a, _ := svc.AddModule(ctx, tenant, project.ID, nil, "A")
	b, _ := svc.AddModule(ctx, tenant, project.ID, nil, "B")

	err := svc.ReorderModules(ctx, tenant, project.ID, nil, []uuid.UUID{b.ID})
	require.ErrorIs(t, err, ErrReorderMismatch)

	err = svc.ReorderModules(ctx, tenant, project.ID, nil, []uuid.UUID{b.ID, b.ID})
	require.ErrorIs(t, err, ErrReorderMismatch)

	err = svc.ReorderModules(ctx, tenant, project.ID, nil, []uuid.UUID{b.ID, uuid.New()})
	require.ErrorIs(t, err, ErrReorderMismatch)

	// Failed reorders must leave positions untouched.
	modules, err := svc.ListModules(ctx, tenant, project.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, modules[0].ID)
	require.Equal(t, b.ID, modules[1].ID)
}

func TestProjectVisibilityByRole(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	tenant := uuid.New()
	ctx := context.Background()

	clientID := uuid.New()
	owned, err := svc.CreateProject(ctx, tenant, ProjectInput{Name: "Client Site", ClientID: &clientID})
	require.NoError(t, err)
	other := seedProject(t, svc, tenant)

	employeeID := uuid.New()
	require.NoError(t, svc.AssignEmployee(ctx, tenant, other.ID, employeeID))

	employee := &shared.Identity{
		UserID: employeeID, EmployeeID: employeeID, TenantID: tenant, Role: shared.RoleEmployee,
	}
	visible, err := svc.ListProjects(ctx, employee)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.Equal(t, other.ID, visible[0].ID)

	_, err = svc.GetProject(ctx, employee, owned.ID)
	require.ErrorIs(t, err, ErrNotFound)

	client := &shared.Identity{UserID: clientID, TenantID: tenant, Role: shared.RoleClient}
	visible, err = svc.ListProjects(ctx, client)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.Equal(t, owned.ID, visible[0].ID)

	admin := adminIdentity(tenant)
	visible, err = svc.ListProjects(ctx, admin)
	require.NoError(t, err)
	require.Len(t, visible, 2)
}

func TestRecordDailyLogRequiresAssignment(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	tenant := uuid.New()
	project := seedProject(t, svc, tenant)
	ctx := context.Background()

	employeeID := uuid.New()
	employee := &shared.Identity{
		UserID: employeeID, EmployeeID: employeeID, TenantID: tenant, Role: shared.RoleEmployee,
	}
	input := DailyLogInput{
		ProjectID:   project.ID,
		Date:        time.Now(),
		Description: "Implemented checkout flow",
		Hours:       decimal.RequireFromString("6.5"),
	}

	_, err := svc.RecordDailyLog(ctx, employee, input)
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, svc.AssignEmployee(ctx, tenant, project.ID, employeeID))

	log, err := svc.RecordDailyLog(ctx, employee, input)
	require.NoError(t, err)
	require.Equal(t, employeeID, log.EmployeeID)

	logs, err := svc.ListDailyLogs(ctx, tenant, project.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, logs, 1)
}

func TestProjectOperationsAreTenantScoped(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	tenantA, tenantB := uuid.New(), uuid.New()
	project := seedProject(t, svc, tenantA)
	ctx := context.Background()

	_, err := svc.UpdateProject(ctx, tenantB, project.ID, ProjectInput{Name: "Hijack", Status: StatusPlanning})
	require.ErrorIs(t, err, ErrNotFound)

	err = svc.DeleteProject(ctx, tenantB, project.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.AddModule(ctx, tenantB, project.ID, nil, "Sneaky")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.CreateProject(ctx, uuid.Nil, ProjectInput{Name: "Nope"})
	require.ErrorIs(t, err, ErrUnauthorized)
}
