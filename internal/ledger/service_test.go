package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]Account
	opening  map[uuid.UUID]decimal.Decimal
	entries  map[uuid.UUID]Entry
	assocs   map[uuid.UUID][]uuid.UUID

	failInsert error
	failAdjust error
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		accounts: make(map[uuid.UUID]Account),
		opening:  make(map[uuid.UUID]decimal.Decimal),
		entries:  make(map[uuid.UUID]Entry),
		assocs:   make(map[uuid.UUID][]uuid.UUID),
	}
}

func (r *memoryRepo) addAccount(tenantID uuid.UUID, balance string) uuid.UUID {
	id := uuid.New()
	b := decimal.RequireFromString(balance)
	r.accounts[id] = Account{ID: id, TenantID: tenantID, Name: "acct", Balance: b}
	r.opening[id] = b
	return id
}

func (r *memoryRepo) snapshot() (map[uuid.UUID]Account, map[uuid.UUID]Entry, map[uuid.UUID][]uuid.UUID) {
	accounts := make(map[uuid.UUID]Account, len(r.accounts))
	for k, v := range r.accounts {
		accounts[k] = v
	}
	entries := make(map[uuid.UUID]Entry, len(r.entries))
	for k, v := range r.entries {
		entries[k] = v
	}
	assocs := make(map[uuid.UUID][]uuid.UUID, len(r.assocs))
	for k, v := range r.assocs {
		assocs[k] = append([]uuid.UUID(nil), v...)
	}
	return accounts, entries, assocs
}

// WithTx holds the repo lock for the whole unit and restores the snapshot on
// error, mirroring the all-or-nothing commit of the SQL implementation.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	accounts, entries, assocs := r.snapshot()
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.accounts, r.entries, r.assocs = accounts, entries, assocs
		return err
	}
	return nil
}

func (r *memoryRepo) GetAccount(ctx context.Context, tenantID, accountID uuid.UUID) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookupAccount(tenantID, accountID)
}

func (r *memoryRepo) lookupAccount(tenantID, accountID uuid.UUID) (Account, error) {
	account, ok := r.accounts[accountID]
	if !ok || account.TenantID != tenantID {
		return Account{}, ErrInvalidAccount
	}
	return account, nil
}

func (r *memoryRepo) ListAccounts(ctx context.Context, tenantID uuid.UUID) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Account{}
	for _, a := range r.accounts {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepo) InsertAccount(ctx context.Context, account Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = account
	r.opening[account.ID] = account.Balance
	return nil
}

func (r *memoryRepo) RenameAccount(ctx context.Context, tenantID, accountID uuid.UUID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, err := r.lookupAccount(tenantID, accountID)
	if err != nil {
		return err
	}
	account.Name = name
	r.accounts[accountID] = account
	return nil
}

func (r *memoryRepo) GetEntry(ctx context.Context, tenantID uuid.UUID, kind Kind, entryID uuid.UUID) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookupEntry(tenantID, kind, entryID)
}

func (r *memoryRepo) lookupEntry(tenantID uuid.UUID, kind Kind, entryID uuid.UUID) (Entry, error) {
	entry, ok := r.entries[entryID]
	if !ok || entry.TenantID != tenantID || entry.Kind != kind {
		return Entry{}, ErrNotFound
	}
	entry.TagIDs = append([]uuid.UUID(nil), r.assocs[entryID]...)
	return entry, nil
}

func (r *memoryRepo) ListEntries(ctx context.Context, tenantID uuid.UUID, kind Kind, filter ListFilter) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Entry{}
	for id, e := range r.entries {
		if e.TenantID != tenantID || e.Kind != kind {
			continue
		}
		e.TagIDs = append([]uuid.UUID(nil), r.assocs[id]...)
		out = append(out, e)
	}
	return out, nil
}

func (r *memoryRepo) ListCategories(ctx context.Context, tenantID uuid.UUID, kind Kind) ([]Category, error) {
	return nil, nil
}
func (r *memoryRepo) InsertCategory(ctx context.Context, category Category) error { return nil }
func (r *memoryRepo) ListTags(ctx context.Context, tenantID uuid.UUID) ([]Tag, error) {
	return nil, nil
}
func (r *memoryRepo) InsertTag(ctx context.Context, tag Tag) error { return nil }

func (t *memoryTx) LockAccount(ctx context.Context, tenantID, accountID uuid.UUID) (Account, error) {
	return t.repo.lookupAccount(tenantID, accountID)
}

func (t *memoryTx) AdjustAccountBalance(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) error {
	if t.repo.failAdjust != nil {
		return t.repo.failAdjust
	}
	account, ok := t.repo.accounts[accountID]
	if !ok {
		return ErrInvalidAccount
	}
	account.Balance = account.Balance.Add(delta)
	t.repo.accounts[accountID] = account
	return nil
}

func (t *memoryTx) GetEntryForUpdate(ctx context.Context, tenantID uuid.UUID, kind Kind, entryID uuid.UUID) (Entry, error) {
	return t.repo.lookupEntry(tenantID, kind, entryID)
}

func (t *memoryTx) InsertEntry(ctx context.Context, entry Entry) error {
	if t.repo.failInsert != nil {
		return t.repo.failInsert
	}
	entry.TagIDs = nil
	t.repo.entries[entry.ID] = entry
	return nil
}

func (t *memoryTx) UpdateEntry(ctx context.Context, entry Entry) error {
	if _, ok := t.repo.entries[entry.ID]; !ok {
		return ErrNotFound
	}
	entry.TagIDs = nil
	t.repo.entries[entry.ID] = entry
	return nil
}

func (t *memoryTx) DeleteEntry(ctx context.Context, kind Kind, entryID uuid.UUID) error {
	if _, ok := t.repo.entries[entryID]; !ok {
		return ErrNotFound
	}
	delete(t.repo.entries, entryID)
	delete(t.repo.assocs, entryID)
	return nil
}

func (t *memoryTx) ReplaceEntryTags(ctx context.Context, kind Kind, entryID uuid.UUID, tagIDs []uuid.UUID) error {
	t.repo.assocs[entryID] = append([]uuid.UUID(nil), tagIDs...)
	return nil
}

// computedBalance folds the opening balance with every live entry, the
// definition the stored balance must always agree with.
func (r *memoryRepo) computedBalance(accountID uuid.UUID) decimal.Decimal {
	balance := r.opening[accountID]
	for _, e := range r.entries {
		if e.AccountID != accountID {
			continue
		}
		balance = balance.Add(signedDelta(e.Kind, e.Amount))
	}
	return balance
}

func (r *memoryRepo) storedBalance(accountID uuid.UUID) decimal.Decimal {
	return r.accounts[accountID].Balance
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func entryInput(accountID uuid.UUID, amount string) EntryInput {
	return EntryInput{
		AccountID:   accountID,
		Amount:      dec(amount),
		Description: "entry",
		Date:        time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
	}
}

func requireBalanced(t *testing.T, repo *memoryRepo, accountID uuid.UUID) {
	t.Helper()
	require.True(t, repo.storedBalance(accountID).Equal(repo.computedBalance(accountID)),
		"stored balance %s != computed %s", repo.storedBalance(accountID), repo.computedBalance(accountID))
}

func TestCreateEntryAdjustsBalance(t *testing.T) {
	repo := newMemoryRepo()
	tenant := uuid.New()
	acct := repo.addAccount(tenant, "500.00")
	svc := NewService(repo)
	ctx := context.Background()

	income, err := svc.CreateEntry(ctx, tenant, KindIncome, entryInput(acct, "200"))
	require.NoError(t, err)
	require.True(t, repo.storedBalance(acct).Equal(dec("700")))
	require.Equal(t, KindIncome, income.Kind)

	exp, err := svc.CreateEntry(ctx, tenant, KindExpenditure, entryInput(acct, "120"))
	require.NoError(t, err)
	require.True(t, repo.storedBalance(acct).Equal(dec("580")))

	_, err = svc.UpdateEntry(ctx, tenant, KindExpenditure, exp.ID, entryInput(acct, "150"))
	require.NoError(t, err)
	require.True(t, repo.storedBalance(acct).Equal(dec("550")))

	require.NoError(t, svc.DeleteEntry(ctx, tenant, KindIncome, income.ID))
	require.True(t, repo.storedBalance(acct).Equal(dec("350")))
	requireBalanced(t, repo, acct)
}

func TestBalanceInvariantAcrossOperationSequence(t *testing.T) {
	repo := newMemoryRepo()
	tenant := uuid.New()
	acct := repo.addAccount(tenant, "1000.00")
	svc := NewService(repo)
	ctx := context.Background()

	var entries []Entry
	steps := []struct {
		kind   Kind
		amount string
	}{
		{KindIncome, "10.50"}, {KindExpenditure, "3.25"}, {KindIncome, "99.99"},
		{KindExpenditure, "42.00"}, {KindIncome, "0.01"},
	}
	for _, step := range steps {
		e, err := svc.CreateEntry(ctx, tenant, step.kind, entryInput(acct, step.amount))
		require.NoError(t, err)
		entries = append(entries, e)
		requireBalanced(t, repo, acct)
	}

	_, err := svc.UpdateEntry(ctx, tenant, KindIncome, entries[0].ID, entryInput(acct, "7.77"))
	require.NoError(t, err)
	requireBalanced(t, repo, acct)

	require.NoError(t, svc.DeleteEntry(ctx, tenant, KindExpenditure, entries[3].ID))
	requireBalanced(t, repo, acct)
}

func TestCreateEntryRollsBackWhenBalanceUpdateFails(t *testing.T) {
	repo := newMemoryRepo()
	tenant := uuid.New()
	acct := repo.addAccount(tenant, "100.00")
	svc := NewService(repo)

	repo.failAdjust = errors.New("balance update refused")
	_, err := svc.CreateEntry(context.Background(), tenant, KindExpenditure, entryInput(acct, "10"))
	require.ErrorIs(t, err, ErrTransactionFailed)

	require.Empty(t, repo.entries, "no orphan entry may survive a failed balance update")
	require.True(t, repo.storedBalance(acct).Equal(dec("100")))
}

func TestCreateEntryRollsBackWhenInsertFails(t *testing.T) {
	repo := newMemoryRepo()
	tenant := uuid.New()
	acct := repo.addAccount(tenant, "100.00")
	svc := NewService(repo)

	repo.failInsert = errors.New("insert refused")
	_, err := svc.CreateEntry(context.Background(), tenant, KindIncome, entryInput(acct, "10"))
	require.ErrorIs(t, err, ErrTransactionFailed)
	require.True(t, repo.storedBalance(acct).Equal(dec("100")))
}

func TestUpdateEntryReassignsAcrossAccounts(t *testing.T) {
	repo := newMemoryRepo()
	tenant := uuid.New()
	acctA := repo.addAccount(tenant, "1000.00")
	acctB := repo.addAccount(tenant, "1000.00")
	svc := NewService(repo)
	ctx := context.Background()

	exp, err := svc.CreateEntry(ctx, tenant, KindExpenditure, entryInput(acctA, "100"))
	require.NoError(t, err)
	require.True(t, repo.storedBalance(acctA).Equal(dec("900")))

	updated, err := svc.UpdateEntry(ctx, tenant, KindExpenditure, exp.ID, entryInput(acctB, "150"))
	require.NoError(t, err)
	require.Equal(t, acctB, updated.AccountID)
	require.True(t, repo.storedBalance(acctA).Equal(dec("1000")), "original account regains the old amount")
	require.True(t, repo.storedBalance(acctB).Equal(dec("850")), "new account absorbs the new amount")
	requireBalanced(t, repo, acctA)
	requireBalanced(t, repo, acctB)
}

func TestUpdateEntrySkipsBalanceWriteWhenUnchanged(t *testing.T) {
	repo := newMemoryRepo()
	tenant := uuid.New()
	acct := repo.addAccount(tenant, "300.00")
	svc := NewService(repo)
	ctx := context.Background()

	exp, err := svc.CreateEntry(ctx, tenant, KindExpenditure, entryInput(acct, "50"))
	require.NoError(t, err)

	// Same account, same amount: only description/tags change. A failing
	// balance writer proves no balance write happens on this path.
	repo.failAdjust = errors.New("must not be called")
	in := entryInput(acct, "50")
	in.Description = "updated"
	_, err = svc.UpdateEntry(ctx, tenant, KindExpenditure, exp.ID, in)
	require.NoError(t, err)
	require.True(t, repo.storedBalance(acct).Equal(dec("250")))
}

func TestUpdateEntryReplacesTagsWholesale(t *testing.T) {
	repo := newMemoryRepo()
	tenant := uuid.New()
	acct := repo.addAccount(tenant, "300.00")
	svc := NewService(repo)
	ctx := context.Background()

	t1, t2, t3 := uuid.New(), uuid.New(), uuid.New()

	in := entryInput(acct, "50")
	in.TagIDs = []uuid.UUID{t1, t2}
	entry, err := svc.CreateEntry(ctx, tenant, KindIncome, in)
	require.NoError(t, err)
	require.ElementsMatch(t, []uuid.UUID{t1, t2}, entry.TagIDs)

	in.TagIDs = []uuid.UUID{t2, t3}
	updated, err := svc.UpdateEntry(ctx, tenant, KindIncome, entry.ID, in)
	require.NoError(t, err)
	require.ElementsMatch(t, []uuid.UUID{t2, t3}, updated.TagIDs)
	require.NotContains(t, updated.TagIDs, t1, "stale association must be gone")
	require.Len(t, repo.assocs[entry.ID], 2)
}

func TestUpdateEntryAlwaysRewritesTagsEvenWhenNothingElseChanged(t *testing.T) {
	repo := newMemoryRepo()
	tenant := uuid.New()
	acct := repo.addAccount(tenant, "300.00")
	svc := NewService(repo)
	ctx := context.Background()

	t1 := uuid.New()
	in := entryInput(acct, "50")
	in.TagIDs = []uuid.UUID{t1}
	entry, err := svc.CreateEntry(ctx, tenant, KindExpenditure, in)
	require.NoError(t, err)

	// Identical input: the tag set is still dropped and recreated.
	in.TagIDs = nil
	updated, err := svc.UpdateEntry(ctx, tenant, KindExpenditure, entry.ID, in)
	require.NoError(t, err)
	require.Empty(t, updated.TagIDs)
}

func TestConcurrentExpendituresDoNotLoseUpdates(t *testing.T) {
	repo := newMemoryRepo()
	tenant := uuid.New()
	acct := repo.addAccount(tenant, "100.00")
	svc := NewService(repo)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateEntry(context.Background(), tenant, KindExpenditure, entryInput(acct, "10"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.True(t, repo.storedBalance(acct).Equal(dec("80")), "got %s", repo.storedBalance(acct))
}

func TestCreateEntryRejectsForeignAccount(t *testing.T) {
	repo := newMemoryRepo()
	tenantA := uuid.New()
	tenantB := uuid.New()
	foreign := repo.addAccount(tenantB, "100.00")
	svc := NewService(repo)

	_, err := svc.CreateEntry(context.Background(), tenantA, KindIncome, entryInput(foreign, "10"))
	require.ErrorIs(t, err, ErrInvalidAccount)
	require.Empty(t, repo.entries)
	require.True(t, repo.storedBalance(foreign).Equal(dec("100")))
}

func TestUpdateEntryRejectsForeignTargetAccount(t *testing.T) {
	repo := newMemoryRepo()
	tenantA := uuid.New()
	tenantB := uuid.New()
	mine := repo.addAccount(tenantA, "100.00")
	foreign := repo.addAccount(tenantB, "100.00")
	svc := NewService(repo)
	ctx := context.Background()

	entry, err := svc.CreateEntry(ctx, tenantA, KindExpenditure, entryInput(mine, "10"))
	require.NoError(t, err)

	_, err = svc.UpdateEntry(ctx, tenantA, KindExpenditure, entry.ID, entryInput(foreign, "10"))
	require.ErrorIs(t, err, ErrInvalidAccount)
	require.True(t, repo.storedBalance(mine).Equal(dec("90")), "failed update must leave balances untouched")
	require.True(t, repo.storedBalance(foreign).Equal(dec("100")))
}

func TestDeleteEntryReversesEffect(t *testing.T) {
	repo := newMemoryRepo()
	tenant := uuid.New()
	acct := repo.addAccount(tenant, "100.00")
	svc := NewService(repo)
	ctx := context.Background()

	entry, err := svc.CreateEntry(ctx, tenant, KindExpenditure, entryInput(acct, "30"))
	require.NoError(t, err)
	require.True(t, repo.storedBalance(acct).Equal(dec("70")))

	require.NoError(t, svc.DeleteEntry(ctx, tenant, KindExpenditure, entry.ID))
	require.True(t, repo.storedBalance(acct).Equal(dec("100")))
	require.NotContains(t, repo.assocs, entry.ID, "tag associations cascade with the entry")
}

func TestOperationsRequireTenant(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.CreateEntry(ctx, uuid.Nil, KindIncome, EntryInput{})
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.UpdateEntry(ctx, uuid.Nil, KindIncome, uuid.New(), EntryInput{})
	require.ErrorIs(t, err, ErrUnauthorized)
	err = svc.DeleteEntry(ctx, uuid.Nil, KindIncome, uuid.New())
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.ListEntries(ctx, uuid.Nil, KindIncome, ListFilter{})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestDeleteMissingEntryReturnsNotFound(t *testing.T) {
	repo := newMemoryRepo()
	tenant := uuid.New()
	repo.addAccount(tenant, "100.00")
	svc := NewService(repo)

	err := svc.DeleteEntry(context.Background(), tenant, KindIncome, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}
