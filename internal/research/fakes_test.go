package research

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reseich/reseich-api/internal/ratelimit"
	pgdb "github.com/reseich/reseich-api/internal/storage/pg/sqlc"
	"github.com/reseich/reseich-api/internal/workflow"
)

// memStore is an in-memory Store covering the queries the research service uses.
type memStore struct {
	pgdb.Querier

	mu           sync.Mutex
	users        map[string]pgdb.User
	items        map[uuid.UUID]pgdb.ResearchItem
	transactions []pgdb.Transaction
	listings     map[uuid.UUID]pgdb.MarketplaceListing
	views        map[uuid.UUID]int
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]pgdb.User{},
		items:    map[uuid.UUID]pgdb.ResearchItem{},
		listings: map[uuid.UUID]pgdb.MarketplaceListing{},
		views:    map[uuid.UUID]int{},
	}
}

func (m *memStore) ExecTx(ctx context.Context, fn func(q pgdb.Querier) error) error {
	return fn(m)
}

func (m *memStore) addUser(wallet string, credits int64) pgdb.User {
	u := pgdb.User{ID: uuid.New(), WalletAddress: wallet, Credits: credits}
	m.users[wallet] = u
	return u
}

func (m *memStore) GetUserByWallet(ctx context.Context, wallet string) (pgdb.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[wallet]
	if !ok {
		return pgdb.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (m *memStore) GetUserByID(ctx context.Context, id uuid.UUID) (pgdb.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return pgdb.User{}, sql.ErrNoRows
}

func (m *memStore) DebitUserCredits(ctx context.Context, arg pgdb.DebitUserCreditsParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for w, u := range m.users {
		if u.ID == arg.ID {
			if u.Credits < arg.Amount {
				return 0, sql.ErrNoRows
			}
			u.Credits -= arg.Amount
			m.users[w] = u
			return u.Credits, nil
		}
	}
	return 0, sql.ErrNoRows
}

func (m *memStore) CreateResearchItem(ctx context.Context, arg pgdb.CreateResearchItemParams) (pgdb.ResearchItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	r := pgdb.ResearchItem{
		ID:          uuid.New(),
		Title:       arg.Title,
		Query:       arg.Query,
		Depth:       arg.Depth,
		Type:        arg.Type,
		Status:      StatusPending,
		UserID:      arg.UserID,
		DemoIp:      arg.DemoIp,
		CreditsCost: arg.CreditsCost,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.items[r.ID] = r
	return r, nil
}

func (m *memStore) CreateTransaction(ctx context.Context, arg pgdb.CreateTransactionParams) (pgdb.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := pgdb.Transaction{
		ID:            uuid.New(),
		UserID:        arg.UserID,
		Type:          arg.Type,
		Amount:        arg.Amount,
		CreditsAmount: arg.CreditsAmount,
		Status:        arg.Status,
		Metadata:      arg.Metadata,
	}
	m.transactions = append(m.transactions, tx)
	return tx, nil
}

func (m *memStore) GetResearchItem(ctx context.Context, id uuid.UUID) (pgdb.ResearchItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return pgdb.ResearchItem{}, sql.ErrNoRows
	}
	return r, nil
}

func (m *memStore) GetResearchItemForUpdate(ctx context.Context, id uuid.UUID) (pgdb.ResearchItem, error) {
	return m.GetResearchItem(ctx, id)
}

func (m *memStore) UpdateResearchItemStatus(ctx context.Context, arg pgdb.UpdateResearchItemStatusParams) (pgdb.ResearchItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[arg.ID]
	if !ok {
		return pgdb.ResearchItem{}, sql.ErrNoRows
	}
	r.Status = arg.Status
	r.Progress = arg.Progress
	r.ResultContent = arg.ResultContent
	r.ResultFileUrl = arg.ResultFileUrl
	r.ErrorMessage = arg.ErrorMessage
	r.CompletedAt = arg.CompletedAt
	r.UpdatedAt = time.Now()
	m.items[arg.ID] = r
	return r, nil
}

func (m *memStore) GetActiveListingByResearch(ctx context.Context, researchID uuid.UUID) (pgdb.MarketplaceListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[researchID]
	if !ok {
		return pgdb.MarketplaceListing{}, sql.ErrNoRows
	}
	return l, nil
}

func (m *memStore) IncrementListingViews(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[id]++
	return nil
}

func (m *memStore) ListResearchItemsByUser(ctx context.Context, arg pgdb.ListResearchItemsByUserParams) ([]pgdb.ResearchItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []pgdb.ResearchItem
	for _, r := range m.items {
		if r.UserID == arg.UserID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ExpireStaleResearchItems(ctx context.Context, arg pgdb.ExpireStaleResearchItemsParams) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, r := range m.items {
		if (r.Status == StatusPending || r.Status == StatusProcessing) && r.UpdatedAt.Before(arg.Before) {
			r.Status = StatusFailed
			r.ErrorMessage = arg.ErrorMessage
			m.items[id] = r
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeLimiter struct {
	limit    int64
	used     map[string]int64
	released int
}

func (f *fakeLimiter) Consume(ctx context.Context, ip string) (ratelimit.Usage, error) {
	if f.used == nil {
		f.used = map[string]int64{}
	}
	allowed := f.used[ip] < f.limit
	if allowed {
		f.used[ip]++
	}
	return ratelimit.Usage{
		Allowed:  allowed,
		Used:     f.used[ip],
		Limit:    f.limit,
		ResetsAt: time.Now().Add(24 * time.Hour),
	}, nil
}

func (f *fakeLimiter) Peek(ctx context.Context, ip string) (ratelimit.Usage, error) {
	used := f.used[ip]
	return ratelimit.Usage{
		Allowed:  used < f.limit,
		Used:     used,
		Limit:    f.limit,
		ResetsAt: time.Now().Add(24 * time.Hour),
	}, nil
}

func (f *fakeLimiter) Release(ctx context.Context, ip string) error {
	f.released++
	f.used[ip]--
	return nil
}

type fakeDispatcher struct {
	mu       sync.Mutex
	payloads []workflow.Payload
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, p workflow.Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads = append(d.payloads, p)
	return nil
}

func (d *fakeDispatcher) forms() []workflow.FormID {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]workflow.FormID, 0, len(d.payloads))
	for _, p := range d.payloads {
		out = append(out, p.Form())
	}
	return out
}

type fakeCallbacks struct{}

func (fakeCallbacks) Research(id string) (string, error) {
	return "https://api.test/api/research/status/" + id + "?token=t", nil
}

type fakeAccess struct {
	grants map[string]bool
}

func (f fakeAccess) HasAccess(ctx context.Context, listingID uuid.UUID, identifier string, isDemo bool) (bool, error) {
	return f.grants[listingID.String()+"|"+identifier], nil
}

type nopMetrics struct{}

func (nopMetrics) ResearchSubmitted(string, bool) {}
func (nopMetrics) ResearchRejected(string)        {}
func (nopMetrics) ResearchTransition(string)      {}
func (nopMetrics) ResearchExpired(int)            {}
func (nopMetrics) SideEffectFailed(string)        {}
