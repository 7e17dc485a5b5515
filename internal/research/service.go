package research

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/reseich/reseich-api/internal/auth"
	"github.com/reseich/reseich-api/internal/config"
	"github.com/reseich/reseich-api/internal/events"
	"github.com/reseich/reseich-api/internal/logger"
	"github.com/reseich/reseich-api/internal/ratelimit"
	"github.com/reseich/reseich-api/internal/storage/pg"
	pgdb "github.com/reseich/reseich-api/internal/storage/pg/sqlc"
	"github.com/reseich/reseich-api/internal/workflow"
	"github.com/shopspring/decimal"
)

// Dispatcher hands payloads to the workflow engine without blocking.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload workflow.Payload) error
}

// CallbackBuilder returns the signed URL the engine posts status updates to.
type CallbackBuilder interface {
	Research(researchID string) (string, error)
}

// AccessChecker reports whether a buyer holds a grant for a listing.
type AccessChecker interface {
	HasAccess(ctx context.Context, listingID uuid.UUID, identifier string, isDemo bool) (bool, error)
}

type Metrics interface {
	ResearchSubmitted(depth string, demo bool)
	ResearchRejected(reason string)
	ResearchTransition(status string)
	ResearchExpired(n int)
	SideEffectFailed(kind string)
}

type Config struct {
	Pricing    config.Pricing
	MailFrom   string
	StaleAfter time.Duration
}

type Service struct {
	store      pg.Store
	limiter    ratelimit.DemoLimiter
	dispatcher Dispatcher
	callbacks  CallbackBuilder
	access     AccessChecker
	bus        events.Bus
	metrics    Metrics
	cfg        Config
	logger     *logger.Logger
	now        func() time.Time
}

func NewService(
	store pg.Store,
	limiter ratelimit.DemoLimiter,
	dispatcher Dispatcher,
	callbacks CallbackBuilder,
	access AccessChecker,
	bus events.Bus,
	metrics Metrics,
	cfg Config,
	logger *logger.Logger,
) *Service {
	return &Service{
		store:      store,
		limiter:    limiter,
		dispatcher: dispatcher,
		callbacks:  callbacks,
		access:     access,
		bus:        bus,
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger.WithComponent("research"),
		now:        time.Now,
	}
}

type SubmitRequest struct {
	Title string
	Query string
	Depth string
	Type  string
}

type SubmitResult struct {
	Item Item
	// CreditsRemaining is nil for demo callers.
	CreditsRemaining *int64
}

// Submit creates a research item for the caller and hands it to the workflow engine.
// Wallet callers pay the depth's cost; demo callers consume their IP quota instead.
func (s *Service) Submit(ctx context.Context, req SubmitRequest, caller auth.Identity) (*SubmitResult, error) {
	cost, ok := s.cfg.Pricing.ResearchCosts[req.Depth]
	if !ok {
		return nil, ErrInvalidDepth
	}

	var (
		row       pgdb.ResearchItem
		remaining *int64
		err       error
	)
	if caller.IsDemo() {
		row, err = s.submitDemo(ctx, req, caller.IP)
	} else {
		var left int64
		row, left, err = s.submitPaid(ctx, req, caller.Wallet, int64(cost))
		remaining = &left
	}
	if err != nil {
		return nil, err
	}

	s.metrics.ResearchSubmitted(req.Depth, caller.IsDemo())
	s.dispatchResearch(ctx, row, caller)

	return &SubmitResult{Item: toItem(row), CreditsRemaining: remaining}, nil
}

// DemoUsage reports the demo quota for ip without consuming it.
func (s *Service) DemoUsage(ctx context.Context, ip string) (ratelimit.Usage, error) {
	usage, err := s.limiter.Peek(ctx, ip)
	if err != nil {
		return ratelimit.Usage{}, fmt.Errorf("failed to read demo quota: %w", err)
	}
	return usage, nil
}

func (s *Service) submitDemo(ctx context.Context, req SubmitRequest, ip string) (pgdb.ResearchItem, error) {
	usage, err := s.limiter.Consume(ctx, ip)
	if err != nil {
		return pgdb.ResearchItem{}, fmt.Errorf("failed to check demo quota: %w", err)
	}
	if !usage.Allowed {
		s.metrics.ResearchRejected("demo_daily_limit")
		return pgdb.ResearchItem{}, &DemoLimitError{Usage: usage}
	}

	row, err := s.store.CreateResearchItem(ctx, pgdb.CreateResearchItemParams{
		Title:  req.Title,
		Query:  req.Query,
		Depth:  req.Depth,
		Type:   req.Type,
		DemoIp: sql.NullString{String: ip, Valid: true},
	})
	if err != nil {
		if relErr := s.limiter.Release(ctx, ip); relErr != nil {
			s.logger.WithContext(ctx).Warn("failed to release demo quota", slog.String("error", relErr.Error()))
		}
		return pgdb.ResearchItem{}, fmt.Errorf("failed to create research item: %w", err)
	}
	return row, nil
}

func (s *Service) submitPaid(ctx context.Context, req SubmitRequest, wallet string, cost int64) (pgdb.ResearchItem, int64, error) {
	var (
		row       pgdb.ResearchItem
		remaining int64
	)

	err := s.store.ExecTx(ctx, func(q pgdb.Querier) error {
		user, err := q.GetUserByWallet(ctx, wallet)
		if errors.Is(err, sql.ErrNoRows) {
			return &InsufficientCreditsError{Required: cost, Available: 0}
		}
		if err != nil {
			return fmt.Errorf("failed to load user: %w", err)
		}
		if user.Credits < cost {
			return &InsufficientCreditsError{Required: cost, Available: user.Credits}
		}

		row, err = q.CreateResearchItem(ctx, pgdb.CreateResearchItemParams{
			Title:       req.Title,
			Query:       req.Query,
			Depth:       req.Depth,
			Type:        req.Type,
			UserID:      uuid.NullUUID{UUID: user.ID, Valid: true},
			CreditsCost: int32(cost),
		})
		if err != nil {
			return fmt.Errorf("failed to create research item: %w", err)
		}

		// Conditional on the balance, so a concurrent spend cannot push it below zero.
		remaining, err = q.DebitUserCredits(ctx, pgdb.DebitUserCreditsParams{ID: user.ID, Amount: cost})
		if errors.Is(err, sql.ErrNoRows) || pg.IsCheckViolation(err) {
			return &InsufficientCreditsError{Required: cost, Available: user.Credits}
		}
		if err != nil {
			return fmt.Errorf("failed to debit credits: %w", err)
		}

		metadata, _ := json.Marshal(map[string]string{
			"research_id": row.ID.String(),
			"depth":       req.Depth,
		})
		_, err = q.CreateTransaction(ctx, pgdb.CreateTransactionParams{
			UserID:        uuid.NullUUID{UUID: user.ID, Valid: true},
			Type:          "research_spend",
			Amount:        decimal.Zero,
			CreditsAmount: -cost,
			Status:        "completed",
			Metadata:      metadata,
		})
		if err != nil {
			return fmt.Errorf("failed to record research spend: %w", err)
		}
		return nil
	})
	if err != nil {
		var insufficient *InsufficientCreditsError
		if errors.As(err, &insufficient) {
			s.metrics.ResearchRejected("insufficient_credits")
		}
		return pgdb.ResearchItem{}, 0, err
	}

	return row, remaining, nil
}

func (s *Service) dispatchResearch(ctx context.Context, row pgdb.ResearchItem, caller auth.Identity) {
	log := s.logger.WithContext(logger.WithResearchID(ctx, row.ID.String()))

	callbackURL, err := s.callbacks.Research(row.ID.String())
	if err != nil {
		log.Error("failed to build research callback url", slog.String("error", err.Error()))
		s.metrics.SideEffectFailed("research_dispatch")
		return
	}

	payload := workflow.NewResearchPayload(workflow.ResearchPayload{
		ResearchID:    row.ID.String(),
		Title:         row.Title,
		Query:         row.Query,
		Depth:         row.Depth,
		Type:          row.Type,
		WalletAddress: caller.Wallet,
		IsDemo:        caller.IsDemo(),
		CallbackURL:   callbackURL,
	})
	if err := s.dispatcher.Dispatch(ctx, payload); err != nil {
		log.Error("failed to queue research workflow", slog.String("error", err.Error()))
		s.metrics.SideEffectFailed("research_dispatch")
	}
}

// Get returns the item by id.
func (s *Service) Get(ctx context.Context, id string) (pgdb.ResearchItem, error) {
	researchID, err := uuid.Parse(id)
	if err != nil {
		return pgdb.ResearchItem{}, ErrInvalidID
	}

	row, err := s.store.GetResearchItem(ctx, researchID)
	if errors.Is(err, sql.ErrNoRows) {
		return pgdb.ResearchItem{}, ErrNotFound
	}
	if err != nil {
		return pgdb.ResearchItem{}, fmt.Errorf("failed to get research item: %w", err)
	}
	return row, nil
}

// StatusUpdate is a partial update sent by the workflow engine. Nil fields are left unchanged.
type StatusUpdate struct {
	Status        *string
	Progress      *int32
	ResultContent *string
	ResultFileURL *string
	ErrorMessage  *string
}

// UpdateStatus applies a workflow status report. Status only moves forward,
// finished items are immutable and progress never decreases.
func (s *Service) UpdateStatus(ctx context.Context, id string, upd StatusUpdate) (Item, error) {
	researchID, err := uuid.Parse(id)
	if err != nil {
		return Item{}, ErrInvalidID
	}
	if upd.Status != nil {
		if _, ok := statusRank[*upd.Status]; !ok {
			return Item{}, ErrInvalidStatus
		}
	}

	var before, after pgdb.ResearchItem
	err = s.store.ExecTx(ctx, func(q pgdb.Querier) error {
		var err error
		before, err = q.GetResearchItemForUpdate(ctx, researchID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock research item: %w", err)
		}

		params, err := s.applyUpdate(before, upd)
		if err != nil {
			return err
		}

		after, err = q.UpdateResearchItemStatus(ctx, params)
		if err != nil {
			return fmt.Errorf("failed to update research item: %w", err)
		}
		return nil
	})
	if err != nil {
		return Item{}, err
	}

	ctx = logger.WithResearchID(ctx, id)
	if before.Status != after.Status {
		s.metrics.ResearchTransition(after.Status)
		s.logger.WithContext(ctx).Info("research status changed",
			slog.String("from", before.Status),
			slog.String("to", after.Status))
	}

	if before.Status != StatusCompleted && after.Status == StatusCompleted && after.ResultContent.String != "" {
		s.notifyCompleted(ctx, after)
	}
	s.publish(ctx, after)

	return toItem(after), nil
}

func (s *Service) applyUpdate(current pgdb.ResearchItem, upd StatusUpdate) (pgdb.UpdateResearchItemStatusParams, error) {
	if isTerminal(current.Status) {
		return pgdb.UpdateResearchItemStatusParams{}, ErrTerminal
	}

	params := pgdb.UpdateResearchItemStatusParams{
		ID:            current.ID,
		Status:        current.Status,
		Progress:      current.Progress,
		ResultContent: current.ResultContent,
		ResultFileUrl: current.ResultFileUrl,
		ErrorMessage:  current.ErrorMessage,
		CompletedAt:   current.CompletedAt,
	}

	if upd.Status != nil {
		if statusRank[*upd.Status] < statusRank[current.Status] {
			return pgdb.UpdateResearchItemStatusParams{}, ErrBackwardTransition
		}
		params.Status = *upd.Status
	}
	if upd.Progress != nil && *upd.Progress > params.Progress {
		params.Progress = min(*upd.Progress, 100)
	}
	if upd.ResultContent != nil {
		params.ResultContent = sql.NullString{String: *upd.ResultContent, Valid: true}
	}
	if upd.ResultFileURL != nil {
		params.ResultFileUrl = sql.NullString{String: *upd.ResultFileURL, Valid: *upd.ResultFileURL != ""}
	}
	if upd.ErrorMessage != nil {
		params.ErrorMessage = sql.NullString{String: *upd.ErrorMessage, Valid: *upd.ErrorMessage != ""}
	}
	if params.Status == StatusCompleted {
		params.Progress = 100
		params.CompletedAt = sql.NullTime{Time: s.now().UTC(), Valid: true}
	}

	return params, nil
}

// notifyCompleted fires the completion email trigger. The owner's address is
// filled in only when they opted in; otherwise the engine resolves the recipient.
func (s *Service) notifyCompleted(ctx context.Context, row pgdb.ResearchItem) {
	log := s.logger.WithContext(ctx)

	email := workflow.EmailPayload{
		From:       s.cfg.MailFrom,
		Subject:    fmt.Sprintf("Your research %q is ready", row.Title),
		Content:    row.ResultContent.String,
		ResearchID: row.ID.String(),
	}

	if row.UserID.Valid {
		user, err := s.store.GetUserByID(ctx, row.UserID.UUID)
		if err != nil {
			// Still fire the trigger; the engine can resolve the owner from the research id.
			log.Warn("failed to load research owner for notification", slog.String("error", err.Error()))
		} else {
			email.WalletAddress = user.WalletAddress
			if user.EmailNotifications && user.Email.Valid {
				email.To = user.Email.String
			}
		}
	}

	if err := s.dispatcher.Dispatch(ctx, workflow.NewEmailPayload(email)); err != nil {
		log.Error("failed to queue completion email", slog.String("error", err.Error()))
		s.metrics.SideEffectFailed("research_email")
	}
}

func (s *Service) publish(ctx context.Context, row pgdb.ResearchItem) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, statusEvent(row)); err != nil {
		s.logger.WithContext(ctx).Warn("failed to publish status event", slog.String("error", err.Error()))
		s.metrics.SideEffectFailed("status_event")
	}
}

func statusEvent(row pgdb.ResearchItem) events.StatusEvent {
	return events.StatusEvent{
		ResearchID: row.ID.String(),
		Status:     row.Status,
		Progress:   row.Progress,
		HasResult:  row.ResultContent.Valid && row.ResultContent.String != "" || row.ResultFileUrl.Valid,
		UpdatedAt:  row.UpdatedAt,
	}
}

// ReadResult is an item as seen by a specific caller.
type ReadResult struct {
	Item      Item
	HasAccess bool
	Listing   *pgdb.MarketplaceListing
}

// Read returns the item, hiding the result of private items the caller neither
// owns nor bought.
func (s *Service) Read(ctx context.Context, id string, caller auth.Identity) (*ReadResult, error) {
	row, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	listing, hasAccess, err := s.resolveAccess(ctx, row, caller)
	if err != nil {
		return nil, err
	}

	if listing != nil {
		if err := s.store.IncrementListingViews(ctx, listing.ID); err != nil {
			s.logger.WithContext(ctx).Warn("failed to count listing view", slog.String("error", err.Error()))
			s.metrics.SideEffectFailed("listing_view")
		}
	}

	item := toItem(row)
	if !hasAccess {
		item = item.stripContent()
	}
	return &ReadResult{Item: item, HasAccess: hasAccess, Listing: listing}, nil
}

// Status returns the item for status polling. Unlike Read it does not count a
// listing view, but applies the same content rules.
func (s *Service) Status(ctx context.Context, id string, caller auth.Identity) (Item, error) {
	row, err := s.Get(ctx, id)
	if err != nil {
		return Item{}, err
	}

	_, hasAccess, err := s.resolveAccess(ctx, row, caller)
	if err != nil {
		return Item{}, err
	}

	item := toItem(row)
	if !hasAccess {
		item = item.stripContent()
	}
	return item, nil
}

func (s *Service) resolveAccess(ctx context.Context, row pgdb.ResearchItem, caller auth.Identity) (*pgdb.MarketplaceListing, bool, error) {
	var listing *pgdb.MarketplaceListing
	l, err := s.store.GetActiveListingByResearch(ctx, row.ID)
	switch {
	case err == nil:
		listing = &l
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, fmt.Errorf("failed to load listing: %w", err)
	}

	hasAccess, err := s.canRead(ctx, row, listing, caller)
	if err != nil {
		return nil, false, err
	}
	return listing, hasAccess, nil
}

func (s *Service) canRead(ctx context.Context, row pgdb.ResearchItem, listing *pgdb.MarketplaceListing, caller auth.Identity) (bool, error) {
	if row.Type == TypePublic {
		return true, nil
	}

	// Demo owners are matched by IP.
	if caller.IsDemo() {
		if row.DemoIp.Valid && row.DemoIp.String == caller.IP {
			return true, nil
		}
		if listing == nil {
			return false, nil
		}
		return s.access.HasAccess(ctx, listing.ID, caller.IP, true)
	}

	user, err := s.store.GetUserByWallet(ctx, caller.Wallet)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load caller: %w", err)
	}
	if row.UserID.Valid && row.UserID.UUID == user.ID {
		return true, nil
	}
	if listing == nil {
		return false, nil
	}
	return s.access.HasAccess(ctx, listing.ID, user.ID.String(), false)
}

// ListByWallet returns the wallet's items, newest first.
func (s *Service) ListByWallet(ctx context.Context, wallet string, limit, offset int32) ([]Item, error) {
	user, err := s.store.GetUserByWallet(ctx, wallet)
	if errors.Is(err, sql.ErrNoRows) {
		return []Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	rows, err := s.store.ListResearchItemsByUser(ctx, pgdb.ListResearchItemsByUserParams{
		UserID: uuid.NullUUID{UUID: user.ID, Valid: true},
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list research items: %w", err)
	}

	items := make([]Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, toItem(r))
	}
	return items, nil
}

// ExpireStale fails items that have been pending or processing for too long.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	ids, err := s.store.ExpireStaleResearchItems(ctx, pgdb.ExpireStaleResearchItemsParams{
		Before:       s.now().Add(-s.cfg.StaleAfter),
		ErrorMessage: sql.NullString{String: "research timed out", Valid: true},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale research: %w", err)
	}

	for _, id := range ids {
		s.publish(ctx, pgdb.ResearchItem{ID: id, Status: StatusFailed, UpdatedAt: s.now()})
	}
	if len(ids) > 0 {
		s.metrics.ResearchExpired(len(ids))
	}
	return len(ids), nil
}
