package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/reseich/reseich-api/internal/logger"
	"github.com/reseich/reseich-api/internal/storage/pg"
	pgdb "github.com/reseich/reseich-api/internal/storage/pg/sqlc"
)

var (
	ErrEmailRequired = errors.New("email is required to enable notifications")
	ErrNotFound      = errors.New("user not found")
)

// EmailSettings is a wallet's completion-email preference.
type EmailSettings struct {
	WalletAddress      string  `json:"wallet_address"`
	Email              *string `json:"email"`
	EmailNotifications bool    `json:"email_notifications"`
}

func toSettings(u pgdb.User) EmailSettings {
	s := EmailSettings{WalletAddress: u.WalletAddress, EmailNotifications: u.EmailNotifications}
	if u.Email.Valid {
		s.Email = &u.Email.String
	}
	return s
}

type Service struct {
	store  pg.Store
	logger *logger.Logger
}

func NewService(store pg.Store, logger *logger.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.WithComponent("users"),
	}
}

// UpdateEmailSettings stores the wallet's email and opt-in flag, creating the
// user on first use. An empty email clears the address.
func (s *Service) UpdateEmailSettings(ctx context.Context, wallet, email string, notify bool) (EmailSettings, error) {
	email = strings.TrimSpace(email)
	if notify && email == "" {
		return EmailSettings{}, ErrEmailRequired
	}

	var updated pgdb.User
	err := s.store.ExecTx(ctx, func(q pgdb.Querier) error {
		user, err := q.UpsertUserByWallet(ctx, wallet)
		if err != nil {
			return fmt.Errorf("failed to upsert user: %w", err)
		}

		updated, err = q.UpdateUserEmailSettings(ctx, pgdb.UpdateUserEmailSettingsParams{
			ID:                 user.ID,
			Email:              sql.NullString{String: email, Valid: email != ""},
			EmailNotifications: notify,
		})
		if err != nil {
			return fmt.Errorf("failed to update email settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return EmailSettings{}, err
	}

	s.logger.WithContext(logger.WithWallet(ctx, wallet)).Info("email settings updated",
		slog.Bool("email_notifications", notify))
	return toSettings(updated), nil
}

func (s *Service) EmailSettings(ctx context.Context, wallet string) (EmailSettings, error) {
	user, err := s.store.GetUserByWallet(ctx, wallet)
	if errors.Is(err, sql.ErrNoRows) {
		return EmailSettings{}, ErrNotFound
	}
	if err != nil {
		return EmailSettings{}, fmt.Errorf("failed to load user: %w", err)
	}
	return toSettings(user), nil
}
