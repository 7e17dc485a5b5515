package credits

import (
	"encoding/json"
	"time"

	pgdb "github.com/reseich/reseich-api/internal/storage/pg/sqlc"
	"github.com/shopspring/decimal"
)

// TransactionView is the API shape of a ledger row.
type TransactionView struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	CreditsAmount int64           `json:"credits_amount"`
	Status        string          `json:"status"`
	TxHash        *string         `json:"tx_hash,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toView(tx pgdb.Transaction) TransactionView {
	v := TransactionView{
		ID:            tx.ID.String(),
		Type:          tx.Type,
		Amount:        tx.Amount,
		CreditsAmount: tx.CreditsAmount,
		Status:        tx.Status,
		Metadata:      tx.Metadata,
		CreatedAt:     tx.CreatedAt,
	}
	if tx.TxHash.Valid {
		v.TxHash = &tx.TxHash.String
	}
	return v
}
