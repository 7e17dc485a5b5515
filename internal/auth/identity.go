package auth

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/reseich/reseich-api/internal/logger"
)

// WalletHeader carries the connected wallet for routes whose body has no wallet field.
const WalletHeader = "X-Wallet-Address"

var ErrInvalidWallet = errors.New("invalid wallet address")

// Identity is the caller of a request: a wallet owner, or a demo visitor keyed by IP.
type Identity struct {
	Wallet string
	IP     string
}

// IsDemo reports whether the caller has no wallet and is tracked by IP.
func (i Identity) IsDemo() bool {
	return i.Wallet == ""
}

// Key returns the identifier used for access grants and ownership.
func (i Identity) Key() string {
	if i.IsDemo() {
		return i.IP
	}
	return i.Wallet
}

// NormalizeWallet validates an EVM address and returns it lower-cased.
func NormalizeWallet(wallet string) (string, error) {
	wallet = strings.TrimSpace(wallet)
	if !common.IsHexAddress(wallet) || !strings.HasPrefix(wallet, "0x") && !strings.HasPrefix(wallet, "0X") {
		return "", ErrInvalidWallet
	}
	return strings.ToLower(wallet), nil
}

// Resolve builds the caller identity. bodyWallet wins over the wallet header;
// demo forces IP identity even if a wallet is present.
func Resolve(c *gin.Context, bodyWallet string, demo bool) (Identity, error) {
	id := Identity{IP: c.ClientIP()}
	if demo {
		return id, nil
	}

	wallet := bodyWallet
	if wallet == "" {
		wallet = c.GetHeader(WalletHeader)
	}
	if wallet == "" {
		return id, nil
	}

	normalized, err := NormalizeWallet(wallet)
	if err != nil {
		return Identity{}, err
	}
	id.Wallet = normalized

	ctx := logger.WithWallet(c.Request.Context(), normalized)
	c.Request = c.Request.WithContext(ctx)

	return id, nil
}
