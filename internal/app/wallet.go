package app

import (
	"pmv/internal/config"
	"pmv/internal/domain"
)

// NewWallet builds the rider's wallet. It returns nil when the wallet is
// disabled; an enabled wallet may start empty.
func NewWallet(cfg config.RiderConfig) (*domain.Wallet, error) {
	if !cfg.WalletEnabled {
		return nil, nil
	}
	return domain.NewWallet(cfg.WalletBalance)
}
