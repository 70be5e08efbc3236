package domain

import (
	"math"
	"sync"
)

// Wallet is the rider's prepaid balance.
type Wallet struct {
	mu      sync.Mutex
	balance float64
}

// NewWallet returns a wallet holding balance.
func NewWallet(balance float64) (*Wallet, error) {
	if balance < 0 || math.IsNaN(balance) {
		return nil, Errorf(KindInvalidArguments, "initial wallet balance cannot be negative")
	}
	return &Wallet{balance: balance}, nil
}

func (w *Wallet) Balance() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance
}

// Deduct subtracts amount. The balance is untouched on failure.
func (w *Wallet) Deduct(amount float64) error {
	if amount <= 0 || math.IsNaN(amount) {
		return Errorf(KindInvalidArguments, "amount to deduct must be positive")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if amount > w.balance {
		return Errorf(KindInsufficientFunds, "wallet balance %.2f is below %.2f", w.balance, amount)
	}
	w.balance -= amount
	return nil
}
