package domain

import (
	"math"
	"time"
)

// PaymentMethod is one of WalletMethod or ExternalMethod.
type PaymentMethod interface {
	// Code is the single letter code the rider selects.
	Code() byte
	Name() string
	paymentMethod()
}

// WalletMethod pays from the rider's local wallet.
type WalletMethod struct{}

func (WalletMethod) Code() byte { return 'W' }

func (WalletMethod) Name() string { return "WALLET" }

func (WalletMethod) paymentMethod() {}

// ExternalMethod is registered with the server: credit card, PayPal or bank transfer.
type ExternalMethod struct {
	code byte
}

func (m ExternalMethod) Code() byte { return m.code }

func (m ExternalMethod) Name() string {
	switch m.code {
	case 'C':
		return "CREDIT_CARD"
	case 'P':
		return "PAYPAL"
	default:
		return "BANK_TRANSFER"
	}
}

func (ExternalMethod) paymentMethod() {}

// ParsePaymentMethod maps a rider's selection to a method.
func ParsePaymentMethod(code byte) (PaymentMethod, error) {
	switch code {
	case 'W':
		return WalletMethod{}, nil
	case 'C', 'P', 'T':
		return ExternalMethod{code: code}, nil
	default:
		return nil, Errorf(KindProcedural, "invalid payment method %q", code)
	}
}

// WalletPayment charges a journey's fare to a wallet.
type WalletPayment struct {
	journey *Journey
	user    UserAccount
	amount  float64
	wallet  *Wallet
}

// NewWalletPayment validates every reference and the amount up front.
func NewWalletPayment(journey *Journey, user UserAccount, amount float64, wallet *Wallet) (*WalletPayment, error) {
	if journey == nil {
		return nil, Errorf(KindInvalidArguments, "payment journey is required")
	}
	if user.IsZero() {
		return nil, Errorf(KindInvalidArguments, "payment user is required")
	}
	if amount <= 0 || math.IsNaN(amount) {
		return nil, Errorf(KindInvalidArguments, "payment amount must be positive")
	}
	if wallet == nil {
		return nil, Errorf(KindProcedural, "no wallet is configured")
	}
	return &WalletPayment{journey: journey, user: user, amount: amount, wallet: wallet}, nil
}

func (p *WalletPayment) Journey() *Journey { return p.journey }

func (p *WalletPayment) User() UserAccount { return p.user }

func (p *WalletPayment) Amount() float64 { return p.amount }

// Process deducts the amount from the wallet.
func (p *WalletPayment) Process() error {
	return p.wallet.Deduct(p.amount)
}

// PaymentStatus represents the current status of a registered payment.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// PaymentRecord is a payment registered with the backend.
type PaymentRecord struct {
	ID             string
	ServiceID      string
	Username       string
	Amount         float64
	Method         string
	Status         PaymentStatus
	IdempotencyKey string
	CreatedAt      time.Time
}
