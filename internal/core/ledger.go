package core

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ledgerlabs/matchbook/internal/domain"
)

type accountKey struct {
	owner    string
	currency string
}

// BalanceLedger tracks per-user, per-currency available and reserved
// funds. Every mutation is atomic under the ledger mutex, so a reserve is
// a single check-and-deduct: available never goes negative.
type BalanceLedger struct {
	mu       sync.Mutex
	accounts map[accountKey]*domain.Balance
	fees     map[string]decimal.Decimal
}

func NewBalanceLedger() *BalanceLedger {
	return &BalanceLedger{
		accounts: make(map[accountKey]*domain.Balance),
		fees:     make(map[string]decimal.Decimal),
	}
}

// Deposit credits available funds.
func (l *BalanceLedger) Deposit(owner, currency string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: deposit %s", ErrInvalidAmount, amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.account(owner, currency)
	acc.Available = acc.Available.Add(amount)
	return nil
}

// Withdraw removes available funds, failing if they are insufficient.
func (l *BalanceLedger) Withdraw(owner, currency string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: withdraw %s", ErrInvalidAmount, amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.account(owner, currency)
	if acc.Available.LessThan(amount) {
		return fmt.Errorf("%w: %s %s available, %s requested", ErrInsufficientBalance,
			acc.Available, currency, amount)
	}
	acc.Available = acc.Available.Sub(amount)
	return nil
}

// Balance returns a copy of the account, zero-valued if never funded.
func (l *BalanceLedger) Balance(owner, currency string) domain.Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.account(owner, currency)
}

// Balances returns all non-empty accounts of one owner, sorted by currency.
func (l *BalanceLedger) Balances(owner string) []domain.Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	var res []domain.Balance
	for k, acc := range l.accounts {
		if k.owner == owner && (acc.Available.IsPositive() || acc.Reserved.IsPositive()) {
			res = append(res, *acc)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Currency < res[j].Currency })
	return res
}

// Reserve moves funds from available to reserved, failing without any
// state change when available funds do not cover the amount.
func (l *BalanceLedger) Reserve(owner, currency string, amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.account(owner, currency)
	if acc.Available.LessThan(amount) {
		return fmt.Errorf("%w: %s %s available, %s required", ErrInsufficientBalance,
			acc.Available, currency, amount)
	}
	acc.Available = acc.Available.Sub(amount)
	acc.Reserved = acc.Reserved.Add(amount)
	return nil
}

// Release moves reserved funds back to available (cancel, expiry, or the
// unspent part of a reservation after a fill at a better price).
func (l *BalanceLedger) Release(owner, currency string, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.account(owner, currency)
	acc.Reserved = acc.Reserved.Sub(amount)
	acc.Available = acc.Available.Add(amount)
}

// DebitReserved consumes reserved funds during settlement.
func (l *BalanceLedger) DebitReserved(owner, currency string, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.account(owner, currency)
	acc.Reserved = acc.Reserved.Sub(amount)
}

// Credit adds settlement proceeds to available funds.
func (l *BalanceLedger) Credit(owner, currency string, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.account(owner, currency)
	acc.Available = acc.Available.Add(amount)
}

// CollectFee accrues an extracted fee so that conservation remains
// checkable: user totals plus collected fees equal all deposits.
func (l *BalanceLedger) CollectFee(currency string, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fees[currency] = l.fees[currency].Add(amount)
}

// CollectedFees returns the total fees extracted in one currency.
func (l *BalanceLedger) CollectedFees(currency string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fees[currency]
}

// TotalSupply sums every user's available and reserved holding of a
// currency, excluding collected fees.
func (l *BalanceLedger) TotalSupply(currency string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := decimal.Zero
	for k, acc := range l.accounts {
		if k.currency == currency {
			total = total.Add(acc.Available).Add(acc.Reserved)
		}
	}
	return total
}

// restore overwrites one account from persisted state on startup.
func (l *BalanceLedger) restore(b *domain.Balance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.account(b.Owner, b.Currency)
	acc.Available = b.Available
	acc.Reserved = b.Reserved
}

func (l *BalanceLedger) account(owner, currency string) *domain.Balance {
	k := accountKey{owner: owner, currency: currency}
	acc, ok := l.accounts[k]
	if !ok {
		acc = &domain.Balance{Owner: owner, Currency: currency}
		l.accounts[k] = acc
	}
	return acc
}
