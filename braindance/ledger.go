package braindance

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger tracks the helper's non-WETH holdings across a V3 round-trip
// in memory only: V3's tick-crossing math is approximated Go-side (see
// CalculateSwapV3), so the non-WETH leg never touches a real token
// balance slot, and this is the only record of how much the helper
// notionally holds of it between legs.
type Ledger struct {
	balances map[common.Address]*big.Int
}

// NewLedger returns an empty ledger, one per round-trip evaluation.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[common.Address]*big.Int)}
}

func (l *Ledger) Balance(token common.Address) *big.Int {
	if b, ok := l.balances[token]; ok {
		return new(big.Int).Set(b)
	}
	return big.NewInt(0)
}

func (l *Ledger) Credit(token common.Address, amount *big.Int) {
	l.balances[token] = new(big.Int).Add(l.Balance(token), amount)
}

func (l *Ledger) Debit(token common.Address, amount *big.Int) {
	l.balances[token] = new(big.Int).Sub(l.Balance(token), amount)
}
