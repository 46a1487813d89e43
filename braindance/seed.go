// Package braindance implements the swap-primitive helper every arb
// branch evaluates against: a fixed address funded with a fixed starting
// WETH balance, offering one entry point per pool variant.
package braindance

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/flashbots-run/hindsight/forkdb"
	"github.com/flashbots-run/hindsight/model"
)

// wethBalanceSlot is the storage slot holding addr's WETH balance, per
// WETH9's mapping layout: keccak256(abi.encode(addr, 3)).
func wethBalanceSlot(addr common.Address) common.Hash {
	buf := make([]byte, 64)
	copy(buf[12:32], addr.Bytes())
	model.WethBalanceOfSlot.FillBytes(buf[32:64])
	return crypto.Keccak256Hash(buf)
}

// Seed prepares a fresh sandbox for a braindance round-trip: the helper
// address starts with B0 WETH (written directly into WETH's real storage
// layout, not via a transfer call), and the controller/developer
// addresses are funded with ETH and WETH so they never stall a call on an
// empty balance across an unbounded number of simulated calls.
func Seed(sandbox *forkdb.Sandbox) {
	sandbox.InsertAccountStorage(model.WETH, wethBalanceSlot(model.BraindanceAddress), common.BigToHash(model.StartingBalance()))

	fundingBalance := new(big.Int).Lsh(big.NewInt(1), 80) // arbitrarily large, never exhausted
	sandbox.SetBalance(model.BraindanceControllerAddress, fundingBalance)
	sandbox.SetBalance(model.BraindanceDeveloperAddress, fundingBalance)
	sandbox.InsertAccountStorage(model.WETH, wethBalanceSlot(model.BraindanceControllerAddress), common.BigToHash(fundingBalance))
	sandbox.InsertAccountStorage(model.WETH, wethBalanceSlot(model.BraindanceDeveloperAddress), common.BigToHash(fundingBalance))
	sandbox.SetBalance(model.BraindanceAddress, big.NewInt(0))
}
