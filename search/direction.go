package search

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/flashbots-run/hindsight/forkevm"
	"github.com/flashbots-run/hindsight/model"
)

// path is one fully-resolved (start, end) leg pair for a braindance
// round-trip: buy where the token is cheap in WETH, sell where it's
// expensive.
type path struct {
	startPool    common.Address
	startVariant model.PoolVariant
	endPool      common.Address
	endVariant   model.PoolVariant
	tokenWeth    common.Address
	tokenOther   common.Address
}

// selectDirection applies the direction table: given whether the user's
// pool has WETH as token0 and whether the user's post-trade price exceeds
// the live alternate-pool price, choose which pool to buy on.
func selectDirection(userSwap model.UserSwap, altPool model.PoolRef, pUser, pAlt *big.Int) path {
	userCheaper := pUser.Cmp(pAlt) > 0

	var start, end model.PoolRef
	userRef := model.PoolRef{Address: userSwap.Pool, Variant: userSwap.PoolVariant}

	switch {
	case userSwap.Token0IsWeth && userCheaper:
		start, end = userRef, altPool
	case userSwap.Token0IsWeth && !userCheaper:
		start, end = altPool, userRef
	case !userSwap.Token0IsWeth && userCheaper:
		start, end = altPool, userRef
	default: // !Token0IsWeth && !userCheaper
		start, end = userRef, altPool
	}

	return path{
		startPool:    start.Address,
		startVariant: start.Variant,
		endPool:      end.Address,
		endVariant:   end.Variant,
		tokenWeth:    userSwap.Tokens.Weth,
		tokenOther:   userSwap.Tokens.Token,
	}
}

// resolveDirection commits userTx against a fresh fork, reads the
// alternate pool's live price, and picks a direction.
func resolveDirection(evm *forkevm.EVM, userTx UserTx, userSwap model.UserSwap, altPool model.PoolRef) (path, error) {
	if _, err := evm.CommitTransaction(userTx.From, userTx.To, userTx.Data, userTx.Gas, userTx.GasPrice, userTx.Value); err != nil {
		return path{}, err
	}

	pAlt, err := livePrice(evm, altPool.Address, altPool.Variant)
	if err != nil {
		return path{}, err
	}

	pUser := userSwap.PostTradePrice
	if pUser == nil {
		pUser = big.NewInt(0)
	}

	return selectDirection(userSwap, altPool, pUser, pAlt), nil
}
