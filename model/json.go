package model

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// hexBig marshals a *big.Int as a 0x-prefixed hex string, matching the
// published sink schema's U256 wire format.
type hexBig big.Int

func (h *hexBig) MarshalJSON() ([]byte, error) {
	if h == nil {
		return json.Marshal("0x0")
	}
	b := (*big.Int)(h)
	u, overflow := uint256.FromBig(b)
	if overflow {
		return nil, ErrMathError("value overflows uint256: %s", b.String())
	}
	return json.Marshal(u.Hex())
}

func (h *hexBig) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	u, err := uint256.FromHex(s)
	if err != nil {
		return ErrEvmParseError(err, "invalid hex u256 %q", s)
	}
	*h = hexBig(*u.ToBig())
	return nil
}

type logJSON struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    string         `json:"data"`
}

type hintJSON struct {
	TxHash      common.Hash `json:"txHash"`
	BlockNumber uint64      `json:"blockNumber"`
	Timestamp   uint64      `json:"timestamp"`
	Logs        []logJSON   `json:"logs"`
}

type tokenPairJSON struct {
	Weth  common.Address `json:"weth"`
	Token common.Address `json:"token"`
}

type userSwapJSON struct {
	PoolVariant    string          `json:"poolVariant"`
	TokenIn        common.Address  `json:"tokenIn"`
	TokenOut       common.Address  `json:"tokenOut"`
	Amount0Sent    *hexBig         `json:"amount0Sent"`
	Amount1Sent    *hexBig         `json:"amount1Sent"`
	Token0IsWeth   bool            `json:"token0IsWeth"`
	Pool           common.Address  `json:"pool"`
	Price          *hexBig         `json:"price"`
	Tokens         tokenPairJSON   `json:"tokens"`
	ArbPools       []poolRefJSON   `json:"arbPools"`
}

type poolRefJSON struct {
	Address common.Address `json:"address"`
	Variant string         `json:"variant"`
}

type backrunTradeJSON struct {
	AmountIn    *hexBig        `json:"amountIn"`
	BalanceEnd  *hexBig        `json:"balanceEnd"`
	Profit      *hexBig        `json:"profit"`
	StartPool   common.Address `json:"startPool"`
	EndPool     common.Address `json:"endPool"`
	StartVariant string        `json:"startVariant"`
	EndVariant   string        `json:"endVariant"`
}

type simArbResultJSON struct {
	UserTrade    userSwapJSON     `json:"userTrade"`
	BackrunTrade backrunTradeJSON `json:"backrunTrade"`
}

type simArbBatchJSON struct {
	Event     hintJSON           `json:"event"`
	MaxProfit *hexBig            `json:"maxProfit"`
	Results   []simArbResultJSON `json:"results"`
}

func poolRefsToJSON(pools []PoolRef) []poolRefJSON {
	out := make([]poolRefJSON, len(pools))
	for i, p := range pools {
		out[i] = poolRefJSON{Address: p.Address, Variant: p.Variant.String()}
	}
	return out
}

func userSwapToJSON(u UserSwap) userSwapJSON {
	return userSwapJSON{
		PoolVariant:  u.PoolVariant.String(),
		TokenIn:      u.TokenIn,
		TokenOut:     u.TokenOut,
		Amount0Sent:  (*hexBig)(u.Amount0Sent),
		Amount1Sent:  (*hexBig)(u.Amount1Sent),
		Token0IsWeth: u.Token0IsWeth,
		Pool:         u.Pool,
		Price:        (*hexBig)(u.PostTradePrice),
		Tokens:       tokenPairJSON(u.Tokens),
		ArbPools:     poolRefsToJSON(u.CandidateArbPools),
	}
}

func backrunToJSON(r BraindanceResult) backrunTradeJSON {
	return backrunTradeJSON{
		AmountIn:     (*hexBig)(r.AmountIn),
		BalanceEnd:   (*hexBig)(r.BalanceEnd),
		Profit:       (*hexBig)(r.Profit),
		StartPool:    r.StartPool,
		EndPool:      r.EndPool,
		StartVariant: r.StartVariant.String(),
		EndVariant:   r.EndVariant.String(),
	}
}

// MarshalJSON renders the published sink schema: camelCase fields, U256
// values as 0x-hex strings.
func (b SimArbBatch) MarshalJSON() ([]byte, error) {
	logs := make([]logJSON, len(b.Event.Logs))
	for i, l := range b.Event.Logs {
		logs[i] = logJSON{Address: l.Address, Topics: l.Topics, Data: common.Bytes2Hex(l.Data)}
	}
	results := make([]simArbResultJSON, len(b.Results))
	for i, r := range b.Results {
		results[i] = simArbResultJSON{
			UserTrade:    userSwapToJSON(r.UserTrade),
			BackrunTrade: backrunToJSON(r.BackrunTrade),
		}
	}
	return json.Marshal(simArbBatchJSON{
		Event: hintJSON{
			TxHash:      b.Event.TxHash,
			BlockNumber: b.Event.BlockNumber,
			Timestamp:   b.Event.Timestamp,
			Logs:        logs,
		},
		MaxProfit: (*hexBig)(b.MaxProfit),
		Results:   results,
	})
}
