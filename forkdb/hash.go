package forkdb

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func emptyKeccakHash() common.Hash {
	return crypto.Keccak256Hash(nil)
}
