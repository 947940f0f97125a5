package chain

import (
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer produces signed transactions for a single account.
type Signer interface {
	Address() common.Address
	SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error)
}

// LocalSigner holds an in-process ECDSA key.
type LocalSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewLocalSigner parses a hex-encoded private key, with or without the
// 0x prefix.
func NewLocalSigner(privateKeyHex string) (*LocalSigner, error) {
	clean := strings.TrimSpace(privateKeyHex)
	clean = strings.TrimPrefix(clean, "0x")
	clean = strings.TrimPrefix(clean, "0X")

	pk, err := crypto.HexToECDSA(clean)
	if err != nil {
		return nil, err
	}

	return NewLocalSignerFromKey(pk), nil
}

// NewLocalSignerFromKey wraps an already-parsed private key.
func NewLocalSignerFromKey(pk *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{
		privateKey: pk,
		address:    crypto.PubkeyToAddress(pk.PublicKey),
	}
}

func (s *LocalSigner) Address() common.Address {
	return s.address
}

func (s *LocalSigner) SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	if s == nil || s.privateKey == nil {
		return nil, errors.New("local signer is not initialized")
	}

	signer := types.LatestSignerForChainID(chainID)
	return types.SignTx(tx, signer, s.privateKey)
}
