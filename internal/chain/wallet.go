//
// Copyright 2025 PAYU Network
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// registerSelector is the 4-byte calldata of the contract's payable
// register() entry point.
var registerSelector = crypto.Keccak256([]byte("register()"))[:4]

// TxBackend is the slice of an EVM node client needed to build and
// broadcast a transaction. *ethclient.Client satisfies it.
type TxBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// KeyedWallet signs register() calls with a locally held private key.
type KeyedWallet struct {
	backend TxBackend
	key     *ecdsa.PrivateKey
	from    common.Address
}

func NewKeyedWallet(backend TxBackend, hexKey string) (*KeyedWallet, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse private key")
	}
	return &KeyedWallet{
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func (w *KeyedWallet) Address() common.Address {
	return w.from
}

func (w *KeyedWallet) SendRegistration(ctx context.Context, contract common.Address, fee *big.Int) (common.Hash, error) {
	nonce, err := w.backend.PendingNonceAt(ctx, w.from)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to fetch nonce")
	}
	gasPrice, err := w.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to fetch gas price")
	}
	gasLimit, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  w.from,
		To:    &contract,
		Value: fee,
		Data:  registerSelector,
	})
	if err != nil {
		// estimation fails when the fee is short or the wallet declines
		return common.Hash{}, errors.Wrap(err, "failed to estimate gas")
	}
	chainID, err := w.backend.ChainID(ctx)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to fetch chain id")
	}

	tx := types.NewTransaction(nonce, contract, fee, gasLimit, gasPrice, registerSelector)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), w.key)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to sign transaction")
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to broadcast transaction")
	}
	return signed.Hash(), nil
}
