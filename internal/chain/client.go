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
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Backend is the narrow slice of an EVM node client the adapter needs.
// *ethclient.Client satisfies it.
type Backend interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Wallet signs and broadcasts the registration call. Connection and key
// custody are outside this package.
type Wallet interface {
	SendRegistration(ctx context.Context, contract common.Address, fee *big.Int) (common.Hash, error)
}

type Client struct {
	backend       Backend
	wallet        Wallet
	contract      common.Address
	confirmations uint64
	pollInterval  time.Duration
	log           *logrus.Logger
}

func NewClient(
	backend Backend,
	wallet Wallet,
	contract common.Address,
	confirmations uint64,
	pollInterval time.Duration,
	log *logrus.Logger,
) *Client {
	return &Client{
		backend:       backend,
		wallet:        wallet,
		contract:      contract,
		confirmations: confirmations,
		pollInterval:  pollInterval,
		log:           log,
	}
}

func (c *Client) SubmitRegistration(ctx context.Context, identity common.Address, fee *big.Int) (PendingHandle, error) {
	hash, err := c.wallet.SendRegistration(ctx, c.contract, fee)
	if err != nil {
		return PendingHandle{}, errors.Wrap(ErrSubmissionRejected, err.Error())
	}
	c.log.WithField("tx_hash", hash.Hex()).
		WithField("identity", identity.Hex()).
		Debugf("registration submitted")
	return PendingHandle{TxHash: hash}, nil
}

func (c *Client) AwaitFinality(ctx context.Context, handle PendingHandle, timeout time.Duration) (*FinalizedTransaction, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(c.pollInterval)
	defer tick.Stop()

	for {
		final, err := c.checkFinality(ctx, handle)
		if err != nil {
			return nil, err
		}
		if final != nil {
			return final, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrTimedOut
		case <-tick.C:
		}
	}
}

// checkFinality returns (nil, nil) while the transaction is still pending
// or short of confirmations.
func (c *Client) checkFinality(ctx context.Context, handle PendingHandle) (*FinalizedTransaction, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, handle.TxHash)
	if err != nil {
		if errors.Cause(err) == ethereum.NotFound {
			return nil, nil
		}
		c.log.WithField("tx_hash", handle.TxHash.Hex()).
			Warnf("receipt lookup failed: %v", err)
		return nil, nil
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, ErrReverted
	}

	head, err := c.backend.BlockNumber(ctx)
	if err != nil {
		c.log.Warnf("head block lookup failed: %v", err)
		return nil, nil
	}
	included := receipt.BlockNumber.Uint64()
	if head < included+c.confirmations {
		return nil, nil
	}

	logs := make([]types.Log, 0, len(receipt.Logs))
	for _, l := range receipt.Logs {
		logs = append(logs, *l)
	}
	return &FinalizedTransaction{
		Hash:        handle.TxHash,
		BlockNumber: included,
		Logs:        logs,
	}, nil
}
