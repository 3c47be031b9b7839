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

// Package chain wraps the paid registration call and finality polling
// against an EVM ledger.
package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

var (
	// ErrSubmissionRejected covers user decline, insufficient funds and
	// wallet unavailability. No funds moved, a fresh submit is allowed.
	ErrSubmissionRejected = errors.New("registration submission rejected")
	// ErrReverted means the ledger included the transaction but its
	// contract call failed.
	ErrReverted = errors.New("registration transaction reverted")
	// ErrTimedOut means the polling window elapsed. The handle stays
	// valid; re-polling with it never re-submits.
	ErrTimedOut = errors.New("await finality timed out")
	// ErrEventNotFound is retryable: finality does not guarantee log
	// availability immediately on every node.
	ErrEventNotFound  = errors.New("registered event not found in transaction logs")
	ErrMalformedEvent = errors.New("registered event has malformed payload")
)

// PendingHandle references an in-flight registration transaction. Funds
// already moved when the handle exists, so it must be kept until finality
// or abandonment.
type PendingHandle struct {
	TxHash common.Hash
}

// FinalizedTransaction is an included transaction with enough
// confirmations to be considered irreversible.
type FinalizedTransaction struct {
	Hash        common.Hash
	BlockNumber uint64
	Logs        []types.Log
}

// RegistrationEvent is the decoded Registered event:
// (account, index, seed, reward, timestamp).
type RegistrationEvent struct {
	Account   common.Address
	Index     uint64
	Seed      [32]byte
	Reward    *big.Int
	Timestamp int64
}

// Ledger is the orchestrator-facing contract of the submission adapter.
type Ledger interface {
	// SubmitRegistration sends the paid registration call for identity.
	// Fails with ErrSubmissionRejected synchronously; otherwise the fee
	// has moved into the ledger's custody.
	SubmitRegistration(ctx context.Context, identity common.Address, fee *big.Int) (PendingHandle, error)

	// AwaitFinality blocks until the handle's transaction is final or
	// timeout elapses (ErrTimedOut). Safe to call again with the same
	// handle after a timeout. A reverted transaction is reported as
	// ErrReverted, never as a finalized result.
	AwaitFinality(ctx context.Context, handle PendingHandle, timeout time.Duration) (*FinalizedTransaction, error)
}
