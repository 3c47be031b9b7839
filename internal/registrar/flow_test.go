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

package registrar

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/payu-network/draw/configuration"
	"github.com/payu-network/draw/internal/backend"
	"github.com/payu-network/draw/internal/chain"
	"github.com/payu-network/draw/internal/ticket"
	"github.com/payu-network/draw/observability"
)

var (
	testIdentity = common.HexToAddress("0x00000000000000000000000000000000000Eabc0")
	testTxHash   = common.HexToHash("0xf00d")
)

func testSeed() [32]byte {
	var seed [32]byte
	for i := 0; i < len(seed); i += 4 {
		copy(seed[i:], []byte{0xde, 0xad, 0xbe, 0xef})
	}
	return seed
}

func registeredTx(account common.Address, index uint64, seed [32]byte, reward *big.Int, timestamp int64) *chain.FinalizedTransaction {
	topic := crypto.Keccak256Hash([]byte("Registered(address,uint256,bytes32,uint256,uint256)"))
	data := make([]byte, 0, 128)
	data = append(data, common.BigToHash(new(big.Int).SetUint64(index)).Bytes()...)
	data = append(data, seed[:]...)
	data = append(data, common.BigToHash(reward).Bytes()...)
	data = append(data, common.BigToHash(big.NewInt(timestamp)).Bytes()...)
	return &chain.FinalizedTransaction{
		Hash:        testTxHash,
		BlockNumber: 100,
		Logs: []types.Log{{
			Topics: []common.Hash{topic, common.BytesToHash(account.Bytes())},
			Data:   data,
		}},
	}
}

type awaitResult struct {
	final *chain.FinalizedTransaction
	err   error
}

type ledgerMock struct {
	submitErr  error
	submits    int
	awaits     []awaitResult
	awaitIdx   int
	awaitCalls int
}

func (m *ledgerMock) SubmitRegistration(_ context.Context, _ common.Address, _ *big.Int) (chain.PendingHandle, error) {
	m.submits++
	if m.submitErr != nil {
		return chain.PendingHandle{}, m.submitErr
	}
	return chain.PendingHandle{TxHash: testTxHash}, nil
}

func (m *ledgerMock) AwaitFinality(_ context.Context, _ chain.PendingHandle, _ time.Duration) (*chain.FinalizedTransaction, error) {
	m.awaitCalls++
	res := m.awaits[m.awaitIdx]
	if m.awaitIdx < len(m.awaits)-1 {
		m.awaitIdx++
	}
	return res.final, res.err
}

type backendClientMock struct {
	stored   *backend.Registration
	getErr   error
	saveErrs []error
	saves    int
	gets     int
}

func (m *backendClientMock) GetRegistration(_ context.Context, _ string) (*backend.Registration, error) {
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.stored, nil
}

func (m *backendClientMock) SaveTicket(_ context.Context, reg backend.Registration) (*backend.Registration, error) {
	m.saves++
	if len(m.saveErrs) > 0 {
		err := m.saveErrs[0]
		m.saveErrs = m.saveErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	// idempotent upsert: the first stored record stays canonical
	if m.stored == nil {
		cp := reg
		m.stored = &cp
	}
	return m.stored, nil
}

type progressMock struct {
	created []common.Address
}

func (m *progressMock) Create(identity common.Address) {
	m.created = append(m.created, identity)
}

func testConfig() *configuration.Registrar {
	cfg := configuration.Registrar{}.Default()
	cfg.Chain.FinalityTimeout = 10 * time.Millisecond
	cfg.Chain.TimeoutCycles = 2
	cfg.Chain.ExtractionAttempts = 3
	cfg.Chain.ExtractionInterval = time.Millisecond
	cfg.Backend.Attempts = 5
	cfg.Backend.AttemptInterval = time.Millisecond
	return cfg
}

func newOrchestrator(t *testing.T, ledger chain.Ledger, client BackendClient, progress ProgressCreator) (*Orchestrator, *Store) {
	store, err := NewStore(16)
	require.NoError(t, err)
	obs := observability.Make(logrus.New())
	o, err := New(ledger, store, client, progress, testConfig(), obs)
	require.NoError(t, err)
	return o, store
}

func TestOrchestrator_HappyPath(t *testing.T) {
	seed := testSeed()
	ledger := &ledgerMock{
		awaits: []awaitResult{{final: registeredTx(testIdentity, 42, seed, big.NewInt(250000000), 1700000000)}},
	}
	client := &backendClientMock{}
	progress := &progressMock{}
	o, store := newOrchestrator(t, ledger, client, progress)
	ctx := context.Background()

	rec, err := o.Reconcile(ctx, testIdentity)
	require.NoError(t, err)
	require.Equal(t, StatusUnregistered, rec.Status)

	rec, err = o.Submit(ctx, testIdentity)
	require.NoError(t, err)
	require.Equal(t, StatusPersisted, rec.Status)
	require.Equal(t, uint64(42), rec.Event.Index)
	require.Equal(t, int64(1700000000), rec.Event.Timestamp)

	expected, err := ticket.Derive(seed[:], 42)
	require.NoError(t, err)
	require.Equal(t, expected, rec.Ticket)

	require.Equal(t, 1, ledger.submits)
	require.Equal(t, 1, client.saves)
	require.Equal(t, expected, client.stored.Ticket)
	require.Equal(t, int64(42), client.stored.Index)
	require.Equal(t, "250000000", client.stored.Reward)
	require.Equal(t, []common.Address{testIdentity}, progress.created)

	stored, seen := store.Get(testIdentity)
	require.True(t, seen)
	require.Equal(t, StatusPersisted, stored.Status)
}

func TestOrchestrator_ReconcileBlocksResubmission(t *testing.T) {
	seed := testSeed()
	expected, err := ticket.Derive(seed[:], 7)
	require.NoError(t, err)

	ledger := &ledgerMock{}
	client := &backendClientMock{
		stored: &backend.Registration{
			Wallet:    "0x00000000000000000000000000000000000eabc0",
			TxHash:    testTxHash.Hex(),
			Index:     7,
			Seed:      "0x" + common.Bytes2Hex(seed[:]),
			Ticket:    expected,
			Reward:    "250000000",
			Timestamp: 1700000000,
		},
	}
	o, _ := newOrchestrator(t, ledger, client, &progressMock{})
	ctx := context.Background()

	rec, err := o.Reconcile(ctx, testIdentity)
	require.NoError(t, err)
	require.Equal(t, StatusPersisted, rec.Status)
	require.Equal(t, expected, rec.Ticket)
	require.Equal(t, uint64(7), rec.Event.Index)

	_, err = o.Submit(ctx, testIdentity)
	require.Equal(t, ErrAlreadyRegistered, err)
	// the ledger was never contacted
	require.Equal(t, 0, ledger.submits)
}

func TestOrchestrator_ReconcileOverridesFailedRecord(t *testing.T) {
	seed := testSeed()
	expected, err := ticket.Derive(seed[:], 9)
	require.NoError(t, err)

	ledger := &ledgerMock{submitErr: chain.ErrSubmissionRejected}
	client := &backendClientMock{}
	progress := &progressMock{}
	o, store := newOrchestrator(t, ledger, client, progress)
	ctx := context.Background()

	_, err = o.Reconcile(ctx, testIdentity)
	require.NoError(t, err)
	rec, err := o.Submit(ctx, testIdentity)
	require.Equal(t, chain.ErrSubmissionRejected, errors.Cause(err))
	require.Equal(t, StatusFailed, rec.Status)

	// another client finished the registration in the meantime, its
	// backend record wins over the local failure
	client.stored = &backend.Registration{
		Wallet:    "0x00000000000000000000000000000000000eabc0",
		TxHash:    testTxHash.Hex(),
		Index:     9,
		Seed:      "0x" + common.Bytes2Hex(seed[:]),
		Ticket:    expected,
		Reward:    "250000000",
		Timestamp: 1700000000,
	}
	rec, err = o.Reconcile(ctx, testIdentity)
	require.NoError(t, err)
	require.Equal(t, StatusPersisted, rec.Status)
	require.Equal(t, expected, rec.Ticket)
	require.Equal(t, uint64(9), rec.Event.Index)

	stored, seen := store.Get(testIdentity)
	require.True(t, seen)
	require.Equal(t, StatusPersisted, stored.Status)

	_, err = o.Submit(ctx, testIdentity)
	require.Equal(t, ErrAlreadyRegistered, err)
	require.Equal(t, 1, ledger.submits)
}

func TestOrchestrator_SubmitRequiresReconciliation(t *testing.T) {
	ledger := &ledgerMock{}
	o, _ := newOrchestrator(t, ledger, &backendClientMock{}, nil)

	_, err := o.Submit(context.Background(), testIdentity)
	require.Equal(t, ErrNotReconciled, err)
	require.Equal(t, 0, ledger.submits)
}

func TestOrchestrator_PersistRetries(t *testing.T) {
	seed := testSeed()
	ledger := &ledgerMock{
		awaits: []awaitResult{{final: registeredTx(testIdentity, 42, seed, big.NewInt(1), 1700000000)}},
	}
	client := &backendClientMock{
		saveErrs: []error{backend.ErrUnavailable, backend.ErrUnavailable, nil},
	}
	o, _ := newOrchestrator(t, ledger, client, nil)
	ctx := context.Background()

	_, err := o.Reconcile(ctx, testIdentity)
	require.NoError(t, err)
	rec, err := o.Submit(ctx, testIdentity)
	require.NoError(t, err)

	require.Equal(t, StatusPersisted, rec.Status)
	require.Equal(t, 3, client.saves)
	// no duplicate submission happened on the ledger
	require.Equal(t, 1, ledger.submits)
}

func TestOrchestrator_PersistExhaustionKeepsConfirmed(t *testing.T) {
	seed := testSeed()
	ledger := &ledgerMock{
		awaits: []awaitResult{{final: registeredTx(testIdentity, 42, seed, big.NewInt(1), 1700000000)}},
	}
	client := &backendClientMock{
		saveErrs: []error{
			backend.ErrUnavailable, backend.ErrUnavailable, backend.ErrUnavailable,
			backend.ErrUnavailable, backend.ErrUnavailable,
		},
	}
	o, store := newOrchestrator(t, ledger, client, nil)
	ctx := context.Background()

	_, err := o.Reconcile(ctx, testIdentity)
	require.NoError(t, err)
	_, err = o.Submit(ctx, testIdentity)
	require.Equal(t, backend.ErrUnavailable, errors.Cause(err))

	// the derived ticket survives so a retry does not re-register
	rec, seen := store.Get(testIdentity)
	require.True(t, seen)
	require.Equal(t, StatusConfirmed, rec.Status)
	require.NotEmpty(t, rec.Ticket)
}

func TestOrchestrator_SubmissionRejected(t *testing.T) {
	ledger := &ledgerMock{submitErr: chain.ErrSubmissionRejected}
	o, store := newOrchestrator(t, ledger, &backendClientMock{}, nil)
	ctx := context.Background()

	_, err := o.Reconcile(ctx, testIdentity)
	require.NoError(t, err)
	rec, err := o.Submit(ctx, testIdentity)
	require.Equal(t, chain.ErrSubmissionRejected, errors.Cause(err))
	require.Equal(t, StatusFailed, rec.Status)
	require.Equal(t, ReasonUserDeclinedOrInsufficientFunds, rec.Reason)

	// the failure is terminal for the attempt, not for the identity
	ledger.submitErr = nil
	ledger.awaits = []awaitResult{{final: registeredTx(testIdentity, 42, testSeed(), big.NewInt(1), 1)}}
	rec, err = o.Submit(ctx, testIdentity)
	require.NoError(t, err)
	require.Equal(t, StatusPersisted, rec.Status)

	_, seen := store.Get(testIdentity)
	require.True(t, seen)
}

func TestOrchestrator_Reverted(t *testing.T) {
	ledger := &ledgerMock{awaits: []awaitResult{{err: chain.ErrReverted}}}
	o, _ := newOrchestrator(t, ledger, &backendClientMock{}, nil)
	ctx := context.Background()

	_, err := o.Reconcile(ctx, testIdentity)
	require.NoError(t, err)
	rec, err := o.Submit(ctx, testIdentity)
	require.Equal(t, chain.ErrReverted, errors.Cause(err))
	require.Equal(t, StatusFailed, rec.Status)
	require.Equal(t, ReasonTransactionReverted, rec.Reason)
}

func TestOrchestrator_FinalityTimeoutRepolls(t *testing.T) {
	ledger := &ledgerMock{awaits: []awaitResult{{err: chain.ErrTimedOut}}}
	o, _ := newOrchestrator(t, ledger, &backendClientMock{}, nil)
	ctx := context.Background()

	_, err := o.Reconcile(ctx, testIdentity)
	require.NoError(t, err)
	rec, err := o.Submit(ctx, testIdentity)
	require.Equal(t, chain.ErrTimedOut, errors.Cause(err))
	require.Equal(t, StatusFailed, rec.Status)
	require.Equal(t, ReasonFinalityTimeout, rec.Reason)
	// both configured windows were polled with the same handle, and the
	// transaction was never re-submitted
	require.Equal(t, 2, ledger.awaitCalls)
	require.Equal(t, 1, ledger.submits)
}

func TestOrchestrator_ResumeAfterFinalityTimeout(t *testing.T) {
	seed := testSeed()
	ledger := &ledgerMock{
		awaits: []awaitResult{
			{err: chain.ErrTimedOut},
			{err: chain.ErrTimedOut},
			// the transaction finalized while the client was away
			{final: registeredTx(testIdentity, 42, seed, big.NewInt(1), 1700000000)},
		},
	}
	o, store := newOrchestrator(t, ledger, &backendClientMock{}, nil)
	ctx := context.Background()

	_, err := o.Reconcile(ctx, testIdentity)
	require.NoError(t, err)
	rec, err := o.Submit(ctx, testIdentity)
	require.Equal(t, chain.ErrTimedOut, errors.Cause(err))
	require.Equal(t, ReasonFinalityTimeout, rec.Reason)
	require.Equal(t, testTxHash, rec.TxHash)

	// the retry re-polls the preserved handle instead of paying again
	rec, err = o.Submit(ctx, testIdentity)
	require.NoError(t, err)
	require.Equal(t, StatusPersisted, rec.Status)
	require.Equal(t, testTxHash, rec.TxHash)
	require.Equal(t, 1, ledger.submits)

	stored, seen := store.Get(testIdentity)
	require.True(t, seen)
	require.Equal(t, StatusPersisted, stored.Status)
}

func TestOrchestrator_EventEmissionLag(t *testing.T) {
	seed := testSeed()
	empty := &chain.FinalizedTransaction{Hash: testTxHash, BlockNumber: 100}
	ledger := &ledgerMock{
		awaits: []awaitResult{
			{final: empty},
			// refresh during extraction retry carries the event
			{final: registeredTx(testIdentity, 42, seed, big.NewInt(1), 1700000000)},
		},
	}
	o, _ := newOrchestrator(t, ledger, &backendClientMock{}, nil)
	ctx := context.Background()

	_, err := o.Reconcile(ctx, testIdentity)
	require.NoError(t, err)
	rec, err := o.Submit(ctx, testIdentity)
	require.NoError(t, err)
	require.Equal(t, StatusPersisted, rec.Status)
}

func TestOrchestrator_SecondSubmitWhileInFlight(t *testing.T) {
	seed := testSeed()
	release := make(chan struct{})
	started := make(chan struct{})
	ledger := &blockingLedger{
		inner: &ledgerMock{
			awaits: []awaitResult{{final: registeredTx(testIdentity, 42, seed, big.NewInt(1), 1)}},
		},
		started: started,
		release: release,
	}
	o, _ := newOrchestrator(t, ledger, &backendClientMock{}, nil)
	ctx := context.Background()

	_, err := o.Reconcile(ctx, testIdentity)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(ctx, testIdentity)
		done <- err
	}()

	<-started
	_, err = o.Submit(ctx, testIdentity)
	require.Equal(t, ErrFlowInProgress, err)

	close(release)
	require.NoError(t, <-done)
}

type blockingLedger struct {
	inner   *ledgerMock
	started chan struct{}
	release chan struct{}
	once    bool
}

func (m *blockingLedger) SubmitRegistration(ctx context.Context, identity common.Address, fee *big.Int) (chain.PendingHandle, error) {
	if !m.once {
		m.once = true
		close(m.started)
		<-m.release
	}
	return m.inner.SubmitRegistration(ctx, identity, fee)
}

func (m *blockingLedger) AwaitFinality(ctx context.Context, handle chain.PendingHandle, timeout time.Duration) (*chain.FinalizedTransaction, error) {
	return m.inner.AwaitFinality(ctx, handle, timeout)
}
