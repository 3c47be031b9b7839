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

// Package registrar drives the registration-to-ticket flow: submit, await
// finality, extract the Registered event, derive the ticket, persist it
// and reconcile against the backend on start.
package registrar

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/payu-network/draw/configuration"
	"github.com/payu-network/draw/internal/backend"
	"github.com/payu-network/draw/internal/chain"
	"github.com/payu-network/draw/internal/pkg/cycle"
	"github.com/payu-network/draw/internal/ticket"
	"github.com/payu-network/draw/observability"
)

var (
	// ErrFlowInProgress rejects a second submit while one cycle is in
	// flight for the same identity. The caller must not queue it.
	ErrFlowInProgress = errors.New("registration flow already in progress")
	// ErrAlreadyRegistered rejects a submit for an identity that already
	// holds a registration. The ledger is not contacted.
	ErrAlreadyRegistered = errors.New("identity is already registered")
	// ErrNotReconciled rejects a submit before reconciliation has run.
	ErrNotReconciled = errors.New("reconciliation has not run for this identity")
)

// BackendClient is the slice of the backend API the orchestrator needs.
type BackendClient interface {
	GetRegistration(ctx context.Context, wallet string) (*backend.Registration, error)
	SaveTicket(ctx context.Context, reg backend.Registration) (*backend.Registration, error)
}

// ProgressCreator opens empty task progress once a registration persists.
type ProgressCreator interface {
	Create(identity common.Address)
}

type Orchestrator struct {
	ledger     chain.Ledger
	store      *Store
	backend    BackendClient
	progress   ProgressCreator
	chainCfg   configuration.Chain
	backendCfg configuration.Backend
	fee        *big.Int
	log        *logrus.Logger
	metrics    *observability.FlowMetrics

	mu       sync.Mutex
	inflight map[common.Address]struct{}
}

func New(
	ledger chain.Ledger,
	store *Store,
	backendClient BackendClient,
	progress ProgressCreator,
	cfg *configuration.Registrar,
	obs *observability.Observability,
) (*Orchestrator, error) {
	fee, ok := new(big.Int).SetString(cfg.Chain.Fee, 10)
	if !ok {
		return nil, errors.Errorf("failed to parse registration fee %q", cfg.Chain.Fee)
	}
	return &Orchestrator{
		ledger:     ledger,
		store:      store,
		backend:    backendClient,
		progress:   progress,
		chainCfg:   cfg.Chain,
		backendCfg: cfg.Backend,
		fee:        fee,
		log:        obs.Log(),
		metrics:    observability.MakeFlowMetrics(obs),
	}, nil
}

// Reconcile loads the backend record for identity, if any, without
// touching the ledger. It must run before Submit is allowed; an existing
// record wins over any fresh submission.
func (o *Orchestrator) Reconcile(ctx context.Context, identity common.Address) (Record, error) {
	rec, _ := o.store.Get(identity)

	stored, err := o.backend.GetRegistration(ctx, walletKey(identity))
	if err != nil {
		return rec, errors.Wrap(err, "failed to load registration from backend")
	}
	if stored == nil {
		// mark the identity as reconciled-empty so Submit becomes legal
		if err := o.store.Put(rec); err != nil {
			return rec, err
		}
		return rec, nil
	}

	rec, err = recordFromBackend(identity, stored)
	if err != nil {
		return rec, err
	}
	// replace whatever the local lifecycle holds, including a Failed
	// attempt another client outran
	o.store.Replace(rec)
	if o.progress != nil {
		o.progress.Create(identity)
	}
	o.log.WithField("identity", walletKey(identity)).
		Infof("registration reconciled from backend, ticket %s", rec.Ticket)
	return rec, nil
}

// Submit starts the submit-to-persist cycle for identity. At most one
// cycle per identity is in flight at any time.
func (o *Orchestrator) Submit(ctx context.Context, identity common.Address) (Record, error) {
	o.mu.Lock()
	if _, busy := o.inflight[identity]; busy {
		rec, _ := o.store.Get(identity)
		o.mu.Unlock()
		return rec, ErrFlowInProgress
	}
	rec, seen := o.store.Get(identity)
	if !seen {
		o.mu.Unlock()
		return rec, ErrNotReconciled
	}
	if rec.Status != StatusUnregistered && rec.Status != StatusFailed {
		o.mu.Unlock()
		return rec, ErrAlreadyRegistered
	}
	if o.inflight == nil {
		o.inflight = make(map[common.Address]struct{})
	}
	o.inflight[identity] = struct{}{}
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.inflight, identity)
		o.mu.Unlock()
	}()

	return o.run(ctx, identity)
}

func (o *Orchestrator) run(ctx context.Context, identity common.Address) (Record, error) {
	if prev, seen := o.store.Get(identity); seen && resumable(prev) {
		rec := Record{Address: identity, Status: StatusAwaitingFinality, TxHash: prev.TxHash}
		if err := o.store.Put(rec); err != nil {
			return rec, err
		}
		o.log.WithField("tx_hash", rec.TxHash.Hex()).
			Info("resuming finality polling for a timed-out registration")
		return o.settle(ctx, rec, chain.PendingHandle{TxHash: rec.TxHash})
	}

	rec := Record{Address: identity, Status: StatusSubmitted}
	if err := o.store.Put(rec); err != nil {
		return rec, err
	}
	o.metrics.Submitted.Inc()

	handle, err := o.ledger.SubmitRegistration(ctx, identity, o.fee)
	if err != nil {
		return o.fail(rec, ReasonUserDeclinedOrInsufficientFunds, err)
	}
	rec.TxHash = handle.TxHash
	rec.Status = StatusAwaitingFinality
	if err := o.store.Put(rec); err != nil {
		return rec, err
	}
	return o.settle(ctx, rec, handle)
}

// resumable reports whether the previous attempt left a live transaction
// on the ledger that only needs more polling. Submitting again in that
// state would charge the fee twice.
func resumable(prev Record) bool {
	return prev.Status == StatusFailed &&
		prev.Reason == ReasonFinalityTimeout &&
		prev.TxHash != (common.Hash{})
}

func (o *Orchestrator) settle(ctx context.Context, rec Record, handle chain.PendingHandle) (Record, error) {
	final, err := o.awaitFinality(ctx, handle)
	if err != nil {
		cause := errors.Cause(err)
		switch cause {
		case chain.ErrReverted:
			return o.fail(rec, ReasonTransactionReverted, err)
		case chain.ErrTimedOut:
			// the transaction cannot be retracted; the handle stays in
			// the record so the flow is resumable
			return o.fail(rec, ReasonFinalityTimeout, err)
		default:
			return rec, err
		}
	}

	event, err := o.extractEvent(ctx, handle, final)
	if err != nil {
		if ctx.Err() != nil {
			return rec, ctx.Err()
		}
		if errors.Cause(err) == chain.ErrEventNotFound {
			return o.fail(rec, ReasonEventUnavailable, err)
		}
		return o.fail(rec, ReasonInternal, err)
	}

	code, err := ticket.Derive(event.Seed[:], event.Index)
	if err != nil {
		// InvalidSeed here means upstream corruption, not a retry case
		return o.fail(rec, ReasonInternal, err)
	}

	rec.Status = StatusConfirmed
	rec.Event = event
	rec.Ticket = code
	if err := o.store.Put(rec); err != nil {
		return rec, err
	}
	o.metrics.Confirmed.Inc()

	canonical, err := o.persist(ctx, rec)
	if err != nil {
		// Confirmed state and the derived ticket are preserved, so a
		// retry does not require re-registering
		return rec, errors.Wrap(err, "failed to persist registration")
	}

	applyCanonical(&rec, canonical, o.log)
	rec.Status = StatusPersisted
	if err := o.store.Put(rec); err != nil {
		return rec, err
	}
	o.metrics.Persisted.Inc()
	if o.progress != nil {
		o.progress.Create(rec.Address)
	}
	o.log.WithField("identity", walletKey(rec.Address)).
		Infof("registration persisted, ticket %s", rec.Ticket)
	return rec, nil
}

// awaitFinality re-polls the same handle across the configured number of
// timeout windows. Re-submission would double-charge the fee.
func (o *Orchestrator) awaitFinality(ctx context.Context, handle chain.PendingHandle) (*chain.FinalizedTransaction, error) {
	var lastErr error
	for i := cycle.Limit(1); i <= o.chainCfg.TimeoutCycles; i++ {
		final, err := o.ledger.AwaitFinality(ctx, handle, o.chainCfg.FinalityTimeout)
		if err == nil {
			return final, nil
		}
		lastErr = err
		if errors.Cause(err) != chain.ErrTimedOut {
			return nil, err
		}
		o.log.WithField("tx_hash", handle.TxHash.Hex()).
			Warnf("finality window %d/%d elapsed, re-polling", i, o.chainCfg.TimeoutCycles)
	}
	return nil, lastErr
}

// extractEvent retries extraction with backoff while the event is missing,
// refreshing the transaction's logs from the node between tries.
func (o *Orchestrator) extractEvent(ctx context.Context, handle chain.PendingHandle, final *chain.FinalizedTransaction) (*chain.RegistrationEvent, error) {
	var (
		event *chain.RegistrationEvent
		fatal error
	)
	err := cycle.UntilErrorBackoff(ctx, func() error {
		ev, extractErr := chain.ExtractRegistrationEvent(final)
		if extractErr == nil {
			event = ev
			return nil
		}
		if errors.Cause(extractErr) != chain.ErrEventNotFound {
			fatal = extractErr
			return nil
		}
		refreshed, refreshErr := o.ledger.AwaitFinality(ctx, handle, o.chainCfg.FinalityTimeout)
		if refreshErr == nil {
			final = refreshed
		}
		return extractErr
	}, o.chainCfg.ExtractionInterval, o.chainCfg.ExtractionAttempts)
	if fatal != nil {
		return nil, fatal
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (o *Orchestrator) persist(ctx context.Context, rec Record) (*backend.Registration, error) {
	payload := backend.Registration{
		Wallet:    walletKey(rec.Address),
		TxHash:    rec.TxHash.Hex(),
		Index:     int64(rec.Event.Index),
		Seed:      hexutil.Encode(rec.Event.Seed[:]),
		Ticket:    rec.Ticket,
		Reward:    rec.Event.Reward.String(),
		Timestamp: rec.Event.Timestamp,
	}
	var canonical *backend.Registration
	err := cycle.UntilErrorBackoff(ctx, func() error {
		stored, saveErr := o.backend.SaveTicket(ctx, payload)
		if saveErr != nil {
			o.log.Warnf("save-ticket attempt failed: %v", saveErr)
			return saveErr
		}
		canonical = stored
		return nil
	}, o.backendCfg.AttemptInterval, o.backendCfg.Attempts)
	if err != nil {
		return nil, err
	}
	return canonical, nil
}

func (o *Orchestrator) fail(rec Record, reason FailureReason, cause error) (Record, error) {
	rec.Status = StatusFailed
	rec.Reason = reason
	rec.Ticket = ""
	rec.Event = nil
	if err := o.store.Put(rec); err != nil {
		o.log.Error(err)
	}
	o.metrics.Failed.Inc()
	return rec, cause
}

// applyCanonical overwrites locally derived fields with the stored backend
// values. The backend, not the client's recomputation, is the source of
// truth; this resolves double-submission races.
func applyCanonical(rec *Record, canonical *backend.Registration, log *logrus.Logger) {
	if canonical == nil {
		return
	}
	if canonical.Ticket != "" && canonical.Ticket != rec.Ticket {
		log.WithField("identity", canonical.Wallet).
			Warnf("backend ticket %s overrides local %s", canonical.Ticket, rec.Ticket)
		rec.Ticket = canonical.Ticket
	}
	if rec.Event == nil {
		return
	}
	if canonical.Index >= 0 {
		rec.Event.Index = uint64(canonical.Index)
	}
	if seed, err := hexutil.Decode(canonical.Seed); err == nil && len(seed) == ticket.SeedLength {
		copy(rec.Event.Seed[:], seed)
	}
	if reward, ok := new(big.Int).SetString(canonical.Reward, 10); ok {
		rec.Event.Reward = reward
	}
	if canonical.Timestamp != 0 {
		rec.Event.Timestamp = canonical.Timestamp
	}
	if canonical.TxHash != "" {
		rec.TxHash = common.HexToHash(canonical.TxHash)
	}
}

func recordFromBackend(identity common.Address, stored *backend.Registration) (Record, error) {
	seed, err := hexutil.Decode(stored.Seed)
	if err != nil || len(seed) != ticket.SeedLength {
		return Record{Address: identity, Status: StatusUnregistered},
			errors.Errorf("backend returned malformed seed for %s", stored.Wallet)
	}
	reward, ok := new(big.Int).SetString(stored.Reward, 10)
	if !ok {
		reward = big.NewInt(0)
	}
	event := &chain.RegistrationEvent{
		Account:   identity,
		Index:     uint64(stored.Index),
		Reward:    reward,
		Timestamp: stored.Timestamp,
	}
	copy(event.Seed[:], seed)
	return Record{
		Address: identity,
		Status:  StatusPersisted,
		TxHash:  common.HexToHash(stored.TxHash),
		Event:   event,
		Ticket:  stored.Ticket,
	}, nil
}

func walletKey(identity common.Address) string {
	return strings.ToLower(identity.Hex())
}
