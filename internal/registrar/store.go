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
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/payu-network/draw/internal/chain"
)

type Status string

const (
	StatusUnregistered     Status = "unregistered"
	StatusSubmitted        Status = "submitted"
	StatusAwaitingFinality Status = "awaiting_finality"
	StatusConfirmed        Status = "confirmed"
	StatusPersisted        Status = "persisted"
	StatusFailed           Status = "failed"
)

type FailureReason string

const (
	ReasonNone                            FailureReason = ""
	ReasonUserDeclinedOrInsufficientFunds FailureReason = "user_declined_or_insufficient_funds"
	ReasonTransactionReverted             FailureReason = "transaction_reverted"
	ReasonFinalityTimeout                 FailureReason = "finality_timeout"
	ReasonEventUnavailable                FailureReason = "event_unavailable"
	ReasonInternal                        FailureReason = "internal"
)

// Record is the client-side registration lifecycle state for one identity.
// It is mutated only by the orchestrator's transition methods.
type Record struct {
	Address common.Address
	Status  Status
	TxHash  common.Hash
	Event   *chain.RegistrationEvent
	Ticket  string
	Reason  FailureReason
}

var statusRank = map[Status]int{
	StatusUnregistered:     0,
	StatusSubmitted:        1,
	StatusAwaitingFinality: 2,
	StatusConfirmed:        3,
	StatusPersisted:        4,
	StatusFailed:           5,
}

// ErrBackwardTransition guards the forward-only lifecycle. The legal
// resets out of Failed are Submitted (fresh user-initiated attempt) and
// AwaitingFinality (resuming a timed-out transaction).
var ErrBackwardTransition = errors.New("registration record cannot transition backward")

// Store keeps per-identity records in a bounded in-memory cache. Eviction
// is safe: the backend record is authoritative and reconciliation restores
// evicted state without touching the ledger.
type Store struct {
	mu    sync.Mutex
	cache *lru.Cache
}

func NewStore(size int) (*Store, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create record cache")
	}
	return &Store{cache: cache}, nil
}

// Get returns the record for identity and whether one was ever observed.
// The returned record owns its event, mutating it never leaks back into
// the store.
func (s *Store) Get(identity common.Address) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache.Get(identity)
	if !ok {
		return Record{Address: identity, Status: StatusUnregistered}, false
	}
	rec := v.(Record)
	rec.Event = cloneEvent(rec.Event)
	return rec, true
}

// Put stores a copy of rec, enforcing forward-only transitions.
func (s *Store) Put(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache.Get(rec.Address); ok {
		prev := v.(Record)
		if !transitionAllowed(prev.Status, rec.Status) {
			return errors.Wrapf(ErrBackwardTransition, "%s -> %s", prev.Status, rec.Status)
		}
		// index is immutable once assigned by the ledger
		if prev.Event != nil && rec.Event != nil && prev.Event.Index != rec.Event.Index {
			return errors.Errorf("index is immutable: %d -> %d", prev.Event.Index, rec.Event.Index)
		}
	}
	rec.Event = cloneEvent(rec.Event)
	s.cache.Add(rec.Address, rec)
	return nil
}

// Replace stores a copy of rec without a transition check. Only
// reconciliation uses it: the backend record is authoritative over any
// stale local state, including a Failed attempt another client outran.
func (s *Store) Replace(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Event = cloneEvent(rec.Event)
	s.cache.Add(rec.Address, rec)
}

func transitionAllowed(from, to Status) bool {
	if from == StatusFailed {
		// Submitted restarts the cycle; AwaitingFinality resumes
		// polling a timed-out transaction with its preserved handle
		return to == StatusFailed || to == StatusSubmitted || to == StatusAwaitingFinality
	}
	if to == StatusFailed {
		return from == StatusSubmitted || from == StatusAwaitingFinality
	}
	return statusRank[to] >= statusRank[from]
}

func cloneEvent(e *chain.RegistrationEvent) *chain.RegistrationEvent {
	if e == nil {
		return nil
	}
	cp := *e
	if e.Reward != nil {
		cp.Reward = new(big.Int).Set(e.Reward)
	}
	return &cp
}
