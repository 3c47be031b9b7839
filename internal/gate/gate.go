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

// Package gate unlocks the three engagement tasks strictly in sequence and
// records completions idempotently.
package gate

import (
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Task string

const (
	TaskTelegram       Task = "telegram"
	TaskX              Task = "x"
	TaskInstagramStory Task = "instagram_story"
)

// Sequence is the fixed unlock order. A task is accepted only when it is
// the next one relative to what is already completed.
var Sequence = []Task{TaskTelegram, TaskX, TaskInstagramStory}

var ErrUnknownTask = errors.New("unknown task")

// Notifier receives exactly one completion notification per task per
// identity.
type Notifier interface {
	TaskCompleted(identity common.Address, task Task)
}

// ClickLogger is the best-effort backend analytics call, idempotent
// server-side per (wallet, platform).
type ClickLogger interface {
	LogTaskClick(ctx context.Context, wallet, platform, handle string) error
}

type Result struct {
	Accepted     bool
	AllCompleted bool
}

type Gate struct {
	mu       sync.Mutex
	progress map[common.Address][]Task

	notifier Notifier
	clicks   ClickLogger
	log      *logrus.Logger
}

func New(notifier Notifier, clicks ClickLogger, log *logrus.Logger) *Gate {
	return &Gate{
		progress: make(map[common.Address][]Task),
		notifier: notifier,
		clicks:   clicks,
		log:      log,
	}
}

// Create opens empty task progress for identity. Called when a
// registration reaches the persisted state; repeated calls are no-ops.
func (g *Gate) Create(identity common.Address) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.progress[identity]; !ok {
		g.progress[identity] = nil
	}
}

// Completed returns a copy of the completed tasks in insertion order.
func (g *Gate) Completed(identity common.Address) []Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	done := g.progress[identity]
	out := make([]Task, len(done))
	copy(out, done)
	return out
}

// RecordCompletion accepts task only when it is next in Sequence and not
// yet completed. On acceptance it notifies exactly once and fires the
// backend click log best-effort: a logging failure never rolls back the
// local completion.
func (g *Gate) RecordCompletion(ctx context.Context, identity common.Address, task Task, handle string) (Result, error) {
	if !knownTask(task) {
		return Result{}, errors.Wrapf(ErrUnknownTask, "%q", task)
	}

	g.mu.Lock()
	done := g.progress[identity]
	for _, t := range done {
		if t == task {
			g.mu.Unlock()
			return Result{}, nil
		}
	}
	if Sequence[len(done)] != task {
		g.mu.Unlock()
		return Result{}, nil
	}
	done = append(done, task)
	g.progress[identity] = done
	all := len(done) == len(Sequence)
	g.mu.Unlock()

	if g.notifier != nil {
		g.notifier.TaskCompleted(identity, task)
	}
	if g.clicks != nil {
		wallet := identityKey(identity)
		if err := g.clicks.LogTaskClick(ctx, wallet, string(task), handle); err != nil {
			g.log.WithField("identity", wallet).
				WithField("task", task).
				Warnf("task click log dropped: %v", err)
		}
	}
	return Result{Accepted: true, AllCompleted: all}, nil
}

func knownTask(task Task) bool {
	for _, t := range Sequence {
		if t == task {
			return true
		}
	}
	return false
}

func identityKey(identity common.Address) string {
	return strings.ToLower(identity.Hex())
}
