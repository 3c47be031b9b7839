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

// The registrar runs one registration cycle for the configured wallet:
// reconcile against the backend, submit the paid transaction if the wallet
// is unregistered, wait for finality and persist the derived ticket.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/payu-network/draw/configuration"
	"github.com/payu-network/draw/internal/backend"
	"github.com/payu-network/draw/internal/chain"
	"github.com/payu-network/draw/internal/gate"
	"github.com/payu-network/draw/internal/registrar"
	"github.com/payu-network/draw/observability"
)

type logNotifier struct {
	log *logrus.Logger
}

func (n *logNotifier) TaskCompleted(identity common.Address, task gate.Task) {
	n.log.WithField("identity", identity.Hex()).
		Infof("task %s completed", task)
}

func main() {
	cfg := configuration.LoadRegistrar()

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	obs := observability.Make(logger)

	node, err := ethclient.Dial(cfg.Chain.RPCURL)
	if err != nil {
		logger.Fatal(err)
	}
	defer node.Close()

	wallet, err := chain.NewKeyedWallet(node, cfg.Chain.PrivateKey)
	if err != nil {
		logger.Fatal(err)
	}
	ledger := chain.NewClient(
		node,
		wallet,
		common.HexToAddress(cfg.Chain.ContractAddress),
		cfg.Chain.Confirmations,
		cfg.Chain.PollInterval,
		logger,
	)

	store, err := registrar.NewStore(cfg.RecordCacheSize)
	if err != nil {
		logger.Fatal(err)
	}
	client := backend.NewClient(cfg.Backend, logger)
	tasks := gate.New(&logNotifier{log: logger}, client, logger)

	orchestrator, err := registrar.New(ledger, store, client, tasks, cfg, obs)
	if err != nil {
		logger.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	identity := wallet.Address()
	rec, err := orchestrator.Reconcile(ctx, identity)
	if err != nil {
		logger.Fatal(err)
	}
	if rec.Status == registrar.StatusPersisted {
		logger.Infof("wallet %s already registered, ticket %s", identity.Hex(), rec.Ticket)
		return
	}

	rec, err = orchestrator.Submit(ctx, identity)
	if err != nil {
		logger.WithField("reason", rec.Reason).Fatal(err)
	}
	logger.Infof("wallet %s registered, ticket %s", identity.Hex(), rec.Ticket)
}
