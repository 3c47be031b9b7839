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

package configuration

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/payu-network/draw/internal/pkg/cycle"
)

type Log struct {
	Level  string
	Format string
}

type DB struct {
	URL      string
	PoolSize int
	Attempts cycle.Limit
	// Interval between failed store attempts
	AttemptInterval time.Duration
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type Chain struct {
	// JSON-RPC endpoint of the ledger node
	RPCURL          string
	ContractAddress string
	// Hex-encoded key of the registering wallet, env-provided in
	// production, never written to config files
	PrivateKey string
	// Registration fee in wei, decimal string
	Fee string
	// Confirmations required before a transaction counts as final
	Confirmations uint64
	PollInterval  time.Duration
	// One finality polling window; re-polling the same handle is safe
	FinalityTimeout time.Duration
	// Windows to retry before FinalityTimeout surfaces to the caller
	TimeoutCycles cycle.Limit
	// Bounded retries of event extraction after finality (emission lag)
	ExtractionAttempts cycle.Limit
	ExtractionInterval time.Duration
}

type Backend struct {
	URL             string
	Attempts        cycle.Limit
	AttemptInterval time.Duration
	RequestTimeout  time.Duration
}

type Registrar struct {
	Log     Log
	Chain   Chain
	Backend Backend
	// Size of the in-memory registration record cache
	RecordCacheSize int
}

type API struct {
	Log         Log
	DB          DB
	Redis       Redis
	Listen      string
	AdminWallet string
}

type Migrate struct {
	DB  DB
	Dir string
}

func (Registrar) Default() *Registrar {
	return &Registrar{
		Log: Log{
			Level:  logrus.DebugLevel.String(),
			Format: "text",
		},
		Chain: Chain{
			RPCURL:             "https://bsc-dataseed.binance.org",
			ContractAddress:    "0x0000000000000000000000000000000000000000",
			Fee:                "2000000000000000",
			Confirmations:      12,
			PollInterval:       3 * time.Second,
			FinalityTimeout:    90 * time.Second,
			TimeoutCycles:      3,
			ExtractionAttempts: 5,
			ExtractionInterval: 2 * time.Second,
		},
		Backend: Backend{
			URL:             "http://localhost:8080/api",
			Attempts:        5,
			AttemptInterval: 3 * time.Second,
			RequestTimeout:  10 * time.Second,
		},
		RecordCacheSize: 10000,
	}
}

func (API) Default() *API {
	return &API{
		Log: Log{
			Level:  logrus.InfoLevel.String(),
			Format: "json",
		},
		DB: DB{
			URL:             "postgres://postgres@localhost/postgres?sslmode=disable",
			PoolSize:        100,
			Attempts:        5,
			AttemptInterval: 3 * time.Second,
		},
		Redis: Redis{
			Addr: "localhost:6379",
		},
		Listen:      ":8080",
		AdminWallet: "0xd9C4b8436d2a235A1f7DB09E680b5928cFdA641a",
	}
}

func (Migrate) Default() *Migrate {
	return &Migrate{
		DB: DB{
			URL:             "postgres://postgres@localhost/postgres?sslmode=disable",
			Attempts:        5,
			AttemptInterval: 3 * time.Second,
		},
		Dir: "scripts/migrations",
	}
}
