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

// Package ticket derives human-presentable ticket codes from the seed and
// index assigned by the ledger on registration.
package ticket

import (
	"encoding/base32"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// SeedLength is the size of the seed emitted by the contract (bytes32).
const SeedLength = 32

var ErrInvalidSeed = errors.New("seed must be exactly 32 bytes")

var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Derive maps (seed, index) to a ticket code. It is pure and deterministic:
// identical inputs always yield the identical ticket.
func Derive(seed []byte, index uint64) (string, error) {
	if len(seed) != SeedLength {
		return "", ErrInvalidSeed
	}
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], index)
	digest := crypto.Keccak256(seed, idx[:])
	code := codeEncoding.EncodeToString(digest[:5])
	return fmt.Sprintf("PAYU-%s-%04d", code, index), nil
}
