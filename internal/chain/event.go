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
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Registered(address indexed user, uint256 index, bytes32 seed,
// uint256 reward, uint256 timestamp)
var registeredTopic = crypto.Keccak256Hash(
	[]byte("Registered(address,uint256,bytes32,uint256,uint256)"),
)

const registeredDataWords = 4

// ExtractRegistrationEvent scans a finalized transaction's logs for the
// Registered event. ErrEventNotFound is retryable; ErrMalformedEvent is not.
func ExtractRegistrationEvent(tx *FinalizedTransaction) (*RegistrationEvent, error) {
	for i := range tx.Logs {
		entry := &tx.Logs[i]
		if len(entry.Topics) == 0 || entry.Topics[0] != registeredTopic {
			continue
		}
		if len(entry.Topics) != 2 || len(entry.Data) != registeredDataWords*common.HashLength {
			return nil, ErrMalformedEvent
		}

		index := new(big.Int).SetBytes(entry.Data[0:32])
		timestamp := new(big.Int).SetBytes(entry.Data[96:128])
		if !index.IsUint64() || !timestamp.IsInt64() {
			return nil, ErrMalformedEvent
		}

		event := &RegistrationEvent{
			Account:   common.BytesToAddress(entry.Topics[1].Bytes()),
			Index:     index.Uint64(),
			Reward:    new(big.Int).SetBytes(entry.Data[64:96]),
			Timestamp: timestamp.Int64(),
		}
		copy(event.Seed[:], entry.Data[32:64])
		return event, nil
	}
	return nil, ErrEventNotFound
}
