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
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type backendMock struct {
	receipts map[common.Hash]*types.Receipt
	head     uint64
	// receipt polls observed, to assert idempotent re-polling
	polls int
}

func (m *backendMock) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	m.polls++
	r, ok := m.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (m *backendMock) BlockNumber(_ context.Context) (uint64, error) {
	return m.head, nil
}

type walletMock struct {
	hash  common.Hash
	err   error
	sends int
}

func (m *walletMock) SendRegistration(_ context.Context, _ common.Address, _ *big.Int) (common.Hash, error) {
	m.sends++
	if m.err != nil {
		return common.Hash{}, m.err
	}
	return m.hash, nil
}

var testContract = common.HexToAddress("0x000000000000000000000000000000000000c0de")

func testClient(backend *backendMock, wallet *walletMock) *Client {
	log := logrus.New()
	return NewClient(backend, wallet, testContract, 12, time.Millisecond, log)
}

func TestClient_SubmitRegistration(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		wallet := &walletMock{hash: common.HexToHash("0xaa")}
		client := testClient(&backendMock{}, wallet)

		handle, err := client.SubmitRegistration(context.Background(), common.Address{}, big.NewInt(1))
		require.NoError(t, err)
		require.Equal(t, wallet.hash, handle.TxHash)
	})

	t.Run("rejected", func(t *testing.T) {
		wallet := &walletMock{err: errors.New("user declined")}
		client := testClient(&backendMock{}, wallet)

		_, err := client.SubmitRegistration(context.Background(), common.Address{}, big.NewInt(1))
		require.Equal(t, ErrSubmissionRejected, errors.Cause(err))
	})
}

func TestClient_AwaitFinality(t *testing.T) {
	hash := common.HexToHash("0xbb")
	handle := PendingHandle{TxHash: hash}

	t.Run("finalized with logs", func(t *testing.T) {
		backend := &backendMock{
			receipts: map[common.Hash]*types.Receipt{
				hash: {
					Status:      types.ReceiptStatusSuccessful,
					BlockNumber: big.NewInt(100),
					Logs:        []*types.Log{{Data: []byte{0x01}}},
				},
			},
			head: 112,
		}
		client := testClient(backend, &walletMock{})

		final, err := client.AwaitFinality(context.Background(), handle, time.Second)
		require.NoError(t, err)
		require.Equal(t, hash, final.Hash)
		require.Equal(t, uint64(100), final.BlockNumber)
		require.Len(t, final.Logs, 1)
	})

	t.Run("not enough confirmations times out", func(t *testing.T) {
		backend := &backendMock{
			receipts: map[common.Hash]*types.Receipt{
				hash: {
					Status:      types.ReceiptStatusSuccessful,
					BlockNumber: big.NewInt(100),
				},
			},
			head: 105,
		}
		client := testClient(backend, &walletMock{})

		_, err := client.AwaitFinality(context.Background(), handle, 20*time.Millisecond)
		require.Equal(t, ErrTimedOut, err)
	})

	t.Run("reverted", func(t *testing.T) {
		backend := &backendMock{
			receipts: map[common.Hash]*types.Receipt{
				hash: {
					Status:      types.ReceiptStatusFailed,
					BlockNumber: big.NewInt(100),
				},
			},
			head: 200,
		}
		client := testClient(backend, &walletMock{})

		_, err := client.AwaitFinality(context.Background(), handle, time.Second)
		require.Equal(t, ErrReverted, err)
	})

	t.Run("re-poll after timeout does not re-submit", func(t *testing.T) {
		backend := &backendMock{receipts: map[common.Hash]*types.Receipt{}}
		wallet := &walletMock{}
		client := testClient(backend, wallet)

		_, err := client.AwaitFinality(context.Background(), handle, 10*time.Millisecond)
		require.Equal(t, ErrTimedOut, err)

		// the pending transaction lands between the polling windows
		backend.receipts[hash] = &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(100),
		}
		backend.head = 150

		final, err := client.AwaitFinality(context.Background(), handle, time.Second)
		require.NoError(t, err)
		require.Equal(t, hash, final.Hash)
		require.Equal(t, 0, wallet.sends)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		backend := &backendMock{receipts: map[common.Hash]*types.Receipt{}}
		client := testClient(backend, &walletMock{})

		_, err := client.AwaitFinality(ctx, handle, time.Second)
		require.Equal(t, context.Canceled, err)
	})
}
