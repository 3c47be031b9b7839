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

package ticket

import (
	"crypto/rand"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSeed(fill byte) []byte {
	seed := make([]byte, SeedLength)
	for i := range seed {
		seed[i] = fill
	}
	return seed
}

func TestDerive_Deterministic(t *testing.T) {
	seed := testSeed(0xde)

	first, err := Derive(seed, 42)
	require.NoError(t, err)
	second, err := Derive(seed, 42)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.True(t, strings.HasPrefix(first, "PAYU-"))
	require.True(t, strings.HasSuffix(first, "-0042"))
}

func TestDerive_InvalidSeed(t *testing.T) {
	_, err := Derive([]byte{0xde, 0xad, 0xbe, 0xef}, 42)
	require.Equal(t, ErrInvalidSeed, err)

	_, err = Derive(nil, 0)
	require.Equal(t, ErrInvalidSeed, err)

	_, err = Derive(make([]byte, SeedLength+1), 0)
	require.Equal(t, ErrInvalidSeed, err)
}

func TestDerive_UniqueAcrossIndexes(t *testing.T) {
	seed := testSeed(0xab)
	seen := make(map[string]uint64, 10000)
	for i := uint64(0); i < 10000; i++ {
		code, err := Derive(seed, i)
		require.NoError(t, err)
		prev, dup := seen[code]
		require.False(t, dup, "indexes %d and %d collided on %s", prev, i, code)
		seen[code] = i
	}
}

func TestDerive_UniqueAcrossSeeds(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	seed := make([]byte, SeedLength)
	for i := 0; i < 10000; i++ {
		_, err := rand.Read(seed[:24])
		require.NoError(t, err)
		// distinct tail guarantees distinct seeds even against rand collisions
		binary.BigEndian.PutUint64(seed[24:], uint64(i))

		code, err := Derive(seed, 7)
		require.NoError(t, err)
		_, dup := seen[code]
		require.False(t, dup, "seed sample %d collided on %s", i, code)
		seen[code] = struct{}{}
	}
}
