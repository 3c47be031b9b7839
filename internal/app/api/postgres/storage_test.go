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

package postgres

import (
	"testing"

	"github.com/go-pg/pg"
	"github.com/go-pg/pg/orm"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/payu-network/draw/internal/models"
	"github.com/payu-network/draw/observability"
)

func testObs() *observability.Observability {
	return observability.Make(logrus.New())
}

// erroringDB fails every query with err, whichever execution path go-pg
// picks for the model.
func erroringDB(err error) *DBMock {
	fail := func(model, query interface{}, params ...interface{}) (orm.Result, error) {
		return nil, err
	}
	return &DBMock{query: fail, queryOne: fail}
}

func TestRegistrationStorage_GetByWallet_NotFound(t *testing.T) {
	db := erroringDB(pg.ErrNoRows)
	storage := NewRegistrationStorage(testObs(), db)

	row, err := storage.GetByWallet("0xAbCd")
	require.NoError(t, err)
	require.Nil(t, row)
}

func TestRegistrationStorage_GetByWallet_Error(t *testing.T) {
	db := erroringDB(errors.New("connection refused"))
	storage := NewRegistrationStorage(testObs(), db)

	_, err := storage.GetByWallet("0xabcd")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to select registration")
}

// registrationTable fakes the registrations table behind DBMock: inserts
// respect the wallet uniqueness, selects read back the stored row.
type registrationTable struct {
	stored *models.Registration
	dest   interface{}
}

func (tbl *registrationTable) db() *DBMock {
	db := &DBMock{}
	db.model = func(model ...interface{}) *orm.Query {
		tbl.dest = model[0]
		return orm.NewQuery(db, model...)
	}
	exec := func(model, query interface{}, params ...interface{}) (orm.Result, error) {
		row, ok := tbl.dest.(*models.Registration)
		if !ok {
			return &resultMock{rowsAffected: 1}, nil
		}
		// Upsert assigns the row id before the insert executes, the
		// canonical re-read starts from a zero destination
		if row.ID != "" {
			if tbl.stored == nil {
				cp := *row
				tbl.stored = &cp
			}
			return &resultMock{rowsAffected: 1}, nil
		}
		if tbl.stored == nil {
			return nil, pg.ErrNoRows
		}
		*row = *tbl.stored
		return &resultMock{rowsAffected: 1, model: []interface{}{row}}, nil
	}
	db.query = exec
	db.queryOne = exec
	return db
}

func TestRegistrationStorage_Upsert_Idempotent(t *testing.T) {
	table := &registrationTable{}
	storage := NewRegistrationStorage(testObs(), table.db())

	first, err := storage.Upsert(&models.Registration{
		Wallet: "0xABCD0000000000000000000000000000000000AB",
		Ticket: "PAYU-AAAAAAAA-0001",
		Index:  1,
	})
	require.NoError(t, err)
	require.Equal(t, "PAYU-AAAAAAAA-0001", first.Ticket)
	require.Equal(t, "0xabcd0000000000000000000000000000000000ab", first.Wallet)

	// the replay carries different values, the first-stored record wins
	second, err := storage.Upsert(&models.Registration{
		Wallet: "0xABCD0000000000000000000000000000000000AB",
		Ticket: "PAYU-BBBBBBBB-0002",
		Index:  2,
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.Ticket, second.Ticket)
	require.Equal(t, first.Index, second.Index)
}

func TestRegistrationStorage_Upsert_NilModel(t *testing.T) {
	storage := NewRegistrationStorage(testObs(), &DBMock{})

	_, err := storage.Upsert(nil)
	require.Error(t, err)
}

func TestTaskClickStorage_Insert_NilModel(t *testing.T) {
	storage := NewTaskClickStorage(testObs(), &DBMock{})

	// nil model is logged and dropped, never an error
	require.NoError(t, storage.Insert(nil))
}

func TestTaskClickStorage_Insert_Error(t *testing.T) {
	db := erroringDB(errors.New("connection refused"))
	storage := NewTaskClickStorage(testObs(), db)

	err := storage.Insert(&models.TaskClick{UserID: "0xABCD", Platform: "telegram"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to insert task click 0xabcd/telegram")
}

func TestStatusCheckStorage_Insert_NilModel(t *testing.T) {
	storage := NewStatusCheckStorage(testObs(), &DBMock{})

	_, err := storage.Insert(nil)
	require.Error(t, err)
}

func TestGiveawaySettingsStorage_Get_DefaultsWhenEmpty(t *testing.T) {
	db := erroringDB(pg.ErrNoRows)
	storage := NewGiveawaySettingsStorage(testObs(), db)

	settings, err := storage.Get()
	require.NoError(t, err)
	require.Equal(t, SettingsID, settings.ID)
	require.False(t, settings.Started)
}
