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
	"context"

	"github.com/go-pg/pg/orm"
)

// NewDBMock builds a mock whose selects and inserts run through the
// given closures.
func NewDBMock(
	query func(model, query interface{}, params ...interface{}) (orm.Result, error),
	queryOne func(model, query interface{}, params ...interface{}) (orm.Result, error),
) *DBMock {
	return &DBMock{query: query, queryOne: queryOne}
}

// DBMock routes orm.DB calls into test-provided closures.
type DBMock struct {
	orm.DB
	insert   func(model ...interface{}) error
	model    func(model ...interface{}) *orm.Query
	queryOne func(model, query interface{}, params ...interface{}) (orm.Result, error)
	query    func(model, query interface{}, params ...interface{}) (orm.Result, error)
}

func (m *DBMock) Insert(model ...interface{}) error {
	return m.insert(model...)
}

func (m *DBMock) Model(model ...interface{}) *orm.Query {
	if m.model != nil {
		return m.model(model...)
	}
	return orm.NewQuery(m, model...)
}

func (m *DBMock) QueryOne(model, query interface{}, params ...interface{}) (orm.Result, error) {
	return m.queryOne(model, query, params...)
}

func (m *DBMock) Query(model, query interface{}, params ...interface{}) (orm.Result, error) {
	return m.query(model, query, params...)
}

func (m *DBMock) QueryContext(_ context.Context, model, query interface{}, params ...interface{}) (orm.Result, error) {
	return m.Query(model, query, params...)
}

func (m *DBMock) QueryOneContext(_ context.Context, model, query interface{}, params ...interface{}) (orm.Result, error) {
	return m.QueryOne(model, query, params...)
}

type resultMock struct {
	orm.Result
	rowsAffected int
	model        []interface{}
}

func (m *resultMock) RowsAffected() int {
	return m.rowsAffected
}

func (m *resultMock) RowsReturned() int {
	return m.rowsAffected
}

func (m *resultMock) Model() orm.Model {
	model, err := orm.NewModel(m.model...)
	if err != nil {
		return nil
	}
	return model
}
