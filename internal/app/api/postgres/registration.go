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

// Package postgres holds the go-pg storages behind the draw API.
package postgres

import (
	"strings"

	"github.com/go-pg/pg"
	"github.com/go-pg/pg/orm"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/payu-network/draw/internal/models"
	"github.com/payu-network/draw/observability"
)

type RegistrationStorage struct {
	log          *logrus.Logger
	errorCounter prometheus.Counter
	db           orm.DB
}

func NewRegistrationStorage(obs *observability.Observability, db orm.DB) *RegistrationStorage {
	errorCounter := obs.Counter(prometheus.CounterOpts{
		Name: "draw_registration_storage_error_counter",
		Help: "",
	})
	return &RegistrationStorage{
		log:          obs.Log(),
		errorCounter: errorCounter,
		db:           db,
	}
}

// Upsert stores model keyed by wallet. A second call for the same wallet
// leaves the first record in place; the stored record is re-read and
// returned so callers always see the canonical values.
func (s *RegistrationStorage) Upsert(model *models.Registration) (*models.Registration, error) {
	if model == nil {
		s.log.Warnf("trying to upsert nil registration model")
		return nil, errors.New("nil registration model")
	}
	row := *model
	row.ID = uuid.New().String()
	row.Wallet = strings.ToLower(row.Wallet)

	_, err := s.db.Model(&row).
		OnConflict("(wallet) DO NOTHING").
		Insert()
	if err != nil {
		s.errorCounter.Inc()
		return nil, errors.Wrapf(err, "failed to insert registration for %s", row.Wallet)
	}

	return s.GetByWallet(row.Wallet)
}

// GetByWallet returns the stored registration or nil when none exists.
func (s *RegistrationStorage) GetByWallet(wallet string) (*models.Registration, error) {
	row := &models.Registration{}
	err := s.db.Model(row).
		Where("wallet = ?", strings.ToLower(wallet)).
		Select()
	if err == pg.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		s.errorCounter.Inc()
		return nil, errors.Wrapf(err, "failed to select registration for %s", wallet)
	}
	return row, nil
}

// List returns all registrations, newest first.
func (s *RegistrationStorage) List() ([]models.Registration, error) {
	var rows []models.Registration
	err := s.db.Model(&rows).
		Order("created_at DESC").
		Select()
	if err != nil {
		s.errorCounter.Inc()
		return nil, errors.Wrap(err, "failed to select registrations")
	}
	return rows, nil
}

// Count returns the number of stored registrations.
func (s *RegistrationStorage) Count() (int, error) {
	count, err := s.db.Model(&models.Registration{}).Count()
	if err != nil {
		s.errorCounter.Inc()
		return 0, errors.Wrap(err, "failed to count registrations")
	}
	return count, nil
}
