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
	"time"

	"github.com/go-pg/pg"
	"github.com/go-pg/pg/orm"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/payu-network/draw/internal/models"
	"github.com/payu-network/draw/observability"
)

// SettingsID is the primary key of the single settings row.
const SettingsID = "main"

type GiveawaySettingsStorage struct {
	log          *logrus.Logger
	errorCounter prometheus.Counter
	db           orm.DB
}

func NewGiveawaySettingsStorage(obs *observability.Observability, db orm.DB) *GiveawaySettingsStorage {
	errorCounter := obs.Counter(prometheus.CounterOpts{
		Name: "draw_giveaway_settings_storage_error_counter",
		Help: "",
	})
	return &GiveawaySettingsStorage{
		log:          obs.Log(),
		errorCounter: errorCounter,
		db:           db,
	}
}

// Get returns the settings row, or a not-started default when none exists.
func (s *GiveawaySettingsStorage) Get() (*models.GiveawaySettings, error) {
	row := &models.GiveawaySettings{}
	err := s.db.Model(row).
		Where("id = ?", SettingsID).
		Select()
	if err == pg.ErrNoRows {
		return &models.GiveawaySettings{ID: SettingsID}, nil
	}
	if err != nil {
		s.errorCounter.Inc()
		return nil, errors.Wrap(err, "failed to select giveaway settings")
	}
	return row, nil
}

// Start marks the giveaway as started at now. Starting twice keeps the
// original start time.
func (s *GiveawaySettingsStorage) Start(now time.Time) (*models.GiveawaySettings, error) {
	row := &models.GiveawaySettings{
		ID:        SettingsID,
		Started:   true,
		StartTime: now,
	}
	_, err := s.db.Model(row).
		OnConflict("(id) DO NOTHING").
		Insert()
	if err != nil {
		s.errorCounter.Inc()
		return nil, errors.Wrap(err, "failed to start giveaway")
	}
	return s.Get()
}
