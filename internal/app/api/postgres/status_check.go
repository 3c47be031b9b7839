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
	"github.com/go-pg/pg/orm"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/payu-network/draw/internal/models"
	"github.com/payu-network/draw/observability"
)

type StatusCheckStorage struct {
	log          *logrus.Logger
	errorCounter prometheus.Counter
	db           orm.DB
}

func NewStatusCheckStorage(obs *observability.Observability, db orm.DB) *StatusCheckStorage {
	errorCounter := obs.Counter(prometheus.CounterOpts{
		Name: "draw_status_check_storage_error_counter",
		Help: "",
	})
	return &StatusCheckStorage{
		log:          obs.Log(),
		errorCounter: errorCounter,
		db:           db,
	}
}

func (s *StatusCheckStorage) Insert(model *models.StatusCheck) (*models.StatusCheck, error) {
	if model == nil {
		return nil, errors.New("nil status check model")
	}
	row := *model
	row.ID = uuid.New().String()

	_, err := s.db.Model(&row).Insert()
	if err != nil {
		s.errorCounter.Inc()
		return nil, errors.Wrap(err, "failed to insert status check")
	}
	return &row, nil
}

func (s *StatusCheckStorage) List(limit int) ([]models.StatusCheck, error) {
	var rows []models.StatusCheck
	err := s.db.Model(&rows).
		Order("timestamp DESC").
		Limit(limit).
		Select()
	if err != nil {
		s.errorCounter.Inc()
		return nil, errors.Wrap(err, "failed to select status checks")
	}
	return rows, nil
}
