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
	"strings"

	"github.com/go-pg/pg/orm"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/payu-network/draw/internal/models"
	"github.com/payu-network/draw/observability"
)

type TaskClickStorage struct {
	log          *logrus.Logger
	errorCounter prometheus.Counter
	db           orm.DB
}

func NewTaskClickStorage(obs *observability.Observability, db orm.DB) *TaskClickStorage {
	errorCounter := obs.Counter(prometheus.CounterOpts{
		Name: "draw_task_click_storage_error_counter",
		Help: "",
	})
	return &TaskClickStorage{
		log:          obs.Log(),
		errorCounter: errorCounter,
		db:           db,
	}
}

// Insert logs one click, at most once per (user, platform). Replays are
// silently dropped by the unique index.
func (s *TaskClickStorage) Insert(model *models.TaskClick) error {
	if model == nil {
		s.log.Warnf("trying to insert nil task click model")
		return nil
	}
	row := *model
	row.ID = uuid.New().String()
	row.UserID = strings.ToLower(row.UserID)

	_, err := s.db.Model(&row).
		OnConflict("(user_id, platform) DO NOTHING").
		Insert()
	if err != nil {
		s.errorCounter.Inc()
		return errors.Wrapf(err, "failed to insert task click %s/%s", row.UserID, row.Platform)
	}
	return nil
}

// ListByUser returns the click history for one wallet, oldest first.
func (s *TaskClickStorage) ListByUser(userID string) ([]models.TaskClick, error) {
	var rows []models.TaskClick
	err := s.db.Model(&rows).
		Where("user_id = ?", strings.ToLower(userID)).
		Order("clicked_at ASC").
		Select()
	if err != nil {
		s.errorCounter.Inc()
		return nil, errors.Wrapf(err, "failed to select task clicks for %s", userID)
	}
	return rows, nil
}

// List returns all clicks, newest first.
func (s *TaskClickStorage) List() ([]models.TaskClick, error) {
	var rows []models.TaskClick
	err := s.db.Model(&rows).
		Order("clicked_at DESC").
		Select()
	if err != nil {
		s.errorCounter.Inc()
		return nil, errors.Wrap(err, "failed to select task clicks")
	}
	return rows, nil
}
