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

// Package api serves the draw backend: registration persistence, task
// click analytics and the admin surface.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-pg/pg/orm"
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/payu-network/draw/configuration"
	"github.com/payu-network/draw/internal/app/api/postgres"
	"github.com/payu-network/draw/internal/gate"
	"github.com/payu-network/draw/internal/models"
	"github.com/payu-network/draw/internal/ticket"
	"github.com/payu-network/draw/observability"
)

type Clock interface {
	Now() time.Time
}

type DefaultClock struct{}

func (c *DefaultClock) Now() time.Time {
	return time.Now()
}

// ClickGuard is the slice of the redis API used to deduplicate clicks
// before they reach postgres. *redis.Client satisfies it.
type ClickGuard interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// SchemaRegistration is the wire shape of one stored registration.
type SchemaRegistration struct {
	Wallet    string `json:"wallet"`
	TxHash    string `json:"txHash"`
	Index     int64  `json:"index"`
	Seed      string `json:"seed"`
	Ticket    string `json:"ticket"`
	Reward    string `json:"reward"`
	Timestamp int64  `json:"timestamp"`
}

type SchemaTaskClick struct {
	Wallet    string    `json:"wallet"`
	Platform  string    `json:"platform"`
	Handle    string    `json:"handle,omitempty"`
	ClickedAt time.Time `json:"clickedAt"`
}

type RegistrationResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    *SchemaRegistration `json:"data,omitempty"`
}

type DrawServer struct {
	log           *logrus.Logger
	registrations *postgres.RegistrationStorage
	clicks        *postgres.TaskClickStorage
	statuses      *postgres.StatusCheckStorage
	settings      *postgres.GiveawaySettingsStorage
	guard         ClickGuard
	clock         Clock
	adminWallet   string
}

func NewDrawServer(
	obs *observability.Observability,
	db orm.DB,
	guard ClickGuard,
	clock Clock,
	cfg *configuration.API,
) *DrawServer {
	return &DrawServer{
		log:           obs.Log(),
		registrations: postgres.NewRegistrationStorage(obs, db),
		clicks:        postgres.NewTaskClickStorage(obs, db),
		statuses:      postgres.NewStatusCheckStorage(obs, db),
		settings:      postgres.NewGiveawaySettingsStorage(obs, db),
		guard:         guard,
		clock:         clock,
		adminWallet:   strings.ToLower(cfg.AdminWallet),
	}
}

func (s *DrawServer) Root(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"message": "PAYU Draw API"})
}

// GetRegistration returns the stored registration for a wallet.
// A missing record answers success=false with HTTP 200, which clients
// read as "not registered yet".
func (s *DrawServer) GetRegistration(ctx echo.Context) error {
	wallet := ctx.Param("wallet")
	if !common.IsHexAddress(wallet) {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("invalid wallet address"))
	}

	row, err := s.registrations.GetByWallet(wallet)
	if err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}
	if row == nil {
		return ctx.JSON(http.StatusOK, RegistrationResponse{
			Success: false,
			Message: "registration not found",
		})
	}
	return ctx.JSON(http.StatusOK, RegistrationResponse{
		Success: true,
		Data:    schemaRegistration(row),
	})
}

// SaveTicket is the idempotent upsert keyed by wallet. The first stored
// record always wins; its values come back to the caller.
func (s *DrawServer) SaveTicket(ctx echo.Context) error {
	var req SchemaRegistration
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("invalid request body"))
	}
	if !common.IsHexAddress(req.Wallet) {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("invalid wallet address"))
	}
	if req.Ticket == "" {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("`ticket` is required"))
	}
	if seed, err := hexutil.Decode(req.Seed); err != nil || len(seed) != ticket.SeedLength {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("`seed` must be a 32-byte hex string"))
	}

	stored, err := s.registrations.Upsert(&models.Registration{
		Wallet:    req.Wallet,
		TxHash:    req.TxHash,
		Index:     req.Index,
		Seed:      req.Seed,
		Ticket:    req.Ticket,
		Reward:    req.Reward,
		Timestamp: req.Timestamp,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}
	return ctx.JSON(http.StatusOK, RegistrationResponse{
		Success: true,
		Data:    schemaRegistration(stored),
	})
}

// LogTaskClick records one click per (wallet, platform). Replays are
// acknowledged without a second row.
func (s *DrawServer) LogTaskClick(ctx echo.Context) error {
	var req struct {
		Wallet   string `json:"wallet"`
		Platform string `json:"platform"`
		Handle   string `json:"handle"`
	}
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("invalid request body"))
	}
	if !common.IsHexAddress(req.Wallet) {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("invalid wallet address"))
	}
	if !knownPlatform(req.Platform) {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("unknown platform"))
	}

	wallet := strings.ToLower(req.Wallet)
	if s.guard != nil {
		key := "draw:task-click:" + wallet + ":" + req.Platform
		fresh, err := s.guard.SetNX(ctx.Request().Context(), key, 1, 24*time.Hour).Result()
		if err != nil {
			// redis is an optimization, the unique index still dedups
			s.log.Warnf("click guard unavailable: %v", err)
		} else if !fresh {
			return ctx.JSON(http.StatusOK, map[string]bool{"success": true})
		}
	}

	err := s.clicks.Insert(&models.TaskClick{
		UserID:    wallet,
		Platform:  req.Platform,
		Handle:    req.Handle,
		ClickedAt: s.clock.Now(),
	})
	if err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}
	return ctx.JSON(http.StatusOK, map[string]bool{"success": true})
}

// GetTasks returns the click history for one wallet, oldest first.
func (s *DrawServer) GetTasks(ctx echo.Context) error {
	wallet := ctx.Param("wallet")
	if !common.IsHexAddress(wallet) {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("invalid wallet address"))
	}

	rows, err := s.clicks.ListByUser(wallet)
	if err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}
	res := make([]SchemaTaskClick, len(rows))
	for i, row := range rows {
		res[i] = SchemaTaskClick{
			Wallet:    row.UserID,
			Platform:  row.Platform,
			Handle:    row.Handle,
			ClickedAt: row.ClickedAt,
		}
	}
	return ctx.JSON(http.StatusOK, res)
}

func (s *DrawServer) CreateStatusCheck(ctx echo.Context) error {
	var req struct {
		ClientName string `json:"client_name"`
	}
	if err := ctx.Bind(&req); err != nil || req.ClientName == "" {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("`client_name` is required"))
	}

	row, err := s.statuses.Insert(&models.StatusCheck{
		ClientName: req.ClientName,
		Timestamp:  s.clock.Now(),
	})
	if err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}
	return ctx.JSON(http.StatusOK, row)
}

func (s *DrawServer) ListStatusChecks(ctx echo.Context) error {
	rows, err := s.statuses.List(1000)
	if err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (s *DrawServer) GiveawayStatus(ctx echo.Context) error {
	settings, err := s.settings.Get()
	if err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}
	return ctx.JSON(http.StatusOK, settings)
}

func (s *DrawServer) AdminListRegistrations(ctx echo.Context) error {
	if !s.isAdmin(ctx) {
		return ctx.JSON(http.StatusForbidden, NewSingleMessageError("admin wallet required"))
	}
	rows, err := s.registrations.List()
	if err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}
	res := make([]SchemaRegistration, len(rows))
	for i := range rows {
		res[i] = *schemaRegistration(&rows[i])
	}
	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"count":         len(res),
		"registrations": res,
	})
}

func (s *DrawServer) AdminListTasks(ctx echo.Context) error {
	if !s.isAdmin(ctx) {
		return ctx.JSON(http.StatusForbidden, NewSingleMessageError("admin wallet required"))
	}
	rows, err := s.clicks.List()
	if err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (s *DrawServer) AdminStartGiveaway(ctx echo.Context) error {
	if !s.isAdmin(ctx) {
		return ctx.JSON(http.StatusForbidden, NewSingleMessageError("admin wallet required"))
	}
	settings, err := s.settings.Start(s.clock.Now())
	if err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}
	s.log.WithField("start_time", settings.StartTime).Info("giveaway started")
	return ctx.JSON(http.StatusOK, settings)
}

func (s *DrawServer) isAdmin(ctx echo.Context) bool {
	caller := ctx.Request().Header.Get("X-Wallet-Address")
	return caller != "" && strings.ToLower(caller) == s.adminWallet
}

func schemaRegistration(row *models.Registration) *SchemaRegistration {
	return &SchemaRegistration{
		Wallet:    row.Wallet,
		TxHash:    row.TxHash,
		Index:     row.Index,
		Seed:      row.Seed,
		Ticket:    row.Ticket,
		Reward:    row.Reward,
		Timestamp: row.Timestamp,
	}
}

func knownPlatform(platform string) bool {
	for _, task := range gate.Sequence {
		if string(task) == platform {
			return true
		}
	}
	return false
}
