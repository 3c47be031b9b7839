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

// Package backend is the HTTP client for the persistence API. The backend
// record is the single arbiter of truth across clients and reloads.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/payu-network/draw/configuration"
)

// ErrUnavailable marks network failures and 5xx responses. Persist callers
// retry it with backoff; the click log drops it after logging.
var ErrUnavailable = errors.New("backend unavailable")

// Registration mirrors the stored backend record.
type Registration struct {
	Wallet    string `json:"wallet"`
	TxHash    string `json:"txHash"`
	Index     int64  `json:"index"`
	Seed      string `json:"seed"`
	Ticket    string `json:"ticket"`
	Reward    string `json:"reward"`
	Timestamp int64  `json:"timestamp"`
}

type envelope struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Data    *Registration `json:"data"`
}

type Client struct {
	base string
	http *http.Client
	log  *logrus.Logger
}

func NewClient(cfg configuration.Backend, log *logrus.Logger) *Client {
	return &Client{
		base: cfg.URL,
		http: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		log: log,
	}
}

// GetRegistration returns the stored record for wallet, or nil when none
// exists. Safe to call repeatedly.
func (c *Client) GetRegistration(ctx context.Context, wallet string) (*Registration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/registration/"+wallet, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build registration request")
	}

	var env envelope
	if err := c.do(req, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, nil
	}
	return env.Data, nil
}

// SaveTicket is the idempotent upsert keyed by wallet. The returned record
// carries the canonical stored values, which override any locally derived
// ones.
func (c *Client) SaveTicket(ctx context.Context, reg Registration) (*Registration, error) {
	body, err := json.Marshal(reg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal registration")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/save-ticket", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build save-ticket request")
	}
	req.Header.Set("Content-Type", "application/json")

	var env envelope
	if err := c.do(req, &env); err != nil {
		return nil, err
	}
	if !env.Success || env.Data == nil {
		return nil, errors.Errorf("save-ticket refused: %s", env.Message)
	}
	return env.Data, nil
}

// LogTaskClick is best-effort analytics, idempotent server-side per
// (wallet, platform).
func (c *Client) LogTaskClick(ctx context.Context, wallet, platform, handle string) error {
	body, err := json.Marshal(map[string]string{
		"wallet":   wallet,
		"platform": platform,
		"handle":   handle,
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal task click")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/task-click", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build task-click request")
	}
	req.Header.Set("Content-Type", "application/json")

	var env envelope
	return c.do(req, &env)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(ErrUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return errors.Wrapf(ErrUnavailable, "status %d", resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("backend rejected request: status %d", resp.StatusCode)
	}

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(ErrUnavailable, err.Error())
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to unmarshal backend response")
	}
	return nil
}
