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

package models

import "time"

type Registration struct {
	tableName struct{} `sql:"registrations"` //nolint: unused,structcheck

	ID        string    `sql:"id,pk"`
	Wallet    string    `sql:"wallet"`
	TxHash    string    `sql:"tx_hash"`
	Index     int64     `sql:"index"`
	Seed      string    `sql:"seed"`
	Ticket    string    `sql:"ticket"`
	Reward    string    `sql:"reward"`
	Timestamp int64     `sql:"timestamp"`
	CreatedAt time.Time `sql:"created_at,default:now()"`
}

type TaskClick struct {
	tableName struct{} `sql:"task_clicks"` //nolint: unused,structcheck

	ID        string    `sql:"id,pk"`
	UserID    string    `sql:"user_id"`
	Platform  string    `sql:"platform"`
	Handle    string    `sql:"handle"`
	ClickedAt time.Time `sql:"clicked_at,default:now()"`
}

type StatusCheck struct {
	tableName struct{} `sql:"status_checks"` //nolint: unused,structcheck

	ID         string    `sql:"id,pk"`
	ClientName string    `sql:"client_name"`
	Timestamp  time.Time `sql:"timestamp,default:now()"`
}

type GiveawaySettings struct {
	tableName struct{} `sql:"giveaway_settings"` //nolint: unused,structcheck

	ID        string    `sql:"id,pk"`
	Started   bool      `sql:"started"`
	StartTime time.Time `sql:"start_time"`
}
