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

package main

import (
	"flag"

	"github.com/go-pg/migrations"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/payu-network/draw/configuration"
	"github.com/payu-network/draw/internal/dbconn"
)

var doInit = flag.Bool("init", false, "perform db init (for empty db)")

func main() {
	flag.Parse()
	log := logrus.New()
	cfg := configuration.LoadMigrate()

	db, err := dbconn.Connect(cfg.DB)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	migrationCollection := migrations.NewCollection()
	if *doInit {
		_, _, err := migrationCollection.Run(db, "init")
		if err != nil {
			log.Fatal(errors.Wrap(err, "could not init migrations"))
		}
	}

	err = migrationCollection.DiscoverSQLMigrations(cfg.Dir)
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to read migrations"))
	}

	_, _, err = migrationCollection.Run(db, "up")
	if err != nil {
		log.Fatal(errors.Wrap(err, "could not migrate"))
	}
	log.Info("migrated successfully")
}
