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
	"log"

	echoPrometheus "github.com/globocom/echo-prometheus"
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/payu-network/draw/configuration"
	"github.com/payu-network/draw/internal/app/api"
	"github.com/payu-network/draw/internal/dbconn"
	"github.com/payu-network/draw/observability"
)

func main() {
	cfg := configuration.LoadAPI()

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.CORS())
	e.Use(echoPrometheus.MetricsMiddleware())

	db, err := dbconn.Connect(cfg.DB)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	}
	obs := observability.Make(logger)

	// request metrics live on the default registry, storage counters on
	// the observability one
	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer, obs.Metrics()}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})))

	server := api.NewDrawServer(obs, db, rdb, &api.DefaultClock{}, cfg)
	api.RegisterHandlers(e, server)
	e.Logger.Fatal(e.Start(cfg.Listen))
}
