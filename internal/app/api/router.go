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

package api

import (
	"github.com/labstack/echo/v4"
)

// RegisterHandlers mounts every route under the /api prefix.
func RegisterHandlers(router *echo.Echo, s *DrawServer) {
	group := router.Group("/api")

	group.GET("/", s.Root)
	group.GET("/registration/:wallet", s.GetRegistration)
	group.POST("/save-ticket", s.SaveTicket)
	group.POST("/task-click", s.LogTaskClick)
	group.GET("/tasks/:wallet", s.GetTasks)
	group.POST("/status", s.CreateStatusCheck)
	group.GET("/status", s.ListStatusChecks)
	group.GET("/giveaway-status", s.GiveawayStatus)

	group.GET("/admin/registrations", s.AdminListRegistrations)
	group.GET("/admin/tasks", s.AdminListTasks)
	group.POST("/admin/start-giveaway", s.AdminStartGiveaway)
}
