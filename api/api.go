/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/blnkfinance/surveylink"
	"github.com/blnkfinance/surveylink/api/middleware"
	"github.com/blnkfinance/surveylink/config"
)

type Api struct {
	linker  *surveylink.Linker
	columns config.ColumnConfig
	router  *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/runs", a.CreateRun)
	router.GET("/runs/:id", a.GetRun)
	router.GET("/runs/:id/records", a.GetRunRecords)
	return router
}

func NewAPI(l *surveylink.Linker, conf *config.Configuration) *Api {
	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware(conf.ProjectName), middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware(conf.Server.SecretKey))
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{linker: l, columns: conf.Columns, router: r}
}
