/*
Copyright 2025 Listmirror Authors.

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
	"github.com/gin-gonic/gin"
	"github.com/listmirror/listmirror"
	"github.com/listmirror/listmirror/api/middleware"
	"github.com/listmirror/listmirror/config"
)

type Api struct {
	listmirror *listmirror.Listmirror
	router     *gin.Engine
}

// Router wires the journal inspection routes. The webhook ingress is
// registered in NewAPI, before any auth middleware: the remote push
// service cannot present a secret key.
func (a Api) Router() *gin.Engine {
	router := a.router
	router.GET("/sync-attempts/:site_id/:list_id", a.GetSyncAttempts)
	router.GET("/watermark/:site_id/:list_id", a.GetWatermark)
	return a.router
}

func NewAPI(l *listmirror.Listmirror) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	a := &Api{listmirror: l, router: r}
	r.GET("/webhook", a.HandleWebhook)
	r.POST("/webhook", a.HandleWebhook)

	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	return a
}
