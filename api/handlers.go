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
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/listmirror/listmirror/internal/apierror"
)

// GetSyncAttempts returns journal rows for a (site, list) pair, newest
// first.
func (a Api) GetSyncAttempts(c *gin.Context) {
	siteID := c.Param("site_id")
	listID := c.Param("list_id")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	attempts, err := a.listmirror.GetSyncAttempts(c.Request.Context(), siteID, listID, limit, offset)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, attempts)
}

// GetWatermark returns the effective delta cursor for a (site, list)
// pair.
func (a Api) GetWatermark(c *gin.Context) {
	siteID := c.Param("site_id")
	listID := c.Param("list_id")

	watermark, err := a.listmirror.CurrentWatermark(c.Request.Context(), siteID, listID)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"site_id": siteID, "list_id": listID, "watermark": watermark})
}
