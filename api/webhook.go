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
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HandleWebhook is the push ingress. Two cases share the route:
//
//   - a subscription handshake carries a validation token as a query
//     parameter and must get it echoed back verbatim as plain text;
//   - a change notification carries a JSON body that is queued
//     unparsed, so the ingress can acknowledge inside the push
//     service's delivery deadline no matter how large the batch is.
func (a Api) HandleWebhook(c *gin.Context) {
	if token, ok := validationToken(c); ok {
		c.String(http.StatusOK, token)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
		return
	}
	if strings.TrimSpace(string(body)) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "notification body is empty"})
		return
	}

	if err := a.listmirror.EnqueueNotification(c.Request.Context(), string(body)); err != nil {
		// Not yet durable, so the push service must redeliver.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not queue notification"})
		return
	}

	c.Status(http.StatusAccepted)
}

// validationToken finds the handshake token regardless of the casing
// the push service uses for the parameter name.
func validationToken(c *gin.Context) (string, bool) {
	for name, values := range c.Request.URL.Query() {
		if strings.EqualFold(name, "validationToken") && len(values) > 0 {
			return values[0], true
		}
	}
	return "", false
}
