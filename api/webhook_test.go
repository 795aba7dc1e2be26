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
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/listmirror/listmirror"
	"github.com/listmirror/listmirror/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
		Sync:  config.SyncConfig{Queue: "list_sync", BatchSize: 10, LockTTLSec: 60},
		Feed:  config.FeedConfig{BaseURL: "https://feed.example.com/v1", TimeoutSec: 5},
	})

	l, err := listmirror.NewListmirror(nil)
	require.NoError(t, err)
	return NewAPI(l).Router(), mr
}

func TestWebhook_HandshakeEchoesTokenVerbatim(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/webhook?validationToken=abc+def%26ghi", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc def&ghi", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestWebhook_HandshakeParameterNameIsCaseInsensitive(t *testing.T) {
	router, mr := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhook?ValidationTOKEN=tok-123", strings.NewReader(`{"value": []}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok-123", w.Body.String())
	assert.Empty(t, mr.Keys(), "a handshake must not enqueue anything")
}

func TestWebhook_NotificationQueuedRawAndAccepted(t *testing.T) {
	router, mr := newTestRouter(t)

	body := `{"value": [{"resource": "sites/site-1/lists/list-1", "changeType": "updated", "subscriptionId": "sub-1"}]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.NotEmpty(t, mr.Keys(), "notification should be enqueued")
}

func TestWebhook_MalformedBodyIsStillAccepted(t *testing.T) {
	// Parsing is deferred to the worker; the ingress only rejects
	// missing bodies.
	router, mr := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader("{{ not json"))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.NotEmpty(t, mr.Keys())
}

func TestWebhook_EmptyBodyRejected(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, body := range []string{"", "   \n\t "} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestLivenessRoute(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
