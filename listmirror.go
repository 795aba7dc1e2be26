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

package listmirror

import (
	"context"
	"embed"

	"github.com/listmirror/listmirror/cache"
	"github.com/listmirror/listmirror/config"
	"github.com/listmirror/listmirror/database"
	"github.com/listmirror/listmirror/feed"
	"github.com/listmirror/listmirror/internal/archive"
	"github.com/listmirror/listmirror/internal/extract"
	redis_db "github.com/listmirror/listmirror/internal/redis-db"
	"github.com/listmirror/listmirror/model"
	"github.com/redis/go-redis/v9"
)

// ChangeFeed is the remote change-feed surface the orchestrator needs.
// *feed.Client implements it; tests substitute fakes.
type ChangeFeed interface {
	VerifyConnection(ctx context.Context) error
	PullDelta(ctx context.Context, siteID, listID, cursor string) (*feed.DeltaResult, error)
	DownloadItem(ctx context.Context, siteID, listID, itemID string) ([]byte, error)
}

// Archiver dead-letters queue messages that cannot be processed.
type Archiver interface {
	Archive(ctx context.Context, kind, message string) (string, error)
}

// TableExtractor turns raw artifact bytes into tabular sections.
type TableExtractor interface {
	Extract(content []byte) ([]model.Table, error)
}

// Listmirror represents the main struct for the Listmirror application.
type Listmirror struct {
	queue      *Queue
	datasource database.IDataSource
	feed       ChangeFeed
	archive    Archiver
	extractor  TableExtractor
	redis      redis.UniversalClient
	cache      cache.Cache
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewListmirror initializes a new instance of Listmirror with the
// provided database datasource. It fetches the configuration and wires
// up the Redis client, queue, change-feed client, and dead-letter
// archive.
func NewListmirror(db database.IDataSource) (*Listmirror, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient(configuration.Redis.Dns, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)
	feedClient := feed.NewClient(configuration.Feed, feed.NewTokenSource(configuration.Feed))
	dedupCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}

	var deadLetter Archiver
	if configuration.Archive.S3BucketName != "" {
		store, err := archive.NewStore(context.Background(), configuration.Archive)
		if err != nil {
			return nil, err
		}
		deadLetter = store
	}

	newListmirror := &Listmirror{
		datasource: db,
		queue:      newQueue,
		feed:       feedClient,
		archive:    deadLetter,
		extractor:  extract.CSV{},
		redis:      redisClient.Client(),
		cache:      dedupCache,
	}
	return newListmirror, nil
}

// EnqueueNotification queues a raw webhook body for asynchronous
// processing.
func (l *Listmirror) EnqueueNotification(ctx context.Context, rawBody string) error {
	return l.queue.EnqueueNotification(ctx, rawBody)
}

// GetSyncAttempts returns journal rows for a (site, list) pair, newest
// first.
func (l *Listmirror) GetSyncAttempts(ctx context.Context, siteID, listID string, limit, offset int) ([]model.SyncAttempt, error) {
	return l.datasource.GetSyncAttempts(ctx, siteID, listID, limit, offset)
}

// CurrentWatermark resolves the effective delta cursor for a (site,
// list) pair.
func (l *Listmirror) CurrentWatermark(ctx context.Context, siteID, listID string) (string, error) {
	return l.datasource.CurrentWatermark(ctx, siteID, listID)
}
