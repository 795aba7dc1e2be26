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
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
	"github.com/listmirror/listmirror/config"
	redis_db "github.com/listmirror/listmirror/internal/redis-db"
	"github.com/listmirror/listmirror/model"
)

// Queue represents the Redis-backed sync queue. Fresh notification
// batches and continuations travel through the same queue so a
// continuation is processed with the same delivery guarantees as the
// notice that spawned it.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// EnqueueNotification queues a raw webhook body for asynchronous
// processing. The body is carried verbatim; parsing is deferred to the
// worker so the ingress can acknowledge within the push deadline.
func (q *Queue) EnqueueNotification(ctx context.Context, rawBody string) error {
	return q.enqueue(ctx, model.NewNotificationPayload(rawBody))
}

// EnqueueContinuation queues the remainder of a bounded sync step.
func (q *Queue) EnqueueContinuation(ctx context.Context, continuation *model.Continuation) error {
	return q.enqueue(ctx, model.NewContinuationPayload(continuation))
}

func (q *Queue) enqueue(ctx context.Context, payload *model.QueuePayload) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	taskOptions := []asynq.Option{asynq.Queue(cfg.Sync.Queue), asynq.MaxRetry(5)}
	task := asynq.NewTask(cfg.Sync.Queue, data, taskOptions...)
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued %s message", payload.Kind)
	return nil
}
