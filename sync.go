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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/listmirror/listmirror/cache"
	"github.com/listmirror/listmirror/config"
	"github.com/listmirror/listmirror/internal/apierror"
	"github.com/listmirror/listmirror/internal/archive"
	redlock "github.com/listmirror/listmirror/internal/lock"
	"github.com/listmirror/listmirror/internal/notification"
	"github.com/listmirror/listmirror/model"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("listmirror.sync")

// errSyncLockHeld marks a step that lost the per-list lock race. The
// message is returned to the queue unarchived so a later delivery can
// run it once the holder finishes.
var errSyncLockHeld = errors.New("sync step lock is held by another worker")

// ProcessSyncMessage is the queue handler for every sync message, both
// fresh notification batches and continuations. Failure policy:
//
//   - remote service unreachable: the message is archived and the
//     delivery succeeds, so the queue never spins against an outage;
//   - unparseable payload: archived and re-raised, letting the queue's
//     retry ceiling dead-letter the poison message;
//   - mid-step failure: the attempt is journaled as FAILED, the
//     message is archived, and the delivery succeeds.
func (l *Listmirror) ProcessSyncMessage(ctx context.Context, t *asynq.Task) error {
	ctx, span := tracer.Start(ctx, "Processing Sync Message")
	defer span.End()

	if err := l.feed.VerifyConnection(ctx); err != nil {
		l.deadLetter(ctx, archive.KindConnectionFailed, string(t.Payload()), err)
		return nil
	}

	payload, err := model.DecodeQueuePayload(t.Payload())
	if err != nil {
		l.deadLetter(ctx, archive.KindProcessingError, string(t.Payload()), err)
		return err
	}

	switch payload.Kind {
	case model.PayloadKindNotificationBatch:
		err = l.processNotificationBatch(ctx, payload.RawBody)
	case model.PayloadKindContinuation:
		err = l.processContinuation(ctx, payload.Continuation)
	}
	if err != nil {
		if errors.Is(err, errSyncLockHeld) {
			return err
		}
		l.deadLetter(ctx, archive.KindProcessingError, string(t.Payload()), err)
		if apierror.IsInvalidInput(err) {
			return err
		}
		return nil
	}
	return nil
}

// processNotificationBatch parses a raw webhook body and runs one sync
// step per notice. Steps fail fast: the first failing notice stops the
// batch so the whole message can be archived with its cause.
func (l *Listmirror) processNotificationBatch(ctx context.Context, rawBody string) error {
	ctx, span := tracer.Start(ctx, "Processing Notification Batch")
	defer span.End()

	batch, err := model.ParseNotificationBatch(rawBody)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
	}
	if len(batch.Value) == 0 {
		log.Println(" [*] Notification batch carried zero notices, nothing to sync")
		return nil
	}

	for _, notice := range batch.Value {
		siteID, listID, err := notice.SiteAndList()
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
		}
		if err := l.syncList(ctx, siteID, listID, notice.SubscriptionID); err != nil {
			return err
		}
	}
	return nil
}

// syncList runs one bounded sync step for a (site, list) pair: resolve
// the watermark, pull the full delta enumeration, ingest up to the
// batch ceiling, and either journal a terminal cursor or hand the
// remainder to a continuation.
func (l *Listmirror) syncList(ctx context.Context, siteID, listID, subscriptionID string) error {
	ctx, span := tracer.Start(ctx, "Syncing List")
	defer span.End()

	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	locker := redlock.NewSyncStepLocker(l.redis, siteID, listID)
	if err := locker.Lock(ctx, time.Duration(cfg.Sync.LockTTLSec)*time.Second); err != nil {
		return errors.Wrapf(errSyncLockHeld, "site %s list %s", siteID, listID)
	}
	defer func() {
		if err := locker.Unlock(context.Background()); err != nil {
			log.Printf("Error unlocking sync step for %s/%s: %v", siteID, listID, err)
		}
	}()

	attempt := l.newAttempt(siteID, listID, subscriptionID)

	cursor, err := l.datasource.CurrentWatermark(ctx, siteID, listID)
	if err != nil {
		return errors.Wrap(err, "resolving watermark")
	}

	delta, err := l.feed.PullDelta(ctx, siteID, listID, cursor)
	if err != nil {
		l.recordFailure(ctx, attempt, err)
		return err
	}

	if len(delta.ItemIDs) == 0 {
		// A bootstrap pull seeds the first cursor; a zero-change pull
		// advances it. Both journal the terminal cursor immediately.
		attempt.Status = model.StatusSkipped
		if cursor == model.WatermarkLatest {
			attempt.Status = model.StatusCompleted
		}
		attempt.DeltaLink = &delta.DeltaLink
		return l.recordAttempt(ctx, attempt)
	}

	return l.ingestBatch(ctx, attempt, &model.Continuation{
		SiteID:         siteID,
		ListID:         listID,
		ItemIDs:        delta.ItemIDs,
		DeltaLink:      delta.DeltaLink,
		SubscriptionID: subscriptionID,
	}, cfg.Sync.BatchSize)
}

// processContinuation ingests the next slice of a step that exceeded
// its batch ceiling. The cursor travels inside the message and is only
// journaled once the item list is exhausted.
func (l *Listmirror) processContinuation(ctx context.Context, continuation *model.Continuation) error {
	ctx, span := tracer.Start(ctx, "Processing Continuation")
	defer span.End()

	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	locker := redlock.NewSyncStepLocker(l.redis, continuation.SiteID, continuation.ListID)
	if err := locker.Lock(ctx, time.Duration(cfg.Sync.LockTTLSec)*time.Second); err != nil {
		return errors.Wrapf(errSyncLockHeld, "site %s list %s", continuation.SiteID, continuation.ListID)
	}
	defer func() {
		if err := locker.Unlock(context.Background()); err != nil {
			log.Printf("Error unlocking sync step for %s/%s: %v", continuation.SiteID, continuation.ListID, err)
		}
	}()

	attempt := l.newAttempt(continuation.SiteID, continuation.ListID, continuation.SubscriptionID)
	return l.ingestBatch(ctx, attempt, continuation, cfg.Sync.BatchSize)
}

// ingestBatch ingests up to batchSize items from the continuation's
// list. When items remain the attempt is journaled without a cursor
// and the remainder re-enqueued; the watermark therefore only advances
// once every item the cursor covers has been ingested.
func (l *Listmirror) ingestBatch(ctx context.Context, attempt *model.SyncAttempt, continuation *model.Continuation, batchSize int) error {
	bound := len(continuation.ItemIDs)
	if batchSize > 0 && batchSize < bound {
		bound = batchSize
	}

	for _, itemID := range continuation.ItemIDs[:bound] {
		if err := l.ingestItem(ctx, attempt, continuation.SiteID, continuation.ListID, itemID); err != nil {
			l.recordFailure(ctx, attempt, errors.Wrapf(err, "ingesting item %s", itemID))
			return err
		}
		attempt.SuccessfulItems++
	}

	if bound < len(continuation.ItemIDs) {
		remainder := &model.Continuation{
			SiteID:         continuation.SiteID,
			ListID:         continuation.ListID,
			ItemIDs:        continuation.ItemIDs[bound:],
			DeltaLink:      continuation.DeltaLink,
			SubscriptionID: continuation.SubscriptionID,
		}
		if err := l.queue.EnqueueContinuation(ctx, remainder); err != nil {
			l.recordFailure(ctx, attempt, errors.Wrap(err, "enqueuing continuation"))
			return err
		}
		// No cursor on a partial step: a crash between here and the
		// continuation's completion replays items rather than losing
		// them.
		attempt.Status = model.StatusProcessing
		return l.recordAttempt(ctx, attempt)
	}

	attempt.Status = model.StatusCompleted
	attempt.DeltaLink = &continuation.DeltaLink
	return l.recordAttempt(ctx, attempt)
}

// ingestItem downloads one changed item and loads its tables inside a
// single transaction. Content already mirrored (same hash and size,
// marked processed) is skipped.
func (l *Listmirror) ingestItem(ctx context.Context, attempt *model.SyncAttempt, siteID, listID, itemID string) error {
	ctx, span := tracer.Start(ctx, "Ingesting Item")
	defer span.End()

	content, err := l.feed.DownloadItem(ctx, siteID, listID, itemID)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])
	size := int64(len(content))

	if l.mirroredBefore(ctx, hash, size) {
		log.Printf(" [*] Item %s content already mirrored, skipping", itemID)
		return nil
	}

	existing, err := l.datasource.GetArtifactByHashAndSize(ctx, hash, size)
	if err != nil {
		return err
	}
	if existing != nil && existing.Status == model.ArtifactProcessed {
		log.Printf(" [*] Item %s content already mirrored (artifact %s), skipping", itemID, existing.ArtifactID)
		l.rememberMirrored(ctx, hash, size, existing.ArtifactID)
		return nil
	}

	tables, err := l.extractor.Extract(content)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("extracting item %s: %s", itemID, err.Error()), err)
	}

	record := &model.ArtifactRecord{
		ArtifactID:   model.GenerateUUIDWithSuffix("art"),
		ContentHash:  hash,
		ContentSize:  size,
		SourceItemID: itemID,
		Status:       model.ArtifactPending,
		AttemptID:    attempt.AttemptID,
		CreatedAt:    time.Now(),
	}
	ingested, err := l.datasource.IngestArtifact(ctx, record, tables)
	if err != nil {
		return err
	}
	l.rememberMirrored(ctx, hash, size, ingested.ArtifactID)
	return nil
}

// mirroredBefore consults the dedup verdict cache. Misses and cache
// errors both fall through to the store lookup.
func (l *Listmirror) mirroredBefore(ctx context.Context, hash string, size int64) bool {
	if l.cache == nil {
		return false
	}
	var artifactID string
	if err := l.cache.Get(ctx, cache.DedupKey(hash, size), &artifactID); err != nil {
		return false
	}
	return artifactID != ""
}

func (l *Listmirror) rememberMirrored(ctx context.Context, hash string, size int64, artifactID string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Set(ctx, cache.DedupKey(hash, size), artifactID, cache.DedupTTL); err != nil {
		log.Printf("Error caching dedup verdict for %s: %v", hash, err)
	}
}

func (l *Listmirror) newAttempt(siteID, listID, subscriptionID string) *model.SyncAttempt {
	return &model.SyncAttempt{
		AttemptID:      model.GenerateUUIDWithSuffix("atm"),
		SiteID:         siteID,
		ListID:         listID,
		SubscriptionID: subscriptionID,
		Status:         model.StatusProcessing,
		CreatedAt:      time.Now(),
	}
}

// recordAttempt journals a finished attempt. Rows are written once, at
// the end of the step, so the journal stays append-only.
func (l *Listmirror) recordAttempt(ctx context.Context, attempt *model.SyncAttempt) error {
	attempt.LastProcessedAt = time.Now()
	if _, err := l.datasource.RecordSyncAttempt(ctx, attempt); err != nil {
		return errors.Wrap(err, "recording sync attempt")
	}
	return nil
}

// recordFailure journals a FAILED attempt without a cursor. Journal
// errors here are logged rather than returned: the step's original
// failure is the one the caller must see.
func (l *Listmirror) recordFailure(ctx context.Context, attempt *model.SyncAttempt, cause error) {
	attempt.Status = model.StatusFailed
	message := cause.Error()
	attempt.LastError = &message
	if err := l.recordAttempt(ctx, attempt); err != nil {
		log.Printf("Error recording failed sync attempt %s: %v", attempt.AttemptID, err)
	}
}

// deadLetter archives an unprocessable message and notifies. Archive
// failures are logged; a broken archive must not take the worker down
// with it.
func (l *Listmirror) deadLetter(ctx context.Context, kind, message string, cause error) {
	notification.NotifyError(cause)
	if l.archive == nil {
		log.Printf("Dead-letter archive not configured, dropping %s message: %v", kind, cause)
		return
	}
	key, err := l.archive.Archive(ctx, kind, message)
	if err != nil {
		log.Printf("Error archiving %s message: %v", kind, err)
		return
	}
	log.Printf(" [*] Archived unprocessable message as %s (cause: %v)", key, cause)
}
