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

package model

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Queue payload kinds. The discriminator is chosen at serialization
// time so a consumer never has to probe a payload's shape to tell a
// fresh notification batch from a continuation.
const (
	PayloadKindNotificationBatch = "notification_batch"
	PayloadKindContinuation      = "continuation"
)

// QueuePayload is the envelope carried by every sync queue message.
// Exactly one of RawBody or Continuation is populated, matching Kind.
type QueuePayload struct {
	Kind         string        `json:"kind"`
	RawBody      string        `json:"body,omitempty"`
	Continuation *Continuation `json:"continuation,omitempty"`
}

// Continuation carries the work left over from a step that hit its
// per-invocation item ceiling: the ids still to fetch and the cursor
// that must not be journaled until they are all ingested.
type Continuation struct {
	SiteID         string   `json:"siteId"`
	ListID         string   `json:"listId"`
	ItemIDs        []string `json:"itemIds"`
	DeltaLink      string   `json:"deltaLink"`
	SubscriptionID string   `json:"subscriptionId,omitempty"`
}

// NotificationBatch is the raw webhook body shape pushed by the remote
// service. A missing or null value array means zero notices.
type NotificationBatch struct {
	Value []Notification `json:"value"`
}

// Notification is a single push notice for a monitored list.
type Notification struct {
	Resource       string `json:"resource"`
	ChangeType     string `json:"changeType"`
	SubscriptionID string `json:"subscriptionId"`
}

// NewNotificationPayload wraps a raw webhook body, unparsed, for
// asynchronous processing.
func NewNotificationPayload(rawBody string) *QueuePayload {
	return &QueuePayload{Kind: PayloadKindNotificationBatch, RawBody: rawBody}
}

// NewContinuationPayload wraps the remainder of a bounded step.
func NewContinuationPayload(c *Continuation) *QueuePayload {
	return &QueuePayload{Kind: PayloadKindContinuation, Continuation: c}
}

// DecodeQueuePayload parses and validates a queue message envelope.
func DecodeQueuePayload(data []byte) (*QueuePayload, error) {
	var payload QueuePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.Wrap(err, "invalid queue payload")
	}
	switch payload.Kind {
	case PayloadKindNotificationBatch:
		if strings.TrimSpace(payload.RawBody) == "" {
			return nil, errors.New("notification payload has empty body")
		}
	case PayloadKindContinuation:
		if payload.Continuation == nil {
			return nil, errors.New("continuation payload has no continuation")
		}
		if payload.Continuation.SiteID == "" || payload.Continuation.ListID == "" {
			return nil, errors.New("continuation payload missing site or list id")
		}
		if payload.Continuation.DeltaLink == "" {
			return nil, errors.New("continuation payload missing delta link")
		}
	default:
		return nil, errors.Errorf("unknown queue payload kind %q", payload.Kind)
	}
	return &payload, nil
}

// ParseNotificationBatch decodes the raw webhook body a notification
// payload carries. The ingress queues bodies unparsed, so decoding
// failures surface here, inside the orchestration step.
func ParseNotificationBatch(rawBody string) (*NotificationBatch, error) {
	var batch NotificationBatch
	if err := json.Unmarshal([]byte(rawBody), &batch); err != nil {
		return nil, errors.Wrap(err, "invalid notification batch body")
	}
	return &batch, nil
}

// SiteAndList extracts the site and list ids from a notice's resource
// path, e.g. "sites/{siteId}/lists/{listId}".
func (n Notification) SiteAndList() (string, string, error) {
	segments := strings.Split(strings.Trim(n.Resource, "/"), "/")
	for i := 0; i+3 < len(segments); i++ {
		if strings.EqualFold(segments[i], "sites") && strings.EqualFold(segments[i+2], "lists") &&
			segments[i+1] != "" && segments[i+3] != "" {
			return segments[i+1], segments[i+3], nil
		}
	}
	return "", "", errors.Errorf("resource %q does not name a site and list", n.Resource)
}
