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
	"sync"

	"github.com/listmirror/listmirror/feed"
)

// MockChangeFeed is a function-backed ChangeFeed for tests. Unset
// functions succeed with empty results.
type MockChangeFeed struct {
	VerifyConnectionFn func(ctx context.Context) error
	PullDeltaFn        func(ctx context.Context, siteID, listID, cursor string) (*feed.DeltaResult, error)
	DownloadItemFn     func(ctx context.Context, siteID, listID, itemID string) ([]byte, error)
}

func (m *MockChangeFeed) VerifyConnection(ctx context.Context) error {
	if m.VerifyConnectionFn != nil {
		return m.VerifyConnectionFn(ctx)
	}
	return nil
}

func (m *MockChangeFeed) PullDelta(ctx context.Context, siteID, listID, cursor string) (*feed.DeltaResult, error) {
	if m.PullDeltaFn != nil {
		return m.PullDeltaFn(ctx, siteID, listID, cursor)
	}
	return &feed.DeltaResult{DeltaLink: cursor}, nil
}

func (m *MockChangeFeed) DownloadItem(ctx context.Context, siteID, listID, itemID string) ([]byte, error) {
	if m.DownloadItemFn != nil {
		return m.DownloadItemFn(ctx, siteID, listID, itemID)
	}
	return nil, nil
}

// ArchivedMessage is one dead-letter captured by MockArchiver.
type ArchivedMessage struct {
	Kind    string
	Message string
}

// MockArchiver records archived messages in memory.
type MockArchiver struct {
	mu       sync.Mutex
	Archived []ArchivedMessage
	Err      error
}

func (m *MockArchiver) Archive(_ context.Context, kind, message string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.Archived = append(m.Archived, ArchivedMessage{Kind: kind, Message: message})
	return kind + "test", nil
}
