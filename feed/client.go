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

// Package feed implements the cursor-based change-feed client. The
// client makes exactly one logical attempt per call and never retries;
// retry and backoff policy belongs to the orchestrator's queue.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/listmirror/listmirror/config"
	"github.com/listmirror/listmirror/model"
	"github.com/pkg/errors"
)

// Client talks to the remote list service's delta API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// DeltaResult is the outcome of one full delta enumeration: every item
// id across every page, plus the terminal cursor to journal once those
// ids are ingested.
type DeltaResult struct {
	DeltaLink string
	ItemIDs   []string
}

type deltaPage struct {
	Value     []deltaItem `json:"value"`
	NextLink  string      `json:"@odata.nextLink"`
	DeltaLink string      `json:"@odata.deltaLink"`
}

type deltaItem struct {
	ID string `json:"id"`
}

// NewClient builds a feed client from configuration. Pass a
// StaticTokenSource in tests.
func NewClient(cnf config.FeedConfig, tokens TokenSource) *Client {
	timeout := time.Duration(cnf.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cnf.BaseURL,
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

// VerifyConnection makes a cheap authenticated call to confirm the
// remote service is reachable and the credentials still work. A
// failure here is the orchestrator's cue to archive instead of retry.
func (c *Client) VerifyConnection(ctx context.Context) error {
	resp, err := c.get(ctx, fmt.Sprintf("%s/sites/root", c.baseURL))
	if err != nil {
		return errors.Wrap(err, "feed service unreachable")
	}
	defer closeBody(resp)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("feed service returned status %d", resp.StatusCode)
	}
	return nil
}

// PullDelta enumerates everything changed since the cursor. The
// bootstrap sentinel issues a zero-enumeration "start now" request
// that seeds a watermark without importing the whole list; any other
// cursor is followed through the server's page-link chain until a
// terminal cursor comes back. A zero-change page sequence is valid.
func (c *Client) PullDelta(ctx context.Context, siteID, listID, cursor string) (*DeltaResult, error) {
	url := cursor
	if cursor == model.WatermarkLatest {
		url = fmt.Sprintf("%s/sites/%s/lists/%s/items/delta?token=latest", c.baseURL, siteID, listID)
	}

	result := &DeltaResult{ItemIDs: []string{}}
	for {
		page, err := c.getDeltaPage(ctx, url)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Value {
			result.ItemIDs = append(result.ItemIDs, item.ID)
		}
		if page.NextLink != "" {
			url = page.NextLink
			continue
		}
		if page.DeltaLink == "" {
			return nil, errors.New("delta page chain ended without a terminal cursor")
		}
		result.DeltaLink = page.DeltaLink
		return result, nil
	}
}

// DownloadItem fetches the tabular artifact attached to a list item.
func (c *Client) DownloadItem(ctx context.Context, siteID, listID, itemID string) ([]byte, error) {
	url := fmt.Sprintf("%s/sites/%s/lists/%s/items/%s/driveItem/content", c.baseURL, siteID, listID, itemID)
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "downloading item %s", itemID)
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("downloading item %s: status %d", itemID, resp.StatusCode)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading item %s content", itemID)
	}
	return content, nil
}

func (c *Client) getDeltaPage(ctx context.Context, url string) (*deltaPage, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "delta pull failed")
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("delta pull returned status %d", resp.StatusCode)
	}
	var page deltaPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, errors.Wrap(err, "decoding delta page")
	}
	return &page, nil
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "acquiring feed token")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.http.Do(req)
}

func closeBody(resp *http.Response) {
	_ = resp.Body.Close()
}
