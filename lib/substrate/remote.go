// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

package substrate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cryptopatrick/xfiles/lib/clock"
)

// RemoteConfig holds configuration for creating a Remote adapter.
type RemoteConfig struct {
	// BaseURL is the base URL of the substrate API gateway
	// (e.g., "https://substrate.example.com").
	BaseURL string

	// AccessToken authenticates every request as a bearer token.
	AccessToken string

	// HTTPClient is used for all requests. If nil,
	// http.DefaultClient is used.
	HTTPClient *http.Client

	// Clock is used to convert reset timestamps into wait durations.
	// If nil, the real clock is used.
	Clock clock.Clock

	// Logger is used for structured logging. If nil, logs are
	// discarded.
	Logger *slog.Logger
}

// Remote is the network-backed Adapter. It speaks JSON over HTTP to a
// broadcast substrate gateway:
//
//	POST /v1/posts                 publish (optionally a reply)
//	GET  /v1/posts/{id}            fetch one post
//	GET  /v1/posts/{id}/replies    list direct reply ids, oldest first
//
// Post content travels base64-encoded, since chunk payloads are
// arbitrary bytes and the substrate's post body is text.
//
// Remote does not retry and holds no rate-budget state; wrap it with
// [WithRetry]. It is safe for concurrent use.
type Remote struct {
	baseURL    string
	token      string
	httpClient *http.Client
	clock      clock.Clock
	logger     *slog.Logger
}

// NewRemote creates a Remote adapter. Transport details beyond the
// gateway API (how the gateway authenticates to the substrate proper,
// proxies, media handling) are the gateway's concern, not this
// package's.
func NewRemote(cfg RemoteConfig) (*Remote, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("substrate: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("substrate: invalid BaseURL %q: %w", cfg.BaseURL, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Remote{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.AccessToken,
		httpClient: httpClient,
		clock:      clk,
		logger:     logger,
	}, nil
}

// Wire types for the gateway API.

type postRequest struct {
	Content string `json:"content"` // base64
	ReplyTo string `json:"reply_to,omitempty"`
}

type postResponse struct {
	ID string `json:"id"`
}

type getResponse struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Content   string `json:"content"` // base64
	CreatedAt string `json:"created_at"`
	ReplyTo   string `json:"reply_to,omitempty"`
}

type repliesResponse struct {
	IDs []string `json:"ids"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Post implements [Adapter].
func (r *Remote) Post(ctx context.Context, content []byte, replyTo PostID) (PostID, error) {
	request := postRequest{
		Content: base64.StdEncoding.EncodeToString(content),
		ReplyTo: string(replyTo),
	}

	body, err := r.doRequest(ctx, http.MethodPost, "/v1/posts", request)
	if err != nil {
		return "", err
	}

	var response postResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("substrate: parsing post response: %w", err)
	}
	if response.ID == "" {
		return "", fmt.Errorf("substrate: post response missing id")
	}
	return PostID(response.ID), nil
}

// Get implements [Adapter].
func (r *Remote) Get(ctx context.Context, id PostID) (*Post, error) {
	body, err := r.doRequest(ctx, http.MethodGet, "/v1/posts/"+url.PathEscape(string(id)), nil)
	if err != nil {
		return nil, err
	}

	var response getResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("substrate: parsing get response: %w", err)
	}

	content, err := base64.StdEncoding.DecodeString(response.Content)
	if err != nil {
		return nil, fmt.Errorf("substrate: decoding content of post %s: %w", id, err)
	}

	post := &Post{
		ID:      PostID(response.ID),
		Author:  response.Author,
		Content: content,
		ReplyTo: PostID(response.ReplyTo),
	}
	if response.CreatedAt != "" {
		createdAt, err := time.Parse(time.RFC3339, response.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("substrate: parsing created_at of post %s: %w", id, err)
		}
		post.CreatedAt = createdAt
	}
	return post, nil
}

// GetReplies implements [Adapter]. The gateway returns reply ids
// oldest first; the order is passed through untouched.
func (r *Remote) GetReplies(ctx context.Context, id PostID) ([]PostID, error) {
	body, err := r.doRequest(ctx, http.MethodGet, "/v1/posts/"+url.PathEscape(string(id))+"/replies", nil)
	if err != nil {
		return nil, err
	}

	var response repliesResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("substrate: parsing replies response: %w", err)
	}

	ids := make([]PostID, len(response.IDs))
	for i, replyID := range response.IDs {
		ids[i] = PostID(replyID)
	}
	return ids, nil
}

// doRequest performs one HTTP request and returns the response body.
// Non-2xx responses are decoded into a structured *Error with the
// status mapped to a Code. Transport failures return the underlying
// error unwrapped, which the retry wrapper treats as transient.
func (r *Remote) doRequest(ctx context.Context, method, path string, requestBody any) ([]byte, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("substrate: encoding request: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("substrate: building request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		request.Header.Set("Authorization", "Bearer "+r.token)
	}

	response, err := r.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("substrate: reading response: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return body, nil
	}

	return nil, r.errorFromResponse(response, body)
}

// errorFromResponse maps a non-2xx gateway response to a structured
// *Error. Rate-limit responses carry the reset window so the retry
// wrapper can bound its backoff by it.
func (r *Remote) errorFromResponse(response *http.Response, body []byte) *Error {
	var payload errorResponse
	// Best effort: an empty or non-JSON error body still maps to a
	// coded error from the status alone.
	_ = json.Unmarshal(body, &payload)

	substrateErr := &Error{
		StatusCode: response.StatusCode,
		Message:    payload.Message,
	}
	if substrateErr.Message == "" {
		substrateErr.Message = http.StatusText(response.StatusCode)
	}

	switch {
	case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
		substrateErr.Code = CodeAuth
	case response.StatusCode == http.StatusNotFound:
		substrateErr.Code = CodeNotFound
	case response.StatusCode == http.StatusRequestEntityTooLarge:
		substrateErr.Code = CodeTooLarge
	case response.StatusCode == http.StatusTooManyRequests:
		substrateErr.Code = CodeRateLimited
		substrateErr.RetryAfter = r.resetWindow(response.Header)
	case response.StatusCode >= 500:
		substrateErr.Code = CodeUnavailable
	default:
		// Other 4xx: permanent client errors. Auth is the closest
		// non-retryable class without inventing a new one per status.
		substrateErr.Code = CodeAuth
	}
	return substrateErr
}

// resetWindow computes the backoff duration from rate-limit response
// headers. Checks Retry-After (seconds) first, then falls back to the
// X-RateLimit-Reset Unix timestamp. Returns zero if neither is usable.
func (r *Remote) resetWindow(header http.Header) time.Duration {
	if retryStr := header.Get("Retry-After"); retryStr != "" {
		if seconds, err := strconv.Atoi(retryStr); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	if resetStr := header.Get("X-RateLimit-Reset"); resetStr != "" {
		if resetUnix, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			duration := time.Unix(resetUnix, 0).Sub(r.clock.Now())
			if duration > 0 {
				return duration
			}
		}
	}

	return 0
}
