// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package permission implements the asynchronous human-decision bridge a
// subordinate tool-call server blocks on: submit a request, poll it with a
// hard timeout, and have a human approve (optionally modifying the tool
// input) or deny it from the user interface.
//
// Grounded on wingedpig-trellis's pendingControlRequest field (one
// in-flight permission prompt tracked per session and re-displayed to
// reconnecting clients), generalized here to a broker-wide map keyed by
// request id with a real wall-clock timeout instead of a single
// WebSocket push.
package permission

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/basinlabs/cuid/internal/logging"
)

var log = logging.For("permission")

// Status is the lifecycle state of a Request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusExpired  Status = "expired"
)

// DefaultTimeout is the hard deadline a pending request waits before the
// broker transitions it to expired.
const DefaultTimeout = 300 * time.Second

// gracePeriod keeps a resolved request around after resolution so late
// pollers still observe the decision instead of a 404.
const gracePeriod = 30 * time.Second

// ErrNotFound is returned when a request id is unknown or has already
// been garbage-collected past its grace period.
var ErrNotFound = errors.New("permission request not found")

// Request is one pending or resolved tool-permission decision.
type Request struct {
	ID            string          `json:"id"`
	StreamingID   string          `json:"streaming_id"`
	SessionID     string          `json:"session_id,omitempty"`
	ToolName      string          `json:"tool_name"`
	ToolInput     json.RawMessage `json:"tool_input"`
	CreatedAt     time.Time       `json:"created_at"`
	Status        Status          `json:"status"`
	ModifiedInput json.RawMessage `json:"modified_input,omitempty"`
	DenyReason    string          `json:"deny_reason,omitempty"`
	resolvedAt    time.Time
}

// Submission is the input to Submit.
type Submission struct {
	StreamingID string
	SessionID   string
	ToolName    string
	ToolInput   json.RawMessage
}

// Notifier is invoked once per newly-submitted request, e.g. to push a
// desktop or web-push notification. Left unset, submissions are silent.
type Notifier func(Request)

// Broker tracks every in-flight and recently-resolved permission request.
type Broker struct {
	mu       sync.Mutex
	requests map[string]*Request
	timeout  time.Duration
	notify   Notifier
}

// New creates a Broker with the default 300s hard timeout.
func New(notify Notifier) *Broker {
	return NewWithTimeout(notify, DefaultTimeout)
}

// NewWithTimeout creates a Broker with a custom hard timeout, primarily
// for tests that cannot wait 300s for expiry.
func NewWithTimeout(notify Notifier, timeout time.Duration) *Broker {
	return &Broker{
		requests: make(map[string]*Request),
		timeout:  timeout,
		notify:   notify,
	}
}

// Submit registers a new pending request and fires the notifier.
func (b *Broker) Submit(sub Submission) Request {
	req := &Request{
		ID:          uuid.New().String(),
		StreamingID: sub.StreamingID,
		SessionID:   sub.SessionID,
		ToolName:    sub.ToolName,
		ToolInput:   sub.ToolInput,
		CreatedAt:   time.Now(),
		Status:      StatusPending,
	}

	b.mu.Lock()
	b.requests[req.ID] = req
	b.mu.Unlock()

	if b.notify != nil {
		b.notify(*req)
	}
	return *req
}

// expireIfNeeded transitions req to expired if its hard timeout has
// elapsed, and reports whether it should be garbage-collected because its
// post-resolution grace period has also passed. Callers must hold b.mu.
func (b *Broker) expireIfNeeded(req *Request, now time.Time) (collect bool) {
	if req.Status == StatusPending && now.Sub(req.CreatedAt) > b.timeout {
		req.Status = StatusExpired
		req.DenyReason = "timeout"
		req.resolvedAt = now
		log.Warn().Str("request_id", req.ID).Msg("permission request expired")
	}

	return req.Status != StatusPending && !req.resolvedAt.IsZero() && now.Sub(req.resolvedAt) > gracePeriod
}

// Poll returns the current state of a request, expiring it in place if its
// hard timeout has elapsed, and garbage-collecting it once its grace
// period after resolution has passed.
func (b *Broker) Poll(id string) (Request, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	req, ok := b.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}

	if b.expireIfNeeded(req, time.Now()) {
		delete(b.requests, id)
		return Request{}, ErrNotFound
	}

	return *req, nil
}

// Approve resolves a pending request as approved, optionally replacing its
// tool_input with modifiedInput. Subordinate servers must honor the
// returned (possibly modified) input, not the original.
func (b *Broker) Approve(id string, modifiedInput json.RawMessage) (Request, error) {
	return b.resolve(id, StatusApproved, modifiedInput, "")
}

// Deny resolves a pending request as denied with a human-readable reason.
func (b *Broker) Deny(id string, reason string) (Request, error) {
	return b.resolve(id, StatusDenied, nil, reason)
}

func (b *Broker) resolve(id string, status Status, modifiedInput json.RawMessage, reason string) (Request, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	req, ok := b.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}

	now := time.Now()
	if b.expireIfNeeded(req, now) {
		delete(b.requests, id)
		return Request{}, ErrNotFound
	}
	if req.Status != StatusPending {
		return *req, nil // already resolved or expired: idempotent re-read, not an error
	}

	req.Status = status
	req.ModifiedInput = modifiedInput
	req.DenyReason = reason
	req.resolvedAt = now
	return *req, nil
}

// Pending lists every currently-pending request, oldest first, for a UI
// badge count. Requests past their hard timeout are expired in place (and
// garbage-collected past their grace period) before the list is built, so
// a request already overdue a Poll call never lingers as pending here.
func (b *Broker) Pending() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	var out []Request
	for id, r := range b.requests {
		if b.expireIfNeeded(r, now) {
			delete(b.requests, id)
			continue
		}
		if r.Status == StatusPending {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
