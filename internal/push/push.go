// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package push tracks web-push subscription endpoints and exposes a thin
// Sender interface for delivering notifications. Actual delivery (the
// web-push protocol, VAPID signing, HTTP fan-out to push services) is an
// external collaborator; this package only owns subscription bookkeeping
// and the 404/410 expiry rule.
package push

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/basinlabs/cuid/internal/logging"
)

var log = logging.For("push")

// Subscription is one registered push endpoint.
type Subscription struct {
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
	Expired   bool      `json:"expired"`
}

// Message is a notification payload to deliver to every active
// subscription.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// DeliveryResult reports the outcome of one subscription's delivery
// attempt, for a broadcast summary.
type DeliveryResult struct {
	Endpoint string `json:"endpoint"`
	Err      error  `json:"-"`
	Status   int    `json:"status"`
}

// MarshalJSON renders Err as a plain string message, since the error
// interface itself carries no portable JSON representation.
func (d DeliveryResult) MarshalJSON() ([]byte, error) {
	type alias struct {
		Endpoint string `json:"endpoint"`
		Error    string `json:"error,omitempty"`
		Status   int    `json:"status"`
	}
	a := alias{Endpoint: d.Endpoint, Status: d.Status}
	if d.Err != nil {
		a.Error = d.Err.Error()
	}
	return json.Marshal(a)
}

// Sender delivers a message to a single subscription. Implementations
// wrap a real push library; Expire-worthy failures are signaled by
// returning the HTTP status the push service responded with.
type Sender interface {
	Send(ctx context.Context, sub Subscription, msg Message) (status int, err error)
}

// Store is the subscription bookkeeping table (web-push.db).
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the subscriptions database in WAL mode.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open push subscription db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS subscriptions (
		endpoint   TEXT PRIMARY KEY,
		p256dh     TEXT NOT NULL,
		auth       TEXT NOT NULL,
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		last_seen  TEXT NOT NULL,
		expired    INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create subscriptions table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Register upserts a subscription, refreshing last_seen and clearing any
// prior expiry.
func (s *Store) Register(ctx context.Context, sub Subscription) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `INSERT INTO subscriptions
		(endpoint, p256dh, auth, user_agent, created_at, last_seen, expired)
		VALUES (?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(endpoint) DO UPDATE SET
			p256dh = excluded.p256dh,
			auth = excluded.auth,
			user_agent = excluded.user_agent,
			last_seen = excluded.last_seen,
			expired = 0`,
		sub.Endpoint, sub.P256dh, sub.Auth, sub.UserAgent, now, now)
	if err != nil {
		return fmt.Errorf("register subscription: %w", err)
	}
	return nil
}

// Unregister removes a subscription by endpoint.
func (s *Store) Unregister(ctx context.Context, endpoint string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE endpoint = ?`, endpoint); err != nil {
		return fmt.Errorf("unregister subscription: %w", err)
	}
	return nil
}

// Expire marks a subscription as expired without deleting it, so its
// history remains available for diagnostics. Active() excludes it from
// future broadcasts.
func (s *Store) Expire(ctx context.Context, endpoint string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE subscriptions SET expired = 1 WHERE endpoint = ?`, endpoint); err != nil {
		return fmt.Errorf("expire subscription: %w", err)
	}
	return nil
}

// Active returns every non-expired subscription.
func (s *Store) Active(ctx context.Context) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT endpoint, p256dh, auth, user_agent, created_at, last_seen, expired
		FROM subscriptions WHERE expired = 0 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active subscriptions: %w", err)
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		var sub Subscription
		var createdAt, lastSeen string
		var expired int
		if err := rows.Scan(&sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.UserAgent, &createdAt, &lastSeen, &expired); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		sub.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		sub.LastSeen, _ = time.Parse(time.RFC3339Nano, lastSeen)
		sub.Expired = expired != 0
		out = append(out, sub)
	}
	return out, rows.Err()
}

// Broadcaster fans a message out to every active subscription through a
// Sender, expiring subscriptions whose delivery failed with 404/410 and
// never blocking the caller past perSubscriptionTimeout.
type Broadcaster struct {
	store                 *Store
	sender                Sender
	perSubscriptionTimeout time.Duration
}

// NewBroadcaster builds a Broadcaster with the spec's default 60s
// per-subscription delivery deadline.
func NewBroadcaster(store *Store, sender Sender) *Broadcaster {
	return &Broadcaster{store: store, sender: sender, perSubscriptionTimeout: 60 * time.Second}
}

// Broadcast delivers msg to every active subscription concurrently and
// returns a per-subscription result summary. Failures do not block the
// summary; a 404 or 410 status expires that subscription.
func (b *Broadcaster) Broadcast(ctx context.Context, msg Message) ([]DeliveryResult, error) {
	subs, err := b.store.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active subscriptions: %w", err)
	}

	results := make([]DeliveryResult, len(subs))
	done := make(chan int, len(subs))

	for i, sub := range subs {
		i, sub := i, sub
		go func() {
			dctx, cancel := context.WithTimeout(ctx, b.perSubscriptionTimeout)
			defer cancel()

			status, err := b.sender.Send(dctx, sub, msg)
			results[i] = DeliveryResult{Endpoint: sub.Endpoint, Status: status, Err: err}

			if status == 404 || status == 410 {
				if expErr := b.store.Expire(context.Background(), sub.Endpoint); expErr != nil {
					log.Warn().Err(expErr).Str("endpoint", sub.Endpoint).Msg("failed to expire subscription after push rejection")
				}
			}
			done <- i
		}()
	}
	for range subs {
		<-done
	}
	return results, nil
}
