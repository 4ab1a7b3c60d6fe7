// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package push

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
)

// HTTPSender is a minimal Sender that POSTs the message as a JSON body
// directly to the subscription's endpoint. Real web-push delivery
// (VAPID request signing, payload encryption per RFC 8291) is an external
// collaborator; this sender exists so the Broadcaster has a concrete,
// swappable default instead of requiring every caller to supply one.
type HTTPSender struct {
	Client *http.Client
}

// NewHTTPSender builds an HTTPSender with a default client.
func NewHTTPSender() *HTTPSender {
	return &HTTPSender{Client: http.DefaultClient}
}

// Send posts msg to sub.Endpoint and returns the response status.
func (s *HTTPSender) Send(ctx context.Context, sub Subscription, msg Message) (int, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
