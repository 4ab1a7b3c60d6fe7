// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// FailureLimiter tracks authentication failures per client address and
// trips once a client has failed too many times within a window. It is
// deliberately not a general request-rate limiter: successful requests
// never consume a token, only failed auth attempts do.
type FailureLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

// NewFailureLimiter builds a limiter allowing threshold failures per
// window per client address, refilling continuously at threshold/window.
func NewFailureLimiter(threshold int, window time.Duration) *FailureLimiter {
	return &FailureLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Every(window / time.Duration(threshold)),
		burst:    threshold,
	}
}

// Allowed reports whether addr is still under the failure threshold,
// without consuming a token — used to gate a request before attempting
// auth at all.
func (f *FailureLimiter) Allowed(addr string) bool {
	return f.limiterFor(addr).Tokens() >= 1
}

// RecordFailure consumes one token for addr, counting this as a failed
// auth attempt. Returns false once the client has exhausted its budget.
func (f *FailureLimiter) RecordFailure(addr string) bool {
	return f.limiterFor(addr).Allow()
}

func (f *FailureLimiter) limiterFor(addr string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	lim, ok := f.limiters[addr]
	if !ok {
		lim = rate.NewLimiter(f.r, f.burst)
		f.limiters[addr] = lim
	}
	return lim
}
