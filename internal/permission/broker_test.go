// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubmitAndApprove_WithModifiedInput(t *testing.T) {
	var notified Request
	b := New(func(r Request) { notified = r })

	req := b.Submit(Submission{
		StreamingID: "stream-1",
		SessionID:   "sess-1",
		ToolName:    "Bash",
		ToolInput:   []byte(`{"command":"ls"}`),
	})
	require.Equal(t, StatusPending, req.Status)
	require.Equal(t, req.ID, notified.ID)

	polled, err := b.Poll(req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, polled.Status)

	resolved, err := b.Approve(req.ID, []byte(`{"command":"ls -la"}`))
	require.NoError(t, err)
	require.Equal(t, StatusApproved, resolved.Status)
	require.Equal(t, `{"command":"ls -la"}`, string(resolved.ModifiedInput))

	again, err := b.Poll(req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, again.Status)
	require.Equal(t, `{"command":"ls -la"}`, string(again.ModifiedInput))
}

func TestDeny(t *testing.T) {
	b := New(nil)
	req := b.Submit(Submission{ToolName: "Bash"})

	resolved, err := b.Deny(req.ID, "not authorized")
	require.NoError(t, err)
	require.Equal(t, StatusDenied, resolved.Status)
	require.Equal(t, "not authorized", resolved.DenyReason)
}

func TestPoll_UnknownID(t *testing.T) {
	b := New(nil)
	_, err := b.Poll("does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTimeout_ExpiresPendingRequest(t *testing.T) {
	b := NewWithTimeout(nil, 10*time.Millisecond)
	req := b.Submit(Submission{ToolName: "Bash"})

	time.Sleep(20 * time.Millisecond)
	polled, err := b.Poll(req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, polled.Status)
	require.Equal(t, "timeout", polled.DenyReason)
}

func TestApprove_AfterResolution_IsIdempotent(t *testing.T) {
	b := New(nil)
	req := b.Submit(Submission{ToolName: "Bash"})

	_, err := b.Deny(req.ID, "no")
	require.NoError(t, err)

	resolved, err := b.Approve(req.ID, nil)
	require.NoError(t, err)
	require.Equal(t, StatusDenied, resolved.Status) // first resolution wins
}

func TestTimeout_ExpiresBeforePending(t *testing.T) {
	b := NewWithTimeout(nil, 10*time.Millisecond)
	b.Submit(Submission{ToolName: "Bash"})

	time.Sleep(20 * time.Millisecond)
	pending := b.Pending()
	require.Empty(t, pending, "a request past its hard timeout must not still be reported pending")
}

func TestTimeout_ExpiresBeforeApprove(t *testing.T) {
	b := NewWithTimeout(nil, 10*time.Millisecond)
	req := b.Submit(Submission{ToolName: "Bash"})

	time.Sleep(20 * time.Millisecond)
	resolved, err := b.Approve(req.ID, nil)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, resolved.Status, "approving a request past its hard timeout must not override the expiry")
}

func TestTimeout_ExpiresBeforeDeny(t *testing.T) {
	b := NewWithTimeout(nil, 10*time.Millisecond)
	req := b.Submit(Submission{ToolName: "Bash"})

	time.Sleep(20 * time.Millisecond)
	resolved, err := b.Deny(req.ID, "too slow")
	require.NoError(t, err)
	require.Equal(t, StatusExpired, resolved.Status, "denying a request past its hard timeout must not override the expiry")
}

func TestPending_ListsOnlyPendingInOrder(t *testing.T) {
	b := New(nil)
	r1 := b.Submit(Submission{ToolName: "A"})
	time.Sleep(time.Millisecond)
	r2 := b.Submit(Submission{ToolName: "B"})

	_, err := b.Approve(r1.ID, nil)
	require.NoError(t, err)

	pending := b.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, r2.ID, pending[0].ID)
}
