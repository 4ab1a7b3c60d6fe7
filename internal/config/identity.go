// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

// identitySalt is the stable salt mixed into the hostname before hashing
// to derive machine_id. It has no secrecy requirement; it only needs to
// be stable across runs of this binary.
const identitySalt = "cuid-machine-identity-v1"

// BootstrapIdentity generates a stable machine_id and a fresh random
// auth_token for first run. Both are meant to be persisted and never
// regenerated once written.
func BootstrapIdentity() (machineID, authToken string, err error) {
	hostname, herr := os.Hostname()
	if herr != nil {
		hostname = "localhost"
	}
	machineID = deriveMachineID(hostname)

	authToken, err = randomHex(32)
	if err != nil {
		return "", "", err
	}
	return machineID, authToken, nil
}

// deriveMachineID implements machine_id = lowercase(hostname with
// non-alphanumerics stripped) + "-" + 16 hex chars of
// SHA256(hostname + stable salt).
func deriveMachineID(hostname string) string {
	var cleaned strings.Builder
	for _, r := range strings.ToLower(hostname) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			cleaned.WriteRune(r)
		}
	}

	sum := sha256.Sum256([]byte(hostname + identitySalt))
	suffix := hex.EncodeToString(sum[:])[:16]

	return cleaned.String() + "-" + suffix
}

// randomHex returns n hex characters of cryptographically random data
// (n/2 random bytes, rounded up).
func randomHex(n int) (string, error) {
	buf := make([]byte, (n+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf)[:n], nil
}
