// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

// Package health holds the provider health snapshot served by the status
// and providers endpoints.
package health

import "time"

// Metrics is a point-in-time view of one model provider. Counts are
// cumulative since the gateway started.
type Metrics struct {
	Available     bool       `json:"available"`
	SuccessCount  int64      `json:"successCount"`
	FailureCount  int64      `json:"failureCount"`
	LastSuccessAt *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt *time.Time `json:"lastFailureAt,omitempty"`
	// CooldownUntil is set while the provider is skipped by routing.
	CooldownUntil *time.Time `json:"cooldownUntil,omitempty"`
}

// FailureRate is failures over all recorded calls, or 0 before any call.
func (m Metrics) FailureRate() float64 {
	total := m.SuccessCount + m.FailureCount
	if total == 0 {
		return 0
	}
	return float64(m.FailureCount) / float64(total)
}
