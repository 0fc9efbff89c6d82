// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package server

import "time"

// IPRateLimiter exposes the per-IP limiter to external tests.
type IPRateLimiter = ipRateLimiter

func NewIPRateLimiter(cfg RateLimitConfig, now func() time.Time) *IPRateLimiter {
	l := newIPRateLimiter(cfg)
	l.now = now
	return l
}

func (l *ipRateLimiter) Allow(ip string) bool { return l.allow(ip) }
func (l *ipRateLimiter) Cleanup() { l.cleanup() }
func (l *ipRateLimiter) Size() int { return l.size() }

var RateLimitMiddleware = rateLimitMiddleware
