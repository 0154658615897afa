// Package middleware provides HTTP middleware for the player's control API.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics keyed by route template
//   - Configurable filtering for health checks and noisy paths
package middleware
