// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics defines the Prometheus collectors for appointments,
// guard rejections, proxy votes and HTTP latency.
package metrics
