// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package directory is the SQL-backed member and employee directory
// consumed by the proxy service. Vote-weight is a shopspring decimal;
// deductions floor at zero.
package directory
