// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package proxy implements proxy vote delegation: committing appointments
// against a principal's vote-weight, the two tiers of vote-splitting
// bounds, the mutation guard that freezes a group once any of its members
// has voted for the principal, activation, proxy vote casting and the
// principal and delegate read views.
//
// Every write runs in a single transaction. Guarded mutations and vote
// casting lock the group row and then the principal's row, so a vote and
// a structural edit on the same group never both succeed.
package proxy
