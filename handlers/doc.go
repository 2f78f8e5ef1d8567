// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the AGM proxy API.

# Handler Types

Each handler is a struct holding the proxy service and config:

  - AppointmentHandler: appointment creation, principal and delegate views, candidates
  - GroupHandler: group, member and candidate mutations, activation, proxy votes
  - SettingsHandler: global, per-group and per-voter vote bounds

	groupHandler := handlers.NewGroupHandler(svc, cfg)

Handlers decode JSON, call one service operation and encode the result.
Service errors go through middleware.ServiceError, which maps them to
404, 400, 409, 403 or 500.

# Proxy Votes

CastVote hashes the client address with the configured salt before it
reaches the ledger:

	POST /groups/{id}/votes {"delegateId": "...", "employeeId": "..."}
*/
package handlers
