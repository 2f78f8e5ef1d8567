// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the AGM proxy API.

# Route Registration

NewRouter builds the proxy service and returns a chi router with all
endpoints:

	reg := prometheus.NewRegistry()
	mux := router.NewRouter(db, cfg, reg)

# Endpoints

Operational (never rate limited):

	GET /health   - database ping
	GET /metrics  - Prometheus scrape of reg
	GET /         - banner

Appointments and views:

	POST /appointments            - Create appointment and group
	GET  /principals/{id}/groups  - Groups a principal created
	GET  /delegates/{id}/groups   - Active groups a member can vote in
	GET  /candidates              - Eligible employees

Groups (mutations return 403 once any member voted for the principal):

	GET    /groups/{id}
	PATCH  /groups/{id}
	DELETE /groups/{id}
	POST   /groups/{id}/activate
	POST   /groups/{id}/deactivate
	POST   /groups/{id}/members
	POST   /groups/{id}/votes
	DELETE /members/{id}
	POST   /members/{id}/candidates
	DELETE /members/{id}/candidates/{employeeId}

Bounds (PUT requires the admin key):

	GET|PUT /settings/vote-splitting
	GET|PUT /groups/{id}/limits
	GET|PUT /groups/{id}/voter-limits
*/
package router
