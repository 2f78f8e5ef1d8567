// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the AGM proxy API server.

Members of the association delegate some or all of their vote-weight in the
employee-awards ballot to other members through a proxy group. The server
allocates that weight, enforces vote-splitting bounds, freezes a group once
any of its members has voted, and records proxy votes on the principal's
behalf.

# Starting the Server

	DATABASE_URL=file:agm.db ADMIN_KEY=... agm-proxy serve

Or against Postgres with flags:

	agm-proxy serve -t postgres -d "postgres://..." --admin-key ...

Running without a subcommand also serves. To apply migrations only:

	agm-proxy migrate -d "postgres://..." -t postgres

# Configuration

See package cliparse. DATABASE_URL and ADMIN_KEY are required; a .env file
in the working directory is honoured.

# Architecture

  - proxy: allocation, bounds, mutation guard, queries and proxy votes
  - directory, ledger: member/employee records and the vote ledger
  - db: connections, transactions and goose migrations
  - handlers, router, middleware: the HTTP surface
  - metrics: Prometheus collectors
  - auth: admin-key checks and IP hashing
  - cliparse: configuration parsing

See package documentation for each component.
*/
package main
