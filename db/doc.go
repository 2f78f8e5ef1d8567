// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles connections, schema migrations and transactions.

# Connecting

Open selects the driver from the dialect:

	conn, err := db.Open(ctx, db.DialectPostgres, "postgres://...")
	conn, err := db.Open(ctx, db.DialectSQLite, "file:agm.db")

SQLite connections get foreign keys, a busy timeout and immediate
transactions, and are limited to one open connection so that a running
transaction serialises every other writer.

# Schema Creation

CreateSchema applies the embedded goose migrations:

	if err := db.CreateSchema(conn, dialect); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - goose tracks applied versions.

# Tables

  - member_user: directory users with decimal vote_weight
  - employee: award candidates
  - proxy_group: one principal's delegation unit
  - proxy_member: delegates, UNIQUE (group_id, member_id)
  - allowed_candidate: instructional allow-list
  - proxy_appointment: signed instrument, group_id nulled on group delete
  - vote_splitting_settings: single-row global bounds
  - proxy_voter_limit: per-delegate allocation tracking
  - vote: append-only vote ledger

# Relationships

	member_user 1──* proxy_group (principal_id)
	proxy_group 1──* proxy_member
	proxy_member 1──* allowed_candidate *──1 employee
	proxy_group 1──* proxy_voter_limit
	proxy_group 1──* proxy_appointment
	member_user 1──* vote (voter_id, on_behalf_of)

Child rows are deleted explicitly, in order, inside the deleting
transaction; no foreign key cascades.

# Row Locking

Dialect.ForUpdate returns " FOR UPDATE" on Postgres and "" on SQLite.
Every check-then-act sequence locks the group row it is about to change.

# Errors

MapError turns sql.ErrNoRows into models.NotFoundError and unique
violations from lib/pq or modernc sqlite into models.ConflictError.
*/
package db
