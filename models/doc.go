// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines domain, request and response types for the proxy
appointment API, together with the error taxonomy shared by every layer.

# Domain Types

  - User: directory record with decimal vote-weight
  - Employee: award candidate
  - ProxyGroup: one principal's delegation unit with AGM instructions
  - ProxyMember: delegate snapshot with appointment type and allocation
  - AllowedCandidate: instructional restriction row
  - ProxyAppointment: the signed instrument
  - VoteSplittingSettings, GroupLimits, VoterLimit: the three bound tiers
  - DelegateGroup: delegate view row with remaining-vote counters

# Appointment Types

Members are DISCRETIONARY or INSTRUCTIONAL. A group is MIXED when its
members disagree. The signed form is INSTRUCTIONAL if any member is,
otherwise DISCRETIONAL.

# Errors

	NotFoundError   → 404
	ValidationError → 400
	ConflictError   → 409
	ForbiddenError  → 403 (carries the voters that locked the group)

ErrCommitFailed wraps any failure raised after a transaction has started
writing; the transaction is always rolled back before it is returned.
*/
package models
