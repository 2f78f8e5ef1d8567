// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ledger is the append-only vote record.

A vote row names the voter, the employee voted for and, for proxy votes,
the principal it is attributed to (on_behalf_of) and the proxy group.
The proxy service asks two questions of it:

	voters, err := l.VotersOnPrincipal(ctx, memberIDs, principalID)
	used, err := l.CountVotesByMemberForPrincipal(ctx, memberID, principalID)

Rows are never updated or deleted.
*/
package ledger
