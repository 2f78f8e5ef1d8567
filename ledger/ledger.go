// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/agm-proxy/db"
	"github.com/danielhkuo/agm-proxy/models"
)

// Ledger is the append-only record of cast votes.
type Ledger struct {
	q db.DBTX
}

func New(q db.DBTX) *Ledger {
	return &Ledger{q: q}
}

// Record appends a vote and returns its id.
func (l *Ledger) Record(ctx context.Context, v models.Vote) (string, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CastAt.IsZero() {
		v.CastAt = time.Now().UTC()
	}
	_, err := l.q.ExecContext(ctx, `
		INSERT INTO vote (id, voter_id, employee_id, on_behalf_of, proxy_group_id, ip_hash, cast_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, v.ID, v.VoterID, v.EmployeeID, v.OnBehalfOf, v.ProxyGroupID, v.IPHash, v.CastAt)
	if err != nil {
		return "", fmt.Errorf("failed to record vote: %w", db.MapError(err))
	}
	return v.ID, nil
}

// HasAnyVoteByMembersOnPrincipal reports whether any of memberIDs has cast
// a vote attributed to principalID.
func (l *Ledger) HasAnyVoteByMembersOnPrincipal(ctx context.Context, memberIDs []string, principalID string) (bool, error) {
	voters, err := l.VotersOnPrincipal(ctx, memberIDs, principalID)
	if err != nil {
		return false, err
	}
	return len(voters) > 0, nil
}

// VotersOnPrincipal returns the distinct subset of memberIDs that have cast
// a vote attributed to principalID.
func (l *Ledger) VotersOnPrincipal(ctx context.Context, memberIDs []string, principalID string) ([]string, error) {
	if len(memberIDs) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(memberIDs)+1)
	args = append(args, principalID)
	for _, id := range memberIDs {
		args = append(args, id)
	}

	rows, err := l.q.QueryContext(ctx, `
		SELECT DISTINCT voter_id FROM vote
		WHERE on_behalf_of = $1 AND voter_id IN (`+db.Placeholders(2, len(memberIDs))+`)
		ORDER BY voter_id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	var voters []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		voters = append(voters, id)
	}
	return voters, rows.Err()
}

// CountVotesByMemberForPrincipal counts votes memberID cast on principalID's behalf.
func (l *Ledger) CountVotesByMemberForPrincipal(ctx context.Context, memberID, principalID string) (int, error) {
	var n int
	err := l.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM vote WHERE voter_id = $1 AND on_behalf_of = $2
	`, memberID, principalID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return n, nil
}
