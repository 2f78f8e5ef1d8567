// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package proxy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/agm-proxy/db"
	"github.com/danielhkuo/agm-proxy/models"
)

// Every helper drains and closes its rows before returning: lib/pq cannot
// run a second statement on a connection with an open result set, and the
// SQLite pool has a single connection.

const groupColumns = `id, group_name, principal_id, appointment_type,
	trustee_remuneration, remuneration_policy, auditors_appointment, agm_motions,
	total_votes_delegated, is_active, vote_splitting_enabled,
	min_votes_per_user, max_votes_per_user, created_at, updated_at`

func scanGroup(row interface{ Scan(...any) error }) (models.ProxyGroup, error) {
	var g models.ProxyGroup
	err := row.Scan(
		&g.ID, &g.GroupName, &g.PrincipalID, &g.AppointmentType,
		&g.TrusteeRemuneration, &g.RemunerationPolicy, &g.AuditorsAppointment, &g.AGMMotions,
		&g.TotalVotesDelegated, &g.IsActive, &g.VoteSplittingEnabled,
		&g.MinVotesPerUser, &g.MaxVotesPerUser, &g.CreatedAt, &g.UpdatedAt,
	)
	return g, err
}

// getGroup loads a group row. With lock set, the row stays locked until the
// enclosing transaction ends.
func (s *Service) getGroup(ctx context.Context, q db.DBTX, groupID string, lock bool) (models.ProxyGroup, error) {
	query := `SELECT ` + groupColumns + ` FROM proxy_group WHERE id = $1`
	if lock {
		query += s.dialect.ForUpdate()
	}
	g, err := scanGroup(q.QueryRowContext(ctx, query, groupID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ProxyGroup{}, models.ErrNotFound("proxy group %q not found", groupID)
	}
	if err != nil {
		return models.ProxyGroup{}, fmt.Errorf("failed to query proxy group: %w", err)
	}
	return g, nil
}

func listGroupsByPrincipal(ctx context.Context, q db.DBTX, principalID string) ([]models.ProxyGroup, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+groupColumns+` FROM proxy_group
		WHERE principal_id = $1
		ORDER BY created_at, id
	`, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query proxy groups: %w", err)
	}
	defer rows.Close()

	groups := []models.ProxyGroup{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proxy group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// delegationGroup returns the name of the principal's group that already
// has memberID as a delegate, or "" when there is none.
func delegationGroup(ctx context.Context, q db.DBTX, principalID, memberID string) (string, error) {
	var name string
	err := q.QueryRowContext(ctx, `
		SELECT g.group_name FROM proxy_member m
		JOIN proxy_group g ON g.id = m.group_id
		WHERE g.principal_id = $1 AND m.member_id = $2
		LIMIT 1
	`, principalID, memberID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to check existing delegation: %w", err)
	}
	return name, nil
}

const memberColumns = `id, group_id, member_id, initials, surname, full_name,
	membership_number, id_number, appointment_type, votes_allocated`

func scanMember(row interface{ Scan(...any) error }) (models.ProxyMember, error) {
	var m models.ProxyMember
	err := row.Scan(&m.ID, &m.GroupID, &m.MemberID, &m.Initials, &m.Surname, &m.FullName,
		&m.MembershipNumber, &m.IDNumber, &m.AppointmentType, &m.VotesAllocated)
	return m, err
}

func getMember(ctx context.Context, q db.DBTX, proxyMemberID string) (models.ProxyMember, error) {
	m, err := scanMember(q.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM proxy_member WHERE id = $1`, proxyMemberID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ProxyMember{}, models.ErrNotFound("proxy member %q not found", proxyMemberID)
	}
	if err != nil {
		return models.ProxyMember{}, fmt.Errorf("failed to query proxy member: %w", err)
	}
	return m, nil
}

func listMembers(ctx context.Context, q db.DBTX, groupID string) ([]models.ProxyMember, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+memberColumns+` FROM proxy_member
		WHERE group_id = $1
		ORDER BY full_name, id
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query proxy members: %w", err)
	}
	defer rows.Close()

	members := []models.ProxyMember{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proxy member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func insertMember(ctx context.Context, q db.DBTX, m models.ProxyMember) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO proxy_member (id, group_id, member_id, initials, surname, full_name,
			membership_number, id_number, appointment_type, votes_allocated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, m.ID, m.GroupID, m.MemberID, m.Initials, m.Surname, m.FullName,
		m.MembershipNumber, m.IDNumber, m.AppointmentType, m.VotesAllocated)
	if err != nil {
		return fmt.Errorf("failed to insert proxy member: %w", err)
	}
	return nil
}

func listCandidates(ctx context.Context, q db.DBTX, proxyMemberID string) ([]models.AllowedCandidate, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT ac.proxy_member_id, ac.employee_id, e.name, e.position, e.department
		FROM allowed_candidate ac
		JOIN employee e ON e.id = ac.employee_id
		WHERE ac.proxy_member_id = $1
		ORDER BY e.name, e.id
	`, proxyMemberID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allowed candidates: %w", err)
	}
	defer rows.Close()

	candidates := []models.AllowedCandidate{}
	for rows.Next() {
		var c models.AllowedCandidate
		if err := rows.Scan(&c.ProxyMemberID, &c.EmployeeID, &c.Name, &c.Position, &c.Department); err != nil {
			return nil, fmt.Errorf("failed to scan allowed candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func isAllowedCandidate(ctx context.Context, q db.DBTX, proxyMemberID, employeeID string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM allowed_candidate
			WHERE proxy_member_id = $1 AND employee_id = $2
		)
	`, proxyMemberID, employeeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check allowed candidate: %w", err)
	}
	return exists, nil
}

func insertCandidate(ctx context.Context, q db.DBTX, proxyMemberID, employeeID string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO allowed_candidate (proxy_member_id, employee_id)
		VALUES ($1, $2)
	`, proxyMemberID, employeeID)
	if err != nil {
		return fmt.Errorf("failed to insert allowed candidate: %w", err)
	}
	return nil
}

func insertVoterLimit(ctx context.Context, q db.DBTX, groupID, proxyMemberID string, maxVotes int, active bool) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO proxy_voter_limit (id, group_id, proxy_member_id, max_votes_allowed, votes_used, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.NewString(), groupID, proxyMemberID, maxVotes, 0, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert voter limit: %w", err)
	}
	return nil
}

// refreshGroupType recomputes the derived appointment type from the
// group's current members. Groups always keep at least one member; the
// empty case is skipped.
func refreshGroupType(ctx context.Context, q db.DBTX, groupID string) error {
	members, err := listMembers(ctx, q, groupID)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}

	types := make([]string, len(members))
	for i, m := range members {
		types[i] = m.AppointmentType
	}

	_, err = q.ExecContext(ctx, `
		UPDATE proxy_group SET appointment_type = $1, updated_at = $2 WHERE id = $3
	`, groupAppointmentType(types), time.Now().UTC(), groupID)
	if err != nil {
		return fmt.Errorf("failed to update group appointment type: %w", err)
	}
	return nil
}

// lockPrincipal holds the principal's directory row for the rest of the
// transaction. Guarded mutations and vote casting take the group lock first
// and this one second, so votes through any of the principal's groups
// serialise against structural edits. CreateAppointment has no group yet
// and takes only this lock, before any other row of the principal.
func (s *Service) lockPrincipal(ctx context.Context, q db.DBTX, principalID string) error {
	var id string
	err := q.QueryRowContext(ctx,
		`SELECT id FROM member_user WHERE id = $1`+s.dialect.ForUpdate(), principalID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound("principal %q not found", principalID)
	}
	if err != nil {
		return fmt.Errorf("failed to lock principal: %w", err)
	}
	return nil
}
