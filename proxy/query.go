// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package proxy

import (
	"context"
	"fmt"

	"github.com/danielhkuo/agm-proxy/db"
	"github.com/danielhkuo/agm-proxy/models"
)

// loadTree fills in the group's members and, for instructional members,
// their allowed candidates.
func loadTree(ctx context.Context, q db.DBTX, g *models.ProxyGroup) error {
	members, err := listMembers(ctx, q, g.ID)
	if err != nil {
		return err
	}
	for i := range members {
		if members[i].AppointmentType != models.AppointmentInstructional {
			continue
		}
		members[i].AllowedCandidates, err = listCandidates(ctx, q, members[i].ID)
		if err != nil {
			return err
		}
	}
	g.Members = members
	return nil
}

// GetGroup returns one group with its member tree.
func (s *Service) GetGroup(ctx context.Context, groupID string) (models.ProxyGroup, error) {
	g, err := s.getGroup(ctx, s.conn, groupID, false)
	if err != nil {
		return models.ProxyGroup{}, err
	}
	if err := loadTree(ctx, s.conn, &g); err != nil {
		return models.ProxyGroup{}, err
	}
	return g, nil
}

// GetGroupsForPrincipal lists the principal's groups, oldest first.
func (s *Service) GetGroupsForPrincipal(ctx context.Context, principalID string) ([]models.ProxyGroup, error) {
	if _, err := s.directory(s.conn).GetUser(ctx, principalID); err != nil {
		return nil, err
	}

	groups, err := listGroupsByPrincipal(ctx, s.conn, principalID)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		if err := loadTree(ctx, s.conn, &groups[i]); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// GetGroupsForDelegate lists the active groups the member belongs to, with
// how many of their allocated votes remain.
func (s *Service) GetGroupsForDelegate(ctx context.Context, memberID string) ([]models.DelegateGroup, error) {
	dir := s.directory(s.conn)
	if _, err := dir.GetUser(ctx, memberID); err != nil {
		return nil, err
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT pm.id
		FROM proxy_member pm
		JOIN proxy_group g ON g.id = pm.group_id
		WHERE pm.member_id = $1 AND g.is_active = $2
		ORDER BY g.created_at, g.id
	`, memberID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query delegate groups: %w", err)
	}
	var memberRowIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan delegate group: %w", err)
		}
		memberRowIDs = append(memberRowIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate delegate groups: %w", err)
	}

	l := s.ledger(s.conn)
	result := []models.DelegateGroup{}
	for _, id := range memberRowIDs {
		m, err := getMember(ctx, s.conn, id)
		if err != nil {
			return nil, err
		}
		g, err := s.getGroup(ctx, s.conn, m.GroupID, false)
		if err != nil {
			return nil, err
		}
		principal, err := dir.GetUser(ctx, g.PrincipalID)
		if err != nil {
			return nil, err
		}
		used, err := l.CountVotesByMemberForPrincipal(ctx, memberID, g.PrincipalID)
		if err != nil {
			return nil, err
		}

		dg := models.DelegateGroup{
			Group:           g,
			PrincipalName:   principal.FullName,
			ProxyMemberID:   m.ID,
			AppointmentType: m.AppointmentType,
			TotalVotes:      m.VotesAllocated,
			VotesUsed:       used,
			RemainingVotes:  max(0, m.VotesAllocated-used),
		}
		if m.AppointmentType == models.AppointmentInstructional {
			dg.AllowedCandidates, err = listCandidates(ctx, s.conn, m.ID)
			if err != nil {
				return nil, err
			}
		}
		result = append(result, dg)
	}
	return result, nil
}
