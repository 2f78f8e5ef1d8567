// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package proxy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/agm-proxy/db"
	"github.com/danielhkuo/agm-proxy/models"
)

func validateGlobalSettings(v models.VoteSplittingSettings) error {
	if v.MinProxyVoters < 1 || v.MaxProxyVoters > ProxyVotersCeiling {
		return models.ErrValidation("proxy voters must be between 1 and %d", ProxyVotersCeiling)
	}
	if v.MinProxyVoters >= v.MaxProxyVoters {
		return models.ErrValidation("minProxyVoters (%d) must be less than maxProxyVoters (%d)",
			v.MinProxyVoters, v.MaxProxyVoters)
	}
	if v.MinIndividualVotes < 1 || v.MaxIndividualVotes > IndividualVotesCeiling {
		return models.ErrValidation("individual votes must be between 1 and %d", IndividualVotesCeiling)
	}
	if v.MinIndividualVotes >= v.MaxIndividualVotes {
		return models.ErrValidation("minIndividualVotes (%d) must be less than maxIndividualVotes (%d)",
			v.MinIndividualVotes, v.MaxIndividualVotes)
	}
	return nil
}

// validateGroupLimits checks a per-group override. Under GroupBoundsWithinGlobal
// the override must also sit inside the global individual-vote bounds.
func (s *Service) validateGroupLimits(req models.UpdateGroupLimitsRequest, global models.VoteSplittingSettings) error {
	if req.MinVotesPerUser < 1 || req.MaxVotesPerUser > IndividualVotesCeiling {
		return models.ErrValidation("votes per user must be between 1 and %d", IndividualVotesCeiling)
	}
	if req.MinVotesPerUser >= req.MaxVotesPerUser {
		return models.ErrValidation("minVotesPerUser (%d) must be less than maxVotesPerUser (%d)",
			req.MinVotesPerUser, req.MaxVotesPerUser)
	}
	if s.policy.GroupBounds == GroupBoundsWithinGlobal &&
		(req.MinVotesPerUser < global.MinIndividualVotes || req.MaxVotesPerUser > global.MaxIndividualVotes) {
		return models.ErrValidation("votes per user must lie within the global bounds %d-%d",
			global.MinIndividualVotes, global.MaxIndividualVotes)
	}
	return nil
}

func (s *Service) globalSettings(ctx context.Context, q db.DBTX) (models.VoteSplittingSettings, error) {
	var v models.VoteSplittingSettings
	var updatedAt time.Time
	err := q.QueryRowContext(ctx, `
		SELECT is_enabled, min_proxy_voters, max_proxy_voters,
			min_individual_votes, max_individual_votes, updated_at
		FROM vote_splitting_settings WHERE id = 1
	`).Scan(&v.IsEnabled, &v.MinProxyVoters, &v.MaxProxyVoters,
		&v.MinIndividualVotes, &v.MaxIndividualVotes, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s.policy.Defaults, nil
	}
	if err != nil {
		return models.VoteSplittingSettings{}, fmt.Errorf("failed to query vote-splitting settings: %w", err)
	}
	v.UpdatedAt = &updatedAt
	return v, nil
}

// GetGlobalSettings returns the stored global bounds, or the policy
// defaults when none have been configured.
func (s *Service) GetGlobalSettings(ctx context.Context) (models.VoteSplittingSettings, error) {
	return s.globalSettings(ctx, s.conn)
}

// UpdateGlobalSettings validates and stores the global bounds.
func (s *Service) UpdateGlobalSettings(ctx context.Context, v models.VoteSplittingSettings) (models.VoteSplittingSettings, error) {
	if err := validateGlobalSettings(v); err != nil {
		return models.VoteSplittingSettings{}, err
	}

	now := time.Now().UTC()
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO vote_splitting_settings (id, is_enabled, min_proxy_voters, max_proxy_voters,
			min_individual_votes, max_individual_votes, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			is_enabled = excluded.is_enabled,
			min_proxy_voters = excluded.min_proxy_voters,
			max_proxy_voters = excluded.max_proxy_voters,
			min_individual_votes = excluded.min_individual_votes,
			max_individual_votes = excluded.max_individual_votes,
			updated_at = excluded.updated_at
	`, v.IsEnabled, v.MinProxyVoters, v.MaxProxyVoters, v.MinIndividualVotes, v.MaxIndividualVotes, now)
	if err != nil {
		return models.VoteSplittingSettings{}, fmt.Errorf("failed to store vote-splitting settings: %w", err)
	}

	slog.Info("vote-splitting settings updated", "enabled", v.IsEnabled,
		"proxy_voters", fmt.Sprintf("%d-%d", v.MinProxyVoters, v.MaxProxyVoters),
		"individual_votes", fmt.Sprintf("%d-%d", v.MinIndividualVotes, v.MaxIndividualVotes))

	v.UpdatedAt = &now
	return v, nil
}

// GetGroupLimits returns the group's override. Unset bounds fall back to
// the global individual-vote bounds.
func (s *Service) GetGroupLimits(ctx context.Context, groupID string) (models.GroupLimits, error) {
	g, err := s.getGroup(ctx, s.conn, groupID, false)
	if err != nil {
		return models.GroupLimits{}, err
	}
	global, err := s.globalSettings(ctx, s.conn)
	if err != nil {
		return models.GroupLimits{}, err
	}
	return groupLimits(g, global), nil
}

func groupLimits(g models.ProxyGroup, global models.VoteSplittingSettings) models.GroupLimits {
	limits := models.GroupLimits{
		GroupID:              g.ID,
		VoteSplittingEnabled: g.VoteSplittingEnabled,
		MinVotesPerUser:      global.MinIndividualVotes,
		MaxVotesPerUser:      global.MaxIndividualVotes,
	}
	if g.MinVotesPerUser != nil {
		limits.MinVotesPerUser = *g.MinVotesPerUser
	}
	if g.MaxVotesPerUser != nil {
		limits.MaxVotesPerUser = *g.MaxVotesPerUser
	}
	return limits
}

func (s *Service) UpdateGroupLimits(ctx context.Context, groupID string, req models.UpdateGroupLimitsRequest) (models.GroupLimits, error) {
	var limits models.GroupLimits
	err := db.WithTx(ctx, s.conn, func(tx *sql.Tx) error {
		g, err := s.getGroup(ctx, tx, groupID, true)
		if err != nil {
			return err
		}
		global, err := s.globalSettings(ctx, tx)
		if err != nil {
			return err
		}
		if err := s.validateGroupLimits(req, global); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE proxy_group
			SET vote_splitting_enabled = $1, min_votes_per_user = $2, max_votes_per_user = $3, updated_at = $4
			WHERE id = $5
		`, req.VoteSplittingEnabled, req.MinVotesPerUser, req.MaxVotesPerUser, time.Now().UTC(), groupID)
		if err != nil {
			return fmt.Errorf("failed to update group limits: %w", err)
		}

		g.VoteSplittingEnabled = req.VoteSplittingEnabled
		g.MinVotesPerUser = &req.MinVotesPerUser
		g.MaxVotesPerUser = &req.MaxVotesPerUser
		limits = groupLimits(g, global)
		return nil
	})
	if err != nil {
		return models.GroupLimits{}, err
	}

	slog.Info("group limits updated", "group_id", groupID,
		"min", req.MinVotesPerUser, "max", req.MaxVotesPerUser)
	return limits, nil
}

// SetVoterLimits replaces the group's per-voter tracking rows. Every row
// starts with zero votes used and follows the group's activation state.
func (s *Service) SetVoterLimits(ctx context.Context, groupID string, entries []models.VoterLimitEntry) ([]models.VoterLimit, error) {
	var limits []models.VoterLimit
	err := db.WithTx(ctx, s.conn, func(tx *sql.Tx) error {
		g, err := s.getGroup(ctx, tx, groupID, true)
		if err != nil {
			return err
		}

		seen := make(map[string]bool, len(entries))
		for _, e := range entries {
			if e.ProxyMemberID == "" {
				return models.ErrValidation("proxyMemberId is required")
			}
			if e.MaxVotesAllowed < 0 {
				return models.ErrValidation("maxVotesAllowed must not be negative")
			}
			if seen[e.ProxyMemberID] {
				return models.ErrConflict("duplicate voter limit for proxy member %q", e.ProxyMemberID)
			}
			seen[e.ProxyMemberID] = true

			m, err := getMember(ctx, tx, e.ProxyMemberID)
			if err != nil {
				return err
			}
			if m.GroupID != groupID {
				return models.ErrValidation("proxy member %q does not belong to group %q", e.ProxyMemberID, groupID)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM proxy_voter_limit WHERE group_id = $1`, groupID); err != nil {
			return fmt.Errorf("failed to clear voter limits: %w", err)
		}
		for _, e := range entries {
			if err := insertVoterLimit(ctx, tx, groupID, e.ProxyMemberID, e.MaxVotesAllowed, g.IsActive); err != nil {
				return err
			}
		}

		limits, err = listVoterLimits(ctx, tx, groupID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("voter limits replaced", "group_id", groupID, "count", len(limits))
	return limits, nil
}

func (s *Service) GetVoterLimits(ctx context.Context, groupID string) ([]models.VoterLimit, error) {
	if _, err := s.getGroup(ctx, s.conn, groupID, false); err != nil {
		return nil, err
	}
	return listVoterLimits(ctx, s.conn, groupID)
}

func listVoterLimits(ctx context.Context, q db.DBTX, groupID string) ([]models.VoterLimit, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, group_id, proxy_member_id, max_votes_allowed, votes_used, is_active
		FROM proxy_voter_limit
		WHERE group_id = $1
		ORDER BY created_at, proxy_member_id
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query voter limits: %w", err)
	}
	defer rows.Close()

	limits := []models.VoterLimit{}
	for rows.Next() {
		var l models.VoterLimit
		if err := rows.Scan(&l.ID, &l.GroupID, &l.ProxyMemberID, &l.MaxVotesAllowed, &l.VotesUsed, &l.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan voter limit: %w", err)
		}
		limits = append(limits, l)
	}
	return limits, rows.Err()
}
