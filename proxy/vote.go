// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package proxy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielhkuo/agm-proxy/db"
	"github.com/danielhkuo/agm-proxy/models"
)

func (s *Service) rejectVote(reason, format string, args ...any) error {
	s.metrics.VoteRejected(reason)
	return models.ErrForbidden(nil, format, args...)
}

// CastProxyVote records a vote by delegateID for employeeID on behalf of
// the group's principal. It holds the same locks as the guarded mutations,
// so a concurrent delete either sees this vote or makes it fail.
func (s *Service) CastProxyVote(ctx context.Context, groupID string, req models.CastVoteRequest, ipHash *string) (models.CastVoteResponse, error) {
	if req.DelegateID == "" || req.EmployeeID == "" {
		return models.CastVoteResponse{}, models.ErrValidation("delegateId and employeeId are required")
	}

	var resp models.CastVoteResponse
	err := db.WithTx(ctx, s.conn, func(tx *sql.Tx) error {
		g, err := s.getGroup(ctx, tx, groupID, true)
		if models.IsNotFound(err) {
			return s.rejectVote("no_group", "proxy group %q does not exist", groupID)
		}
		if err != nil {
			return err
		}
		if err := s.lockPrincipal(ctx, tx, g.PrincipalID); err != nil {
			return err
		}
		if !g.IsActive {
			return s.rejectVote("inactive", "proxy group %q is not active", groupID)
		}

		members, err := listMembers(ctx, tx, groupID)
		if err != nil {
			return err
		}
		var member *models.ProxyMember
		for i := range members {
			if members[i].MemberID == req.DelegateID {
				member = &members[i]
				break
			}
		}
		if member == nil {
			return s.rejectVote("not_member", "member %q is not a proxy in group %q", req.DelegateID, groupID)
		}

		employee, err := s.directory(tx).GetEmployee(ctx, req.EmployeeID)
		if err != nil {
			return err
		}
		if !employee.IsEligible {
			return s.rejectVote("ineligible", "employee %q is not eligible to receive votes", req.EmployeeID)
		}

		if member.AppointmentType == models.AppointmentInstructional {
			allowed, err := isAllowedCandidate(ctx, tx, member.ID, req.EmployeeID)
			if err != nil {
				return err
			}
			if !allowed {
				return s.rejectVote("not_allowed", "employee %q is not an allowed candidate for this proxy", req.EmployeeID)
			}
		}

		l := s.ledger(tx)
		used, err := l.CountVotesByMemberForPrincipal(ctx, req.DelegateID, g.PrincipalID)
		if err != nil {
			return err
		}
		remaining := member.VotesAllocated - used
		if remaining <= 0 {
			return s.rejectVote("exhausted", "member %q has no proxy votes remaining", req.DelegateID)
		}

		if err := useVoterLimit(ctx, tx, groupID, member.ID); err != nil {
			if errors.Is(err, errVoterLimitReached) {
				return s.rejectVote("limit", "member %q has reached the voter limit for this group", req.DelegateID)
			}
			return err
		}

		principalID := g.PrincipalID
		voteID, err := l.Record(ctx, models.Vote{
			VoterID:      req.DelegateID,
			EmployeeID:   req.EmployeeID,
			OnBehalfOf:   &principalID,
			ProxyGroupID: &groupID,
			IPHash:       ipHash,
		})
		if err != nil {
			return err
		}

		resp = models.CastVoteResponse{VoteID: voteID, RemainingVotes: remaining - 1}
		return nil
	})
	if err != nil {
		return models.CastVoteResponse{}, err
	}

	s.metrics.VoteCast()
	slog.Info("proxy vote cast", "vote_id", resp.VoteID, "group_id", groupID, "delegate_id", req.DelegateID)
	return resp, nil
}

var errVoterLimitReached = errors.New("voter limit reached")

// useVoterLimit counts one vote against the member's active voter-limit
// row. Members without an active row are not capped here.
func useVoterLimit(ctx context.Context, tx *sql.Tx, groupID, proxyMemberID string) error {
	var maxVotes, used int
	var active bool
	err := tx.QueryRowContext(ctx, `
		SELECT max_votes_allowed, votes_used, is_active FROM proxy_voter_limit
		WHERE group_id = $1 AND proxy_member_id = $2
	`, groupID, proxyMemberID).Scan(&maxVotes, &used, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to query voter limit: %w", err)
	}
	if !active {
		return nil
	}
	if used >= maxVotes {
		return errVoterLimitReached
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE proxy_voter_limit SET votes_used = votes_used + 1
		WHERE group_id = $1 AND proxy_member_id = $2
	`, groupID, proxyMemberID)
	if err != nil {
		return fmt.Errorf("failed to update voter limit: %w", err)
	}
	return nil
}
