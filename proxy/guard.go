// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package proxy

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/danielhkuo/agm-proxy/db"
	"github.com/danielhkuo/agm-proxy/models"
)

// Guarded operation names, used as the metrics label.
const (
	opUpdateGroup     = "update_group"
	opAddMember       = "add_member"
	opRemoveMember    = "remove_member"
	opAddCandidate    = "add_candidate"
	opRemoveCandidate = "remove_candidate"
	opDeleteGroup     = "delete_group"
)

// lockGroup takes the group and principal locks a guarded mutation needs
// and returns the group with its members.
func (s *Service) lockGroup(ctx context.Context, q db.DBTX, groupID string) (models.ProxyGroup, error) {
	g, err := s.getGroup(ctx, q, groupID, true)
	if err != nil {
		return models.ProxyGroup{}, err
	}
	if err := s.lockPrincipal(ctx, q, g.PrincipalID); err != nil {
		return models.ProxyGroup{}, err
	}
	g.Members, err = listMembers(ctx, q, groupID)
	if err != nil {
		return models.ProxyGroup{}, err
	}
	return g, nil
}

// checkUnlocked rejects op with a ForbiddenError once any of members has
// voted on behalf of the group's principal. The caller must hold the
// group lock so no vote can land between this check and its write.
func (s *Service) checkUnlocked(ctx context.Context, tx *sql.Tx, g models.ProxyGroup, members []models.ProxyMember, op string) error {
	if len(members) == 0 {
		return nil
	}

	ids := make([]string, len(members))
	numbers := make(map[string]string, len(members))
	for i, m := range members {
		ids[i] = m.MemberID
		numbers[m.MemberID] = m.MembershipNumber
	}

	l := s.ledger(tx)
	voted, err := l.HasAnyVoteByMembersOnPrincipal(ctx, ids, g.PrincipalID)
	if err != nil {
		return err
	}
	if !voted {
		return nil
	}

	voterIDs, err := l.VotersOnPrincipal(ctx, ids, g.PrincipalID)
	if err != nil {
		return err
	}
	voters := make([]string, len(voterIDs))
	for i, id := range voterIDs {
		voters[i] = numbers[id]
	}

	s.metrics.GuardRejected(op)
	slog.Warn("mutation rejected: group has votes", "operation", op, "group_id", g.ID, "voters", voters)
	return models.ErrForbidden(voters, "proxy group %q is locked: members %s have already voted on the principal's behalf",
		g.ID, strings.Join(voters, ", "))
}

// UpdateGroup changes the group's name or AGM instructions. Nil fields are
// left as they are. The appointment type is derived from the members, so
// a supplied type is only accepted when it matches.
func (s *Service) UpdateGroup(ctx context.Context, groupID string, req models.UpdateGroupRequest) (models.ProxyGroup, error) {
	if req.GroupName != nil && strings.TrimSpace(*req.GroupName) == "" {
		return models.ProxyGroup{}, models.ErrValidation("groupName must not be empty")
	}
	if req.AppointmentType != nil {
		switch *req.AppointmentType {
		case models.AppointmentDiscretionary, models.AppointmentInstructional, models.AppointmentMixed:
		default:
			return models.ProxyGroup{}, models.ErrValidation("appointmentType must be %s, %s or %s",
				models.AppointmentDiscretionary, models.AppointmentInstructional, models.AppointmentMixed)
		}
	}

	err := db.WithTx(ctx, s.conn, func(tx *sql.Tx) error {
		g, err := s.lockGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if err := s.checkUnlocked(ctx, tx, g, g.Members, opUpdateGroup); err != nil {
			return err
		}

		if req.GroupName != nil {
			g.GroupName = strings.TrimSpace(*req.GroupName)
		}
		if req.AppointmentType != nil {
			types := make([]string, len(g.Members))
			for i, m := range g.Members {
				types[i] = m.AppointmentType
			}
			if derived := groupAppointmentType(types); *req.AppointmentType != derived {
				return models.ErrValidation("appointmentType %s does not match the members' type %s",
					*req.AppointmentType, derived)
			}
		}
		if req.TrusteeRemuneration != nil {
			g.TrusteeRemuneration = req.TrusteeRemuneration
		}
		if req.RemunerationPolicy != nil {
			g.RemunerationPolicy = req.RemunerationPolicy
		}
		if req.AuditorsAppointment != nil {
			g.AuditorsAppointment = req.AuditorsAppointment
		}
		if req.AGMMotions != nil {
			g.AGMMotions = req.AGMMotions
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE proxy_group
			SET group_name = $1, appointment_type = $2, trustee_remuneration = $3,
				remuneration_policy = $4, auditors_appointment = $5, agm_motions = $6, updated_at = $7
			WHERE id = $8
		`, g.GroupName, g.AppointmentType, g.TrusteeRemuneration, g.RemunerationPolicy,
			g.AuditorsAppointment, g.AGMMotions, time.Now().UTC(), groupID)
		if err != nil {
			return fmt.Errorf("failed to update proxy group: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.ProxyGroup{}, err
	}

	slog.Info("proxy group updated", "group_id", groupID)
	return s.GetGroup(ctx, groupID)
}

// AddMember appoints one more delegate to an unlocked group. The member's
// allocation is deducted from the principal's vote-weight.
func (s *Service) AddMember(ctx context.Context, groupID string, d models.MemberDescriptor) (string, error) {
	d, err := normalizeMember(d)
	if err != nil {
		return "", err
	}

	var memberID string
	err = db.WithTx(ctx, s.conn, func(tx *sql.Tx) error {
		g, err := s.lockGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if err := s.checkUnlocked(ctx, tx, g, g.Members, opAddMember); err != nil {
			return err
		}

		dir := s.directory(tx)
		u, err := dir.ResolveByMembershipNumber(ctx, d.MembershipNumber)
		if err != nil {
			return err
		}
		if u.ID == g.PrincipalID {
			return models.ErrConflict("member %q cannot be appointed as proxy for themselves", d.MembershipNumber)
		}
		for _, m := range g.Members {
			if m.MemberID == u.ID {
				return models.ErrConflict("member %q is already in this group", d.MembershipNumber)
			}
		}
		existing, err := delegationGroup(ctx, tx, g.PrincipalID, u.ID)
		if err != nil {
			return err
		}
		if existing != "" {
			return models.ErrConflict("member %q is already a proxy for this principal in group %q",
				d.MembershipNumber, existing)
		}

		global, err := s.globalSettings(ctx, tx)
		if err != nil {
			return err
		}
		if global.IsEnabled && len(g.Members)+1 > global.MaxProxyVoters {
			return models.ErrValidation("a proxy group must have at most %d members", global.MaxProxyVoters)
		}
		if err := checkMemberVotes(global, &g, d.MembershipNumber, d.VotesAllocated); err != nil {
			return err
		}

		if d.AppointmentType == models.AppointmentInstructional {
			if err := validateCandidates(ctx, dir, d.AllowedCandidates); err != nil {
				return err
			}
		}

		votes := decimal.NewFromInt(int64(d.VotesAllocated))
		weight, err := dir.GetVoteWeight(ctx, g.PrincipalID)
		if err != nil {
			return err
		}
		if votes.GreaterThan(weight) {
			return models.ErrValidation("votesAllocated (%d) exceeds available vote-weight (%s)",
				d.VotesAllocated, weight.String())
		}

		m := snapshotMember(groupID, d, u)
		if err := insertMember(ctx, tx, m); err != nil {
			return err
		}
		if m.AppointmentType == models.AppointmentInstructional {
			for _, employeeID := range d.AllowedCandidates {
				if err := insertCandidate(ctx, tx, m.ID, employeeID); err != nil {
					return err
				}
			}
		}
		if err := insertVoterLimit(ctx, tx, groupID, m.ID, m.VotesAllocated, g.IsActive); err != nil {
			return err
		}
		if err := dir.DeductVoteWeight(ctx, g.PrincipalID, votes); err != nil {
			return err
		}
		if err := refreshGroupType(ctx, tx, groupID); err != nil {
			return err
		}

		memberID = m.ID
		return nil
	})
	if err != nil {
		return "", err
	}

	slog.Info("proxy member added", "group_id", groupID, "member_id", memberID)
	return memberID, nil
}

// memberGroup resolves a proxy member, locks its group and re-reads the
// member under the lock.
func (s *Service) memberGroup(ctx context.Context, tx *sql.Tx, proxyMemberID string) (models.ProxyMember, models.ProxyGroup, error) {
	m, err := getMember(ctx, tx, proxyMemberID)
	if err != nil {
		return models.ProxyMember{}, models.ProxyGroup{}, err
	}
	g, err := s.lockGroup(ctx, tx, m.GroupID)
	if err != nil {
		return models.ProxyMember{}, models.ProxyGroup{}, err
	}
	m, err = getMember(ctx, tx, proxyMemberID)
	if err != nil {
		return models.ProxyMember{}, models.ProxyGroup{}, err
	}
	return m, g, nil
}

// RemoveMember deletes a delegate together with their candidate list and
// voter-limit row. A group's last member cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, proxyMemberID string) error {
	var groupID string
	err := db.WithTx(ctx, s.conn, func(tx *sql.Tx) error {
		m, g, err := s.memberGroup(ctx, tx, proxyMemberID)
		if err != nil {
			return err
		}
		if err := s.checkUnlocked(ctx, tx, g, g.Members, opRemoveMember); err != nil {
			return err
		}
		if len(g.Members) == 1 {
			return models.ErrValidation("cannot remove the last member of group %q; delete the group instead", g.ID)
		}
		groupID = g.ID

		if _, err := tx.ExecContext(ctx, `DELETE FROM allowed_candidate WHERE proxy_member_id = $1`, m.ID); err != nil {
			return fmt.Errorf("failed to delete allowed candidates: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM proxy_voter_limit WHERE proxy_member_id = $1`, m.ID); err != nil {
			return fmt.Errorf("failed to delete voter limit: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM proxy_member WHERE id = $1`, m.ID); err != nil {
			return fmt.Errorf("failed to delete proxy member: %w", err)
		}
		return refreshGroupType(ctx, tx, g.ID)
	})
	if err != nil {
		return err
	}

	slog.Info("proxy member removed", "group_id", groupID, "member_id", proxyMemberID)
	return nil
}

// AddAllowedCandidate extends an instructional member's candidate list.
func (s *Service) AddAllowedCandidate(ctx context.Context, proxyMemberID, employeeID string) error {
	if employeeID == "" {
		return models.ErrValidation("employeeId is required")
	}

	err := db.WithTx(ctx, s.conn, func(tx *sql.Tx) error {
		m, g, err := s.memberGroup(ctx, tx, proxyMemberID)
		if err != nil {
			return err
		}
		if err := s.checkUnlocked(ctx, tx, g, g.Members, opAddCandidate); err != nil {
			return err
		}
		if m.AppointmentType != models.AppointmentInstructional {
			return models.ErrValidation("allowed candidates apply only to instructional members")
		}
		if err := validateCandidates(ctx, s.directory(tx), []string{employeeID}); err != nil {
			return err
		}

		exists, err := isAllowedCandidate(ctx, tx, m.ID, employeeID)
		if err != nil {
			return err
		}
		if exists {
			return models.ErrConflict("employee %q is already an allowed candidate", employeeID)
		}
		return insertCandidate(ctx, tx, m.ID, employeeID)
	})
	if err != nil {
		return err
	}

	slog.Info("allowed candidate added", "member_id", proxyMemberID, "employee_id", employeeID)
	return nil
}

func (s *Service) RemoveAllowedCandidate(ctx context.Context, proxyMemberID, employeeID string) error {
	err := db.WithTx(ctx, s.conn, func(tx *sql.Tx) error {
		m, g, err := s.memberGroup(ctx, tx, proxyMemberID)
		if err != nil {
			return err
		}
		if err := s.checkUnlocked(ctx, tx, g, g.Members, opRemoveCandidate); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			DELETE FROM allowed_candidate WHERE proxy_member_id = $1 AND employee_id = $2
		`, m.ID, employeeID)
		if err != nil {
			return fmt.Errorf("failed to delete allowed candidate: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return models.ErrNotFound("employee %q is not an allowed candidate of member %q", employeeID, proxyMemberID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("allowed candidate removed", "member_id", proxyMemberID, "employee_id", employeeID)
	return nil
}

// DeleteGroup removes a group that has no votes: allowed candidates, then
// members, then the group, re-checking the ledger before each step. The
// appointment record survives with its group reference cleared.
func (s *Service) DeleteGroup(ctx context.Context, groupID string) error {
	err := db.WithTx(ctx, s.conn, func(tx *sql.Tx) error {
		g, err := s.lockGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		members := g.Members

		steps := []struct {
			query string
			what  string
		}{
			{`DELETE FROM allowed_candidate WHERE proxy_member_id IN (SELECT id FROM proxy_member WHERE group_id = $1)`, "allowed candidates"},
			{`DELETE FROM proxy_voter_limit WHERE group_id = $1`, "voter limits"},
			{`DELETE FROM proxy_member WHERE group_id = $1`, "proxy members"},
			{`UPDATE proxy_appointment SET group_id = NULL WHERE group_id = $1`, "appointment reference"},
			{`DELETE FROM proxy_group WHERE id = $1`, "proxy group"},
		}
		for _, step := range steps {
			if err := s.checkUnlocked(ctx, tx, g, members, opDeleteGroup); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, step.query, groupID); err != nil {
				return fmt.Errorf("failed to delete %s: %w", step.what, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("proxy group deleted", "group_id", groupID)
	return nil
}
