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

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/danielhkuo/agm-proxy/db"
	"github.com/danielhkuo/agm-proxy/models"
)

// groupAppointmentType is the common member type, or MIXED when members disagree.
func groupAppointmentType(types []string) string {
	if len(types) == 0 {
		return models.AppointmentDiscretionary
	}
	first := types[0]
	for _, t := range types[1:] {
		if t != first {
			return models.AppointmentMixed
		}
	}
	return first
}

// formAppointmentType is INSTRUCTIONAL if any member is instructional.
func formAppointmentType(types []string) string {
	for _, t := range types {
		if t == models.AppointmentInstructional {
			return models.FormInstructional
		}
	}
	return models.FormDiscretional
}

func normalizeAppointmentType(t string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(t)) {
	case "", models.AppointmentDiscretionary:
		return models.AppointmentDiscretionary, nil
	case models.AppointmentInstructional:
		return models.AppointmentInstructional, nil
	default:
		return "", models.ErrValidation("appointmentType must be %s or %s",
			models.AppointmentDiscretionary, models.AppointmentInstructional)
	}
}

// normalizeMember checks the fields a descriptor can be validated on
// without touching the store.
func normalizeMember(d models.MemberDescriptor) (models.MemberDescriptor, error) {
	d.MembershipNumber = strings.TrimSpace(d.MembershipNumber)
	if d.MembershipNumber == "" {
		return d, models.ErrValidation("member membershipNumber is required")
	}
	if d.VotesAllocated < 0 {
		return d, models.ErrValidation("votesAllocated for member %q must not be negative", d.MembershipNumber)
	}

	t, err := normalizeAppointmentType(d.AppointmentType)
	if err != nil {
		return d, err
	}
	d.AppointmentType = t

	if t == models.AppointmentDiscretionary && len(d.AllowedCandidates) > 0 {
		return d, models.ErrValidation("discretionary member %q cannot have allowed candidates", d.MembershipNumber)
	}
	seen := make(map[string]bool, len(d.AllowedCandidates))
	for _, id := range d.AllowedCandidates {
		if seen[id] {
			return d, models.ErrConflict("candidate %q listed twice for member %q", id, d.MembershipNumber)
		}
		seen[id] = true
	}
	return d, nil
}

// validateCandidates requires every id to name an existing, eligible employee.
func validateCandidates(ctx context.Context, dir Directory, ids []string) error {
	for _, id := range ids {
		e, err := dir.GetEmployee(ctx, id)
		if err != nil {
			return err
		}
		if !e.IsEligible {
			return models.ErrValidation("employee %q is not eligible to receive votes", id)
		}
	}
	return nil
}

// checkMemberVotes applies the global individual-vote bounds, and the
// group's own bounds when the group has vote splitting enabled.
func checkMemberVotes(global models.VoteSplittingSettings, g *models.ProxyGroup, membershipNumber string, votes int) error {
	if global.IsEnabled && (votes < global.MinIndividualVotes || votes > global.MaxIndividualVotes) {
		return models.ErrValidation("votesAllocated for member %q must be between %d and %d",
			membershipNumber, global.MinIndividualVotes, global.MaxIndividualVotes)
	}
	if g == nil || !g.VoteSplittingEnabled {
		return nil
	}
	limits := groupLimits(*g, global)
	if votes < limits.MinVotesPerUser || votes > limits.MaxVotesPerUser {
		return models.ErrValidation("votesAllocated for member %q must be between %d and %d for this group",
			membershipNumber, limits.MinVotesPerUser, limits.MaxVotesPerUser)
	}
	return nil
}

type plannedMember struct {
	desc models.MemberDescriptor
	user models.User
}

type appointmentPlan struct {
	req       models.CreateAppointmentRequest
	principal models.User
	members   []plannedMember
	groupType string
	formType  string
	total     int
}

// planAppointment runs every validation rule without writing.
func (s *Service) planAppointment(ctx context.Context, q db.DBTX, req models.CreateAppointmentRequest) (appointmentPlan, error) {
	p := appointmentPlan{req: req}

	req.PrincipalMembershipNumber = strings.TrimSpace(req.PrincipalMembershipNumber)
	if req.PrincipalMembershipNumber == "" {
		return p, models.ErrValidation("principalMembershipNumber is required")
	}
	if strings.TrimSpace(req.GroupName) == "" {
		return p, models.ErrValidation("groupName is required")
	}
	if len(req.Members) == 0 {
		return p, models.ErrValidation("at least one member is required")
	}

	dir := s.directory(q)

	principal, err := dir.ResolveByMembershipNumber(ctx, req.PrincipalMembershipNumber)
	if err != nil {
		return p, err
	}
	p.principal = principal
	if err := s.lockPrincipal(ctx, q, principal.ID); err != nil {
		return p, err
	}

	types := make([]string, 0, len(req.Members))
	seen := make(map[string]bool, len(req.Members))
	for _, d := range req.Members {
		d, err := normalizeMember(d)
		if err != nil {
			return p, err
		}

		u, err := dir.ResolveByMembershipNumber(ctx, d.MembershipNumber)
		if err != nil {
			return p, err
		}
		if u.ID == principal.ID {
			return p, models.ErrConflict("member %q cannot be appointed as proxy for themselves", d.MembershipNumber)
		}
		if seen[u.ID] {
			return p, models.ErrConflict("member %q appears more than once", d.MembershipNumber)
		}
		seen[u.ID] = true

		// votes are counted per delegate and principal, so one delegate
		// may hold only one allocation from each principal
		existing, err := delegationGroup(ctx, q, principal.ID, u.ID)
		if err != nil {
			return p, err
		}
		if existing != "" {
			return p, models.ErrConflict("member %q is already a proxy for this principal in group %q",
				d.MembershipNumber, existing)
		}

		p.members = append(p.members, plannedMember{desc: d, user: u})
		types = append(types, d.AppointmentType)
		p.total += d.VotesAllocated
	}

	p.groupType = groupAppointmentType(types)
	p.formType = formAppointmentType(types)

	if req.TotalAllocatedVotes != nil && *req.TotalAllocatedVotes != p.total {
		return p, models.ErrValidation("totalAllocatedVotes (%d) does not match the member allocations (%d)",
			*req.TotalAllocatedVotes, p.total)
	}

	weight, err := dir.GetVoteWeight(ctx, principal.ID)
	if err != nil {
		return p, err
	}
	if decimal.NewFromInt(int64(p.total)).GreaterThan(weight) {
		return p, models.ErrValidation("totalAllocatedVotes (%d) exceeds available vote-weight (%s)",
			p.total, weight.String())
	}

	global, err := s.globalSettings(ctx, q)
	if err != nil {
		return p, err
	}
	if global.IsEnabled {
		if n := len(p.members); n < global.MinProxyVoters || n > global.MaxProxyVoters {
			return p, models.ErrValidation("a proxy group must have between %d and %d members",
				global.MinProxyVoters, global.MaxProxyVoters)
		}
		for _, m := range p.members {
			if err := checkMemberVotes(global, nil, m.desc.MembershipNumber, m.desc.VotesAllocated); err != nil {
				return p, err
			}
		}
	}

	for _, m := range p.members {
		if m.desc.AppointmentType != models.AppointmentInstructional {
			continue
		}
		if err := validateCandidates(ctx, dir, m.desc.AllowedCandidates); err != nil {
			return p, err
		}
	}

	return p, nil
}

// snapshotMember copies the delegate's identity at appointment time,
// preferring the descriptor's fields over the directory's.
func snapshotMember(groupID string, d models.MemberDescriptor, u models.User) models.ProxyMember {
	pick := func(a, b string) string {
		if strings.TrimSpace(a) != "" {
			return a
		}
		return b
	}
	return models.ProxyMember{
		ID:               uuid.NewString(),
		GroupID:          groupID,
		MemberID:         u.ID,
		Initials:         pick(d.Initials, u.Initials),
		Surname:          pick(d.Surname, u.Surname),
		FullName:         pick(d.FullName, u.FullName),
		MembershipNumber: u.MembershipNumber,
		IDNumber:         pick(d.IDNumber, u.IDNumber),
		AppointmentType:  d.AppointmentType,
		VotesAllocated:   d.VotesAllocated,
	}
}

func (s *Service) commitAppointment(ctx context.Context, tx *sql.Tx, p appointmentPlan) (models.CreateAppointmentResponse, error) {
	now := time.Now().UTC()
	groupID := uuid.NewString()

	_, err := tx.ExecContext(ctx, `
		INSERT INTO proxy_group (id, group_name, principal_id, appointment_type,
			trustee_remuneration, remuneration_policy, auditors_appointment, agm_motions,
			total_votes_delegated, is_active, vote_splitting_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, groupID, strings.TrimSpace(p.req.GroupName), p.principal.ID, p.groupType,
		p.req.TrusteeRemuneration, p.req.RemunerationPolicy, p.req.AuditorsAppointment, p.req.AGMMotions,
		p.total, false, false, now, now)
	if err != nil {
		return models.CreateAppointmentResponse{}, fmt.Errorf("failed to insert proxy group: %w", err)
	}

	for _, pm := range p.members {
		m := snapshotMember(groupID, pm.desc, pm.user)
		if err := insertMember(ctx, tx, m); err != nil {
			return models.CreateAppointmentResponse{}, err
		}
		if m.AppointmentType == models.AppointmentInstructional {
			for _, employeeID := range pm.desc.AllowedCandidates {
				if err := insertCandidate(ctx, tx, m.ID, employeeID); err != nil {
					return models.CreateAppointmentResponse{}, err
				}
			}
		}
		if err := insertVoterLimit(ctx, tx, groupID, m.ID, m.VotesAllocated, false); err != nil {
			return models.CreateAppointmentResponse{}, err
		}
	}

	if err := s.directory(tx).DeductVoteWeight(ctx, p.principal.ID, decimal.NewFromInt(int64(p.total))); err != nil {
		return models.CreateAppointmentResponse{}, err
	}

	appointmentID := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO proxy_appointment (id, principal_id, membership_number, full_name, id_number,
			appointment_type, location_signed, signed_date, total_allocated_votes, group_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, appointmentID, p.principal.ID, p.principal.MembershipNumber, p.principal.FullName, p.principal.IDNumber,
		p.formType, p.req.LocationSigned, p.req.SignedDate, p.total, groupID, now)
	if err != nil {
		return models.CreateAppointmentResponse{}, fmt.Errorf("failed to insert proxy appointment: %w", err)
	}

	return models.CreateAppointmentResponse{
		AppointmentID:        appointmentID,
		GroupID:              groupID,
		VotesAllocated:       p.total,
		AppointmentType:      p.formType,
		GroupAppointmentType: p.groupType,
	}, nil
}

// CreateAppointment validates a proxy appointment and commits the group,
// its members, their candidate lists and voter-limit rows, the vote-weight
// deduction and the appointment record in one transaction.
func (s *Service) CreateAppointment(ctx context.Context, req models.CreateAppointmentRequest) (models.CreateAppointmentResponse, error) {
	var resp models.CreateAppointmentResponse
	planned := false

	err := db.WithTx(ctx, s.conn, func(tx *sql.Tx) error {
		p, err := s.planAppointment(ctx, tx, req)
		if err != nil {
			return err
		}
		planned = true

		resp, err = s.commitAppointment(ctx, tx, p)
		return err
	})
	if err != nil {
		if planned {
			slog.Error("proxy appointment rolled back", "error", err,
				"principal", req.PrincipalMembershipNumber)
			return models.CreateAppointmentResponse{}, fmt.Errorf("%w: %w", models.ErrCommitFailed, err)
		}
		return models.CreateAppointmentResponse{}, err
	}

	s.metrics.AppointmentCreated(resp.VotesAllocated)
	slog.Info("proxy appointment created", "appointment_id", resp.AppointmentID,
		"group_id", resp.GroupID, "votes", resp.VotesAllocated, "type", resp.GroupAppointmentType)
	return resp, nil
}
