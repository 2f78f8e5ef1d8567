// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package proxy_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/agm-proxy/db"
	"github.com/danielhkuo/agm-proxy/directory"
	"github.com/danielhkuo/agm-proxy/models"
	"github.com/danielhkuo/agm-proxy/proxy"
	"github.com/danielhkuo/agm-proxy/testutil"
)

func TestCreateAppointment_MixedGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.CreateAppointment(ctx, f.request())
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AppointmentID)
	assert.NotEmpty(t, resp.GroupID)
	assert.Equal(t, 5, resp.VotesAllocated)
	assert.Equal(t, models.FormInstructional, resp.AppointmentType)
	assert.Equal(t, models.AppointmentMixed, resp.GroupAppointmentType)

	assert.True(t, testutil.VoteWeight(t, f.conn, f.p.ID).IsZero(), "principal vote-weight should be spent")

	g, err := f.svc.GetGroup(ctx, resp.GroupID)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentMixed, g.AppointmentType)
	assert.False(t, g.IsActive, "groups start inactive")
	assert.Equal(t, 5, g.TotalVotesDelegated)
	require.NotNil(t, g.AGMMotions)
	assert.Equal(t, "vote for all motions", *g.AGMMotions)

	sum := 0
	for _, m := range g.Members {
		sum += m.VotesAllocated
	}
	assert.Equal(t, resp.VotesAllocated, sum)

	a := member(t, g, f.a)
	assert.Equal(t, models.AppointmentDiscretionary, a.AppointmentType)
	assert.Empty(t, a.AllowedCandidates)
	assert.Equal(t, "A-001", a.MembershipNumber)
	assert.Equal(t, "Alice", a.FullName, "identity is snapshotted from the directory")

	b := member(t, g, f.b)
	require.Len(t, b.AllowedCandidates, 1)
	assert.Equal(t, f.ten.ID, b.AllowedCandidates[0].EmployeeID)
	assert.Equal(t, "Ten", b.AllowedCandidates[0].Name)

	limits, err := f.svc.GetVoterLimits(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, limits, 2)
	for _, l := range limits {
		assert.False(t, l.IsActive)
		assert.Zero(t, l.VotesUsed)
	}

	var appointmentGroup string
	require.NoError(t, f.conn.QueryRow(`SELECT group_id FROM proxy_appointment WHERE id = $1`, resp.AppointmentID).
		Scan(&appointmentGroup))
	assert.Equal(t, resp.GroupID, appointmentGroup)
}

func TestCreateAppointment_AppointmentTypes(t *testing.T) {
	tests := []struct {
		name      string
		types     []string
		wantGroup string
		wantForm  string
	}{
		{"all discretionary", []string{models.AppointmentDiscretionary, models.AppointmentDiscretionary}, models.AppointmentDiscretionary, models.FormDiscretional},
		{"all instructional", []string{models.AppointmentInstructional, models.AppointmentInstructional}, models.AppointmentInstructional, models.FormInstructional},
		{"mixed", []string{models.AppointmentInstructional, models.AppointmentDiscretionary}, models.AppointmentMixed, models.FormInstructional},
		{"type defaults to discretionary", []string{"", ""}, models.AppointmentDiscretionary, models.FormDiscretional},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.request()
			for i := range req.Members {
				req.Members[i].AppointmentType = tt.types[i]
				req.Members[i].AllowedCandidates = nil
				req.Members[i].VotesAllocated = 1
			}

			resp, err := f.svc.CreateAppointment(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantGroup, resp.GroupAppointmentType)
			assert.Equal(t, tt.wantForm, resp.AppointmentType)
			assert.True(t, testutil.VoteWeight(t, f.conn, f.p.ID).Equal(decimal.NewFromInt(3)))
		})
	}
}

func TestCreateAppointment_Rejections(t *testing.T) {
	var (
		notFound   *models.NotFoundError
		validation *models.ValidationError
		conflict   *models.ConflictError
	)

	tests := []struct {
		name    string
		mutate  func(t *testing.T, f *fixture, req *models.CreateAppointmentRequest)
		wantAs  any
		message string
	}{
		{
			name:    "unknown principal",
			mutate:  func(_ *testing.T, _ *fixture, req *models.CreateAppointmentRequest) { req.PrincipalMembershipNumber = "P-404" },
			wantAs:  &notFound,
			message: "P-404",
		},
		{
			name:    "unknown member",
			mutate:  func(_ *testing.T, _ *fixture, req *models.CreateAppointmentRequest) { req.Members[1].MembershipNumber = "X-404" },
			wantAs:  &notFound,
			message: "X-404",
		},
		{
			name: "self-delegation",
			mutate: func(t *testing.T, f *fixture, req *models.CreateAppointmentRequest) {
				req.Members[0].MembershipNumber = f.p.MembershipNumber
			},
			wantAs:  &conflict,
			message: "P-001",
		},
		{
			name: "duplicate member",
			mutate: func(t *testing.T, f *fixture, req *models.CreateAppointmentRequest) {
				req.Members[1] = req.Members[0]
				req.Members[1].VotesAllocated = 1
			},
			wantAs: &conflict,
		},
		{
			name:    "exceeds vote-weight",
			mutate:  func(_ *testing.T, _ *fixture, req *models.CreateAppointmentRequest) { req.Members[0].VotesAllocated = 4 },
			wantAs:  &validation,
			message: "exceeds",
		},
		{
			name: "total does not match allocations",
			mutate: func(_ *testing.T, _ *fixture, req *models.CreateAppointmentRequest) {
				total := 4
				req.TotalAllocatedVotes = &total
			},
			wantAs: &validation,
		},
		{
			name:   "negative allocation",
			mutate: func(_ *testing.T, _ *fixture, req *models.CreateAppointmentRequest) { req.Members[0].VotesAllocated = -1 },
			wantAs: &validation,
		},
		{
			name:   "no members",
			mutate: func(_ *testing.T, _ *fixture, req *models.CreateAppointmentRequest) { req.Members = nil },
			wantAs: &validation,
		},
		{
			name:   "missing group name",
			mutate: func(_ *testing.T, _ *fixture, req *models.CreateAppointmentRequest) { req.GroupName = " " },
			wantAs: &validation,
		},
		{
			name:   "unknown appointment type",
			mutate: func(_ *testing.T, _ *fixture, req *models.CreateAppointmentRequest) { req.Members[0].AppointmentType = "PROXY" },
			wantAs: &validation,
		},
		{
			name: "candidates on discretionary member",
			mutate: func(t *testing.T, f *fixture, req *models.CreateAppointmentRequest) {
				req.Members[0].AllowedCandidates = []string{f.ten.ID}
			},
			wantAs: &validation,
		},
		{
			name: "unknown candidate on last member",
			mutate: func(_ *testing.T, _ *fixture, req *models.CreateAppointmentRequest) {
				req.Members[1].AllowedCandidates = append(req.Members[1].AllowedCandidates, "no-such-employee")
			},
			wantAs:  &notFound,
			message: "no-such-employee",
		},
		{
			name: "ineligible candidate",
			mutate: func(t *testing.T, f *fixture, req *models.CreateAppointmentRequest) {
				e := testutil.CreateTestEmployee(t, f.conn, "Retired", false)
				req.Members[1].AllowedCandidates = []string{e.ID}
			},
			wantAs: &validation,
		},
		{
			name: "candidate listed twice",
			mutate: func(t *testing.T, f *fixture, req *models.CreateAppointmentRequest) {
				req.Members[1].AllowedCandidates = []string{f.ten.ID, f.ten.ID}
			},
			wantAs: &conflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.request()
			tt.mutate(t, f, &req)

			_, err := f.svc.CreateAppointment(context.Background(), req)
			require.Error(t, err)
			assert.ErrorAs(t, err, tt.wantAs)
			assert.NotErrorIs(t, err, models.ErrCommitFailed, "validation failures happen before any write")
			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}

			f.assertNoAppointmentRows(t)
			assert.True(t, testutil.VoteWeight(t, f.conn, f.p.ID).Equal(decimal.NewFromInt(5)))
		})
	}
}

func TestCreateAppointment_DelegateAlreadyServesPrincipal(t *testing.T) {
	tests := []struct {
		name      string
		principal func(t *testing.T, f *fixture) models.User
		delegate  func(t *testing.T, f *fixture) models.User
		wantErr   bool
	}{
		{
			name:      "same delegate for the same principal",
			principal: func(_ *testing.T, f *fixture) models.User { return f.p },
			delegate:  func(_ *testing.T, f *fixture) models.User { return f.a },
			wantErr:   true,
		},
		{
			name:      "new delegate for the same principal",
			principal: func(_ *testing.T, f *fixture) models.User { return f.p },
			delegate: func(t *testing.T, f *fixture) models.User {
				return testutil.CreateTestUser(t, f.conn, "C-001", "Carol", 0)
			},
		},
		{
			name: "same delegate for another principal",
			principal: func(t *testing.T, f *fixture) models.User {
				return testutil.CreateTestUser(t, f.conn, "Q-001", "Quinn", 5)
			},
			delegate: func(_ *testing.T, f *fixture) models.User { return f.a },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			_, err := f.conn.Exec(`UPDATE member_user SET vote_weight = $1 WHERE id = $2`, decimal.NewFromInt(10), f.p.ID)
			require.NoError(t, err)
			f.appoint(t)

			principal := tt.principal(t, f)
			before := testutil.VoteWeight(t, f.conn, principal.ID)

			_, err = f.svc.CreateAppointment(ctx, models.CreateAppointmentRequest{
				PrincipalMembershipNumber: principal.MembershipNumber,
				GroupName:                 "Second group",
				Members: []models.MemberDescriptor{{
					MembershipNumber: tt.delegate(t, f).MembershipNumber,
					VotesAllocated:   1,
				}},
			})

			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, 2, testutil.CountRows(t, f.conn, "proxy_group"))
				assert.True(t, testutil.VoteWeight(t, f.conn, principal.ID).Equal(before.Sub(decimal.NewFromInt(1))))
				return
			}

			var conflict *models.ConflictError
			require.ErrorAs(t, err, &conflict)
			assert.Contains(t, err.Error(), "Board proxies")
			assert.Equal(t, 1, testutil.CountRows(t, f.conn, "proxy_group"))
			assert.Equal(t, 2, testutil.CountRows(t, f.conn, "proxy_member"))
			assert.Equal(t, 1, testutil.CountRows(t, f.conn, "proxy_appointment"))
			assert.True(t, testutil.VoteWeight(t, f.conn, principal.ID).Equal(before))
		})
	}
}

// failingDirectory fails the vote-weight deduction, which runs after the
// group, members and candidates have been inserted.
type failingDirectory struct {
	*directory.Directory
}

func (failingDirectory) DeductVoteWeight(context.Context, string, decimal.Decimal) error {
	return errors.New("vote-weight store unavailable")
}

func TestCreateAppointment_RollsBackOnCommitFailure(t *testing.T) {
	f := newFixture(t, proxy.WithDirectory(func(q db.DBTX) proxy.Directory {
		return failingDirectory{directory.New(q, db.DialectSQLite)}
	}))

	_, err := f.svc.CreateAppointment(context.Background(), f.request())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrCommitFailed)
	assert.Contains(t, err.Error(), "vote-weight store unavailable")

	f.assertNoAppointmentRows(t)
	assert.True(t, testutil.VoteWeight(t, f.conn, f.p.ID).Equal(decimal.NewFromInt(5)))
}

func TestCreateAppointment_GlobalBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateGlobalSettings(ctx, models.VoteSplittingSettings{
		IsEnabled:          true,
		MinProxyVoters:     2,
		MaxProxyVoters:     3,
		MinIndividualVotes: 1,
		MaxIndividualVotes: 2,
	})
	require.NoError(t, err)

	tooFew := f.request()
	tooFew.Members = tooFew.Members[:1]
	tooFew.Members[0].VotesAllocated = 2
	_, err = f.svc.CreateAppointment(ctx, tooFew)
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "between 2 and 3 members")

	tooMany := f.request() // A has 3 votes, above the individual maximum of 2
	_, err = f.svc.CreateAppointment(ctx, tooMany)
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "A-001")

	ok := f.request()
	ok.Members[0].VotesAllocated = 2
	resp, err := f.svc.CreateAppointment(ctx, ok)
	require.NoError(t, err)
	assert.Equal(t, 4, resp.VotesAllocated)
	assert.True(t, testutil.VoteWeight(t, f.conn, f.p.ID).Equal(decimal.NewFromInt(1)))
}

func TestCreateAppointment_InstructionalWithoutCandidates(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	req.Members[1].AllowedCandidates = nil

	resp, err := f.svc.CreateAppointment(context.Background(), req)
	require.NoError(t, err)

	g, err := f.svc.GetGroup(context.Background(), resp.GroupID)
	require.NoError(t, err)
	assert.Empty(t, member(t, g, f.b).AllowedCandidates)
}
