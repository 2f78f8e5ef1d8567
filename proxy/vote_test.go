// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package proxy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/agm-proxy/models"
	"github.com/danielhkuo/agm-proxy/testutil"
)

func TestCastProxyVote_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.appoint(t)
	require.NoError(t, f.svc.ActivateGroup(ctx, g.ID))

	var fe *models.ForbiddenError

	// B is instructional and may only vote for Ten
	_, err := f.svc.CastProxyVote(ctx, g.ID, models.CastVoteRequest{DelegateID: f.b.ID, EmployeeID: f.other.ID}, nil)
	require.ErrorAs(t, err, &fe)

	resp, err := f.svc.CastProxyVote(ctx, g.ID, models.CastVoteRequest{DelegateID: f.b.ID, EmployeeID: f.ten.ID}, strPtr("iphash"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.VoteID)
	assert.Equal(t, 1, resp.RemainingVotes)

	// A is discretionary
	for _, e := range []models.Employee{f.ten, f.other} {
		_, err := f.svc.CastProxyVote(ctx, g.ID, models.CastVoteRequest{DelegateID: f.a.ID, EmployeeID: e.ID}, nil)
		require.NoError(t, err)
	}

	var onBehalfOf, groupID, ipHash string
	require.NoError(t, f.conn.QueryRow(`
		SELECT on_behalf_of, proxy_group_id, ip_hash FROM vote WHERE id = $1
	`, resp.VoteID).Scan(&onBehalfOf, &groupID, &ipHash))
	assert.Equal(t, f.p.ID, onBehalfOf)
	assert.Equal(t, g.ID, groupID)
	assert.Equal(t, "iphash", ipHash)

	err = f.svc.RemoveMember(ctx, member(t, g, f.b).ID)
	require.ErrorAs(t, err, &fe)
	assert.ElementsMatch(t, []string{"A-001", "B-001"}, fe.Voters)
}

func TestCastProxyVote_InstructionalWithoutCandidatesFailsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	extra := testutil.CreateTestEmployee(t, f.conn, "Extra", true)

	req := f.request()
	req.Members[1].AllowedCandidates = nil
	resp, err := f.svc.CreateAppointment(ctx, req)
	require.NoError(t, err)
	require.NoError(t, f.svc.ActivateGroup(ctx, resp.GroupID))

	for _, e := range []models.Employee{f.ten, f.other, extra} {
		_, err := f.svc.CastProxyVote(ctx, resp.GroupID, models.CastVoteRequest{DelegateID: f.b.ID, EmployeeID: e.ID}, nil)
		var fe *models.ForbiddenError
		assert.ErrorAs(t, err, &fe, "employee %s", e.Name)
	}
	assert.Zero(t, testutil.CountRows(t, f.conn, "vote"))
}

func TestCastProxyVote_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, f *fixture, g models.ProxyGroup)
		groupID  func(g models.ProxyGroup) string
		req      func(f *fixture) models.CastVoteRequest
		wantCode string
	}{
		{
			name: "inactive group",
			setup: func(t *testing.T, f *fixture, g models.ProxyGroup) {
				require.NoError(t, f.svc.DeactivateGroup(context.Background(), g.ID))
			},
			req:      func(f *fixture) models.CastVoteRequest { return models.CastVoteRequest{DelegateID: f.a.ID, EmployeeID: f.ten.ID} },
			wantCode: "forbidden",
		},
		{
			name:     "missing group",
			groupID:  func(models.ProxyGroup) string { return "missing" },
			req:      func(f *fixture) models.CastVoteRequest { return models.CastVoteRequest{DelegateID: f.a.ID, EmployeeID: f.ten.ID} },
			wantCode: "forbidden",
		},
		{
			name:     "not a member",
			req:      func(f *fixture) models.CastVoteRequest { return models.CastVoteRequest{DelegateID: f.p.ID, EmployeeID: f.ten.ID} },
			wantCode: "forbidden",
		},
		{
			name: "ineligible employee",
			req: func(f *fixture) models.CastVoteRequest {
				return models.CastVoteRequest{DelegateID: f.a.ID, EmployeeID: f.retired.ID}
			},
			wantCode: "forbidden",
		},
		{
			name:     "unknown employee",
			req:      func(f *fixture) models.CastVoteRequest { return models.CastVoteRequest{DelegateID: f.a.ID, EmployeeID: "missing"} },
			wantCode: "not_found",
		},
		{
			name:     "missing fields",
			req:      func(f *fixture) models.CastVoteRequest { return models.CastVoteRequest{DelegateID: f.a.ID} },
			wantCode: "validation",
		},
		{
			name: "votes exhausted",
			setup: func(t *testing.T, f *fixture, g models.ProxyGroup) {
				for i := 0; i < 2; i++ {
					testutil.CastTestVote(t, f.conn, f.b.ID, f.ten.ID, f.p.ID)
				}
			},
			req:      func(f *fixture) models.CastVoteRequest { return models.CastVoteRequest{DelegateID: f.b.ID, EmployeeID: f.ten.ID} },
			wantCode: "forbidden",
		},
		{
			name: "voter limit reached",
			setup: func(t *testing.T, f *fixture, g models.ProxyGroup) {
				ctx := context.Background()
				_, err := f.svc.SetVoterLimits(ctx, g.ID, []models.VoterLimitEntry{{ProxyMemberID: member(t, g, f.a).ID, MaxVotesAllowed: 0}})
				require.NoError(t, err)
			},
			req:      func(f *fixture) models.CastVoteRequest { return models.CastVoteRequest{DelegateID: f.a.ID, EmployeeID: f.ten.ID} },
			wantCode: "forbidden",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.retired = testutil.CreateTestEmployee(t, f.conn, "Retired", false)
			ctx := context.Background()
			g := f.appoint(t)
			require.NoError(t, f.svc.ActivateGroup(ctx, g.ID))
			if tt.setup != nil {
				tt.setup(t, f, g)
			}
			groupID := g.ID
			if tt.groupID != nil {
				groupID = tt.groupID(g)
			}
			votesBefore := testutil.CountRows(t, f.conn, "vote")

			_, err := f.svc.CastProxyVote(ctx, groupID, tt.req(f), nil)
			require.Error(t, err)
			switch tt.wantCode {
			case "forbidden":
				var fe *models.ForbiddenError
				assert.ErrorAs(t, err, &fe)
			case "not_found":
				assert.True(t, models.IsNotFound(err))
			case "validation":
				var ve *models.ValidationError
				assert.ErrorAs(t, err, &ve)
			}
			assert.Equal(t, votesBefore, testutil.CountRows(t, f.conn, "vote"))
		})
	}
}

func TestCastProxyVote_VoterLimitCountsUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.appoint(t)
	a := member(t, g, f.a)

	_, err := f.svc.SetVoterLimits(ctx, g.ID, []models.VoterLimitEntry{{ProxyMemberID: a.ID, MaxVotesAllowed: 1}})
	require.NoError(t, err)
	require.NoError(t, f.svc.ActivateGroup(ctx, g.ID))

	resp, err := f.svc.CastProxyVote(ctx, g.ID, models.CastVoteRequest{DelegateID: f.a.ID, EmployeeID: f.ten.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.RemainingVotes)

	_, err = f.svc.CastProxyVote(ctx, g.ID, models.CastVoteRequest{DelegateID: f.a.ID, EmployeeID: f.ten.ID}, nil)
	var fe *models.ForbiddenError
	require.ErrorAs(t, err, &fe)

	limits, err := f.svc.GetVoterLimits(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, limits, 1)
	assert.Equal(t, 1, limits[0].VotesUsed)
}
