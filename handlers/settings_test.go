// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/agm-proxy/models"
	"github.com/danielhkuo/agm-proxy/proxy"
	"github.com/danielhkuo/agm-proxy/testutil"
)

func TestGlobalSettings(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodGet, "/settings/vote-splitting", nil, nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	var got models.VoteSplittingSettings
	testutil.AssertJSON(t, w, &got)
	def := proxy.DefaultPolicy().Defaults
	assert.Equal(t, def.MinProxyVoters, got.MinProxyVoters)
	assert.Equal(t, def.MaxIndividualVotes, got.MaxIndividualVotes)

	update := models.VoteSplittingSettings{IsEnabled: true, MinProxyVoters: 1, MaxProxyVoters: 5, MinIndividualVotes: 1, MaxIndividualVotes: 4}

	w = s.do(http.MethodPut, "/settings/vote-splitting", update, nil)
	testutil.AssertStatus(t, w, http.StatusUnauthorized)

	w = s.do(http.MethodPut, "/settings/vote-splitting", update, map[string]string{"Authorization": "Bearer wrong"})
	testutil.AssertStatus(t, w, http.StatusUnauthorized)

	w = s.do(http.MethodPut, "/settings/vote-splitting", update, adminHeaders())
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSON(t, w, &got)
	assert.True(t, got.IsEnabled)
	assert.NotNil(t, got.UpdatedAt)

	bad := update
	bad.MinIndividualVotes = bad.MaxIndividualVotes
	w = s.do(http.MethodPut, "/settings/vote-splitting", bad, adminHeaders())
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	w = s.do(http.MethodGet, "/settings/vote-splitting", nil, nil)
	testutil.AssertJSON(t, w, &got)
	assert.Equal(t, 5, got.MaxProxyVoters)
}

func TestGroupLimits(t *testing.T) {
	s := newServer(t)
	g := s.appoint(t)

	req := models.UpdateGroupLimitsRequest{VoteSplittingEnabled: true, MinVotesPerUser: 1, MaxVotesPerUser: 3}

	w := s.do(http.MethodPut, "/groups/"+g.ID+"/limits", req, nil)
	testutil.AssertStatus(t, w, http.StatusUnauthorized)

	w = s.do(http.MethodPut, "/groups/"+g.ID+"/limits", req, adminHeaders())
	testutil.AssertStatus(t, w, http.StatusOK)

	w = s.do(http.MethodGet, "/groups/"+g.ID+"/limits", nil, nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	var limits models.GroupLimits
	testutil.AssertJSON(t, w, &limits)
	assert.Equal(t, models.GroupLimits{GroupID: g.ID, VoteSplittingEnabled: true, MinVotesPerUser: 1, MaxVotesPerUser: 3}, limits)

	req.MaxVotesPerUser = 50
	w = s.do(http.MethodPut, "/groups/"+g.ID+"/limits", req, adminHeaders())
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	w = s.do(http.MethodGet, "/groups/missing/limits", nil, nil)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestVoterLimits(t *testing.T) {
	s := newServer(t)
	g := s.appoint(t)
	aID := memberID(t, g, s.a.MembershipNumber)

	body := models.SetVoterLimitsRequest{Limits: []models.VoterLimitEntry{{ProxyMemberID: aID, MaxVotesAllowed: 1}}}

	w := s.do(http.MethodPut, "/groups/"+g.ID+"/voter-limits", body, nil)
	testutil.AssertStatus(t, w, http.StatusUnauthorized)

	w = s.do(http.MethodPut, "/groups/"+g.ID+"/voter-limits", body, adminHeaders())
	testutil.AssertStatus(t, w, http.StatusOK)

	w = s.do(http.MethodPost, "/groups/"+g.ID+"/votes", models.CastVoteRequest{DelegateID: s.a.ID, EmployeeID: s.ten.ID}, nil)
	testutil.AssertStatus(t, w, http.StatusCreated)
	w = s.do(http.MethodPost, "/groups/"+g.ID+"/votes", models.CastVoteRequest{DelegateID: s.a.ID, EmployeeID: s.ten.ID}, nil)
	testutil.AssertStatus(t, w, http.StatusForbidden)

	w = s.do(http.MethodGet, "/groups/"+g.ID+"/voter-limits", nil, nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	var limits []models.VoterLimit
	testutil.AssertJSON(t, w, &limits)
	require.Len(t, limits, 1)
	assert.Equal(t, aID, limits[0].ProxyMemberID)
	assert.Equal(t, 1, limits[0].VotesUsed)
	assert.True(t, limits[0].IsActive)

	dup := models.SetVoterLimitsRequest{Limits: []models.VoterLimitEntry{
		{ProxyMemberID: aID, MaxVotesAllowed: 1},
		{ProxyMemberID: aID, MaxVotesAllowed: 2},
	}}
	w = s.do(http.MethodPut, "/groups/"+g.ID+"/voter-limits", dup, adminHeaders())
	testutil.AssertStatus(t, w, http.StatusConflict)
}
