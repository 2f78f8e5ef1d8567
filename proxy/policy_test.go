// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/danielhkuo/agm-proxy/models"
)

func TestGroupAppointmentType(t *testing.T) {
	tests := []struct {
		name  string
		types []string
		want  string
		form  string
	}{
		{"single discretionary", []string{models.AppointmentDiscretionary}, models.AppointmentDiscretionary, models.FormDiscretional},
		{"single instructional", []string{models.AppointmentInstructional}, models.AppointmentInstructional, models.FormInstructional},
		{"agreeing members", []string{models.AppointmentInstructional, models.AppointmentInstructional}, models.AppointmentInstructional, models.FormInstructional},
		{"disagreeing members", []string{models.AppointmentDiscretionary, models.AppointmentDiscretionary, models.AppointmentInstructional}, models.AppointmentMixed, models.FormInstructional},
		{"no members", nil, models.AppointmentDiscretionary, models.FormDiscretional},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, groupAppointmentType(tt.types))
			assert.Equal(t, tt.form, formAppointmentType(tt.types))
		})
	}
}

func TestNormalizeAppointmentType(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", models.AppointmentDiscretionary, false},
		{"discretionary", models.AppointmentDiscretionary, false},
		{" INSTRUCTIONAL ", models.AppointmentInstructional, false},
		{"MIXED", "", true},
		{"proxy", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := normalizeAppointmentType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.GroupBounds = "sometimes"
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.Defaults.MinIndividualVotes = p.Defaults.MaxIndividualVotes
	assert.Error(t, p.Validate())
}

func TestCheckMemberVotes(t *testing.T) {
	global := models.VoteSplittingSettings{IsEnabled: true, MinProxyVoters: 2, MaxProxyVoters: 5, MinIndividualVotes: 1, MaxIndividualVotes: 4}
	lo, hi := 2, 3
	group := &models.ProxyGroup{VoteSplittingEnabled: true, MinVotesPerUser: &lo, MaxVotesPerUser: &hi}

	assert.NoError(t, checkMemberVotes(global, nil, "M", 4))
	assert.Error(t, checkMemberVotes(global, nil, "M", 5))
	assert.Error(t, checkMemberVotes(global, nil, "M", 0))
	assert.Error(t, checkMemberVotes(global, group, "M", 4))
	assert.NoError(t, checkMemberVotes(global, group, "M", 3))

	global.IsEnabled = false
	assert.NoError(t, checkMemberVotes(global, nil, "M", 9))
	assert.Error(t, checkMemberVotes(global, group, "M", 1))
}
