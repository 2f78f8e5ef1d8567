// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package proxy_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/danielhkuo/agm-proxy/db"
	"github.com/danielhkuo/agm-proxy/models"
	"github.com/danielhkuo/agm-proxy/proxy"
	"github.com/danielhkuo/agm-proxy/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

// fixture is the standard scenario: principal P with vote-weight 5, member
// A (discretionary, 3 votes), member B (instructional, 2 votes, may vote
// only for Ten) and another eligible employee Other.
type fixture struct {
	conn  *sql.DB
	svc   *proxy.Service
	p     models.User
	a     models.User
	b     models.User
	ten   models.Employee
	other models.Employee

	// retired is ineligible; only created by tests that need it
	retired models.Employee
}

func newFixture(t *testing.T, opts ...proxy.Option) *fixture {
	t.Helper()

	conn := testutil.SetupTestDB(t)
	return &fixture{
		conn:  conn,
		svc:   proxy.New(conn, db.DialectSQLite, opts...),
		p:     testutil.CreateTestUser(t, conn, "P-001", "Principal", 5),
		a:     testutil.CreateTestUser(t, conn, "A-001", "Alice", 0),
		b:     testutil.CreateTestUser(t, conn, "B-001", "Bob", 0),
		ten:   testutil.CreateTestEmployee(t, conn, "Ten", true),
		other: testutil.CreateTestEmployee(t, conn, "Other", true),
	}
}

func (f *fixture) request() models.CreateAppointmentRequest {
	return models.CreateAppointmentRequest{
		PrincipalMembershipNumber: f.p.MembershipNumber,
		GroupName:                 "Board proxies",
		Members: []models.MemberDescriptor{
			{
				MembershipNumber: f.a.MembershipNumber,
				AppointmentType:  models.AppointmentDiscretionary,
				VotesAllocated:   3,
			},
			{
				MembershipNumber:  f.b.MembershipNumber,
				AppointmentType:   models.AppointmentInstructional,
				VotesAllocated:    2,
				AllowedCandidates: []string{f.ten.ID},
			},
		},
		AGMInstructions: models.AGMInstructions{AGMMotions: strPtr("vote for all motions")},
		LocationSigned:  "Johannesburg",
	}
}

// appoint commits the standard request and returns the group.
func (f *fixture) appoint(t *testing.T) models.ProxyGroup {
	t.Helper()

	resp, err := f.svc.CreateAppointment(context.Background(), f.request())
	require.NoError(t, err)
	g, err := f.svc.GetGroup(context.Background(), resp.GroupID)
	require.NoError(t, err)
	return g
}

// member returns the group's proxy member row for user u.
func member(t *testing.T, g models.ProxyGroup, u models.User) models.ProxyMember {
	t.Helper()
	for _, m := range g.Members {
		if m.MemberID == u.ID {
			return m
		}
	}
	t.Fatalf("user %s is not a member of group %s", u.MembershipNumber, g.ID)
	return models.ProxyMember{}
}

func (f *fixture) assertNoAppointmentRows(t *testing.T) {
	t.Helper()
	for _, table := range []string{"proxy_group", "proxy_member", "allowed_candidate", "proxy_voter_limit", "proxy_appointment"} {
		require.Zero(t, testutil.CountRows(t, f.conn, table), "table %s", table)
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
