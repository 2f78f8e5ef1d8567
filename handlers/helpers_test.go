// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers_test

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/agm-proxy/cliparse"
	"github.com/danielhkuo/agm-proxy/models"
	"github.com/danielhkuo/agm-proxy/proxy"
	"github.com/danielhkuo/agm-proxy/router"
	"github.com/danielhkuo/agm-proxy/testutil"
)

const testAdminKey = "test-admin-key"

// GetTestConfig returns a config suitable for handler tests. Rate
// limiting is off so table tests can hammer one client address.
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:               3318,
		DatabaseURL:        "file:test.db",
		DatabaseType:       "sqlite",
		AdminKey:           testAdminKey,
		IPHashSalt:         "test-ip-salt",
		LogLevel:           "info",
		LogFormat:          "text",
		CORSAllowedOrigins: []string{"*"},
		Policy:             proxy.DefaultPolicy(),
	}
}

type server struct {
	conn    *sql.DB
	handler http.Handler
	p       models.User
	a       models.User
	b       models.User
	ten     models.Employee
	other   models.Employee
}

func newServer(t *testing.T) *server {
	t.Helper()

	conn := testutil.SetupTestDB(t)
	return &server{
		conn:    conn,
		handler: router.NewRouter(conn, GetTestConfig(), prometheus.NewRegistry()),
		p:       testutil.CreateTestUser(t, conn, "P-001", "Principal", 5),
		a:       testutil.CreateTestUser(t, conn, "A-001", "Alice", 0),
		b:       testutil.CreateTestUser(t, conn, "B-001", "Bob", 0),
		ten:     testutil.CreateTestEmployee(t, conn, "Ten", true),
		other:   testutil.CreateTestEmployee(t, conn, "Other", true),
	}
}

func (s *server) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, testutil.MakeRequest(method, path, body, headers))
	return w
}

func (s *server) appointmentRequest() models.CreateAppointmentRequest {
	return models.CreateAppointmentRequest{
		PrincipalMembershipNumber: s.p.MembershipNumber,
		GroupName:                 "Board proxies",
		Members: []models.MemberDescriptor{
			{MembershipNumber: s.a.MembershipNumber, AppointmentType: "DISCRETIONARY", VotesAllocated: 3},
			{MembershipNumber: s.b.MembershipNumber, AppointmentType: "INSTRUCTIONAL", VotesAllocated: 2, AllowedCandidates: []string{s.ten.ID}},
		},
	}
}

// appoint creates the standard appointment, activates it and returns the
// group tree.
func (s *server) appoint(t *testing.T) models.ProxyGroup {
	t.Helper()

	w := s.do(http.MethodPost, "/appointments", s.appointmentRequest(), nil)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var resp models.CreateAppointmentResponse
	testutil.AssertJSON(t, w, &resp)

	w = s.do(http.MethodPost, "/groups/"+resp.GroupID+"/activate", nil, nil)
	testutil.AssertStatus(t, w, http.StatusOK)

	w = s.do(http.MethodGet, "/groups/"+resp.GroupID, nil, nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	var g models.ProxyGroup
	testutil.AssertJSON(t, w, &g)
	require.Len(t, g.Members, 2)
	return g
}

func memberID(t *testing.T, g models.ProxyGroup, membershipNumber string) string {
	t.Helper()
	for _, m := range g.Members {
		if m.MembershipNumber == membershipNumber {
			return m.ID
		}
	}
	t.Fatalf("member %s not in group %s", membershipNumber, g.ID)
	return ""
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Key": testAdminKey}
}
