// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/agm-proxy/db"
	"github.com/danielhkuo/agm-proxy/models"
)

// SetupTestDB opens a fresh SQLite database in the test's temp dir with
// the full schema applied. It is closed when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "agm-proxy.db")
	conn, err := db.Open(context.Background(), db.DialectSQLite, path)
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, db.CreateSchema(conn, db.DialectSQLite), "failed to create schema")
	return conn
}

// CreateTestUser inserts a directory member with the given vote-weight.
func CreateTestUser(t *testing.T, conn *sql.DB, membershipNumber, fullName string, weight int64) models.User {
	t.Helper()

	u := models.User{
		ID:               uuid.NewString(),
		MembershipNumber: membershipNumber,
		Initials:         fullName[:1],
		Surname:          fullName,
		FullName:         fullName,
		IDNumber:         "ID-" + membershipNumber,
		VoteWeight:       decimal.NewFromInt(weight),
	}
	_, err := conn.Exec(`
		INSERT INTO member_user (id, membership_number, initials, surname, full_name, id_number, vote_weight, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.MembershipNumber, u.Initials, u.Surname, u.FullName, u.IDNumber, u.VoteWeight, time.Now().UTC())
	require.NoError(t, err, "failed to create test user")
	return u
}

// CreateTestEmployee inserts an award candidate.
func CreateTestEmployee(t *testing.T, conn *sql.DB, name string, eligible bool) models.Employee {
	t.Helper()

	e := models.Employee{
		ID:         uuid.NewString(),
		Name:       name,
		Position:   "Engineer",
		Department: "Operations",
		IsEligible: eligible,
	}
	_, err := conn.Exec(`
		INSERT INTO employee (id, name, position, department, is_eligible, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.Name, e.Position, e.Department, e.IsEligible, time.Now().UTC())
	require.NoError(t, err, "failed to create test employee")
	return e
}

// CastTestVote writes a ledger row directly, bypassing proxy checks.
func CastTestVote(t *testing.T, conn *sql.DB, voterID, employeeID, principalID string) string {
	t.Helper()

	id := uuid.NewString()
	_, err := conn.Exec(`
		INSERT INTO vote (id, voter_id, employee_id, on_behalf_of, cast_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, voterID, employeeID, principalID, time.Now().UTC())
	require.NoError(t, err, "failed to cast test vote")
	return id
}

// VoteWeight reads a member's current vote-weight.
func VoteWeight(t *testing.T, conn *sql.DB, userID string) decimal.Decimal {
	t.Helper()

	var w decimal.Decimal
	err := conn.QueryRow(`SELECT vote_weight FROM member_user WHERE id = $1`, userID).Scan(&w)
	require.NoError(t, err)
	return w
}

// CountRows returns the number of rows in table.
func CountRows(t *testing.T, conn *sql.DB, table string) int {
	t.Helper()

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body any, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
