// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/danielhkuo/agm-proxy/db"
	"github.com/danielhkuo/agm-proxy/models"
)

// Directory resolves members and employees from the relational store.
// Bind it to a *sql.Tx to make its reads and writes part of that transaction.
type Directory struct {
	q       db.DBTX
	dialect db.Dialect
}

func New(q db.DBTX, dialect db.Dialect) *Directory {
	return &Directory{q: q, dialect: dialect}
}

const userColumns = `id, membership_number, initials, surname, full_name, id_number, vote_weight`

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.MembershipNumber, &u.Initials, &u.Surname,
		&u.FullName, &u.IDNumber, &u.VoteWeight)
	return u, err
}

// ResolveByMembershipNumber looks a member up by membership number.
func (d *Directory) ResolveByMembershipNumber(ctx context.Context, number string) (models.User, error) {
	u, err := scanUser(d.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM member_user WHERE membership_number = $1`, number))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.ErrNotFound("member with membership number %q not found", number)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to resolve membership number: %w", err)
	}
	return u, nil
}

func (d *Directory) GetUser(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(d.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM member_user WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.ErrNotFound("member %q not found", id)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to query member: %w", err)
	}
	return u, nil
}

// GetVoteWeight returns the member's available vote-weight. Inside a
// Postgres transaction the row stays locked until commit.
func (d *Directory) GetVoteWeight(ctx context.Context, userID string) (decimal.Decimal, error) {
	var weight decimal.Decimal
	err := d.q.QueryRowContext(ctx,
		`SELECT vote_weight FROM member_user WHERE id = $1`+d.dialect.ForUpdate(), userID).Scan(&weight)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, models.ErrNotFound("member %q not found", userID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query vote weight: %w", err)
	}
	return weight, nil
}

// DeductVoteWeight subtracts amount from the member's vote-weight, flooring
// the result at zero.
func (d *Directory) DeductVoteWeight(ctx context.Context, userID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return models.ErrValidation("deduction must not be negative")
	}

	weight, err := d.GetVoteWeight(ctx, userID)
	if err != nil {
		return err
	}

	remaining := decimal.Max(decimal.Zero, weight.Sub(amount))
	_, err = d.q.ExecContext(ctx,
		`UPDATE member_user SET vote_weight = $1 WHERE id = $2`, remaining, userID)
	if err != nil {
		return fmt.Errorf("failed to update vote weight: %w", err)
	}
	return nil
}

// CreateUser inserts a directory record, assigning an id when empty.
func (d *Directory) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := d.q.ExecContext(ctx, `
		INSERT INTO member_user (id, membership_number, initials, surname, full_name, id_number, vote_weight, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.MembershipNumber, u.Initials, u.Surname, u.FullName, u.IDNumber, u.VoteWeight, time.Now().UTC())
	if err != nil {
		return models.User{}, db.MapError(err)
	}
	return u, nil
}

const employeeColumns = `id, name, position, department, is_eligible`

func scanEmployee(row interface{ Scan(...any) error }) (models.Employee, error) {
	var e models.Employee
	err := row.Scan(&e.ID, &e.Name, &e.Position, &e.Department, &e.IsEligible)
	return e, err
}

func (d *Directory) GetEmployee(ctx context.Context, id string) (models.Employee, error) {
	e, err := scanEmployee(d.q.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employee WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Employee{}, models.ErrNotFound("employee %q not found", id)
	}
	if err != nil {
		return models.Employee{}, fmt.Errorf("failed to query employee: %w", err)
	}
	return e, nil
}

// ListEligibleEmployees returns every employee that may receive votes.
func (d *Directory) ListEligibleEmployees(ctx context.Context) ([]models.Employee, error) {
	rows, err := d.q.QueryContext(ctx,
		`SELECT `+employeeColumns+` FROM employee WHERE is_eligible = $1 ORDER BY name, id`, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	employees := []models.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (d *Directory) CreateEmployee(ctx context.Context, e models.Employee) (models.Employee, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := d.q.ExecContext(ctx, `
		INSERT INTO employee (id, name, position, department, is_eligible, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.Name, e.Position, e.Department, e.IsEligible, time.Now().UTC())
	if err != nil {
		return models.Employee{}, db.MapError(err)
	}
	return e, nil
}
