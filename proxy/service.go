// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package proxy

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/danielhkuo/agm-proxy/db"
	"github.com/danielhkuo/agm-proxy/directory"
	"github.com/danielhkuo/agm-proxy/ledger"
	"github.com/danielhkuo/agm-proxy/metrics"
	"github.com/danielhkuo/agm-proxy/models"
)

// Directory resolves members and employees.
type Directory interface {
	ResolveByMembershipNumber(ctx context.Context, number string) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	GetVoteWeight(ctx context.Context, userID string) (decimal.Decimal, error)
	DeductVoteWeight(ctx context.Context, userID string, amount decimal.Decimal) error
	ListEligibleEmployees(ctx context.Context) ([]models.Employee, error)
	GetEmployee(ctx context.Context, id string) (models.Employee, error)
}

// VoteLedger is the append-only record of cast votes.
type VoteLedger interface {
	Record(ctx context.Context, v models.Vote) (string, error)
	HasAnyVoteByMembersOnPrincipal(ctx context.Context, memberIDs []string, principalID string) (bool, error)
	VotersOnPrincipal(ctx context.Context, memberIDs []string, principalID string) ([]string, error)
	CountVotesByMemberForPrincipal(ctx context.Context, memberID, principalID string) (int, error)
}

// Service implements proxy appointment, bounds, guard and query operations.
// Collaborators are built per call from the connection or transaction in
// use, so their reads and writes share the caller's transaction.
type Service struct {
	conn      *sql.DB
	dialect   db.Dialect
	policy    Policy
	directory func(q db.DBTX) Directory
	ledger    func(q db.DBTX) VoteLedger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithPolicy(p Policy) Option {
	return func(s *Service) { s.policy = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithDirectory replaces the SQL directory, e.g. to inject failures in tests.
func WithDirectory(f func(q db.DBTX) Directory) Option {
	return func(s *Service) { s.directory = f }
}

func WithLedger(f func(q db.DBTX) VoteLedger) Option {
	return func(s *Service) { s.ledger = f }
}

func New(conn *sql.DB, dialect db.Dialect, opts ...Option) *Service {
	s := &Service{
		conn:    conn,
		dialect: dialect,
		policy:  DefaultPolicy(),
	}
	s.directory = func(q db.DBTX) Directory { return directory.New(q, dialect) }
	s.ledger = func(q db.DBTX) VoteLedger { return ledger.New(q) }

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the bounds policy in effect.
func (s *Service) Policy() Policy {
	return s.policy
}

// ListEligibleEmployees returns every employee members may vote for.
func (s *Service) ListEligibleEmployees(ctx context.Context) ([]models.Employee, error) {
	return s.directory(s.conn).ListEligibleEmployees(ctx)
}
