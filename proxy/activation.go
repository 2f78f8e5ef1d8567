// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package proxy

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/agm-proxy/db"
)

// ActivateGroup lets the group's members vote on the principal's behalf.
// Activation is not guarded and may be repeated.
func (s *Service) ActivateGroup(ctx context.Context, groupID string) error {
	return s.setActive(ctx, groupID, true)
}

// DeactivateGroup stops further proxy votes through the group.
func (s *Service) DeactivateGroup(ctx context.Context, groupID string) error {
	return s.setActive(ctx, groupID, false)
}

func (s *Service) setActive(ctx context.Context, groupID string, active bool) error {
	err := db.WithTx(ctx, s.conn, func(tx *sql.Tx) error {
		if _, err := s.getGroup(ctx, tx, groupID, true); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			UPDATE proxy_group SET is_active = $1, updated_at = $2 WHERE id = $3
		`, active, time.Now().UTC(), groupID)
		if err != nil {
			return fmt.Errorf("failed to update group activation: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE proxy_voter_limit SET is_active = $1 WHERE group_id = $2
		`, active, groupID)
		if err != nil {
			return fmt.Errorf("failed to update voter limits: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.GroupActivation(active)
	slog.Info("proxy group activation changed", "group_id", groupID, "active", active)
	return nil
}
