// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package proxy

import (
	"fmt"

	"github.com/danielhkuo/agm-proxy/models"
)

// GroupBoundsPolicy decides whether per-group vote bounds must lie inside
// the global individual-vote bounds.
type GroupBoundsPolicy string

const (
	GroupBoundsWithinGlobal GroupBoundsPolicy = "within_global"
	GroupBoundsIndependent  GroupBoundsPolicy = "independent"
)

// Absolute ceilings no administrator may exceed
const (
	ProxyVotersCeiling     = 100
	IndividualVotesCeiling = 10
)

// Policy is the configurable part of the bounds checker.
type Policy struct {
	// Defaults apply until an administrator stores global settings.
	Defaults    models.VoteSplittingSettings `yaml:"defaults"`
	GroupBounds GroupBoundsPolicy            `yaml:"groupBounds"`
}

func DefaultPolicy() Policy {
	return Policy{
		Defaults: models.VoteSplittingSettings{
			IsEnabled:          false,
			MinProxyVoters:     2,
			MaxProxyVoters:     20,
			MinIndividualVotes: 1,
			MaxIndividualVotes: 3,
		},
		GroupBounds: GroupBoundsWithinGlobal,
	}
}

// Validate checks the defaults against the same rules as an administrative update.
func (p Policy) Validate() error {
	switch p.GroupBounds {
	case GroupBoundsWithinGlobal, GroupBoundsIndependent:
	default:
		return fmt.Errorf("unknown group bounds policy %q", p.GroupBounds)
	}
	if err := validateGlobalSettings(p.Defaults); err != nil {
		return fmt.Errorf("invalid default vote-splitting settings: %w", err)
	}
	return nil
}
