// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Member-level and group-level appointment types
const (
	AppointmentDiscretionary = "DISCRETIONARY"
	AppointmentInstructional = "INSTRUCTIONAL"
	AppointmentMixed         = "MIXED"
)

// Form-level appointment types recorded on the signed instrument
const (
	FormDiscretional  = "DISCRETIONAL"
	FormInstructional = "INSTRUCTIONAL"
)

// Domain types

// User is a directory record. VoteWeight is the allowance still available
// to the member for personal voting or delegation.
type User struct {
	ID               string          `json:"id"`
	MembershipNumber string          `json:"membershipNumber"`
	Initials         string          `json:"initials"`
	Surname          string          `json:"surname"`
	FullName         string          `json:"fullName"`
	IDNumber         string          `json:"idNumber"`
	VoteWeight       decimal.Decimal `json:"voteWeight"`
}

type Employee struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Position   string `json:"position"`
	Department string `json:"department"`
	IsEligible bool   `json:"isEligible"`
}

// AGMInstructions are free-text voting instructions applied when the group
// votes on governance resolutions as a block.
type AGMInstructions struct {
	TrusteeRemuneration *string `json:"trusteeRemuneration,omitempty"`
	RemunerationPolicy  *string `json:"remunerationPolicy,omitempty"`
	AuditorsAppointment *string `json:"auditorsAppointment,omitempty"`
	AGMMotions          *string `json:"agmMotions,omitempty"`
}

type ProxyGroup struct {
	ID              string `json:"id"`
	GroupName       string `json:"groupName"`
	PrincipalID     string `json:"principalId"`
	AppointmentType string `json:"appointmentType"`
	AGMInstructions
	TotalVotesDelegated  int           `json:"totalVotesDelegated"`
	IsActive             bool          `json:"isActive"`
	VoteSplittingEnabled bool          `json:"voteSplittingEnabled"`
	MinVotesPerUser      *int          `json:"minVotesPerUser,omitempty"`
	MaxVotesPerUser      *int          `json:"maxVotesPerUser,omitempty"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
	Members              []ProxyMember `json:"members,omitempty"`
}

// ProxyMember snapshots the delegate's identity at appointment time.
type ProxyMember struct {
	ID                string             `json:"id"`
	GroupID           string             `json:"groupId"`
	MemberID          string             `json:"memberId"`
	Initials          string             `json:"initials"`
	Surname           string             `json:"surname"`
	FullName          string             `json:"fullName"`
	MembershipNumber  string             `json:"membershipNumber"`
	IDNumber          string             `json:"idNumber"`
	AppointmentType   string             `json:"appointmentType"`
	VotesAllocated    int                `json:"votesAllocated"`
	AllowedCandidates []AllowedCandidate `json:"allowedCandidates,omitempty"`
}

// AllowedCandidate carries the employee fields denormalized for display.
type AllowedCandidate struct {
	ProxyMemberID string `json:"proxyMemberId"`
	EmployeeID    string `json:"employeeId"`
	Name          string `json:"name"`
	Position      string `json:"position"`
	Department    string `json:"department"`
}

type ProxyAppointment struct {
	ID                  string     `json:"id"`
	PrincipalID         string     `json:"principalId"`
	MembershipNumber    string     `json:"membershipNumber"`
	FullName            string     `json:"fullName"`
	IDNumber            string     `json:"idNumber"`
	AppointmentType     string     `json:"appointmentType"`
	LocationSigned      string     `json:"locationSigned"`
	SignedDate          *time.Time `json:"signedDate,omitempty"`
	TotalAllocatedVotes int        `json:"totalAllocatedVotes"`
	GroupID             *string    `json:"groupId,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
}

// VoteSplittingSettings are the global bounds every group must respect.
type VoteSplittingSettings struct {
	IsEnabled          bool       `json:"isEnabled"          yaml:"isEnabled"`
	MinProxyVoters     int        `json:"minProxyVoters"     yaml:"minProxyVoters"`
	MaxProxyVoters     int        `json:"maxProxyVoters"     yaml:"maxProxyVoters"`
	MinIndividualVotes int        `json:"minIndividualVotes" yaml:"minIndividualVotes"`
	MaxIndividualVotes int        `json:"maxIndividualVotes" yaml:"maxIndividualVotes"`
	UpdatedAt          *time.Time `json:"updatedAt,omitempty" yaml:"-"`
}

// GroupLimits is the per-group override of the individual-vote bounds.
type GroupLimits struct {
	GroupID              string `json:"groupId"`
	VoteSplittingEnabled bool   `json:"voteSplittingEnabled"`
	MinVotesPerUser      int    `json:"minVotesPerUser"`
	MaxVotesPerUser      int    `json:"maxVotesPerUser"`
}

// VoterLimit tracks how many of a delegate's allocated votes have been used.
type VoterLimit struct {
	ID              string `json:"id"`
	GroupID         string `json:"groupId"`
	ProxyMemberID   string `json:"proxyMemberId"`
	MaxVotesAllowed int    `json:"maxVotesAllowed"`
	VotesUsed       int    `json:"votesUsed"`
	IsActive        bool   `json:"isActive"`
}

// Vote is a ledger entry. OnBehalfOf is nil for a member's personal vote.
type Vote struct {
	ID           string    `json:"id"`
	VoterID      string    `json:"voterId"`
	EmployeeID   string    `json:"employeeId"`
	OnBehalfOf   *string   `json:"onBehalfOf,omitempty"`
	ProxyGroupID *string   `json:"proxyGroupId,omitempty"`
	IPHash       *string   `json:"-"` // Never expose in JSON
	CastAt       time.Time `json:"castAt"`
}

// DelegateGroup is one row of the delegate view.
type DelegateGroup struct {
	Group             ProxyGroup         `json:"group"`
	PrincipalName     string             `json:"principalName"`
	ProxyMemberID     string             `json:"proxyMemberId"`
	AppointmentType   string             `json:"appointmentType"`
	AllowedCandidates []AllowedCandidate `json:"allowedCandidates,omitempty"`
	TotalVotes        int                `json:"totalVotes"`
	VotesUsed         int                `json:"votesUsed"`
	RemainingVotes    int                `json:"remainingVotes"`
}

// Request types

// MemberDescriptor describes one delegate in an appointment or addMember call.
type MemberDescriptor struct {
	MembershipNumber  string   `json:"membershipNumber"`
	Initials          string   `json:"initials"`
	Surname           string   `json:"surname"`
	FullName          string   `json:"fullName"`
	IDNumber          string   `json:"idNumber"`
	AppointmentType   string   `json:"appointmentType"`
	VotesAllocated    int      `json:"votesAllocated"`
	AllowedCandidates []string `json:"allowedCandidates"`
}

type CreateAppointmentRequest struct {
	PrincipalMembershipNumber string             `json:"principalMembershipNumber"`
	GroupName                 string             `json:"groupName"`
	Members                   []MemberDescriptor `json:"members"`
	AGMInstructions
	// nil means "sum of member allocations"
	TotalAllocatedVotes *int       `json:"totalAllocatedVotes,omitempty"`
	LocationSigned      string     `json:"locationSigned"`
	SignedDate          *time.Time `json:"signedDate,omitempty"`
}

// UpdateGroupRequest is a partial update; nil fields are left unchanged.
type UpdateGroupRequest struct {
	GroupName       *string `json:"groupName,omitempty"`
	AppointmentType *string `json:"appointmentType,omitempty"`
	AGMInstructions
}

type AddCandidateRequest struct {
	EmployeeID string `json:"employeeId"`
}

type CastVoteRequest struct {
	DelegateID string `json:"delegateId"`
	EmployeeID string `json:"employeeId"`
}

type UpdateGroupLimitsRequest struct {
	VoteSplittingEnabled bool `json:"voteSplittingEnabled"`
	MinVotesPerUser      int  `json:"minVotesPerUser"`
	MaxVotesPerUser      int  `json:"maxVotesPerUser"`
}

type VoterLimitEntry struct {
	ProxyMemberID   string `json:"proxyMemberId"`
	MaxVotesAllowed int    `json:"maxVotesAllowed"`
}

type SetVoterLimitsRequest struct {
	Limits []VoterLimitEntry `json:"limits"`
}

// Response types

type CreateAppointmentResponse struct {
	AppointmentID        string `json:"appointmentId"`
	GroupID              string `json:"groupId"`
	VotesAllocated       int    `json:"votesAllocated"`
	AppointmentType      string `json:"appointmentType"`
	GroupAppointmentType string `json:"groupAppointmentType"`
}

type AddMemberResponse struct {
	MemberID string `json:"memberId"`
}

type CastVoteResponse struct {
	VoteID         string `json:"voteId"`
	RemainingVotes int    `json:"remainingVotes"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// Error response

type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Voters  []string `json:"voters,omitempty"`
}
