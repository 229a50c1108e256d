package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ProposalStatus is the lifecycle state of a governance proposal.
type ProposalStatus string

const (
	ProposalPending         ProposalStatus = "PENDING"
	ProposalActive          ProposalStatus = "ACTIVE"
	ProposalCancelled       ProposalStatus = "CANCELLED"
	ProposalVetoed          ProposalStatus = "VETOED"
	ProposalQueued          ProposalStatus = "QUEUED"
	ProposalExecuted        ProposalStatus = "EXECUTED"
	ProposalDefeated        ProposalStatus = "DEFEATED"
	ProposalExpired         ProposalStatus = "EXPIRED"
	ProposalUpdatable       ProposalStatus = "UPDATABLE"
	ProposalObjectionPeriod ProposalStatus = "OBJECTION_PERIOD"
)

var proposalStatuses = map[ProposalStatus]struct{}{
	ProposalPending:         {},
	ProposalActive:          {},
	ProposalCancelled:       {},
	ProposalVetoed:          {},
	ProposalQueued:          {},
	ProposalExecuted:        {},
	ProposalDefeated:        {},
	ProposalExpired:         {},
	ProposalUpdatable:       {},
	ProposalObjectionPeriod: {},
}

// ParseProposalStatus accepts any casing of a known status.
func ParseProposalStatus(s string) (ProposalStatus, error) {
	st := ProposalStatus(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := proposalStatuses[st]; !ok {
		return "", fmt.Errorf("unknown proposal status %q", s)
	}
	return st, nil
}

// IsFinal reports whether no further transitions are possible.
func (s ProposalStatus) IsFinal() bool {
	switch s {
	case ProposalCancelled, ProposalVetoed, ProposalExecuted, ProposalDefeated, ProposalExpired:
		return true
	}
	return false
}

// Proposal is a DAO governance proposal. Description is markdown.
type Proposal struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      ProposalStatus `json:"status"`
}

// VoteSupport is the direction of a vote, as encoded on chain.
type VoteSupport int

const (
	VoteAgainst VoteSupport = 0
	VoteFor     VoteSupport = 1
	VoteAbstain VoteSupport = 2
)

// ParseVoteSupport maps the on-chain supportDetailed value.
func ParseVoteSupport(v int) (VoteSupport, error) {
	switch VoteSupport(v) {
	case VoteAgainst, VoteFor, VoteAbstain:
		return VoteSupport(v), nil
	}
	return 0, fmt.Errorf("unknown vote support %d", v)
}

func (v VoteSupport) String() string {
	switch v {
	case VoteFor:
		return "for"
	case VoteAbstain:
		return "abstain"
	default:
		return "against"
	}
}

// MarshalJSON encodes the support as its name.
func (v VoteSupport) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON accepts the name or the numeric value.
func (v *VoteSupport) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		s, err := ParseVoteSupport(n)
		if err != nil {
			return err
		}
		*v = s
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "against":
		*v = VoteAgainst
	case "for":
		*v = VoteFor
	case "abstain":
		*v = VoteAbstain
	default:
		return fmt.Errorf("unknown vote support %q", s)
	}
	return nil
}

// Vote is a vote cast by a Noun holder on a proposal.
type Vote struct {
	ID       string      `json:"id"`
	Voter    Account     `json:"voter"`
	Support  VoteSupport `json:"support"`
	Votes    int64       `json:"votes"`
	Reason   string      `json:"reason,omitempty"`
	Proposal Proposal    `json:"proposal"`
}
