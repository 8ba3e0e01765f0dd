package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/divviup/divviup-console/internal/validation"
)

// Role is the position an aggregator may take in a task.
type Role string

const (
	RoleLeader Role = "Leader"
	RoleHelper Role = "Helper"
	RoleEither Role = "Either"
)

// ParseRole accepts any casing of a known role.
func ParseRole(s string) (Role, error) {
	for _, r := range []Role{RoleLeader, RoleHelper, RoleEither} {
		if strings.EqualFold(s, string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unrecognized role %q", s)
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Protocol is the DAP draft an aggregator speaks.
type Protocol string

const (
	ProtocolDAP04 Protocol = "DAP-04"
	ProtocolDAP05 Protocol = "DAP-05"
	ProtocolDAP07 Protocol = "DAP-07"
	ProtocolDAP09 Protocol = "DAP-09"
)

var knownProtocols = []Protocol{ProtocolDAP04, ProtocolDAP05, ProtocolDAP07, ProtocolDAP09}

// ParseProtocol normalizes the casing of known protocols. Unknown values
// are kept as-is.
func ParseProtocol(s string) Protocol {
	for _, p := range knownProtocols {
		if strings.EqualFold(s, string(p)) {
			return p
		}
	}
	return Protocol(s)
}

// Known reports whether p is one of the recognized DAP drafts.
func (p Protocol) Known() bool {
	for _, known := range knownProtocols {
		if p == known {
			return true
		}
	}
	return false
}

func (p *Protocol) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = ParseProtocol(s)
	return nil
}

// FeatureTokenHash means the aggregator stores only hashes of collector
// auth tokens.
const FeatureTokenHash = "TokenHash"

// Features is the set of optional capabilities an aggregator reports.
type Features []string

func (f Features) Has(feature string) bool {
	for _, have := range f {
		if have == feature {
			return true
		}
	}
	return false
}

// Aggregator is a DAP aggregator registered with the API. A nil AccountID
// marks a shared aggregator.
type Aggregator struct {
	ID           uuid.UUID  `json:"id"`
	AccountID    *uuid.UUID `json:"account_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at"`
	Role         Role       `json:"role"`
	Name         string     `json:"name"`
	DapURL       string     `json:"dap_url"`
	APIURL       string     `json:"api_url"`
	IsFirstParty bool       `json:"is_first_party"`
	Vdafs        []string   `json:"vdafs"`
	QueryTypes   []string   `json:"query_types"`
	Features     Features   `json:"features"`
	Protocol     Protocol   `json:"protocol"`
}

func (a *Aggregator) IsShared() bool {
	return a.AccountID == nil
}

func (a *Aggregator) IsDeleted() bool {
	return a.DeletedAt != nil
}

// SupportsRole reports whether the aggregator can act as role in a task.
func (a *Aggregator) SupportsRole(role Role) bool {
	return a.Role == RoleEither || a.Role == role
}

// NewAggregator registers an account-owned aggregator.
type NewAggregator struct {
	Name        string `json:"name"`
	APIURL      string `json:"api_url"`
	BearerToken string `json:"bearer_token"`
}

func (a NewAggregator) Validate() validation.Node {
	errs := validation.Node{}
	validateAggregatorFields(errs, a.Name, a.APIURL, a.BearerToken)
	return errs
}

// NewSharedAggregator registers an aggregator visible to every account.
type NewSharedAggregator struct {
	Name         string `json:"name"`
	APIURL       string `json:"api_url"`
	BearerToken  string `json:"bearer_token"`
	IsFirstParty bool   `json:"is_first_party"`
}

func (a NewSharedAggregator) Validate() validation.Node {
	errs := validation.Node{}
	validateAggregatorFields(errs, a.Name, a.APIURL, a.BearerToken)
	return errs
}

// UpdateAggregator renames an aggregator or rotates its bearer token.
type UpdateAggregator struct {
	Name        *string `json:"name,omitempty"`
	BearerToken *string `json:"bearer_token,omitempty"`
}

func (a UpdateAggregator) Validate() validation.Node {
	errs := validation.Node{}
	if a.Name != nil && strings.TrimSpace(*a.Name) == "" {
		errs.Add("name", validation.NewViolation("required"))
	}
	if a.BearerToken != nil && *a.BearerToken == "" {
		errs.Add("bearer_token", validation.NewViolation("required"))
	}
	return errs
}

func validateAggregatorFields(errs validation.Node, name, apiURL, bearerToken string) {
	if strings.TrimSpace(name) == "" {
		errs.Add("name", validation.NewViolation("required"))
	}
	switch u, err := url.Parse(apiURL); {
	case apiURL == "":
		errs.Add("api_url", validation.NewViolation("required"))
	case err != nil || u.Host == "":
		errs.Add("api_url", validation.NewViolation("url"))
	case u.Scheme != "https":
		errs.Add("api_url", validation.NewViolation("https-url"))
	}
	if bearerToken == "" {
		errs.Add("bearer_token", validation.NewViolation("required"))
	}
}
