package models

import (
	"time"

	"github.com/google/uuid"
)

// ContractStatus is the lifecycle state of a contract.
type ContractStatus string

const (
	StatusDraft      ContractStatus = "draft"
	StatusPending    ContractStatus = "pending"
	StatusActive     ContractStatus = "active"
	StatusExpired    ContractStatus = "expired"
	StatusTerminated ContractStatus = "terminated"
	StatusRejected   ContractStatus = "rejected"
)

// ValidStatus reports whether s is a known contract status.
func ValidStatus(s ContractStatus) bool {
	switch s {
	case StatusDraft, StatusPending, StatusActive, StatusExpired, StatusTerminated, StatusRejected:
		return true
	}
	return false
}

// TemplateType identifies which built-in template a contract was created from.
type TemplateType string

const (
	TemplateNDA           TemplateType = "nda"
	TemplateFreelance     TemplateType = "freelance"
	TemplateCollaboration TemplateType = "collaboration"
	TemplateCustom        TemplateType = "custom"
)

// ValidTemplateType reports whether t is a known template type.
func ValidTemplateType(t TemplateType) bool {
	switch t {
	case TemplateNDA, TemplateFreelance, TemplateCollaboration, TemplateCustom:
		return true
	}
	return false
}

// Contract is the root aggregate. It owns its parties and versions; both are
// deleted with the contract. CurrentVersion always equals the version number
// of the most recently created ContractVersion.
type Contract struct {
	ContractID   uuid.UUID // UUIDv7
	Title        string
	Description  string
	TemplateType TemplateType
	Status       ContractStatus

	EffectiveDate  *time.Time
	ExpirationDate *time.Time

	OwnerID uuid.UUID
	OrgID   *uuid.UUID // optional organization scope for shared access

	CurrentVersion int

	LastActivityBy uuid.UUID
	LastActivityAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContractVersion is an immutable content snapshot keyed by
// (contract, version number). Version numbers start at 1 and advance by
// exactly 1 per append; a version is never mutated or deleted while its
// contract exists.
type ContractVersion struct {
	ContractID    uuid.UUID
	Version       int
	Content       ContractContent
	ModifiedBy    uuid.UUID
	ChangeSummary string

	// Render cache. RenderedHTML and PDFPath are filled lazily on export.
	RenderedHTML string
	PDFPath      string

	CreatedAt time.Time
}

// PartyType classifies contract participants.
type PartyType string

const (
	PartyIndividual     PartyType = "individual"
	PartyOrganization   PartyType = "organization"
	PartyRepresentative PartyType = "representative"
)

// ValidPartyType reports whether t is a known party type.
func ValidPartyType(t PartyType) bool {
	switch t {
	case PartyIndividual, PartyOrganization, PartyRepresentative:
		return true
	}
	return false
}

// ContractParty is one signer or participant on a contract. Exactly one of
// the user reference, organization reference, or external name/email pair is
// populated per the party type rules enforced at the request boundary.
type ContractParty struct {
	PartyID    uuid.UUID // UUIDv7
	ContractID uuid.UUID
	Type       PartyType

	UserID *uuid.UUID
	OrgID  *uuid.UUID

	ExternalName  string
	ExternalEmail string

	SignatureRequired bool
	SignedAt          *time.Time
	SignatureData     string

	CreatedAt time.Time
}

// ContractContent is the structured body of a contract version.
type ContractContent struct {
	Sections []Section `json:"sections"`
	Meta     *Meta     `json:"meta,omitempty"`
}

// Empty reports whether the content carries no sections.
func (c ContractContent) Empty() bool {
	return len(c.Sections) == 0
}

// Section is one ordered block of contract text.
type Section struct {
	Title       string       `json:"title"`
	Text        string       `json:"text"`
	Type        string       `json:"type,omitempty"` // "header" or "text"
	Subsections []Subsection `json:"subsections,omitempty"`
}

// Subsection is a nested block inside a section.
type Subsection struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Meta records template provenance for content generated from a template.
type Meta struct {
	TemplateID          string `json:"template_id,omitempty"`
	TemplateVersion     string `json:"template_version,omitempty"`
	CreatedFromTemplate bool   `json:"created_from_template,omitempty"`
}
