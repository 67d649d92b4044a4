// Package policy classifies a submission into one of three duplicate
// regimes, driven by the facility descriptor's flags. The regime decides
// which stored records count as "the same" and how identity is shared.
package policy

import "clinicore/facility"

// Scope is the field combination that must be unique for a regime.
type Scope int

const (
	// ScopeUIDScriptDay allows at most one record per uid, script and
	// calendar day of the session time.
	ScopeUIDScriptDay Scope = iota
	// ScopeUIDScript allows at most one record per uid and script, ever.
	ScopeUIDScript
	// ScopeNone performs no duplicate check of its own.
	ScopeNone
)

// Sharing is how the identity token is obtained on acceptance.
type Sharing int

const (
	// ShareEarliestByUID reuses the identity of the uid's earliest record
	// across all scripts, minting only for the uid's first record.
	ShareEarliestByUID Sharing = iota
	// MintAlways mints a fresh identity for every accepted record.
	MintAlways
	// RequireExisting attaches to an identity minted earlier; absence is a
	// rejection, never a mint.
	RequireExisting
)

// Regime is the closed set of duplicate policies. The three variants are
// mutually exclusive and derived from the descriptor's two flags.
type Regime interface {
	Name() string
	Scope() Scope
	Sharing() Sharing

	regime() // seals the set
}

// AllowMultiple permits repeat sessions for a uid across days and scripts.
type AllowMultiple struct{}

func (AllowMultiple) Name() string     { return "allow-multiple" }
func (AllowMultiple) Scope() Scope     { return ScopeUIDScriptDay }
func (AllowMultiple) Sharing() Sharing { return ShareEarliestByUID }
func (AllowMultiple) regime()          {}

// AdmissionOnly is the canonical first-contact record: one per (uid, script).
type AdmissionOnly struct{}

func (AdmissionOnly) Name() string     { return "admission-only" }
func (AdmissionOnly) Scope() Scope     { return ScopeUIDScript }
func (AdmissionOnly) Sharing() Sharing { return MintAlways }
func (AdmissionOnly) regime()          {}

// FollowUpOnly never mints; the uid must already hold an identity.
type FollowUpOnly struct{}

func (FollowUpOnly) Name() string     { return "follow-up-only" }
func (FollowUpOnly) Scope() Scope     { return ScopeNone }
func (FollowUpOnly) Sharing() Sharing { return RequireExisting }
func (FollowUpOnly) regime()          {}

// ForDescriptor selects the regime for a facility. allowMultiple wins over
// isAdmission when both are set, matching the mapper's precedence.
func ForDescriptor(d facility.Descriptor) Regime {
	switch {
	case d.AllowMultiple:
		return AllowMultiple{}
	case d.IsAdmission:
		return AdmissionOnly{}
	default:
		return FollowUpOnly{}
	}
}
