package policy

import (
	"testing"

	"clinicore/facility"
)

func TestForDescriptor(t *testing.T) {
	cases := []struct {
		name          string
		isAdmission   bool
		allowMultiple bool
		wantName      string
		wantScope     Scope
		wantSharing   Sharing
	}{
		{"allow multiple wins", true, true, "allow-multiple", ScopeUIDScriptDay, ShareEarliestByUID},
		{"allow multiple alone", false, true, "allow-multiple", ScopeUIDScriptDay, ShareEarliestByUID},
		{"admission", true, false, "admission-only", ScopeUIDScript, MintAlways},
		{"follow up", false, false, "follow-up-only", ScopeNone, RequireExisting},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := ForDescriptor(facility.Descriptor{IsAdmission: tc.isAdmission, AllowMultiple: tc.allowMultiple})
			if r.Name() != tc.wantName {
				t.Errorf("Name = %q, want %q", r.Name(), tc.wantName)
			}
			if r.Scope() != tc.wantScope {
				t.Errorf("Scope = %d, want %d", r.Scope(), tc.wantScope)
			}
			if r.Sharing() != tc.wantSharing {
				t.Errorf("Sharing = %d, want %d", r.Sharing(), tc.wantSharing)
			}
		})
	}
}
