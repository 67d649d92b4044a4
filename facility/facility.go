// Package facility resolves script identifiers to the facility descriptor
// that governs identity assignment and duplicate policy.
package facility

import (
	"encoding/json"
	"fmt"
	"os"
)

// Descriptor is an immutable facility mapping entry.
type Descriptor struct {
	ScriptID      string
	Province      string
	District      string
	Facility      string
	ProgramType   string
	IsAdmission   bool
	AllowMultiple bool
}

type mapperFile struct {
	ProgramType string                 `json:"programType"`
	Mappings    map[string]mapperEntry `json:"mappings"`
}

type mapperEntry struct {
	Province      string `json:"province"`
	District      string `json:"district"`
	Facility      string `json:"facility"`
	IsAdmission   *bool  `json:"isAdmission"`
	AllowMultiple *bool  `json:"allowMultiple"`
}

// Resolver is a pure lookup over the mapping loaded at startup.
type Resolver struct {
	programType string
	mappings    map[string]Descriptor
}

// Load reads the facility mapper file. A missing or malformed file is a
// startup fault; an unknown scriptId at request time is a business miss.
func Load(path string) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read facility mapper: %w", err)
	}
	return Parse(data)
}

// Parse builds a resolver from raw mapper JSON.
func Parse(data []byte) (*Resolver, error) {
	var mf mapperFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse facility mapper: %w", err)
	}
	if len(mf.Mappings) == 0 {
		return nil, fmt.Errorf("facility mapper has no mappings")
	}
	r := &Resolver{
		programType: mf.ProgramType,
		mappings:    make(map[string]Descriptor, len(mf.Mappings)),
	}
	for scriptID, e := range mf.Mappings {
		d := Descriptor{
			ScriptID:      scriptID,
			Province:      e.Province,
			District:      e.District,
			Facility:      e.Facility,
			ProgramType:   mf.ProgramType,
			IsAdmission:   true,
			AllowMultiple: false,
		}
		if e.IsAdmission != nil {
			d.IsAdmission = *e.IsAdmission
		}
		if e.AllowMultiple != nil {
			d.AllowMultiple = *e.AllowMultiple
		}
		r.mappings[scriptID] = d
	}
	return r, nil
}

// Resolve looks up a script's facility descriptor.
func (r *Resolver) Resolve(scriptID string) (Descriptor, bool) {
	d, ok := r.mappings[scriptID]
	return d, ok
}

// Len returns the number of mapped scripts.
func (r *Resolver) Len() int { return len(r.mappings) }
