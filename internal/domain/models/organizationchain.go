// internal/domain/models/organizationchain.go
package models

// OrgKind is a level of the organization chain: OrgType → Organization → Designation.
// The chain is independent of the geography chain.
type OrgKind int

const (
	KindOrgType OrgKind = iota
	KindOrganization
	KindDesignation
)

// OrgKinds lists every org level in parent-to-child order.
var OrgKinds = []OrgKind{KindOrgType, KindOrganization, KindDesignation}

var orgKindNames = [...]string{"orgtype", "organization", "designation"}

func (k OrgKind) String() string {
	if k < KindOrgType || k > KindDesignation {
		return "unknown"
	}
	return orgKindNames[k]
}

// Valid reports whether k is one of the three org levels.
func (k OrgKind) Valid() bool {
	return k >= KindOrgType && k <= KindDesignation
}

// ParseOrgKind maps "orgtype", "organization" or "designation" to its OrgKind.
func ParseOrgKind(s string) (OrgKind, bool) {
	for i, n := range orgKindNames {
		if n == s {
			return OrgKind(i), true
		}
	}
	return 0, false
}

// OrgUnit is an org type, organization or designation from the CHIP backend.
// For org types ParentID holds the state the list was requested for.
type OrgUnit struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID string  `json:"parentId,omitempty"`
	Kind     OrgKind `json:"kind"`
}
