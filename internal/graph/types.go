package graph

import (
	"fmt"
	"strings"
)

// EgoState is an ordered developmental state attached to a node.
// The numeric value is the state's rank.
type EgoState int

const (
	EgoFreeChild         EgoState = 1
	EgoAdaptedChild      EgoState = 2
	EgoAdult             EgoState = 3
	EgoNurturingParent   EgoState = 4
	EgoControllingParent EgoState = 5
)

// DefaultEgoState is assigned to nodes whose record omits ego_state.
const DefaultEgoState = EgoAdult

var egoStateNames = map[EgoState]string{
	EgoFreeChild:         "Free Child",
	EgoAdaptedChild:      "Adapted Child",
	EgoAdult:             "Adult",
	EgoNurturingParent:   "Nurturing Parent",
	EgoControllingParent: "Controlling Parent",
}

// EgoStates returns every ego state in enumeration (rank) order.
func EgoStates() []EgoState {
	return []EgoState{
		EgoFreeChild,
		EgoAdaptedChild,
		EgoAdult,
		EgoNurturingParent,
		EgoControllingParent,
	}
}

// Rank returns the position of the state in the ordered enumeration.
func (e EgoState) Rank() int { return int(e) }

// Valid reports whether e is one of the five enumerated states.
func (e EgoState) Valid() bool {
	_, ok := egoStateNames[e]
	return ok
}

func (e EgoState) String() string {
	if name, ok := egoStateNames[e]; ok {
		return name
	}
	return fmt.Sprintf("EgoState(%d)", int(e))
}

// MarshalText encodes the state by its display name.
func (e EgoState) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("invalid ego state %d", int(e))
	}
	return []byte(e.String()), nil
}

// UnmarshalText accepts any spelling ParseEgoState accepts.
func (e *EgoState) UnmarshalText(text []byte) error {
	parsed, err := ParseEgoState(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// ParseEgoState parses a display name such as "Nurturing Parent".
// Matching ignores case, and "-" or "_" are accepted in place of spaces.
// The empty string yields DefaultEgoState.
func ParseEgoState(s string) (EgoState, error) {
	norm := normalizeLabel(s)
	if norm == "" {
		return DefaultEgoState, nil
	}
	for _, state := range EgoStates() {
		if normalizeLabel(egoStateNames[state]) == norm {
			return state, nil
		}
	}
	return 0, fmt.Errorf("unknown ego state %q", s)
}

// Role is a node's position in the tension triangle or its empowered
// counterpart.
type Role string

const (
	RoleNone       Role = ""
	RoleVictim     Role = "Victim"
	RoleRescuer    Role = "Rescuer"
	RolePersecutor Role = "Persecutor"
	RoleCreator    Role = "Creator"
	RoleCoach      Role = "Coach"
	RoleChallenger Role = "Challenger"
)

// roleWeights scores dysfunctional roles at or below zero and empowered
// roles above it. Unset roles weigh zero.
var roleWeights = map[Role]int{
	RoleVictim:     -1,
	RoleRescuer:    0,
	RolePersecutor: -1,
	RoleCreator:    1,
	RoleCoach:      1,
	RoleChallenger: 1,
}

// empowerment maps each dysfunctional role to its empowered counterpart.
var empowerment = map[Role]Role{
	RoleVictim:     RoleCreator,
	RoleRescuer:    RoleCoach,
	RolePersecutor: RoleChallenger,
}

// Roles returns every non-empty role.
func Roles() []Role {
	return []Role{RoleVictim, RoleRescuer, RolePersecutor, RoleCreator, RoleCoach, RoleChallenger}
}

// Weight returns the role's weight in the tension-triangle table.
func (r Role) Weight() int { return roleWeights[r] }

// Empowered returns the empowered counterpart of r. Roles outside the
// Victim/Rescuer/Persecutor triangle are returned unchanged.
func (r Role) Empowered() Role {
	if to, ok := empowerment[r]; ok {
		return to
	}
	return r
}

// Valid reports whether r is one of the enumerated roles or unset.
func (r Role) Valid() bool {
	if r == RoleNone {
		return true
	}
	_, ok := roleWeights[r]
	return ok
}

// ParseRole parses a role name case-insensitively. The empty string is
// RoleNone.
func ParseRole(s string) (Role, error) {
	norm := normalizeLabel(s)
	if norm == "" {
		return RoleNone, nil
	}
	for _, r := range Roles() {
		if normalizeLabel(string(r)) == norm {
			return r, nil
		}
	}
	return RoleNone, fmt.Errorf("unknown role %q", s)
}

// LightShadow is the binary valence tag on an edge.
type LightShadow string

const (
	Light  LightShadow = "light"
	Shadow LightShadow = "shadow"
)

// Toggle returns the opposite valence.
func (l LightShadow) Toggle() LightShadow {
	if l == Shadow {
		return Light
	}
	return Shadow
}

// ParseLightShadow parses "light" or "shadow" case-insensitively. The empty
// string yields Light.
func ParseLightShadow(s string) (LightShadow, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "light":
		return Light, nil
	case "shadow":
		return Shadow, nil
	default:
		return "", fmt.Errorf("unknown light_shadow %q", s)
	}
}

// Edge role labels that put a relationship in the tension triangle.
const (
	EdgeRoleVictimRescuer    = "Victim-Rescuer"
	EdgeRoleVictimPersecutor = "Victim-Persecutor"
)

// IsTensionRole reports whether an edge role label triggers damage.
func IsTensionRole(label string) bool {
	return label == EdgeRoleVictimRescuer || label == EdgeRoleVictimPersecutor
}

// EdgeRoleLabel joins two node roles into an edge role label.
func EdgeRoleLabel(u, v Role) string {
	return string(u) + "-" + string(v)
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
