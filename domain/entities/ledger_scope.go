package entities

import "strings"

// PublicScopeKey is the key of the global balance pool
const PublicScopeKey = "public"

// LedgerScope selects which point pool a balance operation touches.
// Public parties share one pool; each private party has its own.
type LedgerScope struct {
	Party string
}

// PublicScope returns the global scope
func PublicScope() LedgerScope {
	return LedgerScope{}
}

// PartyScope returns the isolated scope of a private watch party
func PartyScope(partyName string) LedgerScope {
	return LedgerScope{Party: strings.ToLower(strings.TrimSpace(partyName))}
}

// ScopeFor resolves the scope for a watch party
func ScopeFor(isPublic bool, partyName string) LedgerScope {
	if isPublic {
		return PublicScope()
	}
	return PartyScope(partyName)
}

// IsPublic checks if this is the global scope
func (s LedgerScope) IsPublic() bool {
	return s.Party == ""
}

// Key returns the storage key of the scope
func (s LedgerScope) Key() string {
	if s.IsPublic() {
		return PublicScopeKey
	}
	return "party:" + s.Party
}

// String implements fmt.Stringer
func (s LedgerScope) String() string {
	return s.Key()
}
