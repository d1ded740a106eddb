// Package permissions models the fixed module by action permission matrix
// granted to a role.
//
// Set is a value type: two sets holding the same grants compare equal with ==.
// The textual form is a list of "module.action" tokens.
package permissions

import (
	"strings"

	"orgauthz/internal/engine/errs"
)

type Module string

const (
	Sales      Module = "sales"
	Purchasing Module = "purchasing"
	Inventory  Module = "inventory"
	Users      Module = "users"
	Reports    Module = "reports"
)

type Action string

const (
	Create Action = "create"
	Read   Action = "read"
	Update Action = "update"
	Delete Action = "delete"
)

// Modules and Actions list the enumerations in canonical order.
var (
	Modules = []Module{Sales, Purchasing, Inventory, Users, Reports}
	Actions = []Action{Create, Read, Update, Delete}
)

const (
	separator   = "."
	moduleCount = 5
)

// Mode selects how unknown module or action names are treated when parsing.
type Mode int

const (
	// Strict rejects any token naming an unknown module or action.
	Strict Mode = iota
	// Lenient drops such tokens. Used when reading stored catalog data.
	Lenient
)

// Grants holds the four action flags of a single module.
type Grants struct {
	Create bool `json:"create"`
	Read   bool `json:"read"`
	Update bool `json:"update"`
	Delete bool `json:"delete"`
}

func (g Grants) allows(a Action) bool {
	switch a {
	case Create:
		return g.Create
	case Read:
		return g.Read
	case Update:
		return g.Update
	case Delete:
		return g.Delete
	}
	return false
}

func (g *Grants) set(a Action) {
	switch a {
	case Create:
		g.Create = true
	case Read:
		g.Read = true
	case Update:
		g.Update = true
	case Delete:
		g.Delete = true
	}
}

func (g Grants) or(o Grants) Grants {
	return Grants{
		Create: g.Create || o.Create,
		Read:   g.Read || o.Read,
		Update: g.Update || o.Update,
		Delete: g.Delete || o.Delete,
	}
}

type Set struct {
	grants [moduleCount]Grants
}

func moduleIndex(m Module) int {
	for i, known := range Modules {
		if known == m {
			return i
		}
	}
	return -1
}

func validAction(a Action) bool {
	for _, known := range Actions {
		if known == a {
			return true
		}
	}
	return false
}

// ParseModule reports whether name is a known module.
func ParseModule(name string) (Module, bool) {
	m := Module(name)
	return m, moduleIndex(m) >= 0
}

// ParseAction reports whether name is a known action.
func ParseAction(name string) (Action, bool) {
	a := Action(name)
	return a, validAction(a)
}

// Token renders a single module/action pair.
func Token(m Module, a Action) string {
	return string(m) + separator + string(a)
}

// FromTokens builds a set from "module.action" tokens. The split happens at
// the first separator. A token with no separator is malformed in both modes.
func FromTokens(tokens []string, mode Mode) (Set, error) {
	var s Set
	for _, tok := range tokens {
		modName, actName, ok := strings.Cut(tok, separator)
		if !ok {
			return Set{}, &errs.MalformedTokenError{Token: tok, Reason: "missing separator"}
		}

		m, ok := ParseModule(modName)
		if !ok {
			if mode == Lenient {
				continue
			}
			return Set{}, &errs.MalformedTokenError{Token: tok, Reason: "unknown module " + modName}
		}
		a, ok := ParseAction(actName)
		if !ok {
			if mode == Lenient {
				continue
			}
			return Set{}, &errs.MalformedTokenError{Token: tok, Reason: "unknown action " + actName}
		}

		s.grants[moduleIndex(m)].set(a)
	}
	return s, nil
}

// MustFromTokens is FromTokens in strict mode for literals known at compile time.
func MustFromTokens(tokens ...string) Set {
	s, err := FromTokens(tokens, Strict)
	if err != nil {
		panic(err)
	}
	return s
}

// Tokens lists every granted pair, ordered by module then action.
func (s Set) Tokens() []string {
	tokens := make([]string, 0, s.CountGranted())
	for i, m := range Modules {
		for _, a := range Actions {
			if s.grants[i].allows(a) {
				tokens = append(tokens, Token(m, a))
			}
		}
	}
	return tokens
}

// Merge grants an action when either input grants it.
func Merge(base, override Set) Set {
	var out Set
	for i := range out.grants {
		out.grants[i] = base.grants[i].or(override.grants[i])
	}
	return out
}

func (s Set) IsEmpty() bool {
	return s == Set{}
}

func (s Set) CountGranted() int {
	n := 0
	for _, g := range s.grants {
		for _, a := range Actions {
			if g.allows(a) {
				n++
			}
		}
	}
	return n
}

// Allows reports whether the set grants action a on module m.
func (s Set) Allows(m Module, a Action) bool {
	idx := moduleIndex(m)
	if idx < 0 {
		return false
	}
	return s.grants[idx].allows(a)
}

// With returns a copy of s that additionally grants the given actions on m.
// Unknown modules or actions are ignored.
func (s Set) With(m Module, actions ...Action) Set {
	idx := moduleIndex(m)
	if idx < 0 {
		return s
	}
	for _, a := range actions {
		s.grants[idx].set(a)
	}
	return s
}

// Full grants every action on every module.
func Full() Set {
	var s Set
	for i := range s.grants {
		s.grants[i] = Grants{Create: true, Read: true, Update: true, Delete: true}
	}
	return s
}

// Matrix exposes the set as a module keyed map containing every module.
func (s Set) Matrix() map[Module]Grants {
	out := make(map[Module]Grants, len(Modules))
	for i, m := range Modules {
		out[m] = s.grants[i]
	}
	return out
}

// FromMatrix is the inverse of Matrix. Missing modules grant nothing.
func FromMatrix(matrix map[Module]Grants, mode Mode) (Set, error) {
	var s Set
	for m, g := range matrix {
		idx := moduleIndex(m)
		if idx < 0 {
			if mode == Lenient {
				continue
			}
			return Set{}, &errs.MalformedTokenError{Token: string(m), Reason: "unknown module " + string(m)}
		}
		s.grants[idx] = g
	}
	return s, nil
}

func (s Set) String() string {
	return strings.Join(s.Tokens(), ",")
}
