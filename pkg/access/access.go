// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package access implements the protected-agent guard (C7): pure
// functions over caller/target agent name pairs, with no side effects.
package access

import "strings"

const chiefOfStaff = "chief-of-staff"

// Guard holds the closed protected-agent list the guard enforces.
type Guard struct {
	protected map[string]struct{}
}

// New builds a Guard over the given protected agent names.
func New(protectedAgents []string) *Guard {
	g := &Guard{protected: make(map[string]struct{}, len(protectedAgents))}
	for _, name := range protectedAgents {
		g.protected[name] = struct{}{}
	}
	return g
}

// Decision is the result of a canCallAgent check.
type Decision struct {
	Allowed    bool
	Reason     string
	Suggestion string
}

// IsChiefOfStaff reports whether caller is the privileged identity: the
// literal name, a "chief-of-staff/..." hierarchy member, or the empty
// string (root/user).
func IsChiefOfStaff(caller string) bool {
	return caller == chiefOfStaff || strings.Contains(caller, chiefOfStaff+"/") || caller == ""
}

// IsProtectedAgent reports whether name matches one of the closed
// protected-agent list, either exactly or as a ".../<name>" suffix.
func (g *Guard) IsProtectedAgent(name string) bool {
	for p := range g.protected {
		if name == p || strings.HasSuffix(name, "/"+p) {
			return true
		}
	}
	return false
}

// IsInternalHierarchy reports whether name lives under the
// chief-of-staff/ namespace.
func IsInternalHierarchy(name string) bool {
	return strings.Contains(name, chiefOfStaff+"/")
}

// CanCallAgent decides whether caller may invoke target.
func (g *Guard) CanCallAgent(caller, target string, isCustomSkill bool) Decision {
	if IsChiefOfStaff(caller) {
		return Decision{Allowed: true}
	}

	if (isCustomSkill || IsInternalHierarchy(target)) && g.IsProtectedAgent(target) {
		return Decision{
			Allowed:    false,
			Reason:     "The " + target + " agent only responds to chief-of-staff.",
			Suggestion: "Delegate through chief-of-staff instead of calling " + target + " directly.",
		}
	}

	return Decision{Allowed: true}
}
