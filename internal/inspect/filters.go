package inspect

import "formloom/internal/form"

// The filter pipeline: each stage takes and returns an ordered issue list
// and is stable, so the stages stay deterministic and testable alone.

// FilterReady keeps only issues with no unresolved blocking field, i.e. the
// work an actor can start on right now.
func FilterReady(issues []Issue) []Issue {
	out := make([]Issue, 0, len(issues))
	for _, issue := range issues {
		if issue.BlockedBy == "" {
			out = append(out, issue)
		}
	}
	return out
}

// FilterByRoles keeps issues whose field belongs to one of the target
// roles. Fields declared with the wildcard role always pass; an empty set
// or the wildcard role among the targets disables filtering.
func FilterByRoles(issues []Issue, roles []form.Role) []Issue {
	if len(roles) == 0 {
		return issues
	}
	want := make(map[form.Role]struct{}, len(roles))
	for _, r := range roles {
		if r == form.RoleAny {
			return issues
		}
		want[r] = struct{}{}
	}
	out := make([]Issue, 0, len(issues))
	for _, issue := range issues {
		if _, ok := want[issue.Role]; ok || issue.Role == form.RoleAny {
			out = append(out, issue)
		}
	}
	return out
}

// CapScope limits how many distinct fields and groups one retrieval may
// touch. Issues on already-admitted fields still pass once their field is
// in scope. Zero disables the corresponding cap.
func CapScope(issues []Issue, maxFields, maxGroups int) []Issue {
	if maxFields <= 0 && maxGroups <= 0 {
		return issues
	}
	fields := map[string]struct{}{}
	groups := map[string]struct{}{}
	out := make([]Issue, 0, len(issues))
	for _, issue := range issues {
		_, fieldSeen := fields[issue.Ref]
		_, groupSeen := groups[issue.Group]
		if !fieldSeen && maxFields > 0 && len(fields) >= maxFields {
			continue
		}
		if !groupSeen && maxGroups > 0 && len(groups) >= maxGroups {
			continue
		}
		fields[issue.Ref] = struct{}{}
		if issue.Group != "" {
			groups[issue.Group] = struct{}{}
		}
		out = append(out, issue)
	}
	return out
}

// CapCount is the hard limit on issues returned. Zero disables it.
func CapCount(issues []Issue, max int) []Issue {
	if max <= 0 || len(issues) <= max {
		return issues
	}
	return issues[:max]
}
