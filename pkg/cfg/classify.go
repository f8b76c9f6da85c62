package cfg

import "slices"

// classify assigns roles to every block and collects the exit blocks.
// A block may hold several roles; Role reports the strongest.
func classify(f *Function) {
	headers := make(map[int]bool, len(f.loops))
	body := make(map[int]bool)
	for _, l := range f.loops {
		headers[l.Header] = true
		for _, m := range l.Members {
			if m != l.Header {
				body[m] = true
			}
		}
	}

	f.exits = f.exits[:0]
	for _, b := range f.blocks {
		var roles []Role
		last := b.Last()
		if last.IsConditional() {
			roles = append(roles, RoleConditional)
		}
		if headers[b.id] {
			roles = append(roles, RoleLoopHeader)
		}
		if body[b.id] {
			roles = append(roles, RoleLoopBody)
		}
		if b.id == f.entry {
			roles = append(roles, RoleEntry)
		}
		if len(b.succs) == 0 || last.Return {
			roles = append(roles, RoleExit)
			f.exits = append(f.exits, b.id)
		}
		slices.SortFunc(roles, func(a, b Role) int {
			return slices.Index(rolePriority, a) - slices.Index(rolePriority, b)
		})
		b.roles = roles
	}
	slices.Sort(f.exits)
}
