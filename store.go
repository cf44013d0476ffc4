package main

// ModuleStore holds every parsed module, grouped by name. After move-to
// rewriting several modules may share a name; they stay distinct
// *Module records but link together as a group. Order is preserved
// throughout: the first-fit-decreasing pass needs a stable, deterministic
// iteration order for its tie-break (see DESIGN.md).
type ModuleStore struct {
	order  []string
	groups map[string][]*Module
}

func newModuleStore() *ModuleStore {
	return &ModuleStore{groups: make(map[string][]*Module)}
}

// add appends a module under its own name, creating the group if needed.
func (s *ModuleStore) add(m *Module) {
	if _, ok := s.groups[m.Name]; !ok {
		s.order = append(s.order, m.Name)
	}
	s.groups[m.Name] = append(s.groups[m.Name], m)
}

// rename moves every module currently filed under oldName to newName,
// preserving relative order, and removes the oldName key entirely. Used by
// move-to directive processing.
func (s *ModuleStore) rename(oldName, newName string) {
	mods, ok := s.groups[oldName]
	if !ok {
		return
	}
	delete(s.groups, oldName)
	s.removeFromOrder(oldName)

	if _, ok := s.groups[newName]; !ok {
		s.order = append(s.order, newName)
	}
	s.groups[newName] = append(s.groups[newName], mods...)
}

func (s *ModuleStore) removeFromOrder(name string) {
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// has reports whether any module is currently filed under name.
func (s *ModuleStore) has(name string) bool {
	_, ok := s.groups[name]
	return ok
}

// group returns the modules filed under name, in insertion order.
func (s *ModuleStore) group(name string) []*Module {
	return s.groups[name]
}

// names returns every group name, in first-seen order.
func (s *ModuleStore) names() []string {
	return s.order
}

// all returns every module across every group, in group-then-member order.
func (s *ModuleStore) all() []*Module {
	var out []*Module
	for _, name := range s.order {
		out = append(out, s.groups[name]...)
	}
	return out
}

// enabled returns every enabled module, in group-then-member order.
func (s *ModuleStore) enabled() []*Module {
	var out []*Module
	for _, m := range s.all() {
		if m.Enabled {
			out = append(out, m)
		}
	}
	return out
}

// prune drops module groups that ended up with no enabled members at all,
// and drops disabled members from groups that do have enabled ones.
func (s *ModuleStore) prune() {
	var order []string
	for _, name := range s.order {
		var kept []*Module
		for _, m := range s.groups[name] {
			if m.Enabled {
				kept = append(kept, m)
			}
		}
		if len(kept) == 0 {
			delete(s.groups, name)
			continue
		}
		s.groups[name] = kept
		order = append(order, name)
	}
	s.order = order
}
