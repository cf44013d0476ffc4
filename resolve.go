package main

import "fmt"

// applyMoveTo rewrites the module store according
// to every ___ML_MOVE_SYMBOLS_TO_<target>_FROM_<source> definition found
// anywhere in the input, then returns. Modules filed under source are
// reattached under target; source==target is a no-op.
func applyMoveTo(store *ModuleStore) error {
	type move struct{ source, target string }
	var moves []move
	targets := make(map[string]string) // source -> target, first-seen order via `moves`

	for _, mod := range store.all() {
		for _, sym := range mod.Symbols {
			dir, err := classifySymbol(sym.Name)
			if err != nil {
				return err
			}
			if dir.Kind != DirMoveTo {
				continue
			}
			if sym.Kind != SymDef {
				return fmt.Errorf("module %s: move-to symbol %q must be a definition", mod.Name, sym.Name)
			}
			if dir.MoveSource == dir.MoveTarget {
				continue // no-op
			}
			if prev, ok := targets[dir.MoveSource]; ok && prev != dir.MoveTarget {
				return fmt.Errorf("move-to source %q has conflicting targets %q and %q", dir.MoveSource, prev, dir.MoveTarget)
			} else if !ok {
				targets[dir.MoveSource] = dir.MoveTarget
				moves = append(moves, move{dir.MoveSource, dir.MoveTarget})
			}
		}
	}

	sources := make(map[string]bool, len(moves))
	for _, mv := range moves {
		sources[mv.source] = true
	}
	for _, mv := range moves {
		if !store.has(mv.source) {
			return fmt.Errorf("move-to source module %q does not exist", mv.source)
		}
		if sources[mv.target] {
			return fmt.Errorf("move-to chain detected: %q is both a source and a target", mv.target)
		}
	}

	for _, mv := range moves {
		store.rename(mv.source, mv.target)
	}
	return nil
}

// resolveModules runs the transitive-enablement
// fixed-point loop. Modules only ever become enabled, never disabled, so the
// loop is monotone and terminates within len(modules) iterations at worst.
func resolveModules(store *ModuleStore) error {
	for {
		updated := false
		referenced := make(map[string]int)
		defined := make(map[string]bool)

		for _, mod := range store.enabled() {
			for _, sym := range mod.Symbols {
				if sym.Kind != SymRef {
					continue
				}
				dir, err := classifySymbol(sym.Name)
				if err != nil {
					return err
				}
				switch dir.Kind {
				case DirSegmentRequest:
					if !store.has(dir.SegmentModule) {
						return fmt.Errorf("module %s: requests unknown module %q", mod.Name, dir.SegmentModule)
					}
					// Enablement comes from ordinary references, not segment requests.
				case DirMoveTo:
					return fmt.Errorf("module %s: move-to symbol %q must be a definition", mod.Name, sym.Name)
				case DirOrdinary:
					referenced[sym.Name] = 0
				case DirConfig:
					// Configuration references are resolved during relocation, not here.
				}
			}
		}

		for _, mod := range store.all() {
			for _, sym := range mod.Symbols {
				if sym.Kind != SymDef {
					continue
				}
				dir, err := classifySymbol(sym.Name)
				if err != nil {
					return err
				}
				if dir.Kind == DirSegmentRequest {
					return fmt.Errorf("module %s: segment-request symbol %q must be a reference", mod.Name, sym.Name)
				}
				if dir.Kind != DirOrdinary {
					continue
				}
				if _, isReferenced := referenced[sym.Name]; !isReferenced {
					continue
				}
				if !mod.Enabled {
					mod.Enabled = true
					updated = true
				}
				if mod.Enabled {
					if defined[sym.Name] {
						return fmt.Errorf("symbol %q defined multiple times", sym.Name)
					}
					defined[sym.Name] = true
					referenced[sym.Name]++
				}
			}
		}

		for name, count := range referenced {
			if count == 0 {
				return fmt.Errorf("referenced symbol %q not defined", name)
			}
		}

		if !updated {
			break
		}
	}

	store.prune()
	return nil
}
