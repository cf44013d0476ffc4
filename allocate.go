package main

import (
	"fmt"

	"golang.org/x/exp/slices"
)

const (
	segmentSize  = 0x2000
	maxCodeBytes = segmentSize
)

// assignPages walks every segment-request reference in every enabled
// module and assigns the requested page to every module sharing the
// requested name, detecting conflicting reassignment.
func assignPages(store *ModuleStore) error {
	for _, mod := range store.enabled() {
		for _, sym := range mod.Symbols {
			if sym.Kind != SymRef {
				continue
			}
			dir, err := classifySymbol(sym.Name)
			if err != nil {
				return err
			}
			if dir.Kind != DirSegmentRequest {
				continue
			}
			group := store.group(dir.SegmentModule)
			for _, target := range group {
				if target.Page == unassignedPage {
					target.Page = dir.SegmentPage
				} else if target.Page != dir.SegmentPage {
					return fmt.Errorf("module %q required at different pages (%d and %d)", dir.SegmentModule, target.Page, dir.SegmentPage)
				}
			}
		}
	}
	return nil
}

// codeGroup is a module-group's worth of bankable code, the unit the
// packer places.
type codeGroup struct {
	name     string
	modules  []*Module
	size     int
	seenSeq  int // first-seen order, for the stable FFD tie-break
}

// packSegments packs every module group's _CODE areas into 8 KiB segment
// slots by first-fit-decreasing, and computes each _CODE area's runtime
// address and ROM offset.
func packSegments(store *ModuleStore, romPtr int) error {
	var groups []*codeGroup
	for seq, name := range store.names() {
		mods := store.group(name)
		total := 0
		for _, mod := range mods {
			sz := mod.codeSize()
			if sz > maxCodeBytes {
				return fmt.Errorf("module %q: _CODE is %d bytes, exceeds one segment (%d)", name, sz, maxCodeBytes)
			}
			total += sz
		}
		if total == 0 {
			continue
		}
		if total > maxCodeBytes {
			return fmt.Errorf("module group %q: combined _CODE is %d bytes, exceeds one segment (%d)", name, total, maxCodeBytes)
		}
		for _, mod := range mods {
			if mod.codeSize() > 0 && mod.Page == unassignedPage {
				return fmt.Errorf("module %q used but not allocated a page", mod.Name)
			}
		}
		groups = append(groups, &codeGroup{name: name, modules: mods, size: total, seenSeq: seq})
	}

	slices.SortStableFunc(groups, func(a, b *codeGroup) int {
		if a.size != b.size {
			return b.size - a.size
		}
		return a.seenSeq - b.seenSeq
	})

	// Slot i covers ROM [0x2000*(2+i), 0x2000*(3+i)). Its free capacity is
	// whatever the main-region cursor left of it, never more than one full
	// segment.
	capacities := []int{
		minInt(segmentSize, maxInt(0, 0x6000-romPtr)),
		minInt(segmentSize, maxInt(0, 0x8000-romPtr)),
		minInt(segmentSize, maxInt(0, 0xA000-romPtr)),
		minInt(segmentSize, maxInt(0, 0xC000-romPtr)),
	}

	for _, g := range groups {
		slot := -1
		for i, free := range capacities {
			if free >= g.size {
				slot = i
				break
			}
		}
		if slot == -1 {
			slot = len(capacities)
			capacities = append(capacities, segmentSize)
		}

		remaining := capacities[slot]
		page := g.modules[0].Page
		for _, mod := range g.modules {
			mod.Segment = slot
			for _, area := range mod.Areas {
				if area.Name != "_CODE" || area.Size == 0 {
					continue
				}
				area.Addr = uint16(segmentSize*(2+page) + segmentSize - remaining)
				area.ROMAddr = int32(segmentSize*(2+slot) + segmentSize - remaining)
				remaining -= int(area.Size)
			}
		}
		capacities[slot] = remaining
	}

	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
