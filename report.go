package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// writeROM writes the final ROM byte image.
func writeROM(path string, rom []byte) error {
	return os.WriteFile(path, rom, 0644)
}

// writeOutputs writes everything a successful link produces: the ROM image
// plus the two tabular map files alongside it.
func writeOutputs(romName string, rom []byte, store *ModuleStore) error {
	if err := writeROM(romName, rom); err != nil {
		return err
	}
	if err := writeAreaMap(romName+".areas.map", store); err != nil {
		return err
	}
	return writeSymbolMap(romName+".symbols.map", store)
}

type mapRow struct {
	addr uint16
	line string
}

// pageColumns renders the fixed HEADER/PAGE A/B/C/D column group, placing
// label in the column matching page (unassignedPage lands in HEADER).
func pageColumns(page int, label string) string {
	var b strings.Builder
	blank := strings.Repeat(" ", 22) + "#"
	for j := -1; j < page; j++ {
		b.WriteString(blank)
	}
	fmt.Fprintf(&b, " %20.20s #", label)
	for j := page + 1; j < 4; j++ {
		b.WriteString(blank)
	}
	return b.String()
}

func pageColumnsLeft(page int, label string) string {
	var b strings.Builder
	blank := strings.Repeat(" ", 22) + "#"
	for j := -1; j < page; j++ {
		b.WriteString(blank)
	}
	fmt.Fprintf(&b, " %-20.20s #", label)
	for j := page + 1; j < 4; j++ {
		b.WriteString(blank)
	}
	return b.String()
}

func maxSegment(store *ModuleStore) int {
	max := 0
	for _, mod := range store.enabled() {
		if mod.Segment > max {
			max = mod.Segment
		}
	}
	return max
}

// writeAreaMap writes the first of the two reports: one row per non-empty area,
// grouped by segment, with a column visually indicating the owning page.
func writeAreaMap(path string, store *ModuleStore) error {
	var b strings.Builder
	b.WriteString("AREA MAP:\n")
	b.WriteString("# SG #  MAP #  ROM  # SIZE #   NAME   #        HEADER        #        PAGE A        #        PAGE B        #        PAGE C        #        PAGE D        #\n")
	rule := strings.Repeat("#", 154) + "\n"
	b.WriteString(rule)

	for seg := 0; seg <= maxSegment(store); seg++ {
		var rows []mapRow
		for _, mod := range store.enabled() {
			if mod.Segment != seg {
				continue
			}
			for _, area := range mod.Areas {
				if area.Size == 0 {
					continue
				}
				var head string
				if area.ROMAddr == romAddrNone {
					head = fmt.Sprintf("#%3X # %04X # ----- # %04X # %8.8s #", mod.Segment, area.Addr, area.Size, strings.TrimPrefix(area.Name, "_"))
				} else {
					head = fmt.Sprintf("#%3X # %04X # %05X # %04X # %8.8s #", mod.Segment, area.Addr, area.ROMAddr, area.Size, strings.TrimPrefix(area.Name, "_"))
				}
				rows = append(rows, mapRow{addr: area.Addr, line: head + pageColumns(mod.Page, mod.Name)})
			}
		}
		if len(rows) == 0 {
			continue
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].addr < rows[j].addr })
		for _, r := range rows {
			b.WriteString(r.line)
			b.WriteByte('\n')
		}
		b.WriteString(rule)
	}

	return os.WriteFile(path, []byte(b.String()), 0644)
}

// writeSymbolMap writes the second report: one row per DEF symbol per area.
func writeSymbolMap(path string, store *ModuleStore) error {
	var b strings.Builder
	b.WriteString("Symbols MAP:\n")
	b.WriteString("# SG #  MAP #  ROM  #  MODULE  #        HEADER        #        PAGE A        #        PAGE B        #        PAGE C        #        PAGE D        #\n")
	rule := strings.Repeat("#", 153) + "\n"
	b.WriteString(rule)

	for seg := 0; seg <= maxSegment(store); seg++ {
		var rows []mapRow
		for _, mod := range store.enabled() {
			if mod.Segment != seg {
				continue
			}
			for _, area := range mod.Areas {
				if area.Size == 0 {
					continue
				}
				for _, sym := range mod.Symbols {
					if sym.Kind != SymDef || sym.AreaName != area.Name {
						continue
					}
					var head string
					addr := area.Addr + sym.Addr
					if area.ROMAddr == romAddrNone {
						head = fmt.Sprintf("#%3X # %04X # ----- # %-8.8s #", mod.Segment, addr, mod.Name)
					} else {
						head = fmt.Sprintf("#%3X # %04X # %05X # %-8.8s #", mod.Segment, addr, uint32(area.ROMAddr)+uint32(sym.Addr), mod.Name)
					}
					rows = append(rows, mapRow{addr: addr, line: head + pageColumnsLeft(mod.Page, sym.Name)})
				}
			}
		}
		if len(rows) == 0 {
			continue
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].addr < rows[j].addr })
		for _, r := range rows {
			b.WriteString(r.line)
			b.WriteByte('\n')
		}
		b.WriteString(rule)
	}

	return os.WriteFile(path, []byte(b.String()), 0644)
}
