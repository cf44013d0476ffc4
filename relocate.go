package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"strings"
)

const (
	n1Byte = 0x01
	n1Sym  = 0x02
	n1Bytx = 0x08
	n1Msb  = 0x80

	n2AdjustBase = 2
)

// romBase is the CPU/ROM address the byte-image's offset 0 corresponds to.
const romBase = 0x4000

func growROM(rom []byte, need int) []byte {
	for len(rom) < need {
		chunk := make([]byte, segmentSize)
		for i := range chunk {
			chunk[i] = 0xFF
		}
		rom = append(rom, chunk...)
	}
	return rom
}

// applyRelocations is the second pass over every enabled module's raw text,
// interpreting T and R records to patch resolved addresses into a growing ROM
// byte image.
func applyRelocations(store *ModuleStore, ctx *LinkContext, log *slog.Logger) ([]byte, error) {
	rom := growROM(nil, int(ctx.ROMPtr)-romBase)

	for _, mod := range store.enabled() {
		var err error
		rom, err = relocateModule(mod, store, ctx, rom, log)
		if err != nil {
			return nil, err
		}
	}
	return rom, nil
}

func relocateModule(mod *Module, store *ModuleStore, ctx *LinkContext, rom []byte, log *slog.Logger) ([]byte, error) {
	// Per-area address tables, indexed by declaration order. ABSOLUTE areas
	// contribute zero entries: their T records carry absolute positions
	// already, so neither the patch base nor the ROM destination needs an
	// area offset added in.
	areaAddr := make([]uint16, len(mod.Areas))
	areaROM := make([]int32, len(mod.Areas))
	for i, area := range mod.Areas {
		if area.Placement == Relative {
			areaAddr[i] = area.Addr
			areaROM[i] = area.ROMAddr
		}
	}

	var t []byte
	var lastTPos uint16
	haveT := false

	scanner := bufio.NewScanner(strings.NewReader(mod.Content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "T":
			if len(fields) < 3 {
				return nil, fmt.Errorf("%s:%d: malformed T record", mod.Filename, lineNo)
			}
			bytes := make([]byte, 0, len(fields)-1)
			for _, f := range fields[1:] {
				b, err := parseHexByte(f)
				if err != nil {
					return nil, fmt.Errorf("%s:%d: %w", mod.Filename, lineNo, err)
				}
				bytes = append(bytes, b)
			}
			lastTPos = uint16(bytes[0]) | uint16(bytes[1])<<8
			t = bytes[2:]
			haveT = true

		case "R":
			if !haveT {
				return nil, fmt.Errorf("%s:%d: R record with no preceding T record", mod.Filename, lineNo)
			}
			if len(fields) < 5 {
				return nil, fmt.Errorf("%s:%d: malformed R record", mod.Filename, lineNo)
			}
			if fields[1] != "00" || fields[2] != "00" {
				return nil, fmt.Errorf("%s:%d: R record prefix bytes must be 00 00", mod.Filename, lineNo)
			}
			aa0, err := parseHexByte(fields[3])
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", mod.Filename, lineNo, err)
			}
			aa1, err := parseHexByte(fields[4])
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", mod.Filename, lineNo, err)
			}
			areaIdx := int(aa0) | int(aa1)<<8
			area, err := mod.areaByIndex(areaIdx)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", mod.Filename, lineNo, err)
			}

			entries := fields[5:]
			if len(entries)%4 != 0 {
				return nil, fmt.Errorf("%s:%d: malformed R record: relocation entries not a multiple of 4 bytes", mod.Filename, lineNo)
			}

			n2Adjust := n2AdjustBase
			for i := 0; i < len(entries); i += 4 {
				n1, err := parseHexByte(entries[i])
				if err != nil {
					return nil, fmt.Errorf("%s:%d: %w", mod.Filename, lineNo, err)
				}
				n2, err := parseHexByte(entries[i+1])
				if err != nil {
					return nil, fmt.Errorf("%s:%d: %w", mod.Filename, lineNo, err)
				}
				xx0, err := parseHexByte(entries[i+2])
				if err != nil {
					return nil, fmt.Errorf("%s:%d: %w", mod.Filename, lineNo, err)
				}
				xx1, err := parseHexByte(entries[i+3])
				if err != nil {
					return nil, fmt.Errorf("%s:%d: %w", mod.Filename, lineNo, err)
				}
				idx := int(xx0) | int(xx1)<<8

				var address uint16
				if n1&n1Sym != 0 {
					sym, err := mod.symbolByIndex(idx)
					if err != nil {
						return nil, fmt.Errorf("%s:%d: %w", mod.Filename, lineNo, err)
					}
					address, err = resolveSymbolRelocation(mod, store, ctx, area, sym, log)
					if err != nil {
						return nil, fmt.Errorf("%s:%d: %w", mod.Filename, lineNo, err)
					}
					n1 &^= n1Sym
				} else {
					if _, err := mod.areaByIndex(idx); err != nil {
						return nil, fmt.Errorf("%s:%d: %w", mod.Filename, lineNo, err)
					}
					address = areaAddr[idx]
				}

				if int(n2) < n2Adjust {
					return nil, fmt.Errorf("%s:%d: relocation offset %d less than adjustment %d", mod.Filename, lineNo, n2, n2Adjust)
				}
				off := int(n2) - n2Adjust
				if off+1 >= len(t) {
					return nil, fmt.Errorf("%s:%d: relocation offset %d out of range of T buffer (len %d)", mod.Filename, lineNo, off, len(t))
				}
				base := uint16(t[off]) | uint16(t[off+1])<<8
				sum := base + address

				switch n1 {
				case 0x00:
					t[off] = byte(sum)
					t[off+1] = byte(sum >> 8)
				case n1Byte | n1Bytx:
					t[off] = byte(sum)
					t = append(t[:off+1], t[off+2:]...)
					n2Adjust++
				case n1Byte | n1Bytx | n1Msb:
					t[off] = byte(sum >> 8)
					t = append(t[:off+1], t[off+2:]...)
					n2Adjust++
				default:
					return nil, fmt.Errorf("%s:%d: unsupported relocation flags 0x%02X", mod.Filename, lineNo, n1)
				}
			}

			if len(t) > 0 && areaROM[areaIdx] != romAddrNone {
				dst := int(areaROM[areaIdx]) - romBase + int(lastTPos)
				if dst < 0 {
					return nil, fmt.Errorf("%s:%d: T record position 0x%04X below ROM base", mod.Filename, lineNo, lastTPos)
				}
				rom = growROM(rom, dst+len(t))
				copy(rom[dst:], t)
			}
			haveT = false

		case "XL2", "M", "A", "S", "O", "H":
			// Already handled by the object parser's first pass.

		default:
			return nil, fmt.Errorf("%s:%d: unrecognized record type %q", mod.Filename, lineNo, fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", mod.Filename, err)
	}
	return rom, nil
}

// resolveSymbolRelocation resolves a SYM-tagged relocation entry's address
// through the chain: global DEF table, then segment-request, then
// configuration value.
func resolveSymbolRelocation(mod *Module, store *ModuleStore, ctx *LinkContext, refArea *Area, sym *Symbol, log *slog.Logger) (uint16, error) {
	if addr, ok := ctx.SymbolAddr[sym.Name]; ok {
		return addr, nil
	}

	dir, err := classifySymbol(sym.Name)
	if err != nil {
		return 0, err
	}

	switch dir.Kind {
	case DirSegmentRequest:
		group := store.group(dir.SegmentModule)
		if len(group) == 0 {
			return 0, fmt.Errorf("module %s: segment request for unknown module %q", mod.Name, dir.SegmentModule)
		}
		target := group[0]
		if refArea.Name == "_CODE" && mod.Page == target.Page {
			if log != nil {
				log.Warn("segment request targets the same page as the requester",
					"module", mod.Name, "target", dir.SegmentModule, "page", mod.Page)
			}
		}
		return uint16(target.Segment), nil

	case DirConfig:
		if v, ok := ctx.Config[dir.ConfigKey]; ok {
			return v, nil
		}
		return 0, fmt.Errorf("module %s: configuration symbol %q not defined", mod.Name, sym.Name)

	default:
		return 0, fmt.Errorf("module %s: undefined symbol %q", mod.Name, sym.Name)
	}
}
