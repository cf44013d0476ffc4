package main

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// parseObject turns the text of a single
// relocatable object into an in-memory *Module, retaining the raw content
// for the second, relocation pass.
func parseObject(filename string, content string) (*Module, error) {
	mod := newModule(filename)
	mod.Content = content

	var explicitName string
	var firstAreaUnderscoreDef string
	sawMagic := false
	currentAreaName := ""

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		rtype := fields[0]

		if !sawMagic {
			if rtype != "XL2" {
				return nil, fmt.Errorf("%s:%d: expected XL2 magic as first record, got %q", filename, lineNo, rtype)
			}
			sawMagic = true
			continue
		}

		switch rtype {
		case "XL2":
			// Tolerate a repeated magic; nothing else to do.

		case "M":
			if len(fields) < 2 {
				return nil, fmt.Errorf("%s:%d: M record missing module name", filename, lineNo)
			}
			explicitName = fields[1]

		case "A":
			area, err := parseAreaRecord(filename, lineNo, fields)
			if err != nil {
				return nil, err
			}
			currentAreaName = area.Name
			if area.Name == "_HEADER0" {
				mod.Enabled = true
			}
			mod.Areas = append(mod.Areas, area)

		case "S":
			sym, err := parseSymbolRecord(filename, lineNo, fields)
			if err != nil {
				return nil, err
			}
			sym.AreaName = currentAreaName
			mod.Symbols = append(mod.Symbols, sym)
			if sym.Kind == SymDef && firstAreaUnderscoreDef == "" && strings.HasPrefix(sym.Name, "_") {
				firstAreaUnderscoreDef = strings.TrimPrefix(sym.Name, "_")
			}

		case "T", "R", "O", "H":
			// T and R carry the actual bytes and relocations, interpreted
			// from the retained raw content by the relocation pass. O
			// and H are recognised and skipped here.

		default:
			return nil, fmt.Errorf("%s:%d: unrecognized record type %q", filename, lineNo, rtype)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if !sawMagic {
		return nil, fmt.Errorf("%s: empty object, no XL2 magic", filename)
	}

	name, err := resolveModuleName(filename, explicitName, firstAreaUnderscoreDef)
	if err != nil {
		return nil, err
	}
	mod.Name = name

	return mod, nil
}

// resolveModuleName infers the module name: an explicit M record wins, then
// a .rel filename stem, then the first underscore-prefixed DEF.
func resolveModuleName(filename, explicitName, firstDef string) (string, error) {
	if explicitName != "" {
		return explicitName, nil
	}
	if strings.HasSuffix(filename, ".rel") {
		stem := strings.TrimSuffix(filename, ".rel")
		stem = lastPathElement(stem)
		return strings.ReplaceAll(stem, ".", "_"), nil
	}
	if firstDef != "" {
		return firstDef, nil
	}
	return "", fmt.Errorf("%s: could not infer a module name", filename)
}

func lastPathElement(p string) string {
	if i := strings.LastIndexAny(p, "/\\"); i >= 0 {
		return p[i+1:]
	}
	return p
}

func parseAreaRecord(filename string, lineNo int, fields []string) (*Area, error) {
	if len(fields) < 8 {
		return nil, fmt.Errorf("%s:%d: malformed A record", filename, lineNo)
	}
	name := fields[1]
	if err := expectLiteral(filename, lineNo, fields[2], "size"); err != nil {
		return nil, err
	}
	size, err := parseHex(filename, lineNo, fields[3])
	if err != nil {
		return nil, err
	}
	if err := expectLiteral(filename, lineNo, fields[4], "flags"); err != nil {
		return nil, err
	}
	flags, err := strconv.ParseUint(fields[5], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%s:%d: bad flags value %q: %w", filename, lineNo, fields[5], err)
	}
	if err := expectLiteral(filename, lineNo, fields[6], "addr"); err != nil {
		return nil, err
	}
	addr, err := parseHex(filename, lineNo, fields[7])
	if err != nil {
		return nil, err
	}

	if name != "" && !strings.HasPrefix(name, "_") {
		name = "_" + name
	}

	var placement Placement
	switch flags {
	case 0:
		placement = Relative
	case 8:
		placement = Absolute
	default:
		return nil, fmt.Errorf("%s:%d: area %q has unexpected flags %d", filename, lineNo, name, flags)
	}

	if size > 0 && !knownAreas[name] {
		return nil, fmt.Errorf("%s:%d: area %q unknown", filename, lineNo, name)
	}

	return &Area{
		Name:      name,
		Size:      uint16(size),
		Addr:      uint16(addr),
		ROMAddr:   romAddrNone,
		Placement: placement,
	}, nil
}

func parseSymbolRecord(filename string, lineNo int, fields []string) (*Symbol, error) {
	if len(fields) < 3 {
		return nil, fmt.Errorf("%s:%d: malformed S record", filename, lineNo)
	}
	name := fields[1]
	tag := fields[2]
	if len(tag) < 3 {
		return nil, fmt.Errorf("%s:%d: malformed S record: symbol tag %q too short", filename, lineNo, tag)
	}
	literal, rest := tag[:3], tag[3:]

	var kind SymbolKind
	switch literal {
	case "Def":
		kind = SymDef
	case "Ref":
		kind = SymRef
	default:
		return nil, fmt.Errorf("%s:%d: symbol type unexpected: %q", filename, lineNo, literal)
	}

	if rest == "" {
		if len(fields) < 4 {
			return nil, fmt.Errorf("%s:%d: S record missing address", filename, lineNo)
		}
		rest = fields[3]
	}
	addr, err := parseHex(filename, lineNo, rest)
	if err != nil {
		return nil, err
	}

	return &Symbol{
		Name: name,
		Addr: uint16(addr),
		Kind: kind,
	}, nil
}

func expectLiteral(filename string, lineNo int, got, want string) error {
	if got != want {
		return fmt.Errorf("%s:%d: expected %q, got %q", filename, lineNo, want, got)
	}
	return nil
}

// parseHex parses a "plain" hex field: variable-width, no 0x prefix.
func parseHex(filename string, lineNo int, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%s:%d: bad hex value %q: %w", filename, lineNo, s, err)
	}
	return v, nil
}

// parseHexByte parses a strict two-nibble hex byte, used by the T/R
// record interpreter.
func parseHexByte(s string) (byte, error) {
	if len(s) != 2 {
		return 0, fmt.Errorf("not a two-nibble hex byte: %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("bad hex byte %q: %w", s, err)
	}
	return byte(v), nil
}
