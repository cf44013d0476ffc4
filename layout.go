package main

import "fmt"

const (
	ramCeiling = 0xF000
	romCeiling = 0xC000
	headerAddr = 0x4000
)

// LinkContext carries everything the passes after layout need that
// isn't naturally hung off a *Module: the configuration-symbol table and the
// final address of every ordinary DEF symbol, keyed by name.
type LinkContext struct {
	Config     map[string]uint16
	SymbolAddr map[string]uint16
	ROMPtr     uint16
	RAMPtr     uint16
}

// collectConfig gathers every ___ML_CONFIG_<KEY> definition across enabled
// modules. Later definitions of the same key win; configuration keys are not
// required to be unique the way ordinary DEFs are.
func collectConfig(store *ModuleStore) (map[string]uint16, error) {
	cfg := make(map[string]uint16)
	for _, mod := range store.enabled() {
		for _, sym := range mod.Symbols {
			if sym.Kind != SymDef {
				continue
			}
			dir, err := classifySymbol(sym.Name)
			if err != nil {
				return nil, err
			}
			if dir.Kind == DirConfig {
				cfg[dir.ConfigKey] = sym.Addr
			}
		}
	}
	if _, ok := cfg["RAM_START"]; !ok {
		return nil, fmt.Errorf("___ML_CONFIG_RAM_START not defined")
	}
	return cfg, nil
}

// forEachArea sweeps every enabled module's areas, in store order, invoking
// fn for every area whose name matches kind. Layout depends on running one
// full sweep per area kind, in a fixed kind order.
func forEachArea(store *ModuleStore, kind string, fn func(mod *Module, area *Area) error) error {
	for _, mod := range store.enabled() {
		for _, area := range mod.Areas {
			if area.Name != kind {
				continue
			}
			if err := fn(mod, area); err != nil {
				return err
			}
		}
	}
	return nil
}

func requirePlacement(modName, areaName string, got, want Placement) error {
	if got != want {
		return fmt.Errorf("module %s: area %s must be %s", modName, areaName, want)
	}
	return nil
}

// runLayout assigns ROM/RAM addresses to every non-_CODE area by walking
// area kinds in a fixed order (header, init code, home, initializer, then
// the RAM-only kinds), packs the bankable _CODE areas, validates capacity,
// and resolves every ordinary DEF symbol to an absolute address.
func runLayout(store *ModuleStore) (*LinkContext, error) {
	cfg, err := collectConfig(store)
	if err != nil {
		return nil, err
	}

	romPtr := headerAddr
	ramPtr := int(cfg["RAM_START"])

	sawHeader := false
	if err := forEachArea(store, "_HEADER0", func(mod *Module, area *Area) error {
		if sawHeader {
			return fmt.Errorf("module %s: _HEADER0 defined more than once", mod.Name)
		}
		if err := requirePlacement(mod.Name, "_HEADER0", area.Placement, Absolute); err != nil {
			return err
		}
		if area.Addr != headerAddr {
			return fmt.Errorf("module %s: _HEADER0 not at 0x%04X", mod.Name, headerAddr)
		}
		sawHeader = true
		area.ROMAddr = int32(headerAddr)
		romPtr += int(area.Size)
		return nil
	}); err != nil {
		return nil, err
	}
	if !sawHeader {
		return nil, fmt.Errorf("no _HEADER0 area found in any enabled module")
	}

	if err := forEachArea(store, "_GSINIT", func(mod *Module, area *Area) error {
		if err := requirePlacement(mod.Name, "_GSINIT", area.Placement, Relative); err != nil {
			return err
		}
		area.Addr = uint16(romPtr)
		area.ROMAddr = int32(romPtr)
		romPtr += int(area.Size)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := forEachArea(store, "_GSFINAL", func(mod *Module, area *Area) error {
		if err := requirePlacement(mod.Name, "_GSFINAL", area.Placement, Relative); err != nil {
			return err
		}
		area.Addr = uint16(romPtr)
		area.ROMAddr = int32(romPtr)
		romPtr += int(area.Size)
		return nil
	}); err != nil {
		return nil, err
	}

	cfg["INIT_ROM_START"] = uint16(romPtr)
	cfg["INIT_RAM_START"] = uint16(ramPtr)

	if err := forEachArea(store, "_HOME", func(mod *Module, area *Area) error {
		if err := requirePlacement(mod.Name, "_HOME", area.Placement, Relative); err != nil {
			return err
		}
		area.Addr = uint16(ramPtr)
		area.ROMAddr = int32(romPtr)
		romPtr += int(area.Size)
		ramPtr += int(area.Size)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := forEachArea(store, "_INITIALIZER", func(mod *Module, area *Area) error {
		if err := requirePlacement(mod.Name, "_INITIALIZER", area.Placement, Relative); err != nil {
			return err
		}
		area.Addr = uint16(romPtr)
		area.ROMAddr = int32(romPtr)
		romPtr += int(area.Size)
		return nil
	}); err != nil {
		return nil, err
	}

	cfg["INIT_SIZE"] = uint16(romPtr) - cfg["INIT_ROM_START"]

	for _, kind := range []string{"_INITIALIZED", "_DATA", "_XDATA"} {
		if err := forEachArea(store, kind, func(mod *Module, area *Area) error {
			if err := requirePlacement(mod.Name, kind, area.Placement, Relative); err != nil {
				return err
			}
			area.Addr = uint16(ramPtr)
			area.ROMAddr = romAddrNone
			ramPtr += int(area.Size)
			return nil
		}); err != nil {
			return nil, err
		}
	}

	if err := assignPages(store); err != nil {
		return nil, err
	}
	if err := packSegments(store, romPtr); err != nil {
		return nil, err
	}

	if romPtr > romCeiling {
		return nil, fmt.Errorf("main segment ROM doesn't fit: 0x%04X exceeds 0x%04X", romPtr, romCeiling)
	}
	if ramPtr > ramCeiling {
		return nil, fmt.Errorf("RAM area dangerously close to the stack: 0x%04X exceeds 0x%04X", ramPtr, ramCeiling)
	}

	symbolAddr := make(map[string]uint16)
	for _, mod := range store.enabled() {
		areaAddr := make(map[string]uint16, len(mod.Areas))
		for _, area := range mod.Areas {
			areaAddr[area.Name] = area.Addr
		}
		for _, sym := range mod.Symbols {
			if sym.Kind != SymDef {
				continue
			}
			dir, err := classifySymbol(sym.Name)
			if err != nil {
				return nil, err
			}
			if dir.Kind != DirOrdinary {
				continue
			}
			abs := areaAddr[sym.AreaName] + sym.Addr
			sym.AbsoluteAddress = abs
			symbolAddr[sym.Name] = abs
		}
	}

	return &LinkContext{
		Config:     cfg,
		SymbolAddr: symbolAddr,
		ROMPtr:     uint16(romPtr),
		RAMPtr:     uint16(ramPtr),
	}, nil
}
