package main

import (
	"fmt"
	"log/slog"
)

// Linker drives the whole pipeline over one shared module store: resolution,
// layout, relocation. Input loading and output writing stay in main.
type Linker struct {
	store *ModuleStore
	log   *slog.Logger
}

// LinkResult is what a successful link produces, ready to be written out.
type LinkResult struct {
	ROM     []byte
	Context *LinkContext
}

func newLinker(log *slog.Logger) *Linker {
	return &Linker{store: newModuleStore(), log: log}
}

func (ld *Linker) addModule(m *Module) {
	ld.log.Debug("module loaded",
		"module", m.Name, "file", m.Filename,
		"areas", len(m.Areas), "symbols", len(m.Symbols))
	ld.store.add(m)
}

/* link performs all phases and returns the final ROM image plus the layout
   context the reports and the summary line need. */
func (ld *Linker) link() (*LinkResult, error) {
	if len(ld.store.all()) == 0 {
		return nil, fmt.Errorf("no input objects")
	}

	/* Phase 1: module resolution.
	   Rewrite the store per move-to directives, then compute the transitive
	   closure of enabled modules by ordinary-reference following. */
	ld.log.Debug("phase 1: module resolution")
	if err := applyMoveTo(ld.store); err != nil {
		return nil, err
	}
	if err := resolveModules(ld.store); err != nil {
		return nil, err
	}
	for _, name := range ld.store.names() {
		ld.log.Debug("module enabled", "module", name, "members", len(ld.store.group(name)))
	}

	/* Phase 2: memory layout.
	   Fixed-order area sweeps, then page assignment and segment packing. */
	ld.log.Debug("phase 2: memory layout")
	ctx, err := runLayout(ld.store)
	if err != nil {
		return nil, err
	}
	ld.log.Info("allocated ROM", "bytes", int(ctx.ROMPtr)-romBase)
	ld.log.Info("allocated RAM", "bytes", int(ctx.RAMPtr)-int(ctx.Config["RAM_START"]))

	/* Phase 3: relocation.
	   Second pass over the retained object text, patching the ROM image. */
	ld.log.Debug("phase 3: relocation")
	rom, err := applyRelocations(ld.store, ctx, ld.log)
	if err != nil {
		return nil, err
	}

	return &LinkResult{ROM: rom, Context: ctx}, nil
}
