package main

import (
	"fmt"
	"strings"
)

// DirectiveKind tags what classifySymbol decided a symbol name means.
type DirectiveKind int

const (
	DirOrdinary DirectiveKind = iota
	DirConfig
	DirSegmentRequest
	DirMoveTo
)

const (
	configPrefix   = "___ML_CONFIG_"
	segmentPrefix  = "___ML_SEGMENT_"
	moveToPrefix   = "___ML_MOVE_SYMBOLS_TO_"
	moveToInfix    = "_FROM_"
)

// Directive is the classification of a single symbol name: a pure function,
// independent of how the symbol is actually used in any object.
type Directive struct {
	Kind DirectiveKind

	ConfigKey string // DirConfig

	SegmentModule string // DirSegmentRequest: target module name
	SegmentPage   int    // DirSegmentRequest: 0..3 (A..D)

	MoveTarget string // DirMoveTo
	MoveSource string // DirMoveTo
}

// classifySymbol is the directive interpreter: a pure classifier over
// symbol names. Illegal forms return an error; everything that isn't one of
// the three directive shapes classifies as ordinary.
func classifySymbol(name string) (Directive, error) {
	switch {
	case strings.HasPrefix(name, configPrefix):
		key := strings.TrimPrefix(name, configPrefix)
		if key == "" {
			return Directive{}, fmt.Errorf("malformed configuration symbol %q: empty key", name)
		}
		return Directive{Kind: DirConfig, ConfigKey: key}, nil

	case strings.HasPrefix(name, segmentPrefix):
		rest := strings.TrimPrefix(name, segmentPrefix)
		if len(rest) < 3 || rest[1] != '_' {
			return Directive{}, fmt.Errorf("malformed segment-request symbol %q", name)
		}
		letter := rest[0]
		if letter < 'A' || letter > 'D' {
			return Directive{}, fmt.Errorf("malformed segment-request symbol %q: page %q not in A..D", name, letter)
		}
		module := rest[2:]
		if module == "" {
			return Directive{}, fmt.Errorf("malformed segment-request symbol %q: empty module name", name)
		}
		return Directive{
			Kind:          DirSegmentRequest,
			SegmentModule: module,
			SegmentPage:   int(letter - 'A'),
		}, nil

	case strings.HasPrefix(name, moveToPrefix):
		rest := strings.TrimPrefix(name, moveToPrefix)
		if strings.Count(rest, moveToInfix) != 1 {
			return Directive{}, fmt.Errorf("malformed move-to symbol %q: expected exactly one %q", name, moveToInfix)
		}
		parts := strings.SplitN(rest, moveToInfix, 2)
		target, source := parts[0], parts[1]
		if target == "" || source == "" {
			return Directive{}, fmt.Errorf("malformed move-to symbol %q: empty target or source", name)
		}
		return Directive{Kind: DirMoveTo, MoveTarget: target, MoveSource: source}, nil

	default:
		return Directive{Kind: DirOrdinary}, nil
	}
}
