package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

const (
	arMagic       = "!<arch>\n"
	arHeaderSize  = 60
	arNameSize    = 16
	arSizeOffset  = 48
	arSizeSize    = 10
)

// readArchive walks a System V `ar` archive and
// hands every member that looks like a relocatable object to parseObject.
// Members that don't start with the "XL2" magic are skipped with an info
// log rather than failing the link.
func readArchive(filename string, data []byte, log *slog.Logger) ([]*Module, error) {
	if len(data) < len(arMagic) || string(data[:len(arMagic)]) != arMagic {
		return nil, fmt.Errorf("%s: wrong archive signature", filename)
	}

	var mods []*Module
	pos := len(arMagic)
	for pos < len(data) {
		if pos+arHeaderSize > len(data) {
			return nil, fmt.Errorf("%s: archive truncated in member header at offset %d", filename, pos)
		}
		header := data[pos : pos+arHeaderSize]
		pos += arHeaderSize

		memberName := strings.TrimRight(string(header[:arNameSize]), " /")
		sizeField := strings.TrimSpace(string(header[arSizeOffset : arSizeOffset+arSizeSize]))
		size, err := strconv.Atoi(sizeField)
		if err != nil {
			return nil, fmt.Errorf("%s: bad member size %q for %q: %w", filename, sizeField, memberName, err)
		}

		if pos+size > len(data) {
			return nil, fmt.Errorf("%s: archive terminates before reading full member %q", filename, memberName)
		}
		payload := data[pos : pos+size]
		pos += size
		if size%2 == 1 {
			pos++ // 2-byte alignment pad
		}

		if len(payload) >= 3 && string(payload[:3]) == "XL2" {
			mod, err := parseObject(memberName, string(payload))
			if err != nil {
				return nil, fmt.Errorf("%s(%s): %w", filename, memberName, err)
			}
			mods = append(mods, mod)
		} else if log != nil {
			log.Info("skipping non-object archive member", "archive", filename, "member", memberName)
		}
	}

	return mods, nil
}
