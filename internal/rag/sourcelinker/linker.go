// Package sourcelinker implements the Source Linker (C18): extracts
// `[Source N]` markers from a generated answer and resolves them against the
// Context Assembler's i -> chunk id map.
package sourcelinker

import (
	"regexp"
	"strconv"
)

var sourceMarkerPattern = regexp.MustCompile(`\[Source\s+(\d+)\]`)

// SourceReference is a resolved citation.
type SourceReference struct {
	Index   int
	ChunkID string
}

// Link scans response for `[Source N]` markers, resolves each N against
// sourceMap, and returns deduplicated references in order of first
// occurrence. Markers whose N is absent from sourceMap are returned
// separately as unresolved indices so the validator can report them without
// failing the call.
func Link(response string, sourceMap map[int]string) (refs []SourceReference, unresolved []int) {
	seen := make(map[int]bool)
	for _, m := range sourceMarkerPattern.FindAllStringSubmatch(response, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		if chunkID, ok := sourceMap[n]; ok {
			refs = append(refs, SourceReference{Index: n, ChunkID: chunkID})
		} else {
			unresolved = append(unresolved, n)
		}
	}
	return refs, unresolved
}
