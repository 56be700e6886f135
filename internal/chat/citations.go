package chat

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/docchat/docchat/pkg/models"
)

var markerPattern = regexp.MustCompile(`\[(\d+)\]`)

// ParseMarkers returns the distinct citation markers of an answer in order
// of first appearance.
func ParseMarkers(answer string) []int {
	var out []int
	seen := make(map[int]bool)
	for _, m := range markerPattern.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// ResolveCitations maps the markers cited by an answer back to the chunks
// they were generated from. A marker outside the marker table means the
// generator cited something retrieval never produced; that inconsistency
// fails the call rather than being dropped.
func ResolveCitations(answer string, markers map[int]models.RetrievedChunk) ([]models.Citation, error) {
	var out []models.Citation
	for _, n := range ParseMarkers(answer) {
		rc, ok := markers[n]
		if !ok {
			return nil, fmt.Errorf("%w: cited marker [%d] is not part of the retrieval result", models.ErrUnknownChunk, n)
		}
		out = append(out, models.Citation{
			Marker:     n,
			ChunkID:    rc.Chunk.ID,
			DocumentID: rc.Chunk.DocumentID,
			Filename:   rc.Filename,
			Seq:        rc.Chunk.Seq,
		})
	}
	return out, nil
}
