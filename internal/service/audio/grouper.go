// Package audio partitions a processing window's chunks by speaker and
// assembles the per-participant payload handed to the transcription backend.
package audio

import (
	"sort"

	"call-transcription-engine/internal/models"
)

// GroupByParticipant partitions chunks by participant, preserving arrival
// order within each participant's list.
func GroupByParticipant(chunks []models.AudioChunk) map[string][]models.AudioChunk {
	groups := make(map[string][]models.AudioChunk)
	for _, c := range chunks {
		groups[c.ParticipantID] = append(groups[c.ParticipantID], c)
	}
	return groups
}

// Combine concatenates chunk payloads in order into the single buffer sent
// to the transcription backend.
func Combine(chunks []models.AudioChunk) []byte {
	var total int
	for _, c := range chunks {
		total += len(c.Payload)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c.Payload...)
	}
	return out
}

// Participants returns the group keys in sorted order so processing passes
// iterate deterministically.
func Participants(groups map[string][]models.AudioChunk) []string {
	out := make([]string, 0, len(groups))
	for p := range groups {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
