package library

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/osa030/19player/internal/domain/track"
)

type scoredTrack struct {
	index int
	score float64
}

// Search returns the tracks matching query, best match first. A limit of
// zero or less returns every match.
func (l *Library) Search(query string, limit int) []track.Track {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	queryLower := strings.ToLower(query)

	l.mu.RLock()
	defer l.mu.RUnlock()

	var scored []scoredTrack
	for i, t := range l.tracks {
		if score := scoreTrack(t, queryLower); score > 0 {
			scored = append(scored, scoredTrack{index: i, score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	result := make([]track.Track, 0, len(scored))
	for _, s := range scored {
		result = append(result, l.tracks[s.index])
	}
	return result
}

func scoreTrack(t track.Track, queryLower string) float64 {
	title := strings.ToLower(t.Title)
	artist := strings.ToLower(t.Artist)
	score := 0.0

	if title == queryLower {
		score += 20.0
	}
	if strings.Contains(title, queryLower) {
		score += 10.0
	}
	if strings.Contains(artist, queryLower) {
		score += 7.0
	}

	// Subsequence match over "title artist", e.g. "bhrp" finds "Bohemian Rhapsody".
	combined := title + " " + artist
	if fuzzy.RankMatchNormalizedFold(queryLower, combined) >= 0 {
		score += 3.0
	}

	// Typo tolerance against the title.
	distance := fuzzy.LevenshteinDistance(queryLower, title)
	if distance <= len(queryLower)/2 {
		score += float64(len(queryLower) - distance)
	}

	return score
}
