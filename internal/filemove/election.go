package filemove

import (
	"sort"
)

// Match pairs a removed file with the added file it became.
type Match struct {
	RemovedUUID string `json:"removedUuid"`
	AddedUUID   string `json:"addedUuid"`
}

// MatchesByScore groups the candidate matches of a matrix by score.
type MatchesByScore struct {
	groups map[int][]Match
	scores []int
}

// NewMatchesByScore collects every cell scoring at least minScore. Within a group,
// matches keep the matrix's row-major order.
func NewMatchesByScore(matrix *ScoreMatrix, minScore int) *MatchesByScore {
	m := &MatchesByScore{groups: make(map[int][]Match)}
	for r, removed := range matrix.RemovedFiles {
		for a, added := range matrix.AddedFiles {
			score := matrix.Score(r, a)
			if score < minScore {
				continue
			}
			if _, ok := m.groups[score]; !ok {
				m.scores = append(m.scores, score)
			}
			m.groups[score] = append(m.groups[score], Match{RemovedUUID: removed.UUID, AddedUUID: added.UUID})
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(m.scores)))
	return m
}

// Size is the number of candidate matches.
func (m *MatchesByScore) Size() int {
	n := 0
	for _, g := range m.groups {
		n += len(g)
	}
	return n
}

// Scores returns the distinct scores, highest first.
func (m *MatchesByScore) Scores() []int { return m.scores }

// Group returns the matches with the given score.
func (m *MatchesByScore) Group(score int) []Match { return m.groups[score] }

// Election is the outcome of ElectMatches.
type Election struct {
	Matches []Match
	// Candidates counts the cells that scored at least the minimum score.
	Candidates int
}

// ElectMatches picks high-confidence one-to-one matches, highest scores first.
// Once a file is elected it is never reconsidered. Among the surviving matches of
// one score, a match is elected only when neither of its files appears in another
// surviving match of that score: same-score ties are left unmatched.
func ElectMatches(matrix *ScoreMatrix, minScore int) []Match {
	return Elect(matrix, minScore).Matches
}

// Elect runs ElectMatches and also reports how many candidates were considered.
func Elect(matrix *ScoreMatrix, minScore int) Election {
	if matrix.MaxScore < minScore {
		return Election{}
	}

	byScore := NewMatchesByScore(matrix, minScore)
	candidates := 0
	electedRemoved := make(map[string]bool)
	electedAdded := make(map[string]bool)
	var elected []Match

	for _, score := range byScore.Scores() {
		var survivors []Match
		candidates += len(byScore.Group(score))
		for _, match := range byScore.Group(score) {
			if electedRemoved[match.RemovedUUID] || electedAdded[match.AddedUUID] {
				continue
			}
			survivors = append(survivors, match)
		}

		for _, match := range unambiguous(survivors) {
			electedRemoved[match.RemovedUUID] = true
			electedAdded[match.AddedUUID] = true
			elected = append(elected, match)
		}
	}
	return Election{Matches: elected, Candidates: candidates}
}

func unambiguous(matches []Match) []Match {
	if len(matches) <= 1 {
		return matches
	}

	removedCount := make(map[string]int, len(matches))
	addedCount := make(map[string]int, len(matches))
	for _, m := range matches {
		removedCount[m.RemovedUUID]++
		addedCount[m.AddedUUID]++
	}

	var out []Match
	for _, m := range matches {
		if removedCount[m.RemovedUUID] == 1 && addedCount[m.AddedUUID] == 1 {
			out = append(out, m)
		}
	}
	return out
}
