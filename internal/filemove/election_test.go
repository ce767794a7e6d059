package filemove

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"
)

func TestElectMatches(t *testing.T) {
	tests := []struct {
		name    string
		removed []string
		added   []string
		cells   map[[2]int]int
		want    []Match
	}{
		{
			name:    "single candidate",
			removed: []string{"r1"},
			added:   []string{"a1"},
			cells:   map[[2]int]int{{0, 0}: 100},
			want:    []Match{{"r1", "a1"}},
		},
		{
			name:    "higher score consumes files first",
			removed: []string{"r1", "r2"},
			added:   []string{"a1", "a2"},
			cells:   map[[2]int]int{{0, 0}: 100, {0, 1}: 95, {1, 1}: 90},
			want:    []Match{{"r1", "a1"}, {"r2", "a2"}},
		},
		{
			name:    "same score on one added file is ambiguous",
			removed: []string{"r1", "r2"},
			added:   []string{"a1"},
			cells:   map[[2]int]int{{0, 0}: 90, {1, 0}: 90},
			want:    nil,
		},
		{
			name:    "same score on one removed file is ambiguous",
			removed: []string{"r1"},
			added:   []string{"a1", "a2"},
			cells:   map[[2]int]int{{0, 0}: 92, {0, 1}: 92},
			want:    nil,
		},
		{
			name:    "unambiguous pairs of a group are elected",
			removed: []string{"r1", "r2", "r3"},
			added:   []string{"a1", "a3"},
			cells:   map[[2]int]int{{0, 0}: 90, {1, 0}: 90, {2, 1}: 90},
			want:    []Match{{"r3", "a3"}},
		},
		{
			name:    "ambiguity resolved by a higher group",
			removed: []string{"r1", "r2"},
			added:   []string{"a1", "a2"},
			cells:   map[[2]int]int{{0, 0}: 99, {0, 1}: 90, {1, 1}: 90},
			want:    []Match{{"r1", "a1"}, {"r2", "a2"}},
		},
		{
			name:    "scores below threshold ignored",
			removed: []string{"r1", "r2"},
			added:   []string{"a1", "a2"},
			cells:   map[[2]int]int{{0, 0}: 95, {1, 1}: 84},
			want:    []Match{{"r1", "a1"}},
		},
		{
			name:    "max score below threshold",
			removed: []string{"r1"},
			added:   []string{"a1"},
			cells:   map[[2]int]int{{0, 0}: 60},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := matrixOf(tt.removed, tt.added, tt.cells)
			got := sortedMatches(ElectMatches(m, MinRequiredScore))
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ElectMatches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchesByScore(t *testing.T) {
	m := matrixOf([]string{"r1", "r2"}, []string{"a1", "a2"},
		map[[2]int]int{{0, 0}: 90, {0, 1}: 100, {1, 0}: 90, {1, 1}: 20})

	byScore := NewMatchesByScore(m, MinRequiredScore)
	if byScore.Size() != 3 {
		t.Errorf("Size() = %d, want 3", byScore.Size())
	}
	if !reflect.DeepEqual(byScore.Scores(), []int{100, 90}) {
		t.Errorf("Scores() = %v, want [100 90]", byScore.Scores())
	}
	want := []Match{{"r1", "a1"}, {"r2", "a1"}}
	if got := byScore.Group(90); !reflect.DeepEqual(got, want) {
		t.Errorf("Group(90) = %v, want %v", got, want)
	}
}

func TestElect_CountsCandidates(t *testing.T) {
	m := matrixOf([]string{"r1", "r2"}, []string{"a1", "a2"},
		map[[2]int]int{{0, 0}: 90, {0, 1}: 100, {1, 0}: 90, {1, 1}: 20})

	election := Elect(m, MinRequiredScore)
	if election.Candidates != NewMatchesByScore(m, MinRequiredScore).Size() {
		t.Errorf("Candidates = %d, want %d", election.Candidates, NewMatchesByScore(m, MinRequiredScore).Size())
	}
	if election.Candidates != 3 {
		t.Errorf("Candidates = %d, want 3", election.Candidates)
	}
	// r1-a2 wins at 100, then r2-a1 is the only survivor at 90
	want := []Match{{"r1", "a2"}, {"r2", "a1"}}
	if !reflect.DeepEqual(election.Matches, want) {
		t.Errorf("Matches = %v, want %v", election.Matches, want)
	}

	below := Elect(matrixOf([]string{"r"}, []string{"a"}, map[[2]int]int{{0, 0}: 60}), MinRequiredScore)
	if below.Candidates != 0 || below.Matches != nil {
		t.Errorf("below threshold election = %+v, want empty", below)
	}
}

func TestElectMatches_Injective(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 200; run++ {
		nr, na := 1+rng.Intn(8), 1+rng.Intn(8)
		removed := make([]string, nr)
		added := make([]string, na)
		for i := range removed {
			removed[i] = fmt.Sprintf("r%d", i)
		}
		for i := range added {
			added[i] = fmt.Sprintf("a%d", i)
		}
		cells := map[[2]int]int{}
		for r := 0; r < nr; r++ {
			for a := 0; a < na; a++ {
				// few distinct values so ties are frequent
				cells[[2]int{r, a}] = 80 + 5*rng.Intn(5)
			}
		}

		m := matrixOf(removed, added, cells)
		matches := ElectMatches(m, MinRequiredScore)

		seenRemoved := map[string]bool{}
		seenAdded := map[string]bool{}
		for _, match := range matches {
			if seenRemoved[match.RemovedUUID] || seenAdded[match.AddedUUID] {
				t.Fatalf("run %d: file elected twice in %v", run, matches)
			}
			seenRemoved[match.RemovedUUID] = true
			seenAdded[match.AddedUUID] = true
		}

		again := ElectMatches(matrixOf(removed, added, cells), MinRequiredScore)
		if !reflect.DeepEqual(matches, again) {
			t.Fatalf("run %d: election not deterministic: %v vs %v", run, matches, again)
		}
	}
}
