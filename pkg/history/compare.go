package history

import (
	"sort"
	"strings"

	"github.com/mslinn/unittree/pkg/database"
	"github.com/mslinn/unittree/pkg/unittest"
)

// Change types reported by Compare
const (
	ChangeAdded   = "added"
	ChangeRemoved = "removed"
	ChangeChanged = "changed"
)

// Difference is a case whose result log differs between two runs
type Difference struct {
	Path       string // Suite/Child/case
	OldResults string
	NewResults string
	ChangeType string
}

// Compare lists the cases whose results differ between two stored runs,
// sorted by path. Cases are matched by their suite path and name.
func Compare(db *database.DB, oldRunID, newRunID int64) ([]*Difference, error) {
	oldResults, err := caseResults(db, oldRunID)
	if err != nil {
		return nil, err
	}

	newResults, err := caseResults(db, newRunID)
	if err != nil {
		return nil, err
	}

	var diffs []*Difference

	for path, old := range oldResults {
		current, exists := newResults[path]
		if !exists {
			diffs = append(diffs, &Difference{
				Path:       path,
				OldResults: old,
				ChangeType: ChangeRemoved,
			})
		} else if old != current {
			diffs = append(diffs, &Difference{
				Path:       path,
				OldResults: old,
				NewResults: current,
				ChangeType: ChangeChanged,
			})
		}
	}

	for path, current := range newResults {
		if _, exists := oldResults[path]; !exists {
			diffs = append(diffs, &Difference{
				Path:       path,
				NewResults: current,
				ChangeType: ChangeAdded,
			})
		}
	}

	sort.Slice(diffs, func(i, j int) bool {
		return diffs[i].Path < diffs[j].Path
	})

	return diffs, nil
}

// caseResults maps every case path of a run to its formatted result log
func caseResults(db *database.DB, runID int64) (map[string]string, error) {
	runner, _, err := Rebuild(db, runID)
	if err != nil {
		return nil, err
	}
	defer runner.Destroy()

	results := make(map[string]string)
	runner.Walk(func(path []string, suite *unittest.Suite) {
		prefix := strings.Join(path, "/") + "/"
		for _, c := range suite.Cases() {
			results[prefix+c.Name()] = FormatResults(c.Results())
		}
	})
	return results, nil
}
