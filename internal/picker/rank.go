// Package picker ranks tabs against a fuzzy query and lets the user choose
// one interactively.
package picker

import (
	"sort"
	"strings"
	"sync"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"

	"github.com/mj1618/tab-bridge/internal/model"
)

// Match is a tab that matched a query, with its fzf score.
type Match struct {
	Tab   model.Tab
	Score int
}

var initOnce sync.Once

// Slab sizes used by fzf itself.
const (
	slab16Size = 100 * 1024
	slab32Size = 2048
)

// Rank scores tabs against query and returns the matches, best first. Each
// whitespace-separated term must match "title url"; a tab's score is the sum
// of its term scores. Ties keep the input order. An empty query matches
// every tab with score zero.
func Rank(tabs []model.Tab, query string) []Match {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		matches := make([]Match, len(tabs))
		for i, t := range tabs {
			matches[i] = Match{Tab: t}
		}
		return matches
	}

	initOnce.Do(func() { algo.Init("default") })
	slab := util.MakeSlab(slab16Size, slab32Size)

	patterns := make([][]rune, len(terms))
	for i, term := range terms {
		patterns[i] = []rune(term)
	}

	var matches []Match
	for _, t := range tabs {
		if score, ok := score(text(t), patterns, slab); ok {
			matches = append(matches, Match{Tab: t, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

func text(t model.Tab) string {
	if t.URL == "" {
		return t.Title
	}
	return t.Title + " " + t.URL
}

func score(s string, patterns [][]rune, slab *util.Slab) (int, bool) {
	chars := util.ToChars([]byte(s))
	total := 0
	for _, p := range patterns {
		res, _ := algo.FuzzyMatchV2(false, true, true, &chars, p, false, slab)
		if res.Start < 0 {
			return 0, false
		}
		total += int(res.Score)
	}
	return total, true
}
