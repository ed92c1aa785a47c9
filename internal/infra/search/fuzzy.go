// Package search implements the fuzzy ranking engine: subsequence matching
// with positional scoring over the searchable fields of a tool (name, tags,
// description), producing ranked matches with highlight positions.
package search

import (
	"sort"
	"strings"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"

	"toolshelf/internal/domain"
)

// Field weights reflect relevance to user intent: a hit in the name beats a
// hit in a tag beats a hit in the description.
const (
	nameWeight        = 3.0
	tagWeight         = 2.0
	descriptionWeight = 1.0

	// exactCaseFactor is the small multiplier applied when the matched
	// characters also agree with the query's case.
	exactCaseFactor = 1.1

	slab16Size = 100 * 1024
	slab32Size = 2048
)

// The fzf algo package requires an explicit one-time Init to populate its
// character-class and bonus tables; without it every match against text
// containing uppercase letters scores zero.
func init() {
	algo.Init("default")
}

// Match is one ranked result: the tool, its total relevance score, and the
// matched character positions per field for highlight rendering.
// TagPositions is parallel to Tool.Tags; a nil entry means that tag did not
// match.
type Match struct {
	Tool                 domain.Tool
	Score                float64
	NamePositions        []int
	DescriptionPositions []int
	TagPositions         [][]int
}

// Rank scores every tool against query and returns matches ordered by
// descending relevance. Tools with no subsequence match in any field are
// excluded. Ties break by shorter name, then lexicographic id, so output is
// deterministic. The engine holds no state; scores are recomputed per call.
func Rank(query string, tools []domain.Tool) []Match {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil
	}
	pattern := []rune(trimmed)
	lowered := []rune(strings.ToLower(trimmed))
	slab := util.MakeSlab(slab16Size, slab32Size)

	matches := make([]Match, 0, len(tools))
	for _, tool := range tools {
		match, ok := scoreTool(tool, pattern, lowered, slab)
		if !ok {
			continue
		}
		matches = append(matches, match)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if len(matches[i].Tool.Name) != len(matches[j].Tool.Name) {
			return len(matches[i].Tool.Name) < len(matches[j].Tool.Name)
		}
		return matches[i].Tool.ID < matches[j].Tool.ID
	})
	return matches
}

func scoreTool(tool domain.Tool, pattern, lowered []rune, slab *util.Slab) (Match, bool) {
	match := Match{Tool: domain.CloneTool(tool)}

	nameScore, namePositions := scoreField(tool.Name, pattern, lowered, slab)
	descScore, descPositions := scoreField(tool.Description, pattern, lowered, slab)

	var bestTagScore float64
	if len(tool.Tags) > 0 {
		match.TagPositions = make([][]int, len(tool.Tags))
		for i, tag := range tool.Tags {
			tagScore, tagPositions := scoreField(tag, pattern, lowered, slab)
			if tagScore <= 0 {
				continue
			}
			match.TagPositions[i] = tagPositions
			if tagScore > bestTagScore {
				bestTagScore = tagScore
			}
		}
	}

	total := nameScore*nameWeight + bestTagScore*tagWeight + descScore*descriptionWeight
	if total <= 0 {
		return Match{}, false
	}

	match.Score = total
	match.NamePositions = namePositions
	match.DescriptionPositions = descPositions
	return match, true
}

// scoreField runs a subsequence match of the lowered pattern against text.
// The raw fzf score already rewards contiguous runs and matches starting at
// word boundaries; on top of that the score is scaled up by the proportion
// of the field the match consumes, so the same match in a shorter field
// ranks higher, and by a small factor when the matched characters agree with
// the query's case exactly.
func scoreField(text string, pattern, lowered []rune, slab *util.Slab) (float64, []int) {
	if text == "" {
		return 0, nil
	}
	chars := util.ToChars([]byte(text))
	result, positions := algo.FuzzyMatchV2(false, true, true, &chars, lowered, true, slab)
	if result.Score <= 0 {
		return 0, nil
	}

	var matched []int
	if positions != nil {
		matched = append([]int(nil), *positions...)
		sort.Ints(matched)
	}

	textRunes := []rune(text)
	score := float64(result.Score) * (1.0 + float64(len(lowered))/float64(len(textRunes)))
	if exactCase(textRunes, matched, pattern) {
		score *= exactCaseFactor
	}
	return score, matched
}

func exactCase(textRunes []rune, positions []int, pattern []rune) bool {
	if len(positions) != len(pattern) {
		return false
	}
	for i, position := range positions {
		if position < 0 || position >= len(textRunes) {
			return false
		}
		if textRunes[position] != pattern[i] {
			return false
		}
	}
	return true
}
