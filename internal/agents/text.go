package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
)

// Text is the content of an artifact of type "text" (§3): an ordered
// sequence of lines, each preserving its trailing newline.
type Text struct {
	Lines []string `json:"lines"`
}

// TextAgent performs a three-way line merge via diff-block composition
// over an LCS-based diff (§4.2).
type TextAgent struct{}

func (TextAgent) Encode(content any) (string, error) {
	t, ok := content.(*Text)
	if !ok {
		return "", errs.TypeErrorf("text agent cannot encode %T", content)
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return "", errs.Wrap(errs.Internal, err, "encoding text")
	}
	return string(raw), nil
}

func (TextAgent) Decode(encoded string) (any, error) {
	return decodeText(encoded)
}

func decodeText(encoded string) (*Text, error) {
	var t Text
	if encoded == "" {
		return &Text{}, nil
	}
	if err := json.Unmarshal([]byte(encoded), &t); err != nil {
		return nil, errs.Wrap(errs.Parsing, err, "decoding text")
	}
	return &t, nil
}

// lineKind classifies one line of a two-way diff relative to the
// ancestor.
type lineKind int

const (
	lineUnmodified lineKind = iota
	lineInserted
	lineDeleted
)

type labeledLine struct {
	kind  lineKind
	text  string
	ancIx int // index into the ancestor's lines; -1 for inserted lines
}

// lcs computes the longest common subsequence of two line slices using
// standard O(n*m) dynamic programming (§4.2 step 1), returning the set of
// (i, j) index pairs that participate in the subsequence, in order.
func lcs(a, b []string) [][2]int {
	n, m := len(a), len(b)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}
	var pairs [][2]int
	i, j := 0, 0
	for i < n && j < m {
		if a[i] == b[j] {
			pairs = append(pairs, [2]int{i, j})
			i++
			j++
		} else if dp[i+1][j] >= dp[i][j+1] {
			i++
		} else {
			j++
		}
	}
	return pairs
}

// diffAgainstAncestor labels every line of `side` as Unmodified, Inserted,
// or Deleted relative to `ancestor`, per an LCS alignment (§4.2 step 1).
// Deleted lines are emitted as zero-width markers anchored at their
// ancestor index so the block walk in step 2 can place them.
func diffAgainstAncestor(ancestor, side []string) []labeledLine {
	pairs := lcs(ancestor, side)

	var out []labeledLine
	ai, si, pi := 0, 0, 0
	for ai < len(ancestor) || si < len(side) {
		if pi < len(pairs) && pairs[pi][0] == ai && pairs[pi][1] == si {
			out = append(out, labeledLine{kind: lineUnmodified, text: ancestor[ai], ancIx: ai})
			ai++
			si++
			pi++
			continue
		}
		nextAnc, nextSide := len(ancestor), len(side)
		if pi < len(pairs) {
			nextAnc, nextSide = pairs[pi][0], pairs[pi][1]
		}
		for ai < nextAnc {
			out = append(out, labeledLine{kind: lineDeleted, text: ancestor[ai], ancIx: ai})
			ai++
		}
		for si < nextSide {
			out = append(out, labeledLine{kind: lineInserted, text: side[si], ancIx: ai})
			si++
		}
	}
	return out
}

// block groups the source-side and target-side labeled lines covering the
// same ancestor region (§4.2 step 2).
type block struct {
	ancIx  int
	source []labeledLine
	target []labeledLine
}

func buildBlocks(sourceLabels, targetLabels []labeledLine) []block {
	byAnc := func(lines []labeledLine) map[int][]labeledLine {
		m := map[int][]labeledLine{}
		for _, l := range lines {
			m[l.ancIx] = append(m[l.ancIx], l)
		}
		return m
	}
	sMap := byAnc(sourceLabels)
	tMap := byAnc(targetLabels)

	seen := map[int]struct{}{}
	var order []int
	for _, l := range sourceLabels {
		if _, ok := seen[l.ancIx]; !ok {
			seen[l.ancIx] = struct{}{}
			order = append(order, l.ancIx)
		}
	}
	for _, l := range targetLabels {
		if _, ok := seen[l.ancIx]; !ok {
			seen[l.ancIx] = struct{}{}
			order = append(order, l.ancIx)
		}
	}
	// order may not be sorted if insertions interleave; sort by ancIx
	// while keeping stability for equal keys (stable insertion sort over a
	// typically small key set is fine here).
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && order[j-1] > order[j]; j-- {
			order[j-1], order[j] = order[j], order[j-1]
		}
	}

	blocks := make([]block, 0, len(order))
	for _, ix := range order {
		blocks = append(blocks, block{ancIx: ix, source: sMap[ix], target: tMap[ix]})
	}
	return blocks
}

func linesText(ls []labeledLine) []string {
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		if l.kind != lineDeleted {
			out = append(out, l.text)
		}
	}
	return out
}

func sameLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func blockUnmodified(ls []labeledLine) bool {
	for _, l := range ls {
		if l.kind != lineUnmodified {
			return false
		}
	}
	return true
}

const conflictStart = "<<<<<<< source\n"
const conflictMid = "=======\n"
const conflictEnd = ">>>>>>> target\n"

// Merge implements §4.2 steps 1-4.
func (TextAgent) Merge(artifactID, ancestorEnc, sourceEnc, targetEnc string) (Result, error) {
	ancestor, err := decodeText(ancestorEnc)
	if err != nil {
		return Result{}, err
	}
	source, err := decodeText(sourceEnc)
	if err != nil {
		return Result{}, err
	}
	target, err := decodeText(targetEnc)
	if err != nil {
		return Result{}, err
	}

	sourceLabels := diffAgainstAncestor(ancestor.Lines, source.Lines)
	targetLabels := diffAgainstAncestor(ancestor.Lines, target.Lines)
	blocks := buildBlocks(sourceLabels, targetLabels)

	var merged []string
	var conflicts []Conflict

	for _, b := range blocks {
		sLines := linesText(b.source)
		tLines := linesText(b.target)
		sUnmod := blockUnmodified(b.source)
		tUnmod := blockUnmodified(b.target)

		switch {
		case sUnmod && tUnmod:
			merged = append(merged, sLines...)
		case sUnmod && !tUnmod:
			merged = append(merged, tLines...)
		case !sUnmod && tUnmod:
			merged = append(merged, sLines...)
		case sameLines(sLines, tLines):
			merged = append(merged, sLines...)
		default:
			merged = append(merged, conflictStart)
			merged = append(merged, sLines...)
			merged = append(merged, conflictMid)
			merged = append(merged, tLines...)
			merged = append(merged, conflictEnd)

			var ancLines []string
			for _, l := range b.source {
				if l.kind == lineDeleted || l.kind == lineUnmodified {
					ancLines = append(ancLines, l.text)
				}
			}
			conflicts = append(conflicts, Conflict{
				ArtifactID: artifactID, ArtifactType: "text",
				SourceVer: strings.Join(sLines, ""), TargetVer: strings.Join(tLines, ""),
				Details: fmt.Sprintf("conflicting edit at ancestor line %d; ancestor region: %q", b.ancIx, strings.Join(ancLines, "")),
			})
		}
	}

	proposal, err := TextAgent{}.Encode(&Text{Lines: merged})
	if err != nil {
		return Result{}, err
	}
	return Result{Proposal: proposal, Conflicts: conflicts}, nil
}

var _ Agent = (*TextAgent)(nil)
