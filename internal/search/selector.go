// Package search turns a question into an answer: vector retrieval, evidence selection,
// prompt assembly and generation.
package search

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/pkg/utils"
)

// SourceGroup is every match that came from one source, with the group's mean score.
type SourceGroup struct {
	Source  models.Source
	Key     string
	Matches []models.Match
	Score   float64
}

// Evidence is the bounded context handed to the generator.
type Evidence struct {
	Sources []models.Source
	Keys    []string
	Groups  []SourceGroup
	Text    string
}

// SelectOptions controls evidence selection.
type SelectOptions struct {
	Mode       models.Mode
	MaxSources int
	CharBudget int
}

// GroupMatches partitions matches by source key in order of first appearance and scores
// each group by the arithmetic mean of its members. Matches without a namespace or
// document name belong to no source and are dropped.
func GroupMatches(matches []models.Match, mode models.Mode) []SourceGroup {
	index := make(map[string]int)
	groups := make([]SourceGroup, 0)
	for _, m := range matches {
		if m.Namespace == "" || m.PDFName == "" {
			continue
		}
		src := models.Source{Namespace: m.Namespace, PDFName: m.PDFName}
		key := src.Key(mode)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, SourceGroup{Source: src, Key: key})
		}
		groups[i].Matches = append(groups[i].Matches, m)
	}
	for i := range groups {
		var sum float64
		for _, m := range groups[i].Matches {
			sum += m.Score
		}
		groups[i].Score = sum / float64(len(groups[i].Matches))
	}
	return groups
}

// RankGroups orders groups by descending mean score. Ties keep their input order.
func RankGroups(groups []SourceGroup) {
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Score > groups[j].Score })
}

// Select picks the best sources from matches and renders their text within the character budget.
// It returns models.ErrNoEvidence when no usable match remains.
func Select(matches []models.Match, opts SelectOptions) (*Evidence, error) {
	groups := GroupMatches(matches, opts.Mode)
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: %d matches, none attributable", models.ErrNoEvidence, len(matches))
	}
	RankGroups(groups)
	if opts.MaxSources > 0 && len(groups) > opts.MaxSources {
		groups = groups[:opts.MaxSources]
	}

	ev := &Evidence{Groups: groups}
	blocks := make([]string, 0, len(groups))
	for _, g := range groups {
		ev.Sources = append(ev.Sources, g.Source)
		ev.Keys = append(ev.Keys, g.Key)
		blocks = append(blocks, renderBlock(g))
	}
	ev.Text = strings.Join(blocks, "\n\n")
	if opts.CharBudget > 0 {
		ev.Text = utils.CutRunes(ev.Text, opts.CharBudget)
	}
	return ev, nil
}

func renderBlock(g SourceGroup) string {
	texts := make([]string, len(g.Matches))
	for i, m := range g.Matches {
		texts[i] = m.Text
	}
	return "Source: " + g.Key + "\n" + strings.Join(texts, "\n\n")
}
