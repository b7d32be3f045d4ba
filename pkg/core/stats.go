package core

import (
	"slices"
	"strings"
)

// TopTagsLimit is the number of tags reported by Summarize.
const TopTagsLimit = 5

// TagCount is the number of notes carrying a tag.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Stats summarizes a set of notes for the dashboard.
type Stats struct {
	TotalNotes int        `json:"totalNotes"`
	TotalWords int        `json:"totalWords"`
	TotalChars int        `json:"totalChars"`
	Pinned     int        `json:"pinned"`
	TagCount   int        `json:"tagCount"`
	TopTags    []TagCount `json:"topTags"`
}

// Summarize computes dashboard statistics over notes.
func Summarize(notes []Note) Stats {
	st := Stats{TotalNotes: len(notes), TopTags: []TagCount{}}
	counts := make(map[string]int)
	for _, n := range notes {
		st.TotalWords += CountWords(n.Content)
		st.TotalChars += n.CharCount
		if n.IsPinned {
			st.Pinned++
		}
		for _, t := range n.Tags {
			counts[t]++
		}
	}
	st.TagCount = len(counts)

	for tag, c := range counts {
		st.TopTags = append(st.TopTags, TagCount{Tag: tag, Count: c})
	}
	slices.SortFunc(st.TopTags, func(a, b TagCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Tag, b.Tag)
	})
	if len(st.TopTags) > TopTagsLimit {
		st.TopTags = st.TopTags[:TopTagsLimit]
	}
	return st
}

// CountPinned returns the number of pinned notes.
func CountPinned(notes []Note) int {
	n := 0
	for _, note := range notes {
		if note.IsPinned {
			n++
		}
	}
	return n
}
