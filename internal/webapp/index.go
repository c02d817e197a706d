package webapp

import (
	"teletext/internal/ideagen"
	"teletext/internal/store"
)

func renderIndexPage(ideas []store.IdeaSummary) string {
	entries := make([]ideagen.IndexEntry, 0, len(ideas))
	for _, idea := range ideas {
		entries = append(entries, ideagen.IndexEntry{
			Page:     idea.PageNumber,
			Title:    idea.Title,
			Category: idea.Category,
			Score:    idea.Score,
		})
	}
	return ideagen.RenderIndex(entries)
}
