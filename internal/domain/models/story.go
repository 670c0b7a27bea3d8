package models

import (
	"sort"
	"time"
)

// Story is a recorded memory. The engine only reads stories.
type Story struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	StoryText string    `json:"story_text"`
	StoryYear *int      `json:"story_year,omitempty"`
	Emotions  []string  `json:"emotions,omitempty"`
	Entities  []string  `json:"entities,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LatestStory returns the most recently created story, or nil for an empty slice.
// Ties on CreatedAt keep the earlier element.
func LatestStory(stories []*Story) *Story {
	var latest *Story
	for _, s := range stories {
		if s == nil {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	return latest
}

// SortStoriesNewestFirst orders stories by CreatedAt descending, in place.
func SortStoriesNewestFirst(stories []*Story) {
	sort.SliceStable(stories, func(i, j int) bool {
		return stories[i].CreatedAt.After(stories[j].CreatedAt)
	})
}

// UserProfile is the slice of the user record the engine needs.
type UserProfile struct {
	ID        string `json:"id"`
	BirthYear *int   `json:"birth_year,omitempty"`
}
