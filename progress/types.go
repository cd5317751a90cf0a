package progress

import (
	"github.com/kengibson1111/go-gw2-story-progress/gw2"
	"github.com/kengibson1111/go-gw2-story-progress/internal/models"
)

// Derived views built by this package
type (
	StoriesAndSeasons          = models.StoriesAndSeasons
	CharacterStoryProgress     = models.CharacterStoryProgress
	StoryProgress              = models.StoryProgress
	SeasonProgress             = models.SeasonProgress
	PhaseQuest                 = models.PhaseQuest
	PersonalStoryPhaseProgress = models.PersonalStoryPhaseProgress
)

// AchievementStatus is one achievement with the account's progress on it.
// Current and Max are zero when the account has no counter for it.
type AchievementStatus struct {
	Achievement gw2.Achievement `json:"achievement"`
	Completed   bool            `json:"completed"`
	Current     int             `json:"current"`
	Max         int             `json:"max"`
}

// QuestToStoryMap maps quest ids to the story they belong to.
// Values handed out by a Service are shared and must be treated as read-only.
type QuestToStoryMap = map[int]int

// CharacterQuests maps character names to the quest ids they completed.
// Quest lists are unordered sets.
type CharacterQuests = map[string][]int
