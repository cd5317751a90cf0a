package progress

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Status is the display state of a story
type Status string

// Story statuses, in evaluation priority
const (
	StatusCompleted    Status = "completed"
	StatusUndetectable Status = "undetectable"
	StatusFuture       Status = "future"
	StatusPartial      Status = "partial"
)

// VisionsOfEternitySeasonID is the upcoming season whose stories have no quests yet
const VisionsOfEternitySeasonID = "5F35F25C-AE33-4D92-A061-227CE54FA5DC"

// BitterHarvestStoryID is the episode whose completion the API does not expose per character
const BitterHarvestStoryID = 27

// StatusInfo describes how a story should be shown
type StatusInfo struct {
	Status  Status `json:"status"`
	Label   string `json:"label"`
	Badge   string `json:"badge"`
	Message string `json:"message,omitempty"`
}

// StatusRules holds the data driven parts of story classification and phase grouping
type StatusRules struct {
	UndetectableStoryIDs  []int      `yaml:"undetectable_story_ids"`
	UpcomingSeasonIDs     []string   `yaml:"upcoming_season_ids"`
	PersonalStorySeasonID string     `yaml:"personal_story_season_id"`
	Phases                PhaseTable `yaml:"phases"`
}

// DefaultRules returns the rules observed for the live API
func DefaultRules() *StatusRules {
	return &StatusRules{
		UndetectableStoryIDs:  []int{BitterHarvestStoryID},
		UpcomingSeasonIDs:     []string{VisionsOfEternitySeasonID},
		PersonalStorySeasonID: PersonalStorySeasonID,
		Phases:                DefaultPhaseTable(),
	}
}

// Validate checks the rules for obvious mistakes
func (r *StatusRules) Validate() error {
	if strings.TrimSpace(r.PersonalStorySeasonID) == "" {
		return fmt.Errorf("personal story season id cannot be empty")
	}
	for _, id := range r.UndetectableStoryIDs {
		if id < 0 {
			return fmt.Errorf("undetectable story id cannot be negative: %d", id)
		}
	}
	for _, id := range r.UpcomingSeasonIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("upcoming season id cannot be empty")
		}
	}
	if err := r.Phases.Validate(); err != nil {
		return fmt.Errorf("invalid phases: %w", err)
	}
	return nil
}

// LoadRules reads rules from a YAML file. Keys absent from the file keep
// their defaults; an empty path returns the defaults.
func LoadRules(path string) (*StatusRules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return rules, nil
}

// Classifier assigns a StatusInfo to story progress
type Classifier struct {
	undetectable  map[int]struct{}
	upcoming      map[string]struct{}
	storyToQuests map[int][]int
}

// NewClassifier creates a classifier. storyToQuests tells which stories have
// backing quests; see StoryToQuests.
func NewClassifier(rules *StatusRules, storyToQuests map[int][]int) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}

	c := &Classifier{
		undetectable:  make(map[int]struct{}, len(rules.UndetectableStoryIDs)),
		upcoming:      make(map[string]struct{}, len(rules.UpcomingSeasonIDs)),
		storyToQuests: storyToQuests,
	}
	for _, id := range rules.UndetectableStoryIDs {
		c.undetectable[id] = struct{}{}
	}
	for _, id := range rules.UpcomingSeasonIDs {
		c.upcoming[id] = struct{}{}
	}
	return c
}

// Classify evaluates, in order: completed, undetectable, future, partial.
// An observed completion always wins over the static rules.
func (c *Classifier) Classify(p StoryProgress) StatusInfo {
	if len(p.CompletedBy) > 0 {
		return StatusInfo{Status: StatusCompleted, Label: "Done", Badge: "badge-success"}
	}

	if _, ok := c.undetectable[p.Story.ID]; ok {
		return StatusInfo{
			Status:  StatusUndetectable,
			Label:   "Undetectable",
			Badge:   "badge-outline badge-warning",
			Message: "⚠ Completion not detectable per character (ArenaNet does not expose quest completion for this episode)",
		}
	}

	if len(c.storyToQuests[p.Story.ID]) == 0 {
		info := StatusInfo{
			Status:  StatusFuture,
			Label:   "Not yet available",
			Badge:   "badge-outline badge-secondary",
			Message: "⏳ Not yet available",
		}
		if _, ok := c.upcoming[p.Story.SeasonID]; ok {
			info.Message = "⏳ Not yet available (API: no story quests released)"
		}
		return info
	}

	return StatusInfo{Status: StatusPartial, Label: "Not completed", Badge: "badge-ghost"}
}

// ClassifyAll classifies every story, keyed by story id
func (c *Classifier) ClassifyAll(progress []StoryProgress) map[int]StatusInfo {
	out := make(map[int]StatusInfo, len(progress))
	for _, p := range progress {
		out[p.Story.ID] = c.Classify(p)
	}
	return out
}
