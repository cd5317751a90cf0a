package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// TokenInfo describes an API key as reported by /v2/tokeninfo
type TokenInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// HasPermission reports whether the key was granted permission
func (t *TokenInfo) HasPermission(permission string) bool {
	for _, p := range t.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// Account is the subset of /v2/account used for display
type Account struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	World   int      `json:"world"`
	Created string   `json:"created"`
	Access  []string `json:"access"`
}

// Character holds the basic details of one character.
// Gender and Created are empty when the API omits them.
type Character struct {
	Name       string `json:"name"`
	Race       string `json:"race"`
	Gender     string `json:"gender"`
	Profession string `json:"profession"`
	Level      int    `json:"level"`
	Created    string `json:"created"`
}

// Validate validates the Character data integrity
func (c *Character) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("character name cannot be empty")
	}

	if c.Level < 0 || c.Level > 80 {
		return fmt.Errorf("character level must be between 0 and 80, got %d", c.Level)
	}

	return nil
}

// Quest is a single quest record from /v2/quests.
// Story is nil when the quest has no narrative association.
type Quest struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Level int    `json:"level"`
	Story *int   `json:"story,omitempty"`
}

// Validate validates the Quest data integrity
func (q *Quest) Validate() error {
	if q.ID <= 0 {
		return fmt.Errorf("quest id must be positive, got %d", q.ID)
	}

	if q.Story != nil && *q.Story <= 0 {
		return fmt.Errorf("quest %d references invalid story id %d", q.ID, *q.Story)
	}

	return nil
}

// Story is a narrative episode from /v2/stories
type Story struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	SeasonID string `json:"seasonId"`
	Order    int    `json:"order"`
	Level    int    `json:"level"`
}

// UnmarshalJSON accepts both the API field "season" and the cached field "seasonId".
// Missing order and level decode to zero.
func (s *Story) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       int    `json:"id"`
		Name     string `json:"name"`
		Season   string `json:"season"`
		SeasonID string `json:"seasonId"`
		Order    int    `json:"order"`
		Level    int    `json:"level"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Story{
		ID:       raw.ID,
		Name:     raw.Name,
		SeasonID: raw.SeasonID,
		Order:    raw.Order,
		Level:    raw.Level,
	}
	if s.SeasonID == "" {
		s.SeasonID = raw.Season
	}
	return nil
}

// Validate validates the Story data integrity
func (s *Story) Validate() error {
	if s.ID <= 0 {
		return fmt.Errorf("story id must be positive, got %d", s.ID)
	}
	return nil
}

// Season groups stories; Stories lists story ids in their narrative order
type Season struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Order   int    `json:"order"`
	Stories []int  `json:"stories"`
}

// Validate validates the Season data integrity
func (s *Season) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("season id cannot be empty")
	}

	seen := make(map[int]bool, len(s.Stories))
	for i, id := range s.Stories {
		if id <= 0 {
			return fmt.Errorf("season %s lists invalid story id %d at index %d", s.ID, id, i)
		}
		if seen[id] {
			return fmt.Errorf("season %s lists story %d more than once", s.ID, id)
		}
		seen[id] = true
	}

	return nil
}

// AchievementTier is one step of a tiered achievement
type AchievementTier struct {
	Count  int `json:"count"`
	Points int `json:"points"`
}

// Achievement is an achievement definition from /v2/achievements
type Achievement struct {
	ID            int               `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	Requirement   string            `json:"requirement,omitempty"`
	LockedText    string            `json:"locked_text,omitempty"`
	Type          string            `json:"type,omitempty"`
	Flags         []string          `json:"flags,omitempty"`
	Tiers         []AchievementTier `json:"tiers,omitempty"`
	Prerequisites []int             `json:"prerequisites,omitempty"`
}

// AccountAchievement is the account's progress on one achievement
type AccountAchievement struct {
	ID       int   `json:"id"`
	Current  *int  `json:"current,omitempty"`
	Max      *int  `json:"max,omitempty"`
	Done     bool  `json:"done"`
	Bits     []int `json:"bits,omitempty"`
	Repeated *int  `json:"repeated,omitempty"`
	Unlocked *bool `json:"unlocked,omitempty"`
}

// Completed reports whether the achievement is done or its counter reached the maximum
func (a *AccountAchievement) Completed() bool {
	if a.Done {
		return true
	}
	return a.Current != nil && a.Max != nil && *a.Current >= *a.Max
}

// StoriesAndSeasons is the joined story and season catalogue
type StoriesAndSeasons struct {
	Stories []Story  `json:"stories"`
	Seasons []Season `json:"seasons"`
}

// Validate validates every story and season in the catalogue
func (c *StoriesAndSeasons) Validate() error {
	for i := range c.Stories {
		if err := c.Stories[i].Validate(); err != nil {
			return fmt.Errorf("invalid story at index %d: %w", i, err)
		}
	}
	for i := range c.Seasons {
		if err := c.Seasons[i].Validate(); err != nil {
			return fmt.Errorf("invalid season at index %d: %w", i, err)
		}
	}
	return nil
}

// StoriesInSeason returns the stories whose season matches seasonID, in catalogue order
func (c *StoriesAndSeasons) StoriesInSeason(seasonID string) []Story {
	var out []Story
	for _, s := range c.Stories {
		if s.SeasonID == seasonID {
			out = append(out, s)
		}
	}
	return out
}

// CharacterStoryProgress records which stories one character has completed
type CharacterStoryProgress struct {
	Character         string
	CompletedStoryIDs map[int]struct{}
}

// Has reports whether storyID is completed
func (p *CharacterStoryProgress) Has(storyID int) bool {
	_, ok := p.CompletedStoryIDs[storyID]
	return ok
}

// StoryIDs returns the completed story ids in ascending order
func (p *CharacterStoryProgress) StoryIDs() []int {
	ids := make([]int, 0, len(p.CompletedStoryIDs))
	for id := range p.CompletedStoryIDs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// StoryProgress lists the characters that completed a story, in character order
type StoryProgress struct {
	Story       Story    `json:"story"`
	CompletedBy []string `json:"completedBy"`
}

// SeasonProgress aggregates story progress for one season
type SeasonProgress struct {
	Season             Season          `json:"season"`
	Stories            []StoryProgress `json:"stories"`
	CompletedCount     int             `json:"completedCount"`
	TotalCount         int             `json:"totalCount"`
	CompletedByAccount bool            `json:"completedByAccount"`
}

// PhaseQuest is one Personal Story quest and the characters that completed it
type PhaseQuest struct {
	QuestID     int      `json:"questId"`
	QuestName   string   `json:"questName"`
	CompletedBy []string `json:"completedBy"`
}

// PersonalStoryPhaseProgress groups Personal Story quests by level phase
type PersonalStoryPhaseProgress struct {
	PhaseLevel int          `json:"phaseLevel"`
	PhaseName  string       `json:"phaseName"`
	Quests     []PhaseQuest `json:"quests"`
}
