package progress

import (
	"sort"

	"github.com/kengibson1111/go-gw2-story-progress/gw2"
)

// BuildQuestToStoryMap keeps every quest that names a story
func BuildQuestToStoryMap(quests []gw2.Quest) QuestToStoryMap {
	m := make(QuestToStoryMap, len(quests))
	for _, q := range quests {
		if q.Story != nil {
			m[q.ID] = *q.Story
		}
	}
	return m
}

// StoryToQuests inverts a quest to story map; quest ids are sorted ascending
func StoryToQuests(questToStory QuestToStoryMap) map[int][]int {
	out := make(map[int][]int)
	for questID, storyID := range questToStory {
		out[storyID] = append(out[storyID], questID)
	}
	for _, ids := range out {
		sort.Ints(ids)
	}
	return out
}

// CompletedStoryIDs maps completed quests to the set of stories they belong to.
// Quests without a story are ignored.
func CompletedStoryIDs(questIDs []int, questToStory QuestToStoryMap) map[int]struct{} {
	completed := make(map[int]struct{})
	for _, questID := range questIDs {
		if storyID, ok := questToStory[questID]; ok {
			completed[storyID] = struct{}{}
		}
	}
	return completed
}

// BuildCharacterProgress computes completed stories per character, in the given order.
// With a nil order, characters are emitted sorted by name.
func BuildCharacterProgress(characterQuests CharacterQuests, order []string, questToStory QuestToStoryMap) []CharacterStoryProgress {
	if order == nil {
		order = sortedNames(characterQuests)
	}

	out := make([]CharacterStoryProgress, 0, len(order))
	for _, name := range order {
		out = append(out, CharacterStoryProgress{
			Character:         name,
			CompletedStoryIDs: CompletedStoryIDs(characterQuests[name], questToStory),
		})
	}
	return out
}

// BuildStoryProgress lists, for every story in catalogue order, the characters
// that completed it. CompletedBy follows the order of characterProgress.
func BuildStoryProgress(stories []gw2.Story, characterProgress []CharacterStoryProgress) []StoryProgress {
	out := make([]StoryProgress, 0, len(stories))
	for _, story := range stories {
		completedBy := []string{}
		for i := range characterProgress {
			if characterProgress[i].Has(story.ID) {
				completedBy = append(completedBy, characterProgress[i].Character)
			}
		}
		out = append(out, StoryProgress{Story: story, CompletedBy: completedBy})
	}
	return out
}

// AccountCompletedStoryIDs is the union of every character's completed stories
func AccountCompletedStoryIDs(characterProgress []CharacterStoryProgress) map[int]struct{} {
	out := make(map[int]struct{})
	for _, p := range characterProgress {
		for id := range p.CompletedStoryIDs {
			out[id] = struct{}{}
		}
	}
	return out
}

// BuildSeasonProgress groups story progress by season. Seasons are sorted by
// their order field and stories follow the season's declared order. Stories a
// season lists but the catalogue lacks are skipped.
func BuildSeasonProgress(seasons []gw2.Season, storyProgress []StoryProgress) []SeasonProgress {
	byID := make(map[int]StoryProgress, len(storyProgress))
	for _, p := range storyProgress {
		byID[p.Story.ID] = p
	}

	sorted := make([]gw2.Season, len(seasons))
	copy(sorted, seasons)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	out := make([]SeasonProgress, 0, len(sorted))
	for _, season := range sorted {
		sp := SeasonProgress{Season: season, Stories: []StoryProgress{}}
		for _, storyID := range season.Stories {
			p, ok := byID[storyID]
			if !ok {
				continue
			}
			sp.Stories = append(sp.Stories, p)
			if len(p.CompletedBy) > 0 {
				sp.CompletedCount++
			}
		}
		sp.TotalCount = len(sp.Stories)
		sp.CompletedByAccount = sp.TotalCount > 0 && sp.CompletedCount == sp.TotalCount
		out = append(out, sp)
	}
	return out
}

// IsAchievementCompleted reports whether the account finished achievement id.
// Unknown ids are not completed.
func IsAchievementCompleted(progress []gw2.AccountAchievement, id int) bool {
	for i := range progress {
		if progress[i].ID == id {
			return progress[i].Completed()
		}
	}
	return false
}

// BuildAchievementStatus pairs each definition with the account's progress, in the order of ids
func BuildAchievementStatus(ids []int, defs []gw2.Achievement, progress []gw2.AccountAchievement) []AchievementStatus {
	byID := make(map[int]gw2.Achievement, len(defs))
	for _, d := range defs {
		byID[d.ID] = d
	}
	counters := make(map[int]gw2.AccountAchievement, len(progress))
	for _, p := range progress {
		counters[p.ID] = p
	}

	out := make([]AchievementStatus, 0, len(ids))
	for _, id := range ids {
		def, ok := byID[id]
		if !ok {
			continue
		}
		status := AchievementStatus{
			Achievement: def,
			Completed:   IsAchievementCompleted(progress, id),
		}
		if p, ok := counters[id]; ok {
			if p.Current != nil {
				status.Current = *p.Current
			}
			if p.Max != nil {
				status.Max = *p.Max
			}
		}
		out = append(out, status)
	}
	return out
}

func sortedNames(characterQuests CharacterQuests) []string {
	names := make([]string, 0, len(characterQuests))
	for name := range characterQuests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
