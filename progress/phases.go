package progress

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kengibson1111/go-gw2-story-progress/gw2"
)

// PersonalStorySeasonID is the season holding the base game Personal Story
const PersonalStorySeasonID = "215AAA0F-CDAC-4F93-86DA-C155A99B5784"

// Phase is a named Personal Story band starting at Level
type Phase struct {
	Level int    `yaml:"level" json:"level"`
	Name  string `yaml:"name" json:"name"`
}

// PhaseTable is a list of phase thresholds sorted ascending by level
type PhaseTable []Phase

// DefaultPhaseTable returns the Personal Story phases
func DefaultPhaseTable() PhaseTable {
	return PhaseTable{
		{Level: 1, Name: "Origins"},
		{Level: 10, Name: "Early Life"},
		{Level: 20, Name: "Orders of Tyria"},
		{Level: 30, Name: "Claw Island"},
		{Level: 40, Name: "The Pact"},
		{Level: 50, Name: "Further Steps"},
		{Level: 60, Name: "The Battle for Orr"},
		{Level: 70, Name: "Victory or Death"},
		{Level: 80, Name: "Zhaitan"},
	}
}

// Validate checks the table is non-empty, strictly ascending and named
func (t PhaseTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("phase table cannot be empty")
	}
	for i, p := range t {
		if p.Name == "" {
			return fmt.Errorf("phase at level %d has no name", p.Level)
		}
		if i > 0 && p.Level <= t[i-1].Level {
			return fmt.Errorf("phase levels must be strictly ascending: %d follows %d", p.Level, t[i-1].Level)
		}
	}
	return nil
}

// PhaseForLevel returns the phase with the highest threshold not above level.
// Levels below the first threshold fall into the first phase.
func (t PhaseTable) PhaseForLevel(level int) Phase {
	if len(t) == 0 {
		return Phase{Level: level, Name: fmt.Sprintf("Level %d", level)}
	}

	phase := t[0]
	for _, p := range t {
		if level >= p.Level {
			phase = p
		}
	}
	return phase
}

// PhaseName returns the name of the phase starting exactly at level, or "Level N"
func (t PhaseTable) PhaseName(level int) string {
	for _, p := range t {
		if p.Level == level {
			return p.Name
		}
	}
	return fmt.Sprintf("Level %d", level)
}

// PhaseForLevel looks level up in the default table
func PhaseForLevel(level int) Phase {
	return DefaultPhaseTable().PhaseForLevel(level)
}

// PhaseName looks level up in the default table
func PhaseName(level int) string {
	return DefaultPhaseTable().PhaseName(level)
}

// GroupPersonalStory groups the Personal Story quests into phases using the default table
func GroupPersonalStory(characterQuests CharacterQuests, order []string, quests []gw2.Quest, questToStory QuestToStoryMap, personalStoryIDs map[int]struct{}) []PersonalStoryPhaseProgress {
	return DefaultPhaseTable().Group(characterQuests, order, quests, questToStory, personalStoryIDs)
}

// Group keeps the quests whose story is in personalStoryIDs and buckets them
// by level. Phases come out ascending by level, quests ascending by id, and
// CompletedBy follows order (nil sorts by name).
func (t PhaseTable) Group(characterQuests CharacterQuests, order []string, quests []gw2.Quest, questToStory QuestToStoryMap, personalStoryIDs map[int]struct{}) []PersonalStoryPhaseProgress {
	isPersonal := func(questID int) bool {
		storyID, ok := questToStory[questID]
		if !ok {
			return false
		}
		_, ok = personalStoryIDs[storyID]
		return ok
	}

	if order == nil {
		order = sortedNames(characterQuests)
	}

	completedBy := make(map[int][]string)
	for _, name := range order {
		seen := make(map[int]struct{})
		for _, questID := range characterQuests[name] {
			if _, dup := seen[questID]; dup || !isPersonal(questID) {
				continue
			}
			seen[questID] = struct{}{}
			completedBy[questID] = append(completedBy[questID], name)
		}
	}

	byPhase := make(map[int]*PersonalStoryPhaseProgress)
	seenQuest := make(map[int]struct{})
	for _, q := range quests {
		if !isPersonal(q.ID) {
			continue
		}
		if _, dup := seenQuest[q.ID]; dup {
			continue
		}
		seenQuest[q.ID] = struct{}{}

		phase := t.PhaseForLevel(q.Level)
		p, ok := byPhase[phase.Level]
		if !ok {
			p = &PersonalStoryPhaseProgress{
				PhaseLevel: phase.Level,
				PhaseName:  t.PhaseName(phase.Level),
				Quests:     []PhaseQuest{},
			}
			byPhase[phase.Level] = p
		}

		who := completedBy[q.ID]
		if who == nil {
			who = []string{}
		}
		p.Quests = append(p.Quests, PhaseQuest{QuestID: q.ID, QuestName: q.Name, CompletedBy: who})
	}

	out := make([]PersonalStoryPhaseProgress, 0, len(byPhase))
	for _, p := range byPhase {
		sort.Slice(p.Quests, func(i, j int) bool { return p.Quests[i].QuestID < p.Quests[j].QuestID })
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PhaseLevel < out[j].PhaseLevel })
	return out
}

// PersonalStoryIDs returns the ids of stories in seasonID
func PersonalStoryIDs(catalogue *StoriesAndSeasons, seasonID string) map[int]struct{} {
	ids := make(map[int]struct{})
	if catalogue == nil {
		return ids
	}
	for _, s := range catalogue.Stories {
		if s.SeasonID == seasonID {
			ids[s.ID] = struct{}{}
		}
	}
	return ids
}

// CharacterQuestSource supplies completed quests per character and the
// character order to report them in
type CharacterQuestSource func(ctx context.Context) (CharacterQuests, []string, error)

// PhaseLoader builds the Personal Story phase view once and keeps it in
// memory until Reset. Concurrent loads share one build.
type PhaseLoader struct {
	svc      *Service
	source   CharacterQuestSource
	seasonID string
	table    PhaseTable
	logger   *zap.Logger

	mu       sync.Mutex
	phases   []PersonalStoryPhaseProgress
	storyIDs map[int]struct{}
	gen      uint64
	flights  singleflight.Group
}

// NewPhaseLoader creates a loader for the Personal Story in seasonID.
// An empty seasonID or table falls back to the defaults.
func NewPhaseLoader(svc *Service, source CharacterQuestSource, seasonID string, table PhaseTable) *PhaseLoader {
	if seasonID == "" {
		seasonID = PersonalStorySeasonID
	}
	if len(table) == 0 {
		table = DefaultPhaseTable()
	}
	return &PhaseLoader{
		svc:      svc,
		source:   source,
		seasonID: seasonID,
		table:    table,
		logger:   svc.logger,
	}
}

// Reset drops the loaded phases and story ids
func (l *PhaseLoader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.phases = nil
	l.storyIDs = nil
	l.gen++
}

// PersonalStoryIDs returns the story ids of the Personal Story season
func (l *PhaseLoader) PersonalStoryIDs(ctx context.Context) (map[int]struct{}, error) {
	l.mu.Lock()
	if l.storyIDs != nil {
		ids := l.storyIDs
		l.mu.Unlock()
		return ids, nil
	}
	gen := l.gen
	l.mu.Unlock()

	catalogue, err := l.svc.StoriesAndSeasons(ctx, false)
	if err != nil {
		return nil, err
	}
	ids := PersonalStoryIDs(catalogue, l.seasonID)

	l.mu.Lock()
	if l.gen == gen {
		l.storyIDs = ids
	}
	l.mu.Unlock()
	return ids, nil
}

// Load returns every phase, building them on first use
func (l *PhaseLoader) Load(ctx context.Context) ([]PersonalStoryPhaseProgress, error) {
	l.mu.Lock()
	if l.phases != nil {
		phases := l.phases
		l.mu.Unlock()
		return phases, nil
	}
	gen := l.gen
	l.mu.Unlock()

	phases, _, err := shareFlight(ctx, &l.flights, fmt.Sprintf("phases#%d", gen), func(ctx context.Context) ([]PersonalStoryPhaseProgress, error) {
		phases, err := l.build(ctx)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		if l.gen == gen {
			l.phases = phases
		}
		l.mu.Unlock()
		return phases, nil
	})
	if err != nil {
		return nil, err
	}
	return phases, nil
}

// Phase returns the phase starting at level, or nil when there is none
func (l *PhaseLoader) Phase(ctx context.Context, level int) (*PersonalStoryPhaseProgress, error) {
	phases, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range phases {
		if phases[i].PhaseLevel == level {
			p := phases[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (l *PhaseLoader) build(ctx context.Context) ([]PersonalStoryPhaseProgress, error) {
	storyIDs, err := l.PersonalStoryIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("personal story ids: %w", err)
	}

	questToStory, err := l.svc.QuestToStoryMap(ctx, false)
	if err != nil {
		return nil, err
	}

	ids, err := l.svc.QuestIDs(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("quest ids: %w", err)
	}
	quests, err := l.svc.QuestDetails(ctx, ids, false)
	if err != nil {
		return nil, fmt.Errorf("quest details: %w", err)
	}

	characterQuests, order, err := l.source(ctx)
	if err != nil {
		return nil, fmt.Errorf("character quests: %w", err)
	}

	phases := l.table.Group(characterQuests, order, quests, questToStory, storyIDs)
	l.logger.Debug("built personal story phases",
		zap.Int("phases", len(phases)),
		zap.Int("stories", len(storyIDs)))
	return phases, nil
}
