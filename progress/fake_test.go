package progress

import (
	"context"
	"sync"

	"github.com/kengibson1111/go-gw2-story-progress/gw2"
	"github.com/kengibson1111/go-gw2-story-progress/internal"
)

const testToken = "ABCDEF01-2345-6789-ABCD-EF0123456789ABCDEF01-2345-6789-ABCD-EF0123456789"

func intPtr(v int) *int { return &v }

// fakeAPI is an in-memory API that counts calls per endpoint
type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int

	characters      []string
	details         map[string]gw2.Character
	characterQuests map[string][]int
	account         *gw2.Account
	achievements    []gw2.AccountAchievement
	definitions     []gw2.Achievement
	quests          []gw2.Quest
	stories         []gw2.Story
	seasons         []gw2.Season

	errs map[string]error

	// questsGate, when set, blocks Quests until closed
	questsGate chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		calls:           make(map[string]int),
		details:         make(map[string]gw2.Character),
		characterQuests: make(map[string][]int),
		errs:            make(map[string]error),
	}
}

// scenarioAPI is an account with two characters, five quests and three
// stories: story 100 is backed by quests both characters finished, story
// 200 has quests nobody finished and story 300 has no quests at all
func scenarioAPI() *fakeAPI {
	f := newFakeAPI()
	f.characters = []string{"Zoja", "Aerin"}
	f.details["Zoja"] = gw2.Character{Name: "Zoja", Race: "Norn", Profession: "Guardian", Level: 80}
	f.details["Aerin"] = gw2.Character{Name: "Aerin", Race: "Sylvari", Profession: "Ranger", Level: 42}
	f.characterQuests["Zoja"] = []int{2, 1}
	f.characterQuests["Aerin"] = []int{1, 5}
	f.quests = []gw2.Quest{
		{ID: 1, Name: "Shadow of the Dragon", Level: 1, Story: intPtr(100)},
		{ID: 2, Name: "The Hunt", Level: 15, Story: intPtr(100)},
		{ID: 3, Name: "Unknown Waters", Level: 20, Story: intPtr(200)},
		{ID: 4, Name: "Storm Front", Level: 30, Story: intPtr(200)},
		{ID: 5, Name: "Hearth and Home", Level: 5},
	}
	f.stories = []gw2.Story{
		{ID: 100, Name: "My Story", SeasonID: PersonalStorySeasonID, Order: 0, Level: 1},
		{ID: 200, Name: "Further Story", SeasonID: PersonalStorySeasonID, Order: 1, Level: 20},
		{ID: 300, Name: "Upcoming Story", SeasonID: VisionsOfEternitySeasonID, Order: 0, Level: 80},
	}
	f.seasons = []gw2.Season{
		{ID: VisionsOfEternitySeasonID, Name: "Visions of Eternity", Order: 90, Stories: []int{300}},
		{ID: PersonalStorySeasonID, Name: "My Story", Order: 0, Stories: []int{100, 200}},
	}
	return f
}

func (f *fakeAPI) record(endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[endpoint]++
	return f.errs[endpoint]
}

func (f *fakeAPI) setErr(endpoint string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[endpoint] = err
}

func (f *fakeAPI) count(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

func (f *fakeAPI) Characters(ctx context.Context, token string) ([]string, error) {
	if err := f.record("characters"); err != nil {
		return nil, err
	}
	return append([]string(nil), f.characters...), nil
}

func (f *fakeAPI) Character(ctx context.Context, token, name string) (*gw2.Character, error) {
	if err := f.record("character"); err != nil {
		return nil, err
	}
	c, ok := f.details[name]
	if !ok {
		return nil, internal.NewNotFoundError(name)
	}
	return &c, nil
}

func (f *fakeAPI) CharacterQuests(ctx context.Context, token, name string) ([]int, error) {
	if err := f.record("quests:" + name); err != nil {
		return nil, err
	}
	ids, ok := f.characterQuests[name]
	if !ok {
		return []int{}, nil
	}
	return append([]int(nil), ids...), nil
}

func (f *fakeAPI) AccountAchievements(ctx context.Context, token string) ([]gw2.AccountAchievement, error) {
	if err := f.record("achievements"); err != nil {
		return nil, err
	}
	return f.achievements, nil
}

func (f *fakeAPI) Account(ctx context.Context, token string) (*gw2.Account, error) {
	if err := f.record("account"); err != nil {
		return nil, err
	}
	if f.account == nil {
		return nil, internal.NewNotFoundError("/account")
	}
	a := *f.account
	return &a, nil
}

func (f *fakeAPI) Achievements(ctx context.Context, ids []int) ([]gw2.Achievement, error) {
	if err := f.record("achievementDefs"); err != nil {
		return nil, err
	}
	want := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []gw2.Achievement
	for _, a := range f.definitions {
		if _, ok := want[a.ID]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAPI) QuestIDs(ctx context.Context) ([]int, error) {
	if err := f.record("questIDs"); err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(f.quests))
	for _, q := range f.quests {
		ids = append(ids, q.ID)
	}
	return ids, nil
}

func (f *fakeAPI) Quests(ctx context.Context, ids []int) ([]gw2.Quest, error) {
	if f.questsGate != nil {
		select {
		case <-f.questsGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.record("quests"); err != nil {
		return nil, err
	}

	want := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []gw2.Quest
	for _, q := range f.quests {
		if _, ok := want[q.ID]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeAPI) Stories(ctx context.Context) ([]gw2.Story, error) {
	if err := f.record("stories"); err != nil {
		return nil, err
	}
	return f.stories, nil
}

func (f *fakeAPI) Seasons(ctx context.Context) ([]gw2.Season, error) {
	if err := f.record("seasons"); err != nil {
		return nil, err
	}
	return f.seasons, nil
}
