package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kengibson1111/go-gw2-story-progress/cache"
	"github.com/kengibson1111/go-gw2-story-progress/gw2"
	"github.com/kengibson1111/go-gw2-story-progress/internal"
)

func TestService_QuestToStoryMap(t *testing.T) {
	api := scenarioAPI()
	svc := NewService(api, nil)
	ctx := context.Background()

	m, err := svc.QuestToStoryMap(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, QuestToStoryMap{1: 100, 2: 100, 3: 200, 4: 200}, m)

	again, err := svc.QuestToStoryMap(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, m, again)
	assert.Equal(t, 1, api.count("questIDs"))
	assert.Equal(t, 1, api.count("quests"))
}

func TestService_QuestToStoryMapForceRefresh(t *testing.T) {
	api := scenarioAPI()
	svc := NewService(api, nil)
	ctx := context.Background()

	_, err := svc.QuestToStoryMap(ctx, false)
	require.NoError(t, err)

	api.quests = append(api.quests, gw2.Quest{ID: 6, Story: intPtr(300)})
	m, err := svc.QuestToStoryMap(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 300, m[6])
	assert.Equal(t, 2, api.count("questIDs"))
}

func TestService_QuestToStoryMapCoalescesConcurrentBuilds(t *testing.T) {
	api := scenarioAPI()
	api.questsGate = make(chan struct{})
	svc := NewService(api, nil)
	ctx := context.Background()

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	maps := make([]QuestToStoryMap, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			maps[i], errs[i] = svc.QuestToStoryMap(ctx, false)
		}(i)
	}

	// let the callers pile up behind the blocked build
	time.Sleep(20 * time.Millisecond)
	close(api.questsGate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Len(t, maps[i], 4)
	}
	assert.Equal(t, 1, api.count("quests"))
}

func TestService_QuestToStoryMapCancelledCallerLeavesOthersRunning(t *testing.T) {
	api := scenarioAPI()
	api.questsGate = make(chan struct{})
	svc := NewService(api, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.QuestToStoryMap(ctx, false)
		firstErr <- err
	}()

	// the first caller owns the build once the id list is fetched
	require.Eventually(t, func() bool { return api.count("questIDs") == 1 }, time.Second, time.Millisecond)

	type result struct {
		m   QuestToStoryMap
		err error
	}
	second := make(chan result, 1)
	go func() {
		m, err := svc.QuestToStoryMap(context.Background(), false)
		second <- result{m, err}
	}()

	cancel()
	select {
	case err := <-firstErr:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting on the shared build")
	}

	close(api.questsGate)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, QuestToStoryMap{1: 100, 2: 100, 3: 200, 4: 200}, got.m)
	assert.Equal(t, 1, api.count("quests"))

	// the build finished for the remaining caller and was cached
	_, ok := svc.Cache().Lookup(context.Background(), "/gw2/quests/story-map")
	assert.True(t, ok)
}

func TestService_QuestToStoryMapCancelledBeforeStart(t *testing.T) {
	api := scenarioAPI()
	svc := NewService(api, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.QuestToStoryMap(ctx, false)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, api.count("questIDs"))
}

func TestService_QuestToStoryMapFailure(t *testing.T) {
	api := scenarioAPI()
	api.setErr("questIDs", internal.NewFetchFailedError("/quests", 503, nil))
	svc := NewService(api, nil)

	_, err := svc.QuestToStoryMap(context.Background(), false)
	require.Error(t, err)
	assert.True(t, gw2.IsFetchFailedError(err))
}

func TestService_StoriesAndSeasons(t *testing.T) {
	api := scenarioAPI()
	svc := NewService(api, nil)
	ctx := context.Background()

	catalogue, err := svc.StoriesAndSeasons(ctx, false)
	require.NoError(t, err)
	assert.Len(t, catalogue.Stories, 3)
	assert.Len(t, catalogue.Seasons, 2)

	cached, err := svc.StoriesAndSeasons(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, catalogue, cached)
	assert.Equal(t, 1, api.count("stories"))
	assert.Equal(t, 1, api.count("seasons"))
}

func TestService_StoriesAndSeasonsEitherFailureFails(t *testing.T) {
	for _, endpoint := range []string{"stories", "seasons"} {
		t.Run(endpoint, func(t *testing.T) {
			api := scenarioAPI()
			api.setErr(endpoint, errors.New("boom"))
			svc := NewService(api, nil)

			_, err := svc.StoriesAndSeasons(context.Background(), false)
			require.Error(t, err)
			assert.Contains(t, err.Error(), endpoint)
		})
	}
}

func TestService_StoriesAndSeasonsEmptyCatalogue(t *testing.T) {
	svc := NewService(newFakeAPI(), nil)

	catalogue, err := svc.StoriesAndSeasons(context.Background(), false)
	require.NoError(t, err)
	assert.NotNil(t, catalogue.Stories)
	assert.NotNil(t, catalogue.Seasons)
}

func TestService_CharacterDetailsReportsProgress(t *testing.T) {
	api := scenarioAPI()
	var steps []string
	svc := NewService(api, nil, WithProgress(func(step string, current, total int) {
		steps = append(steps, step)
		assert.Equal(t, 2, total)
	}))

	characters, err := svc.CharacterDetails(context.Background(), testToken, false)
	require.NoError(t, err)
	require.Len(t, characters, 2)
	assert.Equal(t, "Zoja", characters[0].Name)
	assert.Equal(t, "Aerin", characters[1].Name)
	assert.Equal(t, []string{StepCharacters, StepCharacters}, steps)
}

func TestService_CharacterDetailsStopsOnCancel(t *testing.T) {
	api := scenarioAPI()
	ctx, cancel := context.WithCancel(context.Background())
	svc := NewService(api, nil, WithProgress(func(step string, current, total int) {
		cancel()
	}))

	_, err := svc.CharacterDetails(ctx, testToken, false)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, api.count("character"))
}

func TestService_AllCharacterQuests(t *testing.T) {
	api := scenarioAPI()
	var progress []int
	svc := NewService(api, nil, WithProgress(func(step string, current, total int) {
		assert.Equal(t, StepQuests, step)
		progress = append(progress, current)
	}))
	ctx := context.Background()

	got, err := svc.AllCharacterQuests(ctx, testToken, []string{"Zoja", "Aerin"}, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2}, got["Zoja"])
	assert.ElementsMatch(t, []int{1, 5}, got["Aerin"])
	assert.Equal(t, []int{1, 2}, progress)

	// a single character is served from its own entry
	one, err := svc.CharacterQuests(ctx, testToken, "Zoja", false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2}, one)
	assert.Equal(t, 1, api.count("quests:Zoja"))
}

func TestService_AllCharacterQuestsFailureKeepsCache(t *testing.T) {
	api := scenarioAPI()
	svc := NewService(api, nil)
	ctx := context.Background()

	first, err := svc.AllCharacterQuests(ctx, testToken, []string{"Zoja", "Aerin"}, false)
	require.NoError(t, err)

	api.setErr("quests:Aerin", internal.NewFetchFailedError("/characters/Aerin/quests", 500, nil))
	_, err = svc.AllCharacterQuests(ctx, testToken, []string{"Zoja", "Aerin"}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `quests for "Aerin"`)

	again, err := svc.AllCharacterQuests(ctx, testToken, []string{"Zoja", "Aerin"}, false)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestService_CredentialScopedKeys(t *testing.T) {
	api := scenarioAPI()
	svc := NewService(api, nil)
	ctx := context.Background()

	_, err := svc.Characters(ctx, testToken, false)
	require.NoError(t, err)
	_, err = svc.Characters(ctx, "ANOTHER-TOKEN-0000", false)
	require.NoError(t, err)
	assert.Equal(t, 2, api.count("characters"))
}

func TestService_ForgetAccount(t *testing.T) {
	api := scenarioAPI()
	svc := NewService(api, nil)
	ctx := context.Background()
	other := "ANOTHER-TOKEN-0000"

	_, err := svc.StoryCompletionMatrix(ctx, testToken, false)
	require.NoError(t, err)
	_, err = svc.Characters(ctx, other, false)
	require.NoError(t, err)

	require.NoError(t, svc.ForgetAccount(ctx, testToken))

	_, err = svc.StoryCompletionMatrix(ctx, testToken, false)
	require.NoError(t, err)
	_, err = svc.Characters(ctx, other, false)
	require.NoError(t, err)

	// only the forgotten account is fetched again
	assert.Equal(t, 3, api.count("characters"))
	assert.Equal(t, 2, api.count("quests:Zoja"))
	assert.Equal(t, 1, api.count("questIDs"))
}

// brokenKeys produces a token key with an empty fingerprint segment
type brokenKeys struct {
	internal.KeyGenerator
}

func (brokenKeys) CharactersKey(token string) string {
	return "/gw2/tokens//characters"
}

func TestService_RejectsMalformedCacheKey(t *testing.T) {
	api := scenarioAPI()
	svc := NewService(api, nil, WithKeyGenerator(brokenKeys{internal.NewKeyGenerator()}))

	_, err := svc.Characters(context.Background(), testToken, false)
	require.Error(t, err)
	assert.True(t, cache.IsKeyInvalidError(err))
	assert.Equal(t, 0, api.count("characters"))

	// well formed keys from the same generator still work
	ids, err := svc.QuestIDs(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, ids, 5)
}

func TestService_AccountAchievements(t *testing.T) {
	api := scenarioAPI()
	api.achievements = []gw2.AccountAchievement{{ID: 1, Done: true}}
	svc := NewService(api, nil)

	got, err := svc.AccountAchievements(context.Background(), testToken, false)
	require.NoError(t, err)
	assert.True(t, IsAchievementCompleted(got, 1))
}

func TestService_Account(t *testing.T) {
	api := scenarioAPI()
	api.account = &gw2.Account{ID: "acct-1", Name: "Zoja.1234", World: 2003, Access: []string{"GuildWars2", "HeartOfThorns"}}
	svc := NewService(api, nil)
	ctx := context.Background()

	got, err := svc.Account(ctx, testToken, false)
	require.NoError(t, err)
	assert.Equal(t, "Zoja.1234", got.Name)

	_, err = svc.Account(ctx, testToken, false)
	require.NoError(t, err)
	assert.Equal(t, 1, api.count("account"))

	// a forced refresh failure leaves the cached summary in place
	api.setErr("account", internal.NewFetchFailedError("/account", 502, nil))
	_, err = svc.Account(ctx, testToken, true)
	require.Error(t, err)
	cachedAccount, err := svc.Account(ctx, testToken, false)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", cachedAccount.ID)
}

func TestService_AchievementProgress(t *testing.T) {
	api := scenarioAPI()
	api.definitions = []gw2.Achievement{{ID: 1, Name: "Story Journal"}, {ID: 2, Name: "Seasoned"}}
	api.achievements = []gw2.AccountAchievement{
		{ID: 1, Done: true},
		{ID: 2, Current: intPtr(3), Max: intPtr(8)},
	}
	svc := NewService(api, nil)
	ctx := context.Background()

	got, err := svc.AchievementProgress(ctx, testToken, []int{2, 1}, false)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Seasoned", got[0].Achievement.Name)
	assert.False(t, got[0].Completed)
	assert.Equal(t, 3, got[0].Current)
	assert.Equal(t, 8, got[0].Max)
	assert.True(t, got[1].Completed)

	_, err = svc.AchievementProgress(ctx, testToken, []int{2, 1}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, api.count("achievementDefs"))
	assert.Equal(t, 1, api.count("achievements"))

	empty, err := svc.AchievementProgress(ctx, testToken, nil, false)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, 1, api.count("achievementDefs"))
}

func TestService_AchievementProgressFailure(t *testing.T) {
	api := scenarioAPI()
	api.setErr("achievementDefs", internal.NewFetchFailedError("/achievements", 500, nil))
	svc := NewService(api, nil)

	_, err := svc.AchievementProgress(context.Background(), testToken, []int{1}, false)
	require.Error(t, err)
	assert.True(t, gw2.IsFetchFailedError(err))
	assert.Contains(t, err.Error(), "achievements:")
}

func TestService_QuestDetailsEmpty(t *testing.T) {
	api := scenarioAPI()
	svc := NewService(api, nil)

	got, err := svc.QuestDetails(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, api.count("quests"))
}

func TestService_StoryCompletionMatrix(t *testing.T) {
	svc := NewService(scenarioAPI(), nil)

	matrix, err := svc.StoryCompletionMatrix(context.Background(), testToken, false)
	require.NoError(t, err)
	require.Len(t, matrix, 2)
	assert.Equal(t, "Zoja", matrix[0].Character)
	assert.Equal(t, []int{100}, matrix[0].StoryIDs())
	assert.Equal(t, "Aerin", matrix[1].Character)
	assert.Equal(t, []int{100}, matrix[1].StoryIDs())
}

func TestService_MapStoryProgress(t *testing.T) {
	svc := NewService(scenarioAPI(), nil)

	got, err := svc.MapStoryProgress(context.Background(), CharacterQuests{"A": {3}, "B": {1, 3}}, nil, false)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"B"}, got[0].CompletedBy)
	assert.Equal(t, []string{"A", "B"}, got[1].CompletedBy)
	assert.Empty(t, got[2].CompletedBy)
}

func TestService_SharedCacheExpiry(t *testing.T) {
	api := scenarioAPI()
	now := time.Unix(1_700_000_000, 0)
	c := cache.New(nil, cache.WithClock(func() time.Time { return now }))
	svc := NewService(api, c)
	ctx := context.Background()

	_, err := svc.Characters(ctx, testToken, false)
	require.NoError(t, err)

	now = now.Add(cache.DefaultTTL)
	_, err = svc.Characters(ctx, testToken, false)
	require.NoError(t, err)
	assert.Equal(t, 1, api.count("characters"))

	now = now.Add(time.Millisecond)
	_, err = svc.Characters(ctx, testToken, false)
	require.NoError(t, err)
	assert.Equal(t, 2, api.count("characters"))
}
