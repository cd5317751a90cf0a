package progress

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kengibson1111/go-gw2-story-progress/cache"
	"github.com/kengibson1111/go-gw2-story-progress/gw2"
	"github.com/kengibson1111/go-gw2-story-progress/internal"
)

// API is the subset of the GW2 client the pipeline depends on
type API interface {
	Characters(ctx context.Context, token string) ([]string, error)
	Character(ctx context.Context, token, name string) (*gw2.Character, error)
	CharacterQuests(ctx context.Context, token, name string) ([]int, error)
	Account(ctx context.Context, token string) (*gw2.Account, error)
	AccountAchievements(ctx context.Context, token string) ([]gw2.AccountAchievement, error)
	Achievements(ctx context.Context, ids []int) ([]gw2.Achievement, error)
	QuestIDs(ctx context.Context) ([]int, error)
	Quests(ctx context.Context, ids []int) ([]gw2.Quest, error)
	Stories(ctx context.Context) ([]gw2.Story, error)
	Seasons(ctx context.Context) ([]gw2.Season, error)
}

var _ API = (*gw2.Client)(nil)

// Progress steps reported through ProgressFunc
const (
	StepCharacters = "characters"
	StepQuests     = "quests"
)

// ProgressFunc is told after each item of a sequential per-character loop
type ProgressFunc func(step string, current, total int)

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithServiceLogger sets the logger
func WithServiceLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProgress registers a progress callback
func WithProgress(fn ProgressFunc) ServiceOption {
	return func(s *Service) {
		s.progress = fn
	}
}

// WithKeyGenerator replaces the cache key generator
func WithKeyGenerator(keys internal.KeyGenerator) ServiceOption {
	return func(s *Service) {
		if keys != nil {
			s.keys = keys
		}
	}
}

// Service runs the fetch, map and aggregate pipeline on top of a cache.
// Every external call goes through the cache; credential scoped data is
// keyed by a fingerprint of the token.
type Service struct {
	api      API
	cache    *cache.Cache
	keys     internal.KeyGenerator
	logger   *zap.Logger
	progress ProgressFunc
	flights  singleflight.Group
}

// NewService creates a Service; a nil cache means a private in-memory cache
func NewService(api API, c *cache.Cache, opts ...ServiceOption) *Service {
	if c == nil {
		c = cache.New(nil)
	}

	s := &Service{
		api:    api,
		cache:  c,
		keys:   internal.NewKeyGenerator(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache returns the cache backing the service
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// ForgetAccount drops every cached entry scoped to token. Catalogue entries stay.
func (s *Service) ForgetAccount(ctx context.Context, token string) error {
	if err := s.cache.InvalidatePrefix(ctx, s.keys.TokenPrefix(token)); err != nil {
		return fmt.Errorf("forget account: %w", err)
	}
	s.logger.Info("forgot cached account data", zap.String("fingerprint", internal.TokenFingerprint(token)))
	return nil
}

// cached serves key through the service cache after checking its format
func cached[T any](ctx context.Context, s *Service, key string, compute func(context.Context) (T, error), forceRefresh bool) (T, error) {
	if err := s.keys.ValidateKey(key); err != nil {
		var zero T
		return zero, internal.NewKeyInvalidError(key, err.Error())
	}
	return cache.Cached(ctx, s.cache, key, compute, forceRefresh)
}

// shareFlight runs fn once for all concurrent callers of key. The build is
// detached from the first caller's cancellation; each caller stops waiting
// when its own ctx is done and the build carries on for the others.
func shareFlight[T any](ctx context.Context, group *singleflight.Group, key string, fn func(context.Context) (T, error)) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}

	detached := context.WithoutCancel(ctx)
	ch := group.DoChan(key, func() (any, error) {
		return fn(detached)
	})

	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Shared, res.Err
		}
		return res.Val.(T), res.Shared, nil
	}
}

func (s *Service) report(step string, current, total int) {
	if s.progress != nil {
		s.progress(step, current, total)
	}
}

// Characters lists the account's character names
func (s *Service) Characters(ctx context.Context, token string, forceRefresh bool) ([]string, error) {
	return cached(ctx, s, s.keys.CharactersKey(token), func(ctx context.Context) ([]string, error) {
		return s.api.Characters(ctx, token)
	}, forceRefresh)
}

// CharacterDetails fetches the basic details of every character, one at a time
func (s *Service) CharacterDetails(ctx context.Context, token string, forceRefresh bool) ([]gw2.Character, error) {
	return cached(ctx, s, s.keys.CharacterDetailsKey(token), func(ctx context.Context) ([]gw2.Character, error) {
		names, err := s.Characters(ctx, token, forceRefresh)
		if err != nil {
			return nil, err
		}

		characters := make([]gw2.Character, 0, len(names))
		for i, name := range names {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			character, err := s.api.Character(ctx, token, name)
			if err != nil {
				return nil, fmt.Errorf("character %q: %w", name, err)
			}
			characters = append(characters, *character)
			s.report(StepCharacters, i+1, len(names))
		}
		return characters, nil
	}, forceRefresh)
}

// CharacterQuests lists the quests one character completed
func (s *Service) CharacterQuests(ctx context.Context, token, name string, forceRefresh bool) ([]int, error) {
	return cached(ctx, s, s.keys.CharacterQuestsKey(token, name), func(ctx context.Context) ([]int, error) {
		return s.api.CharacterQuests(ctx, token, name)
	}, forceRefresh)
}

// AllCharacterQuests fetches completed quests for every named character
// sequentially. Each character is cached individually and the aggregate is
// cached under its own key.
func (s *Service) AllCharacterQuests(ctx context.Context, token string, names []string, forceRefresh bool) (CharacterQuests, error) {
	return cached(ctx, s, s.keys.AllCharacterQuestsKey(token), func(ctx context.Context) (CharacterQuests, error) {
		out := make(CharacterQuests, len(names))
		for i, name := range names {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			ids, err := s.CharacterQuests(ctx, token, name, forceRefresh)
			if err != nil {
				return nil, fmt.Errorf("quests for %q: %w", name, err)
			}
			out[name] = ids
			s.report(StepQuests, i+1, len(names))
		}
		return out, nil
	}, forceRefresh)
}

// AccountAchievements fetches the account's achievement progress
func (s *Service) AccountAchievements(ctx context.Context, token string, forceRefresh bool) ([]gw2.AccountAchievement, error) {
	return cached(ctx, s, s.keys.AccountAchievementsKey(token), func(ctx context.Context) ([]gw2.AccountAchievement, error) {
		return s.api.AccountAchievements(ctx, token)
	}, forceRefresh)
}

// Account fetches the account summary
func (s *Service) Account(ctx context.Context, token string, forceRefresh bool) (*gw2.Account, error) {
	return cached(ctx, s, s.keys.AccountKey(token), func(ctx context.Context) (*gw2.Account, error) {
		return s.api.Account(ctx, token)
	}, forceRefresh)
}

// AchievementProgress joins achievement definitions for ids with the account's
// progress on them, in the order of ids. Ids the API does not know are left out.
func (s *Service) AchievementProgress(ctx context.Context, token string, ids []int, forceRefresh bool) ([]AchievementStatus, error) {
	if len(ids) == 0 {
		return []AchievementStatus{}, nil
	}

	defs, err := cached(ctx, s, s.keys.AchievementsKey(ids), func(ctx context.Context) ([]gw2.Achievement, error) {
		return s.api.Achievements(ctx, ids)
	}, forceRefresh)
	if err != nil {
		return nil, fmt.Errorf("achievements: %w", err)
	}

	progress, err := s.AccountAchievements(ctx, token, forceRefresh)
	if err != nil {
		return nil, fmt.Errorf("account achievements: %w", err)
	}

	return BuildAchievementStatus(ids, defs, progress), nil
}

// QuestIDs lists the whole quest catalogue
func (s *Service) QuestIDs(ctx context.Context, forceRefresh bool) ([]int, error) {
	return cached(ctx, s, s.keys.QuestIDsKey(), s.api.QuestIDs, forceRefresh)
}

// QuestDetails fetches quest records for ids. The result may be partial when
// a batch failed upstream.
func (s *Service) QuestDetails(ctx context.Context, ids []int, forceRefresh bool) ([]gw2.Quest, error) {
	if len(ids) == 0 {
		return []gw2.Quest{}, nil
	}

	return cached(ctx, s, s.keys.QuestDetailsKey(ids), func(ctx context.Context) ([]gw2.Quest, error) {
		return s.api.Quests(ctx, ids)
	}, forceRefresh)
}

// QuestToStoryMap builds the account independent quest to story table.
// Concurrent callers share a single build; a forced refresh runs as its own
// flight so it never piggybacks on a cached read.
func (s *Service) QuestToStoryMap(ctx context.Context, forceRefresh bool) (QuestToStoryMap, error) {
	key := s.keys.QuestToStoryMapKey()
	flight := key
	if forceRefresh {
		flight += "#refresh"
	}

	m, shared, err := shareFlight(ctx, &s.flights, flight, func(ctx context.Context) (QuestToStoryMap, error) {
		return cached(ctx, s, key, func(ctx context.Context) (QuestToStoryMap, error) {
			ids, err := s.QuestIDs(ctx, forceRefresh)
			if err != nil {
				return nil, fmt.Errorf("quest ids: %w", err)
			}

			quests, err := s.QuestDetails(ctx, ids, forceRefresh)
			if err != nil {
				return nil, fmt.Errorf("quest details: %w", err)
			}

			m := BuildQuestToStoryMap(quests)
			s.logger.Info("built quest to story map",
				zap.Int("quests", len(quests)),
				zap.Int("mapped", len(m)))
			return m, nil
		}, forceRefresh)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("joined in-flight quest to story map build")
	}
	return m, nil
}

// StoriesAndSeasons fetches the story and season catalogues concurrently.
// Either failure fails the whole call.
func (s *Service) StoriesAndSeasons(ctx context.Context, forceRefresh bool) (*StoriesAndSeasons, error) {
	return cached(ctx, s, s.keys.StoriesAndSeasonsKey(), func(ctx context.Context) (*StoriesAndSeasons, error) {
		var out StoriesAndSeasons

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			stories, err := s.api.Stories(gctx)
			if err != nil {
				return fmt.Errorf("stories: %w", err)
			}
			out.Stories = stories
			return nil
		})
		g.Go(func() error {
			seasons, err := s.api.Seasons(gctx)
			if err != nil {
				return fmt.Errorf("seasons: %w", err)
			}
			out.Seasons = seasons
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		if out.Stories == nil {
			out.Stories = []gw2.Story{}
		}
		if out.Seasons == nil {
			out.Seasons = []gw2.Season{}
		}
		return &out, nil
	}, forceRefresh)
}

// StoryCompletionMatrix computes completed stories for every character of the account
func (s *Service) StoryCompletionMatrix(ctx context.Context, token string, forceRefresh bool) ([]CharacterStoryProgress, error) {
	names, err := s.Characters(ctx, token, forceRefresh)
	if err != nil {
		return nil, err
	}

	questToStory, err := s.QuestToStoryMap(ctx, forceRefresh)
	if err != nil {
		return nil, err
	}

	characterQuests, err := s.AllCharacterQuests(ctx, token, names, forceRefresh)
	if err != nil {
		return nil, err
	}

	return BuildCharacterProgress(characterQuests, names, questToStory), nil
}

// MapStoryProgress joins the story catalogue with per-character completions.
// order fixes the order of CompletedBy; nil sorts by name.
func (s *Service) MapStoryProgress(ctx context.Context, characterQuests CharacterQuests, order []string, forceRefresh bool) ([]StoryProgress, error) {
	catalogue, err := s.StoriesAndSeasons(ctx, forceRefresh)
	if err != nil {
		return nil, err
	}

	questToStory, err := s.QuestToStoryMap(ctx, forceRefresh)
	if err != nil {
		return nil, err
	}

	characterProgress := BuildCharacterProgress(characterQuests, order, questToStory)
	return BuildStoryProgress(catalogue.Stories, characterProgress), nil
}
