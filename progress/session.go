package progress

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kengibson1111/go-gw2-story-progress/internal"
)

// Overview is the account wide story progress produced by one pipeline run
type Overview struct {
	SessionID         string                   `json:"sessionId"`
	Characters        []string                 `json:"characters"`
	CharacterProgress []CharacterStoryProgress `json:"-"`
	Stories           []StoryProgress          `json:"stories"`
	Statuses          map[int]StatusInfo       `json:"statuses"`
	Seasons           []SeasonProgress         `json:"seasons"`
}

// Session binds one access token to a Service and owns the in-memory
// Personal Story view for that account
type Session struct {
	id     string
	token  string
	svc    *Service
	rules  *StatusRules
	loader *PhaseLoader
	logger *zap.Logger
}

// NewSession creates a session for token. Nil rules use DefaultRules.
func NewSession(svc *Service, token string, rules *StatusRules) (*Session, error) {
	token, err := internal.NewInputValidator().ValidateToken(token)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = DefaultRules()
	}
	if err := rules.Validate(); err != nil {
		return nil, internal.NewValidationError("invalid status rules", err)
	}

	s := &Session{
		id:    uuid.NewString(),
		token: token,
		svc:   svc,
		rules: rules,
	}
	s.logger = svc.logger.With(zap.String("session", s.id))
	s.loader = NewPhaseLoader(svc, s.characterQuests, rules.PersonalStorySeasonID, rules.Phases)
	s.loader.logger = s.logger
	return s, nil
}

// ID returns the session identifier used in log fields
func (s *Session) ID() string {
	return s.id
}

// Rules returns the rules the session classifies with
func (s *Session) Rules() *StatusRules {
	return s.rules
}

func (s *Session) characterQuests(ctx context.Context) (CharacterQuests, []string, error) {
	names, err := s.svc.Characters(ctx, s.token, false)
	if err != nil {
		return nil, nil, err
	}
	quests, err := s.svc.AllCharacterQuests(ctx, s.token, names, false)
	if err != nil {
		return nil, nil, err
	}
	return quests, names, nil
}

// Overview runs the full pipeline: characters, quest map, per-character
// completions, catalogue, then story, status and season views
func (s *Session) Overview(ctx context.Context, forceRefresh bool) (*Overview, error) {
	if err := internal.NewInputValidator().ValidateContext(ctx); err != nil {
		return nil, err
	}

	names, err := s.svc.Characters(ctx, s.token, forceRefresh)
	if err != nil {
		return nil, fmt.Errorf("characters: %w", err)
	}

	questToStory, err := s.svc.QuestToStoryMap(ctx, forceRefresh)
	if err != nil {
		return nil, fmt.Errorf("quest to story map: %w", err)
	}

	characterQuests, err := s.svc.AllCharacterQuests(ctx, s.token, names, forceRefresh)
	if err != nil {
		return nil, fmt.Errorf("character quests: %w", err)
	}

	catalogue, err := s.svc.StoriesAndSeasons(ctx, forceRefresh)
	if err != nil {
		return nil, fmt.Errorf("stories and seasons: %w", err)
	}

	characterProgress := BuildCharacterProgress(characterQuests, names, questToStory)
	stories := BuildStoryProgress(catalogue.Stories, characterProgress)
	classifier := NewClassifier(s.rules, StoryToQuests(questToStory))

	overview := &Overview{
		SessionID:         s.id,
		Characters:        names,
		CharacterProgress: characterProgress,
		Stories:           stories,
		Statuses:          classifier.ClassifyAll(stories),
		Seasons:           BuildSeasonProgress(catalogue.Seasons, stories),
	}

	s.logger.Info("story overview ready",
		zap.Int("characters", len(names)),
		zap.Int("stories", len(stories)),
		zap.Int("seasons", len(overview.Seasons)))
	return overview, nil
}

// PersonalStory returns every Personal Story phase
func (s *Session) PersonalStory(ctx context.Context) ([]PersonalStoryPhaseProgress, error) {
	return s.loader.Load(ctx)
}

// PersonalStoryPhase returns the phase starting at level, or nil
func (s *Session) PersonalStoryPhase(ctx context.Context, level int) (*PersonalStoryPhaseProgress, error) {
	return s.loader.Phase(ctx, level)
}

// Refresh drops the in-memory Personal Story view and reruns the pipeline
// bypassing the cache
func (s *Session) Refresh(ctx context.Context) (*Overview, error) {
	s.loader.Reset()
	return s.Overview(ctx, true)
}
