package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kengibson1111/go-gw2-story-progress/cache"
	"github.com/kengibson1111/go-gw2-story-progress/progress"
)

// validateCmd checks the API key
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the API key is accepted",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := credentials()
		if err != nil {
			return err
		}

		ctx, cancel := operationContext(cmd)
		defer cancel()

		info, ok := newClient().ValidateToken(ctx, token)
		if !ok {
			return fmt.Errorf("API key rejected")
		}
		renderTokenInfo(cmd.OutOrStdout(), info)
		return nil
	},
}

// accountCmd shows the account summary and, given ids, achievement progress
var accountCmd = &cobra.Command{
	Use:   "account [achievement-id...]",
	Short: "Show the account summary and progress on the given achievements",
	Long: `Without arguments only the account summary is shown. Achievement ids add
one line per achievement with the account's progress, for example:

  gw2progress account 4 9`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]int, 0, len(args))
		for _, arg := range args {
			id, err := strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("invalid achievement id %q: %w", arg, err)
			}
			ids = append(ids, id)
		}

		token, err := credentials()
		if err != nil {
			return err
		}

		ctx, cancel := operationContext(cmd)
		defer cancel()

		svc := newService(newClient())
		account, err := svc.Account(ctx, token, forceRefresh)
		if err != nil {
			return err
		}
		renderAccount(cmd.OutOrStdout(), account)

		if len(ids) == 0 {
			return nil
		}
		statuses, err := svc.AchievementProgress(ctx, token, ids, forceRefresh)
		if err != nil {
			return err
		}
		renderAchievements(cmd.OutOrStdout(), statuses)
		return nil
	},
}

// charactersCmd lists the account's characters
var charactersCmd = &cobra.Command{
	Use:   "characters",
	Short: "List characters with race, profession and level",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := credentials()
		if err != nil {
			return err
		}

		ctx, cancel := operationContext(cmd)
		defer cancel()

		characters, err := newService(newClient()).CharacterDetails(ctx, token, forceRefresh)
		if err != nil {
			return err
		}
		renderCharacters(cmd.OutOrStdout(), characters)
		return nil
	},
}

// storiesCmd shows per story completion and status
var storiesCmd = &cobra.Command{
	Use:   "stories",
	Short: "Show every story with its status and the characters that completed it",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession()
		if err != nil {
			return err
		}

		ctx, cancel := operationContext(cmd)
		defer cancel()

		overview, err := session.Overview(ctx, forceRefresh)
		if err != nil {
			return err
		}
		renderStories(cmd.OutOrStdout(), overview)
		return nil
	},
}

// seasonsCmd summarizes completion per season
var seasonsCmd = &cobra.Command{
	Use:   "seasons",
	Short: "Summarize story completion per season",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession()
		if err != nil {
			return err
		}

		ctx, cancel := operationContext(cmd)
		defer cancel()

		overview, err := session.Overview(ctx, forceRefresh)
		if err != nil {
			return err
		}
		renderSeasons(cmd.OutOrStdout(), overview.Seasons)
		return nil
	},
}

// phasesCmd shows Personal Story progress by phase
var phasesCmd = &cobra.Command{
	Use:   "phases [level]",
	Short: "Show Personal Story quests grouped into level phases",
	Long: `Without an argument every phase is shown. With a level, only the phase
starting at that level is shown, for example:

  gw2progress phases 30`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession()
		if err != nil {
			return err
		}

		ctx, cancel := operationContext(cmd)
		defer cancel()

		if forceRefresh {
			if _, err := session.Refresh(ctx); err != nil {
				return err
			}
		}

		if len(args) == 0 {
			phases, err := session.PersonalStory(ctx)
			if err != nil {
				return err
			}
			renderPhases(cmd.OutOrStdout(), phases)
			return nil
		}

		level, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid phase level %q: %w", args[0], err)
		}
		phase, err := session.PersonalStoryPhase(ctx, level)
		if err != nil {
			return err
		}
		if phase == nil {
			return fmt.Errorf("no Personal Story phase starts at level %d", level)
		}
		renderPhases(cmd.OutOrStdout(), []progress.PersonalStoryPhaseProgress{*phase})
		return nil
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached API responses",
}

// cacheClearCmd drops every cached entry
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached API response",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := operationContext(cmd)
		defer cancel()

		if err := cache.New(store, cache.WithLogger(logger)).InvalidateAll(ctx); err != nil {
			return err
		}
		logger.Info("cache cleared", zap.String("backend", config.CacheBackend))
		fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
		return nil
	},
}

// cacheForgetCmd drops the cached entries of the configured account only
var cacheForgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Remove cached responses for the current API key, keeping the quest and story catalogues",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := credentials()
		if err != nil {
			return err
		}

		ctx, cancel := operationContext(cmd)
		defer cancel()

		if err := newService(newClient()).ForgetAccount(ctx, token); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "account cache cleared")
		return nil
	},
}

// cacheHealthCmd checks the configured cache backend
var cacheHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the cache backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := operationContext(cmd)
		defer cancel()

		start := time.Now()
		if err := cache.New(store, cache.WithLogger(logger)).Health(ctx); err != nil {
			if cache.IsConnectionError(err) {
				return fmt.Errorf("%s cache backend unreachable: %w", config.CacheBackend, err)
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s cache backend healthy (%v)\n", config.CacheBackend, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
