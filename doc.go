// Package storyprogress derives Guild Wars 2 story and season completion from
// the quests each character on an account has finished.
//
// The module is split into a few packages:
//   - gw2: rate-limited, batched client for the public API at https://api.guildwars2.com/v2
//   - cache: time-to-live cache of API results with a pluggable byte store
//   - progress: the quest to story mapper, story and season aggregation, Personal Story
//     phase grouping, status classification and per-account sessions
//   - cmd/gw2progress: command line front end
//
// # Architecture
//
// Data flows leaves first:
//
//	gw2.Client -> progress.Service.QuestToStoryMap -> aggregation -> {phases, statuses}
//
// Every stage that calls the API goes through cache.Cached. Entries live for one
// hour and are stored under keys of the form:
//   - Account scoped: /gw2/tokens/<fingerprint>/characters[/<name>/quests]
//   - Catalogue: /gw2/quests/ids, /gw2/quests/story-map, /gw2/stories/all
//
// The fingerprint is a hash of the API key; the key itself never reaches the store.
//
// # Basic Usage
//
// Build the full overview for one account:
//
//	client := gw2.NewClient()
//	svc := progress.NewService(client, cache.New(nil))
//
//	session, err := progress.NewSession(svc, apiKey, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	overview, err := session.Overview(ctx, false)
//	if err != nil {
//	    if gw2.IsInvalidCredentialError(err) {
//	        log.Fatal("API key rejected")
//	    }
//	    log.Fatal(err)
//	}
//
//	for _, story := range overview.Stories {
//	    status := overview.Statuses[story.Story.ID]
//	    fmt.Println(story.Story.Name, status.Label, story.CompletedBy)
//	}
//
// # Cache Stores
//
// cache.New accepts any cache.Store. The module ships three:
//   - internal.MemoryStore: process memory, the default
//   - internal.RedisStore: Redis with retry and exponential backoff
//   - internal.SQLiteStore: a local SQLite file that survives restarts
//
// internal.OpenStore picks one from GW2_CACHE_BACKEND.
//
// # Status Rules
//
// Stories are classified completed, undetectable, future or partial, in that
// order. The undetectable story ids, the upcoming season ids and the Personal
// Story phase table are data, loadable from YAML with progress.LoadRules:
//
//	undetectable_story_ids: [27]
//	upcoming_season_ids: [5F35F25C-AE33-4D92-A061-227CE54FA5DC]
//	phases:
//	  - {level: 1, name: Origins}
//	  - {level: 10, name: Early Life}
//
// # Error Handling
//
// API and store failures are *internal.Error values, re-exported as gw2.Error
// and cache.Error, and classified with helpers such as gw2.IsInvalidCredentialError,
// gw2.IsFetchFailedError and cache.IsConnectionError. A 404 on a character's quest
// list reads as no completed quests, and a failed quest batch is logged and skipped.
//
// # Thread Safety
//
// gw2.Client, cache.Cache, progress.Service and progress.Session are safe for
// concurrent use. Concurrent builds of the quest to story map and of the
// Personal Story phases are coalesced into one.
package storyprogress
