package internal

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeyGenerator defines the interface for generating and validating cache keys
type KeyGenerator interface {
	CharactersKey(token string) string
	CharacterDetailsKey(token string) string
	CharacterQuestsKey(token, character string) string
	AllCharacterQuestsKey(token string) string
	AccountAchievementsKey(token string) string
	AccountKey(token string) string
	AchievementsKey(achievementIDs []int) string
	QuestIDsKey() string
	QuestDetailsKey(questIDs []int) string
	QuestToStoryMapKey() string
	StoriesAndSeasonsKey() string
	TokenPrefix(token string) string
	ValidateKey(key string) error
}

// DefaultKeyGenerator implements the KeyGenerator interface
type DefaultKeyGenerator struct{}

// NewKeyGenerator creates a new DefaultKeyGenerator instance
func NewKeyGenerator() KeyGenerator {
	return &DefaultKeyGenerator{}
}

var validKeyChars = regexp.MustCompile(`^[\w\-/.%]+$`)

// TokenFingerprint returns a stable, non-reversible identifier for an access token.
// The raw token never appears in a cache key.
func TokenFingerprint(token string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(token))
}

// TokenPrefix returns the prefix shared by every key scoped to token
// Format: /gw2/tokens/<fingerprint>/
func (kg *DefaultKeyGenerator) TokenPrefix(token string) string {
	return fmt.Sprintf("/gw2/tokens/%s/", TokenFingerprint(token))
}

// CharactersKey generates a cache key for the character name list
// Format: /gw2/tokens/<fingerprint>/characters
func (kg *DefaultKeyGenerator) CharactersKey(token string) string {
	return fmt.Sprintf("/gw2/tokens/%s/characters", TokenFingerprint(token))
}

// CharacterDetailsKey generates a cache key for the basic details of every character
// Format: /gw2/tokens/<fingerprint>/details
func (kg *DefaultKeyGenerator) CharacterDetailsKey(token string) string {
	return fmt.Sprintf("/gw2/tokens/%s/details", TokenFingerprint(token))
}

// CharacterQuestsKey generates a cache key for one character's completed quests
// Format: /gw2/tokens/<fingerprint>/characters/<name>/quests
func (kg *DefaultKeyGenerator) CharacterQuestsKey(token, character string) string {
	return fmt.Sprintf("/gw2/tokens/%s/characters/%s/quests", TokenFingerprint(token), kg.sanitizeName(character))
}

// AllCharacterQuestsKey generates a cache key for the completed quests of all characters
// Format: /gw2/tokens/<fingerprint>/quests
func (kg *DefaultKeyGenerator) AllCharacterQuestsKey(token string) string {
	return fmt.Sprintf("/gw2/tokens/%s/quests", TokenFingerprint(token))
}

// AccountAchievementsKey generates a cache key for account achievement progress
// Format: /gw2/tokens/<fingerprint>/achievements
func (kg *DefaultKeyGenerator) AccountAchievementsKey(token string) string {
	return fmt.Sprintf("/gw2/tokens/%s/achievements", TokenFingerprint(token))
}

// AccountKey generates a cache key for the account summary
// Format: /gw2/tokens/<fingerprint>/account
func (kg *DefaultKeyGenerator) AccountKey(token string) string {
	return fmt.Sprintf("/gw2/tokens/%s/account", TokenFingerprint(token))
}

// QuestIDsKey generates the cache key for the full quest id catalogue
// Format: /gw2/quests/ids
func (kg *DefaultKeyGenerator) QuestIDsKey() string {
	return "/gw2/quests/ids"
}

// QuestDetailsKey generates a cache key for quest details of an id list.
// The first ten ids plus the list length identify the request.
// Format: /gw2/quests/details/<id>-<id>-..._<count>
func (kg *DefaultKeyGenerator) QuestDetailsKey(questIDs []int) string {
	return "/gw2/quests/details/" + idListSegment(questIDs)
}

// AchievementsKey generates a cache key for achievement definitions of an id list
// Format: /gw2/achievements/<id>-<id>-..._<count>
func (kg *DefaultKeyGenerator) AchievementsKey(achievementIDs []int) string {
	return "/gw2/achievements/" + idListSegment(achievementIDs)
}

// idListSegment names an id list by its first ten ids and its length
func idListSegment(ids []int) string {
	head := ids
	if len(head) > 10 {
		head = head[:10]
	}
	parts := make([]string, len(head))
	for i, id := range head {
		parts[i] = strconv.Itoa(id)
	}
	return fmt.Sprintf("%s_%d", strings.Join(parts, "-"), len(ids))
}

// QuestToStoryMapKey generates the cache key for the account-independent quest to story map
// Format: /gw2/quests/story-map
func (kg *DefaultKeyGenerator) QuestToStoryMapKey() string {
	return "/gw2/quests/story-map"
}

// StoriesAndSeasonsKey generates the cache key for the story and season catalogues
// Format: /gw2/stories/all
func (kg *DefaultKeyGenerator) StoriesAndSeasonsKey() string {
	return "/gw2/stories/all"
}

// ValidateKey validates that a cache key follows the expected format and constraints
func (kg *DefaultKeyGenerator) ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	if !strings.HasPrefix(key, "/gw2/") {
		return fmt.Errorf("key must start with '/gw2/'")
	}

	// Check for control characters and null bytes
	for i, r := range key {
		if r < 32 || r == 127 {
			return fmt.Errorf("key contains control character at position %d: %s", i, key)
		}
	}

	if strings.Contains(key, "../") || strings.HasSuffix(key, "/..") {
		return fmt.Errorf("key contains path traversal sequence: %s", key)
	}

	if !validKeyChars.MatchString(key) {
		return fmt.Errorf("key contains invalid characters: %s", key)
	}

	if strings.Contains(key, "//") {
		return fmt.Errorf("key contains double slashes: %s", key)
	}

	if len(key) > 250 {
		return fmt.Errorf("key exceeds maximum length of 250 characters")
	}

	parts := strings.Split(key, "/")
	switch parts[2] {
	case "tokens":
		return kg.validateTokenKey(key, parts)
	case "quests", "stories", "achievements":
		if len(parts) < 4 || parts[3] == "" {
			return fmt.Errorf("invalid catalogue key format: %s", key)
		}
		return nil
	default:
		return fmt.Errorf("key does not match any expected pattern: %s", key)
	}
}

// validateTokenKey validates keys scoped to an access token
func (kg *DefaultKeyGenerator) validateTokenKey(key string, parts []string) error {
	// "", "gw2", "tokens", fingerprint, resource...
	if len(parts) < 5 || parts[3] == "" || parts[4] == "" {
		return fmt.Errorf("invalid token key format: %s", key)
	}

	if parts[4] == "characters" && len(parts) > 5 {
		if len(parts) != 7 || parts[5] == "" || parts[6] != "quests" {
			return fmt.Errorf("invalid character key format: %s", key)
		}
	}

	return nil
}

// sanitizeName sanitizes a name for use in cache keys by URL encoding special characters
func (kg *DefaultKeyGenerator) sanitizeName(name string) string {
	if name == "" {
		return ""
	}

	encoded := url.QueryEscape(name)

	// QueryEscape is one-to-one; spelling spaces as %20 keeps "A B" apart from "A+B"
	return strings.ReplaceAll(encoded, "+", "%20")
}
