package gw2

import (
	"github.com/kengibson1111/go-gw2-story-progress/internal"
	"github.com/kengibson1111/go-gw2-story-progress/internal/models"
)

// API records returned by the client
type (
	TokenInfo          = models.TokenInfo
	Account            = models.Account
	Character          = models.Character
	Quest              = models.Quest
	Story              = models.Story
	Season             = models.Season
	Achievement        = models.Achievement
	AchievementTier    = models.AchievementTier
	AccountAchievement = models.AccountAchievement
)

// Error is the typed error returned by every endpoint
type Error = internal.Error

// ErrorType classifies an Error
type ErrorType = internal.ErrorType

// Error types raised by the fetch layer
const (
	ErrorTypeInvalidCredential = internal.ErrorTypeInvalidCredential
	ErrorTypeFetchFailed       = internal.ErrorTypeFetchFailed
	ErrorTypeNotFound          = internal.ErrorTypeNotFound
	ErrorTypeMalformedResponse = internal.ErrorTypeMalformedResponse
	ErrorTypeValidation        = internal.ErrorTypeValidation
)

// IsInvalidCredentialError reports whether the API rejected the access token
func IsInvalidCredentialError(err error) bool { return internal.IsInvalidCredentialError(err) }

// IsFetchFailedError reports whether a request failed with a non-OK status or network fault
func IsFetchFailedError(err error) bool { return internal.IsFetchFailedError(err) }

// IsNotFoundError reports whether the API answered 404
func IsNotFoundError(err error) bool { return internal.IsNotFoundError(err) }

// IsMalformedResponseError reports whether a payload could not be decoded
func IsMalformedResponseError(err error) bool { return internal.IsMalformedResponseError(err) }

// IsValidationError reports whether an argument was rejected before any request was sent
func IsValidationError(err error) bool { return internal.IsValidationError(err) }
