package gw2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kengibson1111/go-gw2-story-progress/internal"
)

const (
	// DefaultBaseURL is the public GW2 API root
	DefaultBaseURL = "https://api.guildwars2.com/v2"
	// DefaultRequestInterval is the minimum spacing between two requests of one Client
	DefaultRequestInterval = 100 * time.Millisecond
	// MaxBatchSize is the largest id list sent in a single ids= request
	MaxBatchSize = 200

	tracerName = "github.com/kengibson1111/go-gw2-story-progress/gw2"
)

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another API root, e.g. a test server
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRequestInterval sets the minimum spacing between requests; zero disables pacing
func WithRequestInterval(interval time.Duration) Option {
	return func(c *Client) {
		c.limiter = newLimiter(interval)
	}
}

// WithLimiter shares an existing limiter between clients
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracerProvider sets the provider spans are created from; defaults to the global one
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// Client is a paced GW2 API client. All requests issued through one Client
// share a single limiter regardless of which method issued them.
// The client never caches; callers layer the cache package on top.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	tracer     trace.Tracer
	validator  *internal.InputValidator
}

// NewClient creates a new API client
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    newLimiter(DefaultRequestInterval),
		logger:     zap.NewNop(),
		tracer:     otel.Tracer(tracerName),
		validator:  internal.NewInputValidator(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// request describes one GET against the API
type request struct {
	path      string
	token     string
	query     url.Values
	batchSize int
}

// get performs a paced GET and decodes the JSON body into dst
func (c *Client) get(ctx context.Context, req request, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	ctx, span := c.tracer.Start(ctx, "gw2 GET "+req.path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("gw2.path", req.path))
	if req.batchSize > 0 {
		span.SetAttributes(attribute.Int("gw2.batch_size", req.batchSize))
	}

	err := c.do(ctx, span, req, dst)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) do(ctx context.Context, span trace.Span, req request, dst any) error {
	query := url.Values{}
	for k, v := range req.query {
		query[k] = v
	}
	query.Set("lang", "en")
	if req.token != "" {
		query.Set("access_token", req.token)
	}

	endpoint := c.baseURL + req.path + "?" + query.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return internal.NewFetchFailedError(req.path, 0, err)
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return internal.NewFetchFailedError(req.path, 0, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.logger.Debug("gw2 request",
		zap.String("path", req.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return internal.NewInvalidCredentialError(req.path, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return internal.NewNotFoundError(req.path)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return internal.NewFetchFailedError(req.path, resp.StatusCode, errors.New(strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return internal.NewMalformedResponseError(req.path, "failed to decode response body", err)
	}
	return nil
}

// token validates and trims an access token
func (c *Client) token(token string) (string, error) {
	return c.validator.ValidateToken(token)
}

// TokenInfo describes the key itself; /v2/tokeninfo
func (c *Client) TokenInfo(ctx context.Context, token string) (*TokenInfo, error) {
	token, err := c.token(token)
	if err != nil {
		return nil, err
	}

	var info TokenInfo
	if err := c.get(ctx, request{path: "/tokeninfo", token: token}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ValidateToken reports whether the API accepts token. Any failure,
// including network errors, yields (nil, false); it never returns an error.
func (c *Client) ValidateToken(ctx context.Context, token string) (*TokenInfo, bool) {
	info, err := c.TokenInfo(ctx, token)
	if err != nil {
		c.logger.Debug("token validation failed", zap.Error(err))
		return nil, false
	}
	return info, true
}

// Account fetches /v2/account
func (c *Client) Account(ctx context.Context, token string) (*Account, error) {
	token, err := c.token(token)
	if err != nil {
		return nil, err
	}

	var account Account
	if err := c.get(ctx, request{path: "/account", token: token}, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// Characters lists the account's character names
func (c *Client) Characters(ctx context.Context, token string) ([]string, error) {
	token, err := c.token(token)
	if err != nil {
		return nil, err
	}

	var names []string
	if err := c.get(ctx, request{path: "/characters", token: token}, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// Character fetches the basic details of one character
func (c *Client) Character(ctx context.Context, token, name string) (*Character, error) {
	token, err := c.token(token)
	if err != nil {
		return nil, err
	}
	name, err = c.validator.ValidateCharacterName(name)
	if err != nil {
		return nil, err
	}

	var character Character
	path := "/characters/" + url.PathEscape(name)
	if err := c.get(ctx, request{path: path, token: token}, &character); err != nil {
		return nil, err
	}
	return &character, nil
}

// CharacterQuests lists the quest ids a character completed.
// A 404 means the character has no quest record and yields an empty list.
func (c *Client) CharacterQuests(ctx context.Context, token, name string) ([]int, error) {
	token, err := c.token(token)
	if err != nil {
		return nil, err
	}
	name, err = c.validator.ValidateCharacterName(name)
	if err != nil {
		return nil, err
	}

	var ids []int
	path := "/characters/" + url.PathEscape(name) + "/quests"
	if err := c.get(ctx, request{path: path, token: token}, &ids); err != nil {
		if internal.IsNotFoundError(err) {
			return []int{}, nil
		}
		return nil, err
	}
	if ids == nil {
		ids = []int{}
	}
	return ids, nil
}

// AccountAchievements fetches the account's achievement progress
func (c *Client) AccountAchievements(ctx context.Context, token string) ([]AccountAchievement, error) {
	token, err := c.token(token)
	if err != nil {
		return nil, err
	}

	var progress []AccountAchievement
	if err := c.get(ctx, request{path: "/account/achievements", token: token}, &progress); err != nil {
		return nil, err
	}
	return progress, nil
}

// Achievements fetches achievement definitions in batches. Unlike Quests,
// a failing batch aborts the whole call.
func (c *Client) Achievements(ctx context.Context, ids []int) ([]Achievement, error) {
	if err := c.validator.ValidateIDs(ids, "achievement ids"); err != nil {
		return nil, err
	}

	out := make([]Achievement, 0, len(ids))
	for _, batch := range Batches(ids, MaxBatchSize) {
		var page []Achievement
		req := request{path: "/achievements", query: idsQuery(batch), batchSize: len(batch)}
		if err := c.get(ctx, req, &page); err != nil {
			return nil, err
		}
		out = append(out, page...)
	}
	return out, nil
}

// QuestIDs lists every quest id in the catalogue
func (c *Client) QuestIDs(ctx context.Context) ([]int, error) {
	var ids []int
	if err := c.get(ctx, request{path: "/quests"}, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Quests fetches quest details in batches of at most MaxBatchSize ids.
// A failing batch is logged and skipped, so the result may be partial.
// Cancellation stops the loop and is returned with what was fetched so far.
func (c *Client) Quests(ctx context.Context, ids []int) ([]Quest, error) {
	if err := c.validator.ValidateIDs(ids, "quest ids"); err != nil {
		return nil, err
	}

	out := make([]Quest, 0, len(ids))
	for i, batch := range Batches(ids, MaxBatchSize) {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		var page []Quest
		req := request{path: "/quests", query: idsQuery(batch), batchSize: len(batch)}
		if err := c.get(ctx, req, &page); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			c.logger.Warn("skipping failed quest batch",
				zap.Int("batch", i),
				zap.Int("first_id", batch[0]),
				zap.Int("size", len(batch)),
				zap.Error(err))
			continue
		}
		out = append(out, page...)
	}
	return out, nil
}

// Stories fetches the full story catalogue
func (c *Client) Stories(ctx context.Context) ([]Story, error) {
	var stories []Story
	req := request{path: "/stories", query: url.Values{"ids": {"all"}}}
	if err := c.get(ctx, req, &stories); err != nil {
		return nil, err
	}
	return stories, nil
}

// Seasons fetches the full season catalogue
func (c *Client) Seasons(ctx context.Context) ([]Season, error) {
	var seasons []Season
	req := request{path: "/stories/seasons", query: url.Values{"ids": {"all"}}}
	if err := c.get(ctx, req, &seasons); err != nil {
		return nil, err
	}
	return seasons, nil
}

// Batches splits ids into consecutive slices of at most size elements
func Batches(ids []int, size int) [][]int {
	if size <= 0 {
		size = MaxBatchSize
	}

	batches := make([][]int, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}

func idsQuery(ids []int) url.Values {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return url.Values{"ids": {strings.Join(parts, ",")}}
}

// String implements fmt.Stringer for log fields
func (c *Client) String() string {
	return fmt.Sprintf("gw2.Client{base=%s, limit=%v}", c.baseURL, c.limiter.Limit())
}
