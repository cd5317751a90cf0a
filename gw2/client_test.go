package gw2

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testToken = "ABCDEF01-2345-6789-ABCD-EF0123456789ABCDEF01-2345-6789-ABCD-EF0123456789"

// fakeAPI records every request it receives
type fakeAPI struct {
	mu       sync.Mutex
	requests []*http.Request
	handler  http.HandlerFunc
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Clone(context.Background()))
	f.mu.Unlock()
	f.handler(w, r)
}

func (f *fakeAPI) Requests() []*http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*http.Request(nil), f.requests...)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{handler: handler}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	opts = append([]Option{WithBaseURL(server.URL), WithRequestInterval(0)}, opts...)
	return NewClient(opts...), api
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func parseIDs(t *testing.T, raw string) []int {
	t.Helper()
	var ids []int
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.Atoi(part)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestBatches(t *testing.T) {
	ids := make([]int, 450)
	for i := range ids {
		ids[i] = i + 1
	}

	batches := Batches(ids, MaxBatchSize)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 200)
	assert.Len(t, batches[1], 200)
	assert.Len(t, batches[2], 50)
	assert.Equal(t, 401, batches[2][0])

	assert.Empty(t, Batches(nil, MaxBatchSize))
	assert.Len(t, Batches(ids[:200], MaxBatchSize), 1)
	assert.Len(t, Batches(ids[:201], MaxBatchSize), 2)
}

func TestClient_QuestsBatching(t *testing.T) {
	client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var quests []Quest
		for _, id := range parseIDs(t, r.URL.Query().Get("ids")) {
			quests = append(quests, Quest{ID: id, Name: "q" + strconv.Itoa(id), Level: 1})
		}
		writeJSON(w, quests)
	})

	ids := make([]int, 450)
	for i := range ids {
		ids[i] = i + 1
	}

	quests, err := client.Quests(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, quests, 450)

	requests := api.Requests()
	require.Len(t, requests, 3, "450 ids must take exactly 3 requests")
	for _, r := range requests {
		assert.Equal(t, "/quests", r.URL.Path)
		assert.Equal(t, "en", r.URL.Query().Get("lang"))
		assert.LessOrEqual(t, len(parseIDs(t, r.URL.Query().Get("ids"))), MaxBatchSize)
		assert.Empty(t, r.URL.Query().Get("access_token"))
	}
}

func TestClient_QuestsSkipsFailedBatch(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		ids := parseIDs(t, r.URL.Query().Get("ids"))
		if ids[0] == 201 {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		quests := make([]Quest, 0, len(ids))
		for _, id := range ids {
			quests = append(quests, Quest{ID: id})
		}
		writeJSON(w, quests)
	}, WithLogger(zap.New(core)))

	ids := make([]int, 450)
	for i := range ids {
		ids[i] = i + 1
	}

	quests, err := client.Quests(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, quests, 250, "the middle batch is skipped")
	assert.Equal(t, 1, logs.FilterMessage("skipping failed quest batch").Len())
}

func TestClient_QuestsEmpty(t *testing.T) {
	client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	quests, err := client.Quests(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, quests)
	assert.Empty(t, api.Requests())
}

func TestClient_QuestsCancelled(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []Quest{})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Quests(ctx, []int{1, 2, 3})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_AchievementsPropagatesBatchFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		ids := parseIDs(t, r.URL.Query().Get("ids"))
		if ids[0] == 201 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		out := make([]Achievement, 0, len(ids))
		for _, id := range ids {
			out = append(out, Achievement{ID: id})
		}
		writeJSON(w, out)
	})

	ids := make([]int, 300)
	for i := range ids {
		ids[i] = i + 1
	}

	_, err := client.Achievements(context.Background(), ids)
	require.Error(t, err)
	assert.True(t, IsFetchFailedError(err))

	got, err := client.Achievements(context.Background(), ids[:200])
	require.NoError(t, err)
	assert.Len(t, got, 200)
}

func TestClient_CharacterQuests(t *testing.T) {
	client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/characters/Logan Thackeray/quests":
			writeJSON(w, []int{1, 2, 3})
		case "/characters/Nobody/quests":
			http.Error(w, `{"text":"no such character"}`, http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	})
	ctx := context.Background()

	ids, err := client.CharacterQuests(ctx, testToken, "Logan Thackeray")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, ids)

	ids, err = client.CharacterQuests(ctx, testToken, "Nobody")
	require.NoError(t, err, "404 maps to an empty list")
	assert.Equal(t, []int{}, ids)

	_, err = client.CharacterQuests(ctx, testToken, "Broken")
	require.Error(t, err)
	assert.True(t, IsFetchFailedError(err))

	requests := api.Requests()
	require.NotEmpty(t, requests)
	assert.Equal(t, "/characters/Logan%20Thackeray/quests", requests[0].URL.EscapedPath())
	assert.Equal(t, testToken, requests[0].URL.Query().Get("access_token"))
	assert.Equal(t, "en", requests[0].URL.Query().Get("lang"))
}

func TestClient_CharacterRejectsInvalidInput(t *testing.T) {
	client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx := context.Background()

	_, err := client.Character(ctx, testToken, "")
	assert.True(t, IsValidationError(err))

	_, err = client.Character(ctx, "bad token!", "Rytlock")
	assert.True(t, IsValidationError(err))

	assert.Empty(t, api.Requests())
}

func TestClient_Character(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"Rytlock","race":"Charr","profession":"Warrior","level":80,"guild":"x","bags":[]}`))
	})

	c, err := client.Character(context.Background(), testToken, "Rytlock")
	require.NoError(t, err)
	assert.Equal(t, &Character{Name: "Rytlock", Race: "Charr", Profession: "Warrior", Level: 80}, c)
}

func TestClient_ValidateToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != testToken {
			http.Error(w, `{"text":"Invalid access token"}`, http.StatusUnauthorized)
			return
		}
		writeJSON(w, TokenInfo{ID: "key-id", Name: "my key", Permissions: []string{"account", "characters"}})
	})
	ctx := context.Background()

	info, ok := client.ValidateToken(ctx, testToken)
	require.True(t, ok)
	assert.Equal(t, "my key", info.Name)

	info, ok = client.ValidateToken(ctx, "ABCDEF")
	assert.False(t, ok)
	assert.Nil(t, info)

	info, ok = client.ValidateToken(ctx, "")
	assert.False(t, ok)
	assert.Nil(t, info)

	_, err := client.TokenInfo(ctx, "ABCDEF")
	assert.True(t, IsInvalidCredentialError(err))
}

func TestClient_ValidateTokenNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRequestInterval(0))
	info, ok := client.ValidateToken(context.Background(), testToken)
	assert.False(t, ok)
	assert.Nil(t, info)
}

func TestClient_MalformedResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	})

	_, err := client.QuestIDs(context.Background())
	require.Error(t, err)
	assert.True(t, IsMalformedResponseError(err))
}

func TestClient_StoriesAndSeasons(t *testing.T) {
	client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stories":
			_, _ = w.Write([]byte(`[{"id":1,"season":"S1","name":"One","order":0,"level":1},{"id":2,"season":"S1","name":"Two"}]`))
		case "/stories/seasons":
			_, _ = w.Write([]byte(`[{"id":"S1","name":"Season One","order":1,"stories":[1,2]}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	stories, err := client.Stories(ctx)
	require.NoError(t, err)
	require.Len(t, stories, 2)
	assert.Equal(t, "S1", stories[1].SeasonID)
	assert.Equal(t, 0, stories[1].Level)

	seasons, err := client.Seasons(ctx)
	require.NoError(t, err)
	require.Len(t, seasons, 1)
	assert.Equal(t, []int{1, 2}, seasons[0].Stories)

	for _, r := range api.Requests() {
		assert.Equal(t, "all", r.URL.Query().Get("ids"))
		assert.Equal(t, "en", r.URL.Query().Get("lang"))
	}
}

func TestClient_SharedPacing(t *testing.T) {
	const interval = 40 * time.Millisecond

	var mu sync.Mutex
	var stamps []time.Time
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		writeJSON(w, []int{})
	}, WithRequestInterval(interval))
	ctx := context.Background()

	// Different endpoints share the same limiter
	_, err := client.QuestIDs(ctx)
	require.NoError(t, err)
	_, err = client.Characters(ctx, testToken)
	require.NoError(t, err)
	_, err = client.CharacterQuests(ctx, testToken, "Rytlock")
	require.NoError(t, err)

	require.Len(t, stamps, 3)
	for i := 1; i < len(stamps); i++ {
		// Allow a little scheduler slack below the nominal interval
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), interval-10*time.Millisecond)
	}
}

func TestClient_PacingHonoursCancellation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []int{})
	}, WithRequestInterval(time.Hour))

	_, err := client.QuestIDs(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = client.QuestIDs(ctx)
	assert.Error(t, err)
}

func TestClient_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/account" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		writeJSON(w, []Quest{{ID: 1}})
	}, WithTracerProvider(provider))
	ctx := context.Background()

	_, err := client.Quests(ctx, []int{1})
	require.NoError(t, err)
	_, err = client.Account(ctx, testToken)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "gw2 GET /quests", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.Int("gw2.batch_size", 1))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("http.status_code", 200))

	assert.Equal(t, "gw2 GET /account", spans[1].Name())
	assert.Equal(t, "Error", spans[1].Status().Code.String())
}
