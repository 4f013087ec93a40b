package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/warden"
	httpadapter "github.com/aretw0/warden/pkg/adapters/http"
	"github.com/aretw0/warden/pkg/adapters/memory"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	handler  http.Handler
	engine   *warden.Engine
	platform *memory.Platform
	streams  *httpadapter.StreamManager
}

func setup(t *testing.T) *fixture {
	t.Helper()
	streams := httpadapter.NewStreamManager(slogDiscard())
	p := memory.NewPlatform()
	eng, err := warden.New(warden.WithPlatform(p), warden.WithLifecycleHooks(streams.Hooks()))
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { _ = eng.Close() })

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "warden_test_total", Help: "test"}))

	h, err := httpadapter.NewHandler(eng, httpadapter.WithStreams(streams), httpadapter.WithMetrics(reg))
	require.NoError(t, err)
	return &fixture{handler: h, engine: eng, platform: p, streams: streams}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestGuildConfig(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodGet, "/guilds/g1/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.DefaultMaxWarns, decodeBody[domain.GuildConfig](t, w).MaxWarns)

	w = f.do(t, http.MethodPut, "/guilds/g1/config", map[string]int{"max_warns": 5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 5, decodeBody[domain.GuildConfig](t, w).MaxWarns)

	w = f.do(t, http.MethodPut, "/guilds/g1/config", map[string]int{"max_warns": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 5, f.engine.GuildConfig("g1").MaxWarns)
}

func TestWarns(t *testing.T) {
	f := setup(t)
	_, err := f.engine.SetMaxWarns(context.Background(), "g1", 2)
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/guilds/g1/warns", map[string]string{"user_id": "u1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decodeBody[domain.WarnResult](t, w).NewCount)

	w = f.do(t, http.MethodGet, "/guilds/g1/warns/u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decodeBody[domain.WarnRecord](t, w).Count)

	w = f.do(t, http.MethodDelete, "/guilds/g1/warns/u1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodPost, "/guilds/g1/warns", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "user_id is required by the schema")
}

func TestModerateAndResolve(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodPost, "/guilds/g1/actions", map[string]any{
		"kind": "ban", "user_id": "u1", "reason": "spam", "initiator_id": "mod", "channel_id": "c1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeBody[warden.ModerateResult](t, w)
	require.True(t, res.Outcome.Success)
	require.NotNil(t, res.Notification)

	w = f.do(t, http.MethodGet, "/sessions", nil)
	require.Len(t, decodeBody[[]domain.Session](t, w), 1)

	path := "/sessions/" + res.Notification.ID + "/resolve"
	w = f.do(t, http.MethodPost, path, map[string]string{"actor_id": "other", "choice": "notify"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, path, map[string]string{"actor_id": "mod", "choice": "confirm"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "confirm does not apply to notifications")

	w = f.do(t, http.MethodPost, path, map[string]string{"actor_id": "mod", "choice": "notify"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resolution := decodeBody[warden.Resolution](t, w)
	assert.Equal(t, domain.StateNotified, resolution.State)
	assert.True(t, resolution.Delivered)

	w = f.do(t, http.MethodPost, path, map[string]string{"actor_id": "mod", "choice": "notify"})
	assert.Equal(t, http.StatusNotFound, w.Code, "settled sessions cannot be resolved again")
}

func TestModerate_FailureStatus(t *testing.T) {
	f := setup(t)
	f.platform.FailOn(memory.OpKick, domain.ErrPermissionDenied)

	w := f.do(t, http.MethodPost, "/guilds/g1/actions", map[string]any{
		"kind": "kick", "user_id": "u1", "initiator_id": "mod", "channel_id": "c1",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, f.engine.Sessions())

	w = f.do(t, http.MethodPost, "/guilds/g1/actions", map[string]any{
		"kind": "smite", "user_id": "u1", "initiator_id": "mod", "channel_id": "c1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPurge(t *testing.T) {
	f := setup(t)
	f.platform.Post("c1", "bot", true)
	f.platform.Post("c1", "alice", false)
	f.platform.Post("c1", "bot", true)

	w := f.do(t, http.MethodPost, "/channels/c1/purge", map[string]any{"count": 5, "filter": "bot"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody[map[string]any](t, w)
	assert.EqualValues(t, 2, body["deleted"])
	assert.Equal(t, "Cleared 2 bot messages.", body["summary"])

	w = f.do(t, http.MethodPost, "/channels/missing/purge", map[string]any{"count": 5})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConfirmationWait(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodPost, "/confirmations", map[string]any{
		"initiator_id": "mod", "channel_id": "c1", "title": "Sure?", "timeout_seconds": 30,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sess := decodeBody[domain.Session](t, w)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		req := httptest.NewRequest(http.MethodGet, "/sessions/"+sess.ID+"?wait=true", nil)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		done <- rec
	}()

	_, err := f.engine.Resolve(context.Background(), sess.ID, "mod", domain.ChoiceAffirm)
	require.NoError(t, err)

	select {
	case rec := <-done:
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.StateConfirmed, decodeBody[domain.Session](t, rec).State)
	case <-time.After(2 * time.Second):
		t.Fatal("wait=true did not return after resolution")
	}
}

func TestGetSession_WaitParam(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodPost, "/confirmations", map[string]any{
		"initiator_id": "mod", "channel_id": "c1", "title": "Sure?", "timeout_seconds": 30,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sess := decodeBody[domain.Session](t, w)

	w = f.do(t, http.MethodGet, "/sessions/"+sess.ID+"?wait=false", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.StatePending, decodeBody[domain.Session](t, w).State)

	w = f.do(t, http.MethodGet, "/sessions/"+sess.ID+"?wait=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReplaceChannel(t *testing.T) {
	f := setup(t)
	f.platform.AddChannel("c1")

	w := f.do(t, http.MethodPost, "/guilds/g1/channels/c1/replace", map[string]any{"initiator_id": "mod"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	sess := decodeBody[domain.Session](t, w)
	assert.Equal(t, domain.KindConfirmation, sess.Kind)

	_, err := f.engine.Resolve(context.Background(), sess.ID, "mod", domain.ChoiceAffirm)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return !f.platform.HasChannel("c1") }, time.Second, 10*time.Millisecond)
}

func TestStaticRoutes(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodGet, "/openapi.yaml", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")

	w = f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "warden_test_total")

	w = f.do(t, http.MethodGet, "/info", nil)
	assert.Equal(t, warden.Version, decodeBody[map[string]string](t, w)["version"])

	w = f.do(t, http.MethodGet, "/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubscribeEvents(t *testing.T) {
	f := setup(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())

	_, err = f.engine.Warn(context.Background(), "g1", "u1")
	require.NoError(t, err)

	for lines.Scan() {
		if strings.HasPrefix(lines.Text(), "data: {") {
			assert.Contains(t, lines.Text(), `"type":"warn"`)
			return
		}
	}
	t.Fatal("no warn event received")
}
