/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/Seednode/partyhub/client"
	"github.com/Seednode/partyhub/party"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	cfg  *Config
	svc  services
	srv  *httptest.Server
	errs chan error

	// devices maps player ids joined through lobby to their device ids.
	devices map[string]string
}

func newHarness(t *testing.T, setup ...func(*Config, *services)) *harness {
	t.Helper()

	cfg := &Config{codeLength: 4}
	svc := services{manager: newManager(cfg)}
	svc.metrics = newMetrics(svc.manager)

	for _, fn := range setup {
		fn(cfg, &svc)
	}

	h := &harness{
		cfg:     cfg,
		svc:     svc,
		errs:    make(chan error, 64),
		devices: make(map[string]string),
	}
	h.srv = httptest.NewServer(newRouter(cfg, svc, h.errs))
	t.Cleanup(h.srv.Close)

	return h
}

type reply struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (r reply) snapshot(t *testing.T) party.Snapshot {
	t.Helper()

	var snap party.Snapshot
	require.NoError(t, json.Unmarshal(r.Data, &snap))
	return snap
}

func decodeReply(t *testing.T, resp *http.Response) reply {
	t.Helper()
	defer resp.Body.Close()

	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))

	var out reply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// postWith sends body as an action. A playerId known to the harness is sent
// from its own device unless body names one.
func (h *harness) postWith(t *testing.T, c *http.Client, game string, body map[string]any) (int, reply) {
	t.Helper()

	if id, ok := body["playerId"].(string); ok {
		if _, set := body["deviceId"]; !set && h.devices[id] != "" {
			body["deviceId"] = h.devices[id]
		}
	}

	buf, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := c.Post(h.srv.URL+"/api/"+game, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)

	return resp.StatusCode, decodeReply(t, resp)
}

func (h *harness) post(t *testing.T, game string, body map[string]any) (int, reply) {
	t.Helper()
	return h.postWith(t, h.srv.Client(), game, body)
}

// mustPost posts an action that is expected to succeed, and returns the
// resulting snapshot.
func (h *harness) mustPost(t *testing.T, game string, body map[string]any) party.Snapshot {
	t.Helper()

	status, out := h.post(t, game, body)
	require.Equal(t, http.StatusOK, status, out.Error)
	require.True(t, out.Success)
	return out.snapshot(t)
}

func (h *harness) get(t *testing.T, path string) (int, reply) {
	t.Helper()

	resp, err := h.srv.Client().Get(h.srv.URL + path)
	require.NoError(t, err)

	return resp.StatusCode, decodeReply(t, resp)
}

// lobby creates a room for game and joins the named guests with their own
// device ids.
func (h *harness) lobby(t *testing.T, game string, guests ...string) (party.Snapshot, map[string]string) {
	t.Helper()

	snap := h.mustPost(t, game, map[string]any{"action": "create", "name": "Host", "deviceId": "dev-host"})
	ids := map[string]string{"Host": snap.PlayerID}
	h.devices[snap.PlayerID] = "dev-host"

	for _, name := range guests {
		joined := h.mustPost(t, game, map[string]any{
			"action":   "join",
			"roomCode": strings.ToLower(snap.RoomCode),
			"name":     name,
			"deviceId": "dev-" + name,
		})
		ids[name] = joined.PlayerID
		h.devices[joined.PlayerID] = "dev-" + name
	}

	return snap, ids
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{party.ErrRoomNotFound, http.StatusNotFound, "room not found"},
		{party.ErrInvalidName, http.StatusBadRequest, "invalid name"},
		{party.ErrNotHost, http.StatusForbidden, "only the host can do that"},
		{fmt.Errorf("%w: need at least 3", party.ErrNotEnoughPlayers), http.StatusConflict, "not enough players: need at least 3"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			status, msg := statusOf(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.msg, msg)
		})
	}
}

func TestCreateJoinStart(t *testing.T) {
	h := newHarness(t)

	snap, ids := h.lobby(t, "impostor", "Ann", "Bob")
	assert.Equal(t, party.PhaseLobby, snap.Phase)
	assert.Len(t, snap.RoomCode, 4)

	status, out := h.post(t, "impostor", map[string]any{"action": "start", "roomCode": snap.RoomCode, "playerId": ids["Ann"]})
	assert.Equal(t, http.StatusForbidden, status)
	assert.False(t, out.Success)
	assert.Equal(t, "only the host can do that", out.Error)

	started := h.mustPost(t, "impostor", map[string]any{"action": "start", "roomCode": snap.RoomCode, "playerId": ids["Host"]})
	assert.Equal(t, party.Phase("description"), started.Phase)
	assert.Equal(t, 1, started.Round)
	assert.Len(t, started.Players, 3)
	assert.NotEmpty(t, started.Turn)

	status, out = h.post(t, "impostor", map[string]any{"action": "join", "roomCode": snap.RoomCode, "name": "Late", "deviceId": "dev-late"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "game already started", out.Error)
}

func TestStartBelowMinimum(t *testing.T) {
	h := newHarness(t)

	snap, ids := h.lobby(t, "impostor", "Ann")

	status, out := h.post(t, "impostor", map[string]any{"action": "start", "roomCode": snap.RoomCode, "playerId": ids["Host"]})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "not enough players: need at least 3", out.Error)

	got := h.mustPost(t, "impostor", map[string]any{"action": "get", "roomCode": snap.RoomCode, "playerId": ids["Host"]})
	assert.Equal(t, party.PhaseLobby, got.Phase)
	assert.Zero(t, got.Round)
}

func TestJoinUnknownRoom(t *testing.T) {
	h := newHarness(t)

	status, out := h.post(t, "impostor", map[string]any{"action": "join", "roomCode": "ZZZZ", "name": "Ann"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "room not found", out.Error)
	assert.Zero(t, h.svc.manager.Len())
}

func TestRoomCodesAreScopedToGame(t *testing.T) {
	h := newHarness(t)

	snap, _ := h.lobby(t, "impostor")

	status, out := h.post(t, "wavelength", map[string]any{"action": "join", "roomCode": snap.RoomCode, "name": "Ann"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "room not found", out.Error)
}

func TestRejectedRequests(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		game   string
		body   string
		status int
		msg    string
	}{
		{"unknown game", "chess", `{"action":"create","name":"Host"}`, http.StatusNotFound, "unknown game"},
		{"malformed body", "impostor", `{"action":`, http.StatusBadRequest, "invalid request body"},
		{"missing action", "impostor", `{"name":"Host"}`, http.StatusBadRequest, "invalid action"},
		{"blank name", "impostor", `{"action":"create","name":"   "}`, http.StatusBadRequest, "invalid name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := h.srv.Client().Post(h.srv.URL+"/api/"+tt.game, "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)

			out := decodeReply(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.False(t, out.Success)
			assert.Equal(t, tt.msg, out.Error)
		})
	}
}

func TestGameActionsThroughAPI(t *testing.T) {
	h := newHarness(t)

	snap, ids := h.lobby(t, "wavelength", "Ann")
	code := snap.RoomCode

	h.mustPost(t, "wavelength", map[string]any{"action": "start", "roomCode": code, "playerId": ids["Host"]})

	status, out := h.post(t, "wavelength", map[string]any{"action": "submitClue", "roomCode": code, "playerId": ids["Ann"], "clue": "lukewarm"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "it is not your turn", out.Error)

	clued := h.mustPost(t, "wavelength", map[string]any{"action": "submitClue", "roomCode": code, "playerId": ids["Host"], "clue": "lukewarm"})
	assert.Equal(t, party.Phase("guessing"), clued.Phase)
	assert.NotNil(t, clued.Deadline)

	status, out = h.post(t, "wavelength", map[string]any{"action": "guess", "roomCode": code, "playerId": ids["Ann"], "value": 150})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, out.Success)

	status, out = h.post(t, "wavelength", map[string]any{"action": "dance", "roomCode": code, "playerId": ids["Ann"]})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, out.Success)

	guessed := h.mustPost(t, "wavelength", map[string]any{"action": "guess", "roomCode": code, "playerId": ids["Ann"], "value": 50})
	assert.Equal(t, party.Phase("reveal"), guessed.Phase)

	next := h.mustPost(t, "wavelength", map[string]any{"action": "nextRound", "roomCode": code, "playerId": ids["Host"]})
	assert.Equal(t, party.Phase("clue"), next.Phase)
	assert.Equal(t, 2, next.Round)
	assert.Equal(t, ids["Ann"], next.Turn)

	reset := h.mustPost(t, "wavelength", map[string]any{"action": "reset", "roomCode": code, "playerId": ids["Host"]})
	assert.Equal(t, party.PhaseLobby, reset.Phase)
	assert.Len(t, reset.Players, 2)
}

func TestLockAndClose(t *testing.T) {
	h := newHarness(t)

	snap, ids := h.lobby(t, "impostor", "Ann")
	code := snap.RoomCode

	locked := h.mustPost(t, "impostor", map[string]any{"action": "lock", "roomCode": code, "playerId": ids["Host"]})
	assert.True(t, locked.Locked)

	status, out := h.post(t, "impostor", map[string]any{"action": "join", "roomCode": code, "name": "Bob", "deviceId": "dev-bob"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "the lobby is locked", out.Error)

	unlocked := h.mustPost(t, "impostor", map[string]any{"action": "lock", "roomCode": code, "playerId": ids["Host"], "locked": false})
	assert.False(t, unlocked.Locked)

	status, _ = h.post(t, "impostor", map[string]any{"action": "close", "roomCode": code, "playerId": ids["Ann"]})
	assert.Equal(t, http.StatusForbidden, status)

	status, out = h.post(t, "impostor", map[string]any{"action": "close", "roomCode": code, "playerId": ids["Host"]})
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, out.Success)
	assert.Empty(t, out.Data)

	status, _ = h.get(t, "/api/impostor/"+code)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStatePolling(t *testing.T) {
	h := newHarness(t)

	snap, ids := h.lobby(t, "impostor", "Ann", "Bob")
	code := snap.RoomCode

	h.mustPost(t, "impostor", map[string]any{"action": "start", "roomCode": code, "playerId": ids["Host"]})

	status, out := h.get(t, "/api/impostor/"+strings.ToLower(code)+"?playerId="+ids["Ann"]+"&deviceId=dev-Ann")
	require.Equal(t, http.StatusOK, status)

	mine := out.snapshot(t)
	assert.Equal(t, ids["Ann"], mine.PlayerID)
	require.NotNil(t, mine.Me())
	assert.NotEmpty(t, mine.Me().Role)

	status, out = h.get(t, "/api/impostor/"+code)
	require.Equal(t, http.StatusOK, status)

	spectator := out.snapshot(t)
	assert.Empty(t, spectator.PlayerID)
	for _, p := range spectator.Players {
		assert.Empty(t, p.Role)
	}

	status, out = h.get(t, "/api/impostor/"+code+"?playerId=nobody")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "player not found", out.Error)
}

func TestActingAsAnotherPlayer(t *testing.T) {
	h := newHarness(t)

	snap, ids := h.lobby(t, "impostor", "Ann", "Bob")
	code := snap.RoomCode

	for _, action := range []string{"start", "lock", "reset", "close"} {
		status, out := h.post(t, "impostor", map[string]any{"action": action, "roomCode": code, "playerId": snap.HostID, "deviceId": "dev-Ann"})
		assert.Equal(t, http.StatusForbidden, status, action)
		assert.Equal(t, "you cannot do that", out.Error, action)
	}

	status, _ := h.post(t, "impostor", map[string]any{"action": "start", "roomCode": code, "playerId": snap.HostID, "deviceId": ""})
	assert.Equal(t, http.StatusForbidden, status, "a fresh cookie is not the host's device")

	started := h.mustPost(t, "impostor", map[string]any{"action": "start", "roomCode": code, "playerId": ids["Host"]})
	assert.Equal(t, party.Phase("description"), started.Phase)

	other := "dev-Bob"
	if started.Turn == ids["Bob"] {
		other = "dev-Ann"
	}
	status, out := h.post(t, "impostor", map[string]any{"action": "describe", "roomCode": code, "playerId": started.Turn, "deviceId": other, "clue": "shiny"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "you cannot do that", out.Error)

	again := h.mustPost(t, "impostor", map[string]any{"action": "get", "roomCode": code, "playerId": ids["Host"]})
	assert.Equal(t, started.Version, again.Version)
}

func TestReadingAnotherPlayersView(t *testing.T) {
	h := newHarness(t)

	snap, ids := h.lobby(t, "impostor", "Ann", "Bob")
	code := snap.RoomCode

	h.mustPost(t, "impostor", map[string]any{"action": "start", "roomCode": code, "playerId": ids["Host"]})

	status, out := h.get(t, "/api/impostor/"+code+"?playerId="+ids["Bob"]+"&deviceId=dev-Ann")
	assert.Equal(t, http.StatusForbidden, status)
	assert.False(t, out.Success)
	assert.Empty(t, out.Data)

	status, _ = h.get(t, "/api/impostor/"+code+"?playerId="+ids["Bob"])
	assert.Equal(t, http.StatusForbidden, status)

	status, out = h.post(t, "impostor", map[string]any{"action": "get", "roomCode": code, "playerId": ids["Bob"], "deviceId": "dev-Ann"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Empty(t, out.Data)

	status, out = h.get(t, "/api/impostor/"+code+"?playerId="+ids["Bob"]+"&deviceId=dev-Bob")
	require.Equal(t, http.StatusOK, status)

	bob := out.snapshot(t)
	require.NotNil(t, bob.Me())
	assert.NotEmpty(t, bob.Me().Role)
}

func TestDeviceCookieRejoin(t *testing.T) {
	h := newHarness(t)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	browser := &http.Client{Jar: jar}

	status, out := h.postWith(t, browser, "impostor", map[string]any{"action": "create", "name": "Host"})
	require.Equal(t, http.StatusOK, status)
	created := out.snapshot(t)

	cookies := jar.Cookies(mustParseURL(t, h.srv.URL))
	require.Len(t, cookies, 1)
	assert.Equal(t, deviceCookieName, cookies[0].Name)

	status, out = h.postWith(t, browser, "impostor", map[string]any{"action": "join", "roomCode": created.RoomCode, "name": "Someone"})
	require.Equal(t, http.StatusOK, status)

	again := out.snapshot(t)
	assert.Equal(t, created.PlayerID, again.PlayerID)
	assert.Len(t, again.Players, 1)

	explicit := h.mustPost(t, "impostor", map[string]any{"action": "join", "roomCode": created.RoomCode, "name": "Ann", "deviceId": "dev-ann"})
	rejoined := h.mustPost(t, "impostor", map[string]any{"action": "join", "roomCode": created.RoomCode, "name": "Ann", "deviceId": "dev-ann"})
	assert.Equal(t, explicit.PlayerID, rejoined.PlayerID)
}

func TestGamesList(t *testing.T) {
	h := newHarness(t)

	status, out := h.get(t, "/games")
	require.Equal(t, http.StatusOK, status)

	var rules []party.Rules
	require.NoError(t, json.Unmarshal(out.Data, &rules))

	names := make([]string, 0, len(rules))
	for _, r := range rules {
		names = append(names, r.Name)
		assert.Equal(t, party.PhaseLobby, r.Phases[0])
		assert.Positive(t, r.MinPlayers)
	}
	assert.Equal(t, []string{"celebrity", "impostor", "wavelength"}, names)
}

func TestQRCode(t *testing.T) {
	h := newHarness(t)

	snap, _ := h.lobby(t, "impostor")

	resp, err := h.srv.Client().Get(h.srv.URL + "/api/impostor/" + snap.RoomCode + "/qr")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	png, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	status, out := h.get(t, "/api/impostor/QQQQ/qr")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "room not found", out.Error)
}

func TestRoomURL(t *testing.T) {
	cfg := &Config{}

	r := httptest.NewRequest(http.MethodGet, "http://party.example/hub/api/impostor/ABCD/qr", nil)
	assert.Equal(t, "http://party.example/hub/api/impostor/ABCD", roomURL(cfg, r))

	r.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://party.example/hub/api/impostor/ABCD", roomURL(cfg, r))

	r.Header.Set("X-Forwarded-Proto", "gopher")
	assert.Equal(t, "http://party.example/hub/api/impostor/ABCD", roomURL(cfg, r))
}

func TestPrefixedRoutes(t *testing.T) {
	h := newHarness(t, func(cfg *Config, _ *services) { cfg.prefix = "/party/" })

	resp, err := h.srv.Client().Get(h.srv.URL + "/party/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	status, out := h.get(t, "/party/games")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, out.Success)

	resp, err = h.srv.Client().Get(h.srv.URL + "/games")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestActionMetrics(t *testing.T) {
	h := newHarness(t)

	snap, ids := h.lobby(t, "impostor", "Ann")
	h.post(t, "impostor", map[string]any{"action": "start", "roomCode": snap.RoomCode, "playerId": ids["Host"]})

	assert.Equal(t, 1.0, testutil.ToFloat64(h.svc.metrics.actions.WithLabelValues("impostor", "create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.svc.metrics.actions.WithLabelValues("impostor", "join", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.svc.metrics.actions.WithLabelValues("impostor", "start", "conflict")))

	resp, err := h.srv.Client().Get(h.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "partyhub_rooms 1")
	assert.Contains(t, string(body), `partyhub_actions_total{action="join",game="impostor",outcome="ok"} 1`)
}

func TestPollerAgainstServer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	host := client.New(h.srv.URL, "impostor", client.WithDeviceID("dev-host"))
	_, err := host.Do(ctx, "create", map[string]any{"name": "Host"})
	require.NoError(t, err)
	require.True(t, host.IsHost())

	guests := make([]*client.Poller, 0, 2)
	for _, name := range []string{"Ann", "Bob"} {
		g := client.New(h.srv.URL, "impostor", client.WithDeviceID("dev-"+name))
		_, err := g.Do(ctx, "join", map[string]any{"roomCode": host.RoomCode(), "name": name})
		require.NoError(t, err)
		assert.False(t, g.IsHost())
		guests = append(guests, g)
	}

	_, err = guests[0].Do(ctx, "start", nil)
	require.Error(t, err)
	assert.Equal(t, "only the host can do that", guests[0].Err())

	_, err = host.Do(ctx, "start", nil)
	require.NoError(t, err)

	for _, g := range guests {
		require.NoError(t, g.Poll(ctx))
		snap, ok := g.Snapshot()
		require.True(t, ok)
		assert.Equal(t, party.Phase("description"), snap.Phase)
		assert.Empty(t, g.Err())
	}

	turns := 0
	for _, p := range append([]*client.Poller{host}, guests...) {
		if p.IsMyTurn() {
			turns++
		}
		assert.False(t, p.CanVote())
	}
	assert.Equal(t, 1, turns)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()

	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
