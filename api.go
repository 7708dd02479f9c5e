/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Seednode/partyhub/party"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	deviceCookieName = "partyhub_id"
	maxRequestBody   = 64 << 10
)

var errBadRequest = party.NewError(party.KindValidation, "invalid request body")

// request is the envelope every action is posted in. Fields not listed here
// are left in the raw body for the game to decode.
type request struct {
	Action   string `json:"action"`
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	DeviceID string `json:"deviceId"`
	Name     string `json:"name"`
	Locked   *bool  `json:"locked"`
}

type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// statusOf maps an error to its HTTP status and the message shown to the
// client. Errors from outside the party package are never echoed.
func statusOf(err error) (int, string) {
	switch party.KindOf(err) {
	case party.KindNotFound:
		return http.StatusNotFound, err.Error()
	case party.KindValidation:
		return http.StatusBadRequest, err.Error()
	case party.KindForbidden:
		return http.StatusForbidden, err.Error()
	case party.KindConflict:
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, body response, errs chan<- error) int {
	buf, err := json.Marshal(body)
	if err != nil {
		errs <- err
		status = http.StatusInternalServerError
		buf = []byte(`{"success":false,"error":"internal server error"}`)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	written, err := w.Write(buf)
	if err != nil {
		errs <- err
	}
	return written
}

func writeError(cfg *Config, w http.ResponseWriter, err error, errs chan<- error) int {
	status, msg := statusOf(err)
	if status == http.StatusInternalServerError {
		errs <- err
	}
	return writeJSON(cfg, w, status, response{Error: msg}, errs)
}

// deviceID identifies the browser behind a request, so a reload can hand
// back the same player. An explicit id in the envelope wins over the cookie.
func deviceID(cfg *Config, w http.ResponseWriter, r *http.Request, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if c, err := r.Cookie(deviceCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     deviceCookieName,
		Value:    id,
		Path:     cfg.prefix + "/",
		HttpOnly: true,
		Secure:   cfg.scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

func knownGame(m *party.Manager, name string) bool {
	for _, rules := range m.Games() {
		if rules.Name == name {
			return true
		}
	}
	return false
}

// dispatch runs one action against the manager as the player on device.
// Anything that is not a room operation is handed to the game along with
// the full body.
func dispatch(m *party.Manager, game string, req request, device string, body []byte) (any, error) {
	switch req.Action {
	case "":
		return nil, party.ErrInvalidAction
	case "create":
		return m.Create(game, req.Name, device)
	case "join":
		return m.Join(game, req.RoomCode, req.Name, device)
	case "start":
		return m.Start(game, req.RoomCode, req.PlayerID, device)
	case "get":
		return m.State(game, req.RoomCode, req.PlayerID, device)
	case "nextRound":
		return m.NextRound(game, req.RoomCode, req.PlayerID, device)
	case "reset":
		return m.Reset(game, req.RoomCode, req.PlayerID, device)
	case "lock":
		locked := true
		if req.Locked != nil {
			locked = *req.Locked
		}
		return m.Lock(game, req.RoomCode, req.PlayerID, device, locked)
	case "close":
		return nil, m.Close(game, req.RoomCode, req.PlayerID, device)
	default:
		return m.Act(game, req.RoomCode, req.PlayerID, device, req.Action, body)
	}
}

func serveAction(cfg *Config, m *party.Manager, mt *metrics, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		game := p.ByName("game")
		if !knownGame(m, game) {
			writeError(cfg, w, party.ErrUnknownGame, errs)
			mt.observe("unknown", "", party.ErrUnknownGame, time.Since(startTime))

			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
		if err != nil {
			writeError(cfg, w, errBadRequest, errs)
			mt.observe(game, "", errBadRequest, time.Since(startTime))

			return
		}

		var req request
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(cfg, w, errBadRequest, errs)
			mt.observe(game, "", errBadRequest, time.Since(startTime))

			return
		}

		span := trace.SpanFromContext(r.Context())
		span.SetAttributes(
			attribute.String("partyhub.game", game),
			attribute.String("partyhub.action", req.Action),
			attribute.String("partyhub.room", party.NormalizeCode(req.RoomCode)),
		)

		device := deviceID(cfg, w, r, req.DeviceID)

		data, err := dispatch(m, game, req, device, body)

		var written int
		if err != nil {
			span.SetAttributes(attribute.String("partyhub.error", party.KindOf(err).String()))
			written = writeError(cfg, w, err, errs)
		} else {
			written = writeJSON(cfg, w, http.StatusOK, response{Success: true, Data: data}, errs)
		}

		mt.observe(game, req.Action, err, time.Since(startTime))

		logf(cfg, "SERVE: %s %q for %s (%s) to %s in %s",
			game,
			req.Action,
			party.NormalizeCode(req.RoomCode),
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveState(cfg *Config, m *party.Manager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		q := r.URL.Query()
		playerID := q.Get("playerId")

		var device string
		if playerID != "" {
			device = deviceID(cfg, w, r, q.Get("deviceId"))
		}

		snap, err := m.State(p.ByName("game"), p.ByName("code"), playerID, device)
		if err != nil {
			writeError(cfg, w, err, errs)

			return
		}

		writeJSON(cfg, w, http.StatusOK, response{Success: true, Data: snap}, errs)
	}
}

func serveGames(cfg *Config, m *party.Manager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		writeJSON(cfg, w, http.StatusOK, response{Success: true, Data: m.Games()}, errs)
	}
}

// outcome is the metrics label for the result of an action.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return party.KindOf(err).String()
}
