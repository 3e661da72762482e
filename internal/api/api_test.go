package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rflorenc/facility-workbench/internal/datasource"
	"github.com/rflorenc/facility-workbench/internal/models"
	"github.com/rflorenc/facility-workbench/internal/notify"
	"github.com/rflorenc/facility-workbench/internal/resources"
	"github.com/rflorenc/facility-workbench/internal/screen"
	"github.com/rflorenc/facility-workbench/internal/session"
)

type stubAuth struct{ body string }

func (a stubAuth) Post(ctx context.Context, path string, payload interface{}) ([]byte, int, error) {
	if path == "/login" {
		creds := payload.(session.Credentials)
		if creds.Password != "secret-pass" {
			return nil, 401, &datasource.FetchError{Method: "POST", Path: path, Status: 401, Message: "Unauthorized"}
		}
	}
	return []byte(a.body), 200, nil
}

type testEnv struct {
	server *Server
	fakes  map[string]*datasource.Fake
	notes  *notify.Center
	router http.Handler
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{fakes: map[string]*datasource.Fake{
		"accounts": datasource.NewFake("id",
			models.Item{"id": float64(1), "first_name": "Jane", "last_name": "Smith", "email": "jane@club.test", "phone": "0612345678", "role": "user"},
			models.Item{"id": float64(2), "first_name": "Omar", "last_name": "Alaoui", "email": "omar@club.test", "phone": "0622222222", "role": "admin"},
		),
		"terrains": datasource.NewFake("id", models.Item{"id": float64(1), "name": "Pitch A", "type": "football", "capacity": float64(22), "price_per_hour": float64(300)}),
	}}
	env.notes = notify.NewCenter(time.Minute)
	t.Cleanup(env.notes.Close)

	registry := resources.Default()
	off := false
	require.NoError(t, registry.Apply(map[string]resources.Override{"accounts": {ServerFiltering: &off}}))

	env.server = &Server{
		Screens:  screen.NewStore(),
		Registry: registry,
		Sources: func(schema *models.Schema) datasource.Source {
			if f, ok := env.fakes[schema.Name]; ok {
				return f
			}
			return datasource.NewFake(schema.PrimaryKey)
		},
		Notes:   env.notes,
		Session: session.NewStore(""),
		Auth:    stubAuth{body: `{"token":"opaque","user":{"id":5,"role":"admin","first_name":"Admin"}}`},
		Options: screen.Options{StageDir: t.TempDir()},
	}
	t.Cleanup(env.server.Screens.CloseAll)
	env.router = NewRouter(env.server, nil)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	var out map[string]interface{}
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func (e *testEnv) mount(t *testing.T, resource string) string {
	t.Helper()
	w, view := e.do(t, "POST", "/api/screens", map[string]string{"resource": resource})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return view["id"].(string)
}

func TestListResources(t *testing.T) {
	env := newEnv(t)
	w, _ := env.do(t, "GET", "/api/resources", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var schemas []models.Schema
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &schemas))
	assert.Len(t, schemas, 6)
}

func TestMountScreen(t *testing.T) {
	env := newEnv(t)
	w, view := env.do(t, "POST", "/api/screens", map[string]string{"resource": "accounts"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "ready", view["state"])
	assert.Len(t, view["items"], 2)
	assert.Equal(t, "current_page", view["search_scope"])

	w, _ = env.do(t, "POST", "/api/screens", map[string]string{"resource": "invoices"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = env.do(t, "GET", "/api/screens/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMountWithFailingBackendShowsErrorState(t *testing.T) {
	env := newEnv(t)
	env.fakes["accounts"].ListErr = &datasource.FetchError{Status: 503, Message: "Maintenance"}
	w, view := env.do(t, "POST", "/api/screens", map[string]string{"resource": "accounts"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "error", view["state"])
	assert.Equal(t, "Maintenance", view["error"])

	env.fakes["accounts"].ListErr = nil
	w, view = env.do(t, "POST", "/api/screens/"+view["id"].(string)+"/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", view["state"])
}

func TestSearchEmptyStateAndClear(t *testing.T) {
	env := newEnv(t)
	id := env.mount(t, "accounts")

	w, view := env.do(t, "PUT", "/api/screens/"+id+"/query/search", map[string]string{"text": "zzz"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "empty", view["state"])
	assert.Equal(t, true, view["narrowed"])

	w, view = env.do(t, "DELETE", "/api/screens/"+id+"/query/filters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", view["state"])

	w, _ = env.do(t, "PUT", "/api/screens/"+id+"/query/sort", map[string]string{"field": "phone"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = env.do(t, "PUT", "/api/screens/"+id+"/query/page", map[string]int{"page": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateValidationReturns422(t *testing.T) {
	env := newEnv(t)
	id := env.mount(t, "accounts")

	w, _ := env.do(t, "POST", "/api/screens/"+id+"/form", map[string]string{"mode": "creating"})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = env.do(t, "PUT", "/api/screens/"+id+"/form/fields/first_name", map[string]string{"value": "Nadia"})
	require.Equal(t, http.StatusOK, w.Code)

	w, body := env.do(t, "POST", "/api/screens/"+id+"/form/submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	fields := body["fields"].(map[string]interface{})
	assert.Contains(t, fields, "email")
	assert.NotNil(t, body["view"])
	assert.Equal(t, 0, env.fakes["accounts"].CallCount("create"))

	w, _ = env.do(t, "PUT", "/api/screens/"+id+"/form/fields/nickname", map[string]string{"value": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEditRoleEndToEnd(t *testing.T) {
	env := newEnv(t)
	id := env.mount(t, "accounts")

	w, _ := env.do(t, "POST", "/api/screens/"+id+"/form", map[string]string{"mode": "editing", "target_id": "1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, _ = env.do(t, "PUT", "/api/screens/"+id+"/form/fields/role", map[string]string{"value": "admin"})
	require.Equal(t, http.StatusOK, w.Code)
	w, view := env.do(t, "POST", "/api/screens/"+id+"/form/submit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, view["form"])

	notes := view["notifications"].([]interface{})
	require.NotEmpty(t, notes)
	last := notes[len(notes)-1].(map[string]interface{})
	assert.Equal(t, "success", last["kind"])
	assert.Contains(t, last["message"], "admin")
}

func TestConfirmationFlow(t *testing.T) {
	env := newEnv(t)
	id := env.mount(t, "accounts")
	base := "/api/screens/" + id

	w, view := env.do(t, "POST", base+"/confirmation", map[string]string{"action": "delete", "target_id": "1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, view["confirmation"])

	w, _ = env.do(t, "POST", base+"/form", map[string]string{"mode": "creating"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, view = env.do(t, "DELETE", base+"/confirmation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, view["confirmation"])
	assert.Equal(t, 0, env.fakes["accounts"].CallCount("remove"))

	env.do(t, "POST", base+"/confirmation", map[string]interface{}{"action": "reset-credential", "target_id": "1", "payload": map[string]string{"password": "short"}})
	w, body := env.do(t, "POST", base+"/confirmation/confirm", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, body["error"], "at least 8")

	w, _ = env.do(t, "PUT", base+"/confirmation/payload", map[string]string{"key": "password", "value": "long-enough-1"})
	require.Equal(t, http.StatusOK, w.Code)
	w, view = env.do(t, "POST", base+"/confirmation/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, view["confirmation"])

	env.do(t, "POST", base+"/confirmation", map[string]string{"action": "delete", "target_id": "2"})
	w, view = env.do(t, "POST", base+"/confirmation/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, view["items"], 1)
	assert.Equal(t, 1, env.fakes["accounts"].CallCount("remove"))
}

func TestDuplicateStateIsNotMaskedAsSuccess(t *testing.T) {
	env := newEnv(t)
	id := env.mount(t, "accounts")
	env.fakes["accounts"].ActionErr = &datasource.FetchError{Method: "POST", Path: "/users/1/role", Status: 409, Message: "Role already assigned"}

	env.do(t, "POST", "/api/screens/"+id+"/confirmation", map[string]string{"action": "toggle-role", "target_id": "1"})
	w, body := env.do(t, "POST", "/api/screens/"+id+"/confirmation/confirm", nil)
	assert.Equal(t, http.StatusOK, w.Code, "backend failures are reported in the view")
	notes := body["notifications"].([]interface{})
	last := notes[len(notes)-1].(map[string]interface{})
	assert.Equal(t, "error", last["kind"])
	assert.Equal(t, "Role already assigned", last["message"])
}

func TestImageUpload(t *testing.T) {
	env := newEnv(t)
	id := env.mount(t, "terrains")
	w, _ := env.do(t, "POST", "/api/screens/"+id+"/form", map[string]string{"mode": "editing", "target_id": "1"})
	require.Equal(t, http.StatusOK, w.Code)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "pitch.png")
	require.NoError(t, err)
	part.Write([]byte("png-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/screens/"+id+"/form/images/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view screen.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.NotNil(t, view.Form)
	assert.NotEmpty(t, view.Form.Images["image"])
}

func TestCSRFProtectsMultipart(t *testing.T) {
	env := newEnv(t)
	env.server.CSRFKey = []byte("0123456789abcdef0123456789abcdef")
	env.router = NewRouter(env.server, nil)
	id := env.mount(t, "terrains")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "pitch.png")
	part.Write([]byte("png"))
	mw.Close()
	req := httptest.NewRequest("POST", "/api/screens/"+id+"/form/images/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSessionEndpoints(t *testing.T) {
	env := newEnv(t)
	w, _ := env.do(t, "GET", "/api/session", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = env.do(t, "POST", "/api/session", map[string]string{"email": "a@club.test", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := env.do(t, "POST", "/api/session", map[string]string{"email": "a@club.test", "password": "secret-pass"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "admin", body["role"])
	assert.Equal(t, "opaque", env.server.Session.Token())

	id := env.mount(t, "accounts")
	w, _ = env.do(t, "DELETE", "/api/session", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Nil(t, env.server.Screens.Get(id), "logout closes screens")
	w, _ = env.do(t, "DELETE", "/api/session", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestScreensRequireAdminSession(t *testing.T) {
	env := newEnv(t)
	id := env.mount(t, "accounts")

	env.server.Auth = stubAuth{body: `{"token":"opaque","user":{"id":6,"role":"user","first_name":"Sam"}}`}
	w, _ := env.do(t, "POST", "/api/session", map[string]string{"email": "sam@club.test", "password": "secret-pass"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, body := env.do(t, "POST", "/api/screens", map[string]string{"resource": "accounts"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "admin role required", body["error"])
	w, _ = env.do(t, "POST", "/api/screens/"+id+"/form", map[string]string{"mode": "creating"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, env.fakes["accounts"].CallCount("create"))

	w, _ = env.do(t, "GET", "/api/resources", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReplaySetSkipsRepeatedAdds(t *testing.T) {
	r := newReplaySet()
	r.add("n1")
	first := notify.Event{Kind: notify.EventAdded, Notification: models.Notification{ID: "n1"}}
	assert.True(t, r.skip(first))
	assert.False(t, r.skip(first), "only the one replayed copy is dropped")
	assert.False(t, r.skip(notify.Event{Kind: notify.EventAdded, Notification: models.Notification{ID: "n2"}}))

	r.add("n3")
	assert.False(t, r.skip(notify.Event{Kind: notify.EventExpired, Notification: models.Notification{ID: "n3"}}))
}

func TestNotificationStream(t *testing.T) {
	env := newEnv(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	env.notes.Info("already here")
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/notifications"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var ev notify.Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "already here", ev.Notification.Message)

	env.notes.Success("saved")
	for ev.Notification.Message != "saved" {
		require.NoError(t, conn.ReadJSON(&ev))
	}
	assert.Equal(t, notify.EventAdded, ev.Kind)
	assert.Equal(t, models.NotifySuccess, ev.Notification.Kind)

	w, _ := env.do(t, "DELETE", "/api/notifications/"+ev.Notification.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
