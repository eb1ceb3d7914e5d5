package httptransport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"novel-translate-service/internal/entity"
	"novel-translate-service/internal/novel"
	"novel-translate-service/internal/repository/redisstore"
	"novel-translate-service/internal/service"
	httptransport "novel-translate-service/internal/transport/http"
)

// ---- fakes ----

type triggerStub struct {
	ids []string
	err error
	n   int
}

func (t *triggerStub) Trigger(ctx context.Context, p entity.WorkflowPayload) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	id := t.ids[t.n]
	t.n++
	return id, nil
}

func (t *triggerStub) Cancel(ctx context.Context, runID string) error { return nil }

type credsStub map[string]string

func (c credsStub) RefreshToken(ctx context.Context, userID string) (string, error) {
	if tok, ok := c[userID]; ok {
		return tok, nil
	}
	return "", entity.ErrNoCredential
}

// ---- helpers ----

func newTestRouter(t *testing.T, trig *triggerStub) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := redisstore.NewJobStore(rdb, redisstore.Options{})
	// no test below reaches a real site
	dec := novel.NewDecomposer(novel.NewFetcher(nil), log)
	svc := service.NewJobService(store, trig, credsStub{"u1": "refresh"}, dec, service.Options{Logger: log})
	return httptransport.Routes(httptransport.NewHandler(svc, log), httptransport.RouteOptions{
		Logger:         log,
		CallbackSecret: callbackSecret,
	})
}

const callbackSecret = "cb-secret"

func progress(router http.Handler, id, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/rpc/progress/"+id, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func do(router http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(httptransport.UserHeader, user)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

const translateBody = `{"urls":["https://ncode.syosetu.com/n1/1/","https://ncode.syosetu.com/n1/2/"],
"provider":"openai","encrypted_api_key":"enc","model_id":"gpt-x","concurrency":2,"batch_size":10,"folder_id":"f1","api_key_name":"main"}`

func history(t *testing.T, router http.Handler, user string) []map[string]any {
	t.Helper()
	rr := do(router, http.MethodGet, "/rpc/history", user, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}
	var items []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &items); err != nil {
		t.Fatalf("invalid json: %v, body=%s", err, rr.Body.String())
	}
	return items
}

// ---- tests ----

func TestHTTP_Decompose_IdentityAndSplit(t *testing.T) {
	router := newTestRouter(t, &triggerStub{})

	rr := do(router, http.MethodPost, "/rpc/decompose", "", `{"url_string":"https://example.com/a\n https://example.com/b"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}

	var got []entity.ChapterReference
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(got) != 2 || got[0].URL != "https://example.com/a" || got[1].URL != "https://example.com/b" {
		t.Fatalf("unexpected chapters %+v", got)
	}
}

func TestHTTP_Decompose_400(t *testing.T) {
	router := newTestRouter(t, &triggerStub{})

	cases := map[string]string{
		"empty":       `{"url_string":"   "}`,
		"not a url":   `{"url_string":"hello"}`,
		"pixiv ajax":  `{"url_string":"https://www.pixiv.net/ajax/novel/1"}`,
		"broken json": `{"url_string":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := do(router, http.MethodPost, "/rpc/decompose", "", body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d, body=%s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestHTTP_Decompose_ShapeErrorNamesAddress(t *testing.T) {
	router := newTestRouter(t, &triggerStub{})

	addr := "https://ncode.syosetu.com/n123/3/x"
	rr := do(router, http.MethodPost, "/rpc/decompose", "", `{"url_string":"`+addr+`"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d, body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !strings.Contains(resp.Message, addr) {
		t.Fatalf("expected message to name %s, got %q", addr, resp.Message)
	}
}

func TestHTTP_Translate_401_WithoutUser(t *testing.T) {
	router := newTestRouter(t, &triggerStub{ids: []string{"wfr_1"}})

	rr := do(router, http.MethodPost, "/rpc/translate", "", translateBody)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestHTTP_Translate_403_WithoutCredential(t *testing.T) {
	router := newTestRouter(t, &triggerStub{ids: []string{"wfr_1"}})

	rr := do(router, http.MethodPost, "/rpc/translate", "u2", translateBody)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d, body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "no refresh token") {
		t.Fatalf("expected no refresh token message, got %s", rr.Body.String())
	}
}

func TestHTTP_Translate_400_OnInvalidRequest(t *testing.T) {
	router := newTestRouter(t, &triggerStub{ids: []string{"wfr_1"}})

	body := strings.Replace(translateBody, `"concurrency":2`, `"concurrency":0`, 1)
	rr := do(router, http.MethodPost, "/rpc/translate", "u1", body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d, body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "concurrency") {
		t.Fatalf("expected field name in message, got %s", rr.Body.String())
	}
}

func TestHTTP_Translate_500_HidesInternals(t *testing.T) {
	router := newTestRouter(t, &triggerStub{err: errors.New("dial tcp 10.0.0.1:6379: refused")})

	rr := do(router, http.MethodPost, "/rpc/translate", "u1", translateBody)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "10.0.0.1") {
		t.Fatalf("expected internal details hidden, got %s", rr.Body.String())
	}
}

func TestHTTP_TranslateThenHistory(t *testing.T) {
	router := newTestRouter(t, &triggerStub{ids: []string{"wfr_1"}})

	rr := do(router, http.MethodPost, "/rpc/translate", "u1", translateBody)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}
	if strings.TrimSpace(rr.Body.String()) != `"ok"` {
		t.Fatalf("expected \"ok\", got %s", rr.Body.String())
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("expected no-store, got %q", rr.Header().Get("Cache-Control"))
	}

	items := history(t, router, "u1")
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	it := items[0]
	if it["taskId"] != "wfr_1" || it["status"] != "starting" {
		t.Fatalf("unexpected item %#v", it)
	}
	// numbers in map[string]any decode as float64
	if it["total"] != float64(2) || it["current"] != float64(0) {
		t.Fatalf("expected 0/2, got %v/%v", it["current"], it["total"])
	}
	if it["model"] != "gpt-x" || it["apiKeyName"] != "main" {
		t.Fatalf("unexpected model fields %#v", it)
	}
	if ms, ok := it["createdAt"].(float64); !ok || ms <= 0 {
		t.Fatalf("expected createdAt as epoch millis, got %#v", it["createdAt"])
	}

	if other := history(t, router, "u9"); len(other) != 0 {
		t.Fatalf("expected empty history for another user, got %#v", other)
	}
}

func TestHTTP_CancelThenProgressKeepsCanceled(t *testing.T) {
	router := newTestRouter(t, &triggerStub{ids: []string{"wfr_1"}})

	if rr := do(router, http.MethodPost, "/rpc/translate", "u1", translateBody); rr.Code != http.StatusOK {
		t.Fatalf("translate: %d %s", rr.Code, rr.Body.String())
	}
	for i := 0; i < 2; i++ {
		if rr := do(router, http.MethodPost, "/rpc/cancel", "u1", `{"workflow_id":"wfr_1"}`); rr.Code != http.StatusOK {
			t.Fatalf("cancel #%d: expected 200, got %d", i+1, rr.Code)
		}
	}

	rr := progress(router, "wfr_1", callbackSecret, `{"status":"running","current":1,"progress":50}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("progress: expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}

	it := history(t, router, "u1")[0]
	if it["status"] != "canceled" || it["current"] != float64(1) {
		t.Fatalf("expected canceled with current=1, got %#v", it)
	}
}

func TestHTTP_Cancel_Errors(t *testing.T) {
	router := newTestRouter(t, &triggerStub{})

	if rr := do(router, http.MethodPost, "/rpc/cancel", "", `{"workflow_id":"wfr_1"}`); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user, got %d", rr.Code)
	}
	if rr := do(router, http.MethodPost, "/rpc/cancel", "u1", `{"workflow_id":""}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing id, got %d", rr.Code)
	}
	if rr := do(router, http.MethodPost, "/rpc/cancel", "u1", `{"workflow_id":"wfr_unknown"}`); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rr.Code)
	}
}

func TestHTTP_Cancel_404_ForOtherUsersJob(t *testing.T) {
	router := newTestRouter(t, &triggerStub{ids: []string{"wfr_1"}})

	if rr := do(router, http.MethodPost, "/rpc/translate", "u1", translateBody); rr.Code != http.StatusOK {
		t.Fatalf("translate: %d %s", rr.Code, rr.Body.String())
	}
	if rr := do(router, http.MethodPost, "/rpc/cancel", "u2", `{"workflow_id":"wfr_1"}`); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if it := history(t, router, "u1")[0]; it["status"] != "starting" {
		t.Fatalf("expected job untouched, got %#v", it)
	}
}

func TestHTTP_Progress_401_WithoutCallbackSecret(t *testing.T) {
	router := newTestRouter(t, &triggerStub{ids: []string{"wfr_1"}})

	if rr := do(router, http.MethodPost, "/rpc/translate", "u1", translateBody); rr.Code != http.StatusOK {
		t.Fatalf("translate: %d %s", rr.Code, rr.Body.String())
	}
	for name, token := range map[string]string{"missing": "", "wrong": "guess"} {
		rr := progress(router, "wfr_1", token, `{"status":"completed"}`)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s token: expected 401, got %d", name, rr.Code)
		}
	}
	if it := history(t, router, "u1")[0]; it["status"] != "starting" {
		t.Fatalf("expected job untouched, got %#v", it)
	}
}

func TestHTTP_Progress_IsUnreachableWithoutConfiguredSecret(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewJobService(redisstore.NewJobStore(rdb, redisstore.Options{}), &triggerStub{},
		credsStub{}, novel.NewDecomposer(nil, log), service.Options{Logger: log})
	router := httptransport.Routes(httptransport.NewHandler(svc, log), httptransport.RouteOptions{Logger: log})

	req := httptest.NewRequest(http.MethodPost, "/rpc/progress/wfr_1", bytes.NewBufferString(`{}`))
	req.Header.Set("Authorization", "Bearer ")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestHTTP_DeleteHistory_AcceptsBothBodies(t *testing.T) {
	router := newTestRouter(t, &triggerStub{ids: []string{"wfr_1", "wfr_2"}})

	for i := 0; i < 2; i++ {
		if rr := do(router, http.MethodPost, "/rpc/translate", "u1", translateBody); rr.Code != http.StatusOK {
			t.Fatalf("translate: %d %s", rr.Code, rr.Body.String())
		}
	}

	for _, body := range []string{`"wfr_1"`, `{"task_id":"wfr_2"}`} {
		rr := do(router, http.MethodPost, "/rpc/history/delete", "u1", body)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d, body=%s", body, rr.Code, rr.Body.String())
		}
		if strings.TrimSpace(rr.Body.String()) != `{"success":true}` {
			t.Fatalf("unexpected body %s", rr.Body.String())
		}
	}

	if items := history(t, router, "u1"); len(items) != 0 {
		t.Fatalf("expected empty history, got %#v", items)
	}
}

func TestHTTP_DeleteHistory_400_WithoutID(t *testing.T) {
	router := newTestRouter(t, &triggerStub{})

	for _, body := range []string{`""`, `{}`, `42`} {
		rr := do(router, http.MethodPost, "/rpc/history/delete", "u1", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, rr.Code)
		}
	}
}

func TestHTTP_History_401_WithoutUser(t *testing.T) {
	router := newTestRouter(t, &triggerStub{})

	if rr := do(router, http.MethodGet, "/rpc/history", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestHTTP_Health(t *testing.T) {
	router := newTestRouter(t, &triggerStub{})

	rr := do(router, http.MethodGet, "/health", "", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("expected 200 ok, got %d %q", rr.Code, rr.Body.String())
	}
}
