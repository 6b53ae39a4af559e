package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/inbox-triage/internal/core"
)

type fakeRunner struct {
	calls   int
	reports []*core.BatchReport
	err     error
}

func (f *fakeRunner) RunOnce(context.Context) ([]*core.BatchReport, error) {
	f.calls++
	return f.reports, f.err
}

func (f *fakeRunner) Start() error { return nil }
func (f *fakeRunner) Stop() error  { return nil }

type fakeReviewer struct {
	err error
}

func (f *fakeReviewer) Revise(_ context.Context, userID, emailID, draft, instruction string) (*core.DraftVersion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &core.DraftVersion{EmailID: emailID, Version: 2, Text: draft + "!", Instruction: instruction, CreatedAt: time.Unix(0, 0).UTC()}, nil
}

func (f *fakeReviewer) Send(_ context.Context, userID, emailID, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "sent-" + emailID, nil
}

func newTestServer(runner *fakeRunner, reviewer *fakeReviewer) http.Handler {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("triage_batches_total 1\n"))
	})
	return NewServer(Config{CronSecret: "s3cret", APIToken: "tok"}, runner, reviewer, metrics, nil).Handler()
}

func do(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(&fakeRunner{}, &fakeReviewer{})

	rec := do(h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "triage_batches_total")
}

func TestCronPoll(t *testing.T) {
	runner := &fakeRunner{reports: []*core.BatchReport{{UserID: "u1", Total: 3, Processed: 2, Failed: 1}}}
	h := newTestServer(runner, &fakeReviewer{})

	rec := do(h, http.MethodPost, "/cron/poll", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodPost, "/cron/poll", "", map[string]string{cronSecretHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, runner.calls)

	rec = do(h, http.MethodPost, "/cron/poll", "", map[string]string{cronSecretHeader: "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, runner.calls)

	var resp struct {
		OK      bool                `json:"ok"`
		Reports []*core.BatchReport `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	require.Len(t, resp.Reports, 1)
	assert.Equal(t, 1, resp.Reports[0].Failed)

	rec = do(h, http.MethodGet, "/cron/poll", "", map[string]string{cronSecretHeader: "s3cret"})
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	runner.err = errors.New("db down")
	rec = do(h, http.MethodPost, "/cron/poll", "", map[string]string{cronSecretHeader: "s3cret"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCronPollWithoutSecretConfigured(t *testing.T) {
	runner := &fakeRunner{}
	h := NewServer(Config{}, runner, nil, nil, nil).Handler()

	rec := do(h, http.MethodPost, "/cron/poll", "", map[string]string{cronSecretHeader: ""})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, runner.calls)

	rec = do(h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReviewAPI(t *testing.T) {
	reviewer := &fakeReviewer{}
	h := newTestServer(&fakeRunner{}, reviewer)
	auth := map[string]string{"Authorization": "Bearer tok"}

	rec := do(h, http.MethodPost, "/api/users/u1/emails/e1/revise", `{"draft_text":"Hi","instruction":"shorter"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodPost, "/api/users/u1/emails/e1/revise", `{"draft_text":"Hi","instruction":"shorter"}`, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	var draft map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &draft))
	assert.Equal(t, "e1", draft["email_item_id"])
	assert.Equal(t, "Hi!", draft["draft_text"])
	assert.EqualValues(t, 2, draft["version"])

	rec = do(h, http.MethodPost, "/api/users/u1/emails/e1/send", `{"final_text":"Bye"}`, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sent_message_id":"sent-e1"`)

	rec = do(h, http.MethodPost, "/api/users/u1/emails/e1/send", `{"text":`, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewAPIErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", core.ErrNotFound, http.StatusNotFound},
		{"invalid", core.ErrInvalidInput, http.StatusBadRequest},
		{"collaborator", &core.CollaboratorError{Step: "send", Err: errors.New("smtp down")}, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&fakeRunner{}, &fakeReviewer{err: tt.err})
			rec := do(h, http.MethodPost, "/api/users/u1/emails/e1/send", `{"final_text":"x"}`, map[string]string{"Authorization": "Bearer tok"})
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestReviewAPIDisabledWithoutToken(t *testing.T) {
	h := NewServer(Config{CronSecret: "s"}, &fakeRunner{}, &fakeReviewer{}, nil, nil).Handler()
	rec := do(h, http.MethodPost, "/api/users/u1/emails/e1/send", `{"final_text":"x"}`, map[string]string{"Authorization": "Bearer "})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
