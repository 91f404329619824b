package common_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	validator "github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-laundry/internal/common"
)

type errorEnvelope struct {
	Error common.ErrorBody `json:"error"`
}

type samplePayload struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"count" validate:"gte=1"`
}

func TestDecodeJSONValidates(t *testing.T) {
	v := validator.New()

	var dst samplePayload
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"","count":0}`))
	err := common.DecodeJSON(req, v, &dst)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
	details, ok := appErr.Details.(map[string]string)
	require.True(t, ok)
	require.Equal(t, "required", details["Name"])
	require.Equal(t, "gte=1", details["Count"])

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","count":1,"extra":true}`))
	err = common.DecodeJSON(req, v, &dst)
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeBadRequest, appErr.Code)
}

func TestWriteErrorShapes(t *testing.T) {
	rec := httptest.NewRecorder()
	common.WriteError(rec, common.NotFoundError("missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, common.CodeNotFound, body.Error.Code)

	rec = httptest.NewRecorder()
	common.WriteError(rec, errTest("boom"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "internal error", body.Error.Message)
}

type errTest string

func (e errTest) Error() string { return string(e) }

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	calls := 0
	handler := common.Idem{R: client, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		common.JSON(w, http.StatusCreated, map[string]int{"call": calls})
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/drafts", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
		require.JSONEq(t, `{"call":1}`, rec.Body.String())
	}
	require.Equal(t, 1, calls)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/drafts", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.JSONEq(t, `{"call":2}`, rec.Body.String())
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, remote: "10.0.0.1:5000", want: "203.0.113.7"},
		{name: "garbage forwarded", headers: map[string]string{"X-Forwarded-For": "<script>"}, remote: "10.0.0.1:5000", want: "10.0.0.1"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "2001:db8::1"}, remote: "10.0.0.1:5000", want: "2001:db8::1"},
		{name: "remote addr", remote: "192.0.2.1:1234", want: "192.0.2.1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tc.want, common.ClientIP(req))
		})
	}
}
