package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serveWithRequestID(t *testing.T, header string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) { Success(c, http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if header != "" {
		req.Header.Set(HeaderRequestID, header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	return w, body
}

func TestRequestIDKeepsForwardedUUID(t *testing.T) {
	forwarded := "8D1B6E2A-4C1F-4F8E-9C57-0B2E3A4D5F60"
	w, body := serveWithRequestID(t, forwarded)

	want := uuid.MustParse(forwarded).String()
	if got := w.Header().Get(HeaderRequestID); got != want {
		t.Errorf("header = %q, want %q", got, want)
	}
	if body.Metadata.RequestID != want {
		t.Errorf("metadata request_id = %q, want %q", body.Metadata.RequestID, want)
	}
}

func TestRequestIDReplacesUntrustedValues(t *testing.T) {
	for _, header := range []string{"", "abc\nforged=1", uuid.Nil.String()} {
		w, body := serveWithRequestID(t, header)
		got := w.Header().Get(HeaderRequestID)
		id, err := uuid.Parse(got)
		if err != nil || id == uuid.Nil {
			t.Errorf("header %q: got id %q", header, got)
		}
		if body.Metadata.RequestID != got {
			t.Errorf("header %q: metadata %q differs from header %q", header, body.Metadata.RequestID, got)
		}
	}
}

func TestMetadataWithoutMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/ping", func(c *gin.Context) {
		if RequestID(c) != "" {
			t.Errorf("RequestID without middleware = %q", RequestID(c))
		}
		Success(c, http.StatusOK, nil)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(body.Metadata.RequestID); err != nil {
		t.Errorf("fallback request_id %q: %v", body.Metadata.RequestID, err)
	}
}
