package surge_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hamzali/surge"
)

func TestClientDo(t *testing.T) {
	t.Run("should measure a successful request", func(st *testing.T) {
		body := "hello world"
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, body)
		}))
		defer srv.Close()

		client := surge.NewClient(srv.URL, time.Second, 1)
		result := client.Do(context.Background(), surge.Endpoint{Name: "health", Method: "GET", Path: "/api/health/"}, 7)

		if result.StatusCode != 200 {
			st.Fatalf("expected status 200 but got %d", result.StatusCode)
		}
		if result.Bytes != int64(len(body)) {
			st.Fatalf("expected %d bytes but got %d", len(body), result.Bytes)
		}
		if result.Err != "" {
			st.Fatalf("unexpected error: %s", result.Err)
		}
		if result.Duration <= 0 {
			st.Fatal("duration was not measured")
		}
		if result.Timestamp.IsZero() {
			st.Fatal("timestamp was not recorded")
		}
		if result.Endpoint != "health" || result.Method != "GET" || result.Concurrency != 7 {
			st.Fatalf("request context lost: %+v", result)
		}
		if !result.Success() || !result.Completed() {
			st.Fatalf("expected a completed success: %+v", result)
		}
	})

	t.Run("should send method, headers and body", func(st *testing.T) {
		var gotMethod, gotType, gotBody string

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			gotMethod = r.Method
			gotType = r.Header.Get("Content-Type")
			gotBody = string(b)
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		endpoint := surge.Endpoint{
			Name:    "login",
			Method:  "POST",
			Path:    "/api/auth/login/",
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    `{"email": "test@example.com"}`,
		}

		client := surge.NewClient(srv.URL, time.Second, 1)
		result := client.Do(context.Background(), endpoint, 1)

		if result.StatusCode != 201 {
			st.Fatalf("expected status 201 but got %d", result.StatusCode)
		}
		if gotMethod != "POST" {
			st.Fatalf("expected POST but got %s", gotMethod)
		}
		if gotType != "application/json" {
			st.Fatalf("header lost, got %q", gotType)
		}
		if gotBody != endpoint.Body {
			st.Fatalf("expected body %q but got %q", endpoint.Body, gotBody)
		}
	})

	t.Run("should keep application errors as completed requests", func(st *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := surge.NewClient(srv.URL, time.Second, 1)
		result := client.Do(context.Background(), surge.Endpoint{Name: "a", Method: "GET", Path: "/"}, 1)

		if result.StatusCode != 500 {
			st.Fatalf("expected status 500 but got %d", result.StatusCode)
		}
		if !result.Completed() || result.Success() {
			st.Fatalf("expected a completed failure: %+v", result)
		}
		if result.Err != "" {
			st.Fatalf("application errors carry no transport error, got %q", result.Err)
		}
	})

	t.Run("should record transport failures with status zero", func(st *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		client := surge.NewClient(srv.URL, time.Second, 1)
		result := client.Do(context.Background(), surge.Endpoint{Name: "a", Method: "GET", Path: "/"}, 1)

		if result.StatusCode != 0 {
			st.Fatalf("expected status 0 but got %d", result.StatusCode)
		}
		if result.Completed() {
			st.Fatal("transport failure marked completed")
		}
		if result.Err == "" {
			st.Fatal("expected an error message")
		}
		if result.Bytes != 0 {
			st.Fatalf("expected no bytes but got %d", result.Bytes)
		}
	})

	t.Run("should time out slow responses", func(st *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
		}))
		defer srv.Close()

		client := surge.NewClient(srv.URL, 50*time.Millisecond, 1)
		result := client.Do(context.Background(), surge.Endpoint{Name: "slow", Method: "GET", Path: "/"}, 1)

		if result.StatusCode != 0 {
			st.Fatalf("expected status 0 but got %d", result.StatusCode)
		}
		if result.Err == "" {
			st.Fatal("expected an error message")
		}
	})
}

func TestProbe(t *testing.T) {
	t.Run("should return the probe status", func(st *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/health/" {
				st.Errorf("expected probe on /api/health/ but got %s", r.URL.Path)
			}
		}))
		defer srv.Close()

		client := surge.NewClient(srv.URL, time.Second, 1)

		status, err := client.Probe(context.Background(), "/api/health/")
		if err != nil {
			st.Fatalf("unexpected error: %v", err)
		}
		if status != 200 {
			st.Fatalf("expected status 200 but got %d", status)
		}
	})

	t.Run("should treat any status as reachable", func(st *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		client := surge.NewClient(srv.URL, time.Second, 1)

		status, err := client.Probe(context.Background(), "/")
		if err != nil {
			st.Fatalf("unexpected error: %v", err)
		}
		if status != 503 {
			st.Fatalf("expected status 503 but got %d", status)
		}
	})

	t.Run("should fail for an unreachable target", func(st *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		client := surge.NewClient(srv.URL, time.Second, 1)

		_, err := client.Probe(context.Background(), "/")
		if !errors.Is(err, surge.ErrUnreachable) {
			st.Fatalf("expected %v but got %v", surge.ErrUnreachable, err)
		}
	})
}
