package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(url string) *readingsClient {
	c := NewReadingsClient(url).(*readingsClient)
	c.retryDelay = time.Millisecond
	return c
}

func TestSubmit(t *testing.T) {
	var got map[string]float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/data" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(`{"message":"Data received successfully","id":42}`))
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL+"/").Submit(context.Background(), 3, 1.65)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != 42 {
		t.Fatalf("id = %d", id)
	}
	if len(got) != 1 || got["channel_3"] != 1.65 {
		t.Fatalf("body = %v", got)
	}
}

func TestSubmitRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"id":7}`))
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).Submit(context.Background(), 1, 0.5)
	if err != nil || id != 7 {
		t.Fatalf("Submit = %d, %v", id, err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d; want 3", calls)
	}
}

func TestSubmitDoesNotRetryRejections(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid","message":"no channel values supplied"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Submit(context.Background(), 1, 0.5)
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v; want ErrRejected", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d; want 1", calls)
	}
}

func TestSubmitInvalidChannel(t *testing.T) {
	if _, err := newTestClient("http://127.0.0.1:1").Submit(context.Background(), 6, 1); err == nil {
		t.Fatal("expected error for channel 6")
	}
}
