package httpapi

import (
	"net/http"
	"strings"
	"testing"

	"luminad/internal/registry"
	"luminad/internal/worker"
)

func TestGenerateErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", worker.ErrValidation("caption is required"), http.StatusBadRequest},
		{"too busy", worker.ErrTooBusy(0), http.StatusTooManyRequests},
		{"not ready", worker.ErrNotReady(), http.StatusServiceUnavailable},
		{"checkpoint not found", registry.ErrCheckpointNotFound("checkpoint gone"), http.StatusNotFound},
		{"generation failed", worker.ErrGenerationFailed("id"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		svc := okService()
		err := c.err
		svc.submit = func(req worker.Request) (worker.Result, error) {
			return worker.Result{}, err
		}
		h := NewMux(svc, testCheckpoint(), nil)
		rr := postGenerate(t, h, `{"caption":"a cat","resolution":"1024x1024"}`)
		if rr.Code != c.status {
			t.Fatalf("%s: status = %d, want %d", c.name, rr.Code, c.status)
		}
	}
}

func TestGenerationFailureHidesDetail(t *testing.T) {
	svc := okService()
	svc.submit = func(req worker.Request) (worker.Result, error) {
		return worker.Result{}, worker.ErrGenerationFailed("id")
	}
	h := NewMux(svc, testCheckpoint(), nil)
	rr := postGenerate(t, h, `{"caption":"a cat","resolution":"1024x1024"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := rr.Body.String(); !strings.Contains(body, "generation failed") {
		t.Fatalf("body = %s", body)
	}
}
