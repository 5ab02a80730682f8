package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Faultbox/cadview/internal/config"
	"github.com/Faultbox/cadview/internal/ingest"
	"github.com/Faultbox/cadview/internal/kernel"
	"github.com/Faultbox/cadview/internal/viewer"
)

func TestBuildWithoutKernelRunsDegraded(t *testing.T) {
	cfg := config.Default()
	s := Build(cfg, zaptest.NewLogger(t))
	defer s.Close(context.Background())

	caps, err := s.Kernel.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !caps.None() {
		t.Errorf("capabilities = %v, want none", caps)
	}
	if s.Options.MaxFileSize != 200<<20 {
		t.Errorf("max file size = %d", s.Options.MaxFileSize)
	}
}

func TestBuildStepFallsBackWithoutKernel(t *testing.T) {
	s := Build(config.Default(), zaptest.NewLogger(t))
	defer s.Close(context.Background())

	done := make(chan ingest.Outcome, 1)
	o := viewer.New(s.Pipelines, s.Options, viewer.ListenerFuncs{
		OnOutcome: func(out ingest.Outcome) { done <- out },
	}, zaptest.NewLogger(t))
	defer o.Close(context.Background())

	if _, err := o.Load(context.Background(), viewer.BytesFile{FileName: "shaft_cylinder.step", Data: []byte("ISO-10303-21;")}); err != nil {
		t.Fatal(err)
	}
	select {
	case out := <-done:
		if out.Status != ingest.StatusSuccess {
			t.Fatalf("status = %v, err %v", out.Status, out.Err)
		}
		if out.Result.Path != "fallback(cylinder)" {
			t.Errorf("path = %s, want fallback(cylinder)", out.Result.Path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no outcome")
	}
}

func TestLoaderWithoutPath(t *testing.T) {
	_, err := Loader(config.KernelConfig{}, zaptest.NewLogger(t)).Load(context.Background())
	if !errors.Is(err, kernel.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestConverterPrefersEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0\nSECTION\n"))
	}))
	defer srv.Close()

	conv := Converter(config.DWGConfig{Endpoint: srv.URL, Timeout: time.Second}, zaptest.NewLogger(t))
	out, err := conv.Convert(context.Background(), "plan.dwg", []byte("AC1032"))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "0\nSECTION\n" {
		t.Errorf("got %q", out)
	}
}

func TestConverterWithoutTools(t *testing.T) {
	conv := Converter(config.DWGConfig{Commands: []string{"cadview-no-such-converter {in} {out}"}}, zaptest.NewLogger(t))
	if _, err := conv.Convert(context.Background(), "plan.dwg", []byte("x")); !errors.Is(err, ingest.ErrConversionUnavailable) {
		t.Errorf("expected conversion unavailable, got %v", err)
	}
}
