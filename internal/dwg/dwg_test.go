package dwg

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestHTTPConverter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file field: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		if hdr.Filename != "plan.dwg" || string(data) != "AC1032" {
			t.Errorf("upload = %q %q", hdr.Filename, data)
		}
		w.Write([]byte("0\nSECTION\n"))
	}))
	defer srv.Close()

	out, err := NewHTTPConverter(srv.URL, nil).Convert(context.Background(), "/tmp/plan.dwg", []byte("AC1032"))
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if string(out) != "0\nSECTION\n" {
		t.Errorf("body = %q", out)
	}
}

func TestHTTPConverter_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"tool missing", http.StatusInternalServerError,
			`{"error": "DWG converter tool not found", "details": "install ODAFileConverter"}`, ErrConverterUnavailable},
		{"conversion error", http.StatusUnprocessableEntity, `{"error": "corrupt drawing"}`, ErrConversionFailed},
		{"plain text error", http.StatusBadGateway, "upstream down", ErrConversionFailed},
		{"empty success", http.StatusOK, "", ErrConversionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHTTPConverter(srv.URL, nil).Convert(context.Background(), "a.dwg", []byte("x"))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestHTTPConverter_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewHTTPConverter(url, &http.Client{Timeout: time.Second})
	if _, err := c.Convert(context.Background(), "a.dwg", []byte("x")); !errors.Is(err, ErrConverterUnavailable) {
		t.Errorf("expected ErrConverterUnavailable, got %v", err)
	}
}

func TestExecConverter_Copy(t *testing.T) {
	if _, err := exec.LookPath("cp"); err != nil {
		t.Skip("cp not available")
	}
	c := &ExecConverter{
		Commands: []string{"definitely-not-installed-dwg-tool {in} {out}", "cp {in} {out}"},
		Log:      zaptest.NewLogger(t),
	}
	out, err := c.Convert(context.Background(), "floor plan.dwg", []byte("0\nEOF\n"))
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if string(out) != "0\nEOF\n" {
		t.Errorf("output = %q", out)
	}
}

func TestExecConverter_OutputDirectory(t *testing.T) {
	if _, err := exec.LookPath("cp"); err != nil {
		t.Skip("cp not available")
	}
	// Writes its result under a name of its own choosing, like ODA's converter.
	c := &ExecConverter{Commands: []string{"cp {in} {outdir}/RESULT.DXF"}}
	out, err := c.Convert(context.Background(), "a.dwg", []byte("dxf"))
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if string(out) != "dxf" {
		t.Errorf("output = %q", out)
	}
}

func TestExecConverter_NoTool(t *testing.T) {
	c := &ExecConverter{
		LookPath: func(string) (string, error) { return "", exec.ErrNotFound },
	}
	_, err := c.Convert(context.Background(), "a.dwg", nil)
	if !errors.Is(err, ErrConverterUnavailable) {
		t.Fatalf("expected ErrConverterUnavailable, got %v", err)
	}
}

func TestExecConverter_ToolFails(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	c := &ExecConverter{Commands: []string{"false {in}"}}
	if _, err := c.Convert(context.Background(), "a.dwg", []byte("x")); !errors.Is(err, ErrConversionFailed) {
		t.Errorf("expected ErrConversionFailed, got %v", err)
	}
}

type stubConverter struct {
	out []byte
	err error
}

func (s stubConverter) Convert(context.Context, string, []byte) ([]byte, error) {
	return s.out, s.err
}

func TestChain(t *testing.T) {
	unavailable := stubConverter{err: ErrConverterUnavailable}
	failing := stubConverter{err: ErrConversionFailed}
	ok := stubConverter{out: []byte("dxf")}

	if out, err := (Chain{unavailable, ok}).Convert(context.Background(), "a.dwg", nil); err != nil || string(out) != "dxf" {
		t.Errorf("expected fallthrough to second converter, got %q, %v", out, err)
	}
	if _, err := (Chain{failing, ok}).Convert(context.Background(), "a.dwg", nil); !errors.Is(err, ErrConversionFailed) {
		t.Errorf("a real failure must stop the chain, got %v", err)
	}
	if _, err := (Chain{}).Convert(context.Background(), "a.dwg", nil); !errors.Is(err, ErrConverterUnavailable) {
		t.Errorf("empty chain: %v", err)
	}
}

type blockingConverter struct{}

func (blockingConverter) Convert(ctx context.Context, _ string, _ []byte) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWithTimeout(t *testing.T) {
	c := WithTimeout(blockingConverter{}, 10*time.Millisecond)
	if _, err := c.Convert(context.Background(), "a.dwg", nil); !errors.Is(err, ErrConversionFailed) {
		t.Errorf("expected ErrConversionFailed on deadline, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Convert(ctx, "a.dwg", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("caller cancellation must surface as such, got %v", err)
	}

	ok := stubConverter{out: []byte("dxf")}
	if WithTimeout(ok, 0) != Converter(ok) {
		t.Error("zero timeout should return the converter unchanged")
	}
}
