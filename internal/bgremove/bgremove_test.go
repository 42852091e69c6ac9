package bgremove

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cmstory/internal/imaging"
	"github.com/roach88/cmstory/internal/testutil"
)

const logoURI = "data:image/png;base64,QUFB"

func newTestRemover(t *testing.T, handler http.HandlerFunc) *Remover {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := openai.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(srv.URL+"/"),
		option.WithMaxRetries(0),
	)
	return NewFromClient(&client)
}

func TestNew_WithoutKeyIsIdentity(t *testing.T) {
	tr := New("", testutil.DiscardLogger())

	out, err := tr.Transform(context.Background(), logoURI)
	require.NoError(t, err)
	assert.Equal(t, logoURI, out)
}

func TestRemover_ReturnsEditedImage(t *testing.T) {
	edited := base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\nedited"))

	var gotPrompt, gotModel string
	r := newTestRemover(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.True(t, strings.HasSuffix(req.URL.Path, "/images/edits"), "path %s", req.URL.Path)
		require.NoError(t, req.ParseMultipartForm(1<<20))
		gotPrompt = req.FormValue("prompt")
		gotModel = req.FormValue("model")

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"created": 1, "data": [{"b64_json": "`+edited+`"}]}`)
	})

	out, err := r.Transform(context.Background(), logoURI)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,"+edited, out)
	assert.Equal(t, Instruction, gotPrompt)
	assert.Equal(t, "gpt-image-1", gotModel)
}

func TestRemover_NoImageInResponse(t *testing.T) {
	r := newTestRemover(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"created": 1, "data": []}`)
	})

	_, err := r.Transform(context.Background(), logoURI)
	assert.True(t, errors.Is(err, ErrNoImage), "got %v", err)
}

func TestRemover_ServiceError(t *testing.T) {
	r := newTestRemover(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`)
	})

	_, err := r.Transform(context.Background(), logoURI)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "background removal")
}

func TestRemover_RejectsNonRasterResult(t *testing.T) {
	svg := base64.StdEncoding.EncodeToString([]byte(`<svg xmlns="http://www.w3.org/2000/svg"/>`))
	r := newTestRemover(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"created": 1, "data": [{"b64_json": "`+svg+`"}]}`)
	})

	_, err := r.Transform(context.Background(), logoURI)
	assert.ErrorIs(t, err, imaging.ErrNotImage)
}

func TestRemover_RejectsNonImageInput(t *testing.T) {
	r := newTestRemover(t, func(w http.ResponseWriter, req *http.Request) {
		t.Error("service must not be called for invalid input")
	})

	_, err := r.Transform(context.Background(), "data:text/plain;base64,SGk=")
	require.Error(t, err)
}

func TestBestEffort_FallsBackToOriginal(t *testing.T) {
	failing := TransformerFunc(func(context.Context, string) (string, error) {
		return "", errors.New("network unreachable")
	})

	refine := BestEffort(failing, testutil.DiscardLogger())
	assert.Equal(t, logoURI, refine(context.Background(), logoURI))
}

func TestBestEffort_EmptyResultKeepsOriginal(t *testing.T) {
	empty := TransformerFunc(func(context.Context, string) (string, error) {
		return "", nil
	})

	refine := BestEffort(empty, testutil.DiscardLogger())
	assert.Equal(t, logoURI, refine(context.Background(), logoURI))
}

func TestBestEffort_UsesResult(t *testing.T) {
	swap := TransformerFunc(func(context.Context, string) (string, error) {
		return "data:image/png;base64,Q0xFQU4=", nil
	})

	refine := BestEffort(swap, testutil.DiscardLogger())
	assert.Equal(t, "data:image/png;base64,Q0xFQU4=", refine(context.Background(), logoURI))
}
