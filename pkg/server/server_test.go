package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/openai/openai-go/v3"

	"dreamcanvas/pkg/capability"
	"dreamcanvas/pkg/pipeline"
	"dreamcanvas/pkg/schema"
)

type stubStoryteller struct {
	reply string
	err   error
	delay time.Duration
}

func (s stubStoryteller) Tell(context.Context, *openai.ChatCompletionNewParams, string, string) (string, error) {
	// The delay deliberately ignores the context, like a hosted call that
	// only times out on its own schedule.
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.reply, s.err
}

func testServer(t *testing.T, teller capability.Storyteller) *Server {
	t.Helper()
	orch := pipeline.New(capability.Set{Storyteller: teller}, pipeline.Config{})
	return NewServer(context.Background(), orch, t.TempDir())
}

func storedRun(s *Server) *pipeline.Result {
	run := &pipeline.Result{
		RunID:   "run-1",
		Outcome: pipeline.OutcomePartial,
		Caption: "a red balloon",
		Story:   schema.Story{Title: "Up", Text: "The balloon floated."},
	}
	s.Runs.Store(run.RunID, run)
	return run
}

func drawingForm(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, color.RGBA{20, 180, 20, 255})
		}
	}
	var encoded bytes.Buffer
	if err := png.Encode(&encoded, img); err != nil {
		t.Fatal(err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("drawing", "drawing.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(encoded.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &body, mw.FormDataContentType()
}

// A client that disconnects mid-run must not leave the queue worker writing
// stage events into a response the handler already finished with.
func TestStoryClientGoneMidRun(t *testing.T) {
	s := testServer(t, stubStoryteller{
		reply: `{"title":"Up","text":"The balloon floated."}`,
		delay: 300 * time.Millisecond,
	})
	s.Queue.Start()
	t.Cleanup(s.Queue.Stop)

	body, contentType := drawingForm(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodPost, "/api/story", body).WithContext(ctx)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	got := rec.Body.String()
	if !strings.Contains(got, "event: queued") {
		t.Errorf("expected a queued event before the disconnect:\n%s", got)
	}
	if !strings.Contains(got, "event: close") {
		t.Errorf("stream not closed on disconnect:\n%s", got)
	}

	// Let the worker finish its run against the closed stream; the race
	// detector flags any write that escapes the writer's close guard.
	time.Sleep(400 * time.Millisecond)
}

func TestGetRun(t *testing.T) {
	s := testServer(t, nil)
	storedRun(s)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil)
	s.Echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var got pipeline.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RunID != "run-1" || got.Caption != "a red balloon" {
		t.Errorf("unexpected run: %+v", got)
	}
}

func TestGetRunUnknown(t *testing.T) {
	s := testServer(t, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil)
	s.Echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestReviseRewritesStory(t *testing.T) {
	s := testServer(t, stubStoryteller{reply: `{"title":"Up, Higher","text":"The balloon soared."}`})
	run := storedRun(s)

	body := `{"run_id":"run-1","instruction":"make it more exciting"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/revise", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	s.Echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp reviseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Revision.Story.Text != "The balloon soared." {
		t.Errorf("revised text = %q", resp.Revision.Story.Text)
	}
	if len(resp.Revision.Diff) == 0 {
		t.Error("expected a non-empty word diff")
	}
	if run.Story.Text != "The balloon soared." {
		t.Errorf("stored run not updated: %q", run.Story.Text)
	}
	if len(run.Revisions) != 1 {
		t.Errorf("revisions = %d, want 1", len(run.Revisions))
	}
}

func TestReviseValidation(t *testing.T) {
	s := testServer(t, stubStoryteller{reply: "ignored"})
	storedRun(s)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing instruction", `{"run_id":"run-1"}`, http.StatusBadRequest},
		{"unknown run", `{"run_id":"ghost","instruction":"shorter"}`, http.StatusNotFound},
		{"oversized instruction", `{"run_id":"run-1","instruction":"` + strings.Repeat("a", 3000) + `"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/revise", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			s.Echo.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestReviseUpstreamFailure(t *testing.T) {
	s := testServer(t, stubStoryteller{err: capability.ErrUnavailable})
	storedRun(s)

	body := `{"run_id":"run-1","instruction":"shorter"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/revise", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	s.Echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}
