package utils

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestSSE(t *testing.T) (*SSEWriter, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return NewSSEWriter(c), rec
}

func TestSSEWriterEncodesMultilinePayload(t *testing.T) {
	w, rec := newTestSSE(t)
	if err := w.Event("description", "line one\nline two"); err != nil {
		t.Fatalf("Event: %v", err)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `data: "line one\nline two"`) {
		t.Errorf("payload not JSON-encoded on one data line:\n%s", body)
	}
	// A raw newline inside the payload would strand "line two" outside any
	// data: field.
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "event: ") && !strings.HasPrefix(line, "data: ") {
			t.Errorf("stray frame line %q", line)
		}
	}
}

func TestSSEWriterEventAfterClose(t *testing.T) {
	w, rec := newTestSSE(t)
	w.Close()
	before := rec.Body.String()

	if err := w.Event("late", map[string]int{"n": 1}); err != nil {
		t.Fatalf("Event: %v", err)
	}
	if got := rec.Body.String(); got != before {
		t.Errorf("Event after Close wrote to the stream:\n%s", got)
	}
	if !strings.Contains(before, "event: close") {
		t.Errorf("missing close frame:\n%s", before)
	}
}

func TestSSEWriterConcurrentEventsAndClose(t *testing.T) {
	w, _ := newTestSSE(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				w.Event("tick", j)
			}
		}()
	}
	w.Close()
	wg.Wait()
}
