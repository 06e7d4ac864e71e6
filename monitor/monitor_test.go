package monitor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func writeLog(t *testing.T, lines int) string {
	t.Helper()
	var b strings.Builder
	for i := 1; i <= lines; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	p := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(p, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return p
}

func TestTailKeepsLastLinesInOrder(t *testing.T) {
	p := writeLog(t, 10)
	cases := []struct {
		n    int
		want []string
	}{
		{3, []string{"line 8", "line 9", "line 10"}},
		{10, nil},
		{50, nil},
	}
	for _, tc := range cases {
		got, err := tail(p, tc.n)
		if err != nil {
			t.Fatalf("tail %d: %v", tc.n, err)
		}
		want := tc.want
		if want == nil {
			for i := 1; i <= 10; i++ {
				want = append(want, fmt.Sprintf("line %d", i))
			}
		}
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Fatalf("tail %d: got %v want %v", tc.n, got, want)
		}
	}
}

func TestLogsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	New(writeLog(t, 5)).Register(router.Group("/monitor"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/monitor/logs?lines=2", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	var body struct {
		Data []string `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 2 || body.Data[1] != "line 5" {
		t.Fatalf("unexpected lines %v", body.Data)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/monitor/logs?lines=0", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
}

func TestLogsDisabledWithoutFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	New("").Register(router.Group("/monitor"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/monitor/logs", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
}
