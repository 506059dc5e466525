package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFromContext(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", DefaultLimit, 0},
		{"?limit=5&offset=10", 5, 10},
		{"?limit=1000", MaxLimit, 0},
		{"?limit=-3&offset=-1", DefaultLimit, 0},
		{"?limit=abc", DefaultLimit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil)
			c := e.NewContext(req, httptest.NewRecorder())

			p := FromContext(c)
			if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
				t.Errorf("got %+v, want limit=%d offset=%d", p, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestNewPage(t *testing.T) {
	p := Params{Limit: 10, Offset: 10}
	page := NewPage([]int{1, 2}, 25, p)
	if !page.HasMore {
		t.Error("expected more results")
	}
	if NewPage(nil, 20, p).HasMore {
		t.Error("expected no more results")
	}
}

func TestWindow(t *testing.T) {
	tests := []struct {
		p          Params
		n          int
		start, end int
	}{
		{Params{Limit: 10, Offset: 0}, 25, 0, 10},
		{Params{Limit: 10, Offset: 20}, 25, 20, 25},
		{Params{Limit: 10, Offset: 30}, 25, 25, 25},
	}
	for _, tt := range tests {
		s, e := tt.p.Window(tt.n)
		if s != tt.start || e != tt.end {
			t.Errorf("Window(%d) on %+v = [%d,%d), want [%d,%d)", tt.n, tt.p, s, e, tt.start, tt.end)
		}
	}
}
