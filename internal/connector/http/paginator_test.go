package http

import (
	"context"
	"net/http"
	"strconv"
	"testing"
)

func TestCollect_OffsetStopsAtTotal(t *testing.T) {
	var starts []string
	c := newTestClient(t, newFakeClock(), func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
		starts = append(starts, r.URL.Query().Get("startAt"))
		w.Header().Set("Content-Type", "application/json")
		switch start {
		case 0:
			_, _ = w.Write([]byte(`{"total":3,"values":[{"id":"a"},{"id":"b"}]}`))
		case 2:
			_, _ = w.Write([]byte(`{"total":3,"values":[{"id":"c"}]}`))
		default:
			t.Errorf("unexpected startAt %d", start)
			_, _ = w.Write([]byte(`{"total":3,"values":[]}`))
		}
	}, func(cfg *ClientConfig) { cfg.RequestsPerMinute = 0 })

	type item struct {
		ID string `json:"id"`
	}
	p := NewOffsetPaginator("/project/search", 2, nil)
	items, err := Collect(context.Background(), c, p, 0, func(resp *Response) ([]item, error) {
		var page struct {
			Values []item `json:"values"`
		}
		if err := resp.JSON(&page); err != nil {
			return nil, err
		}
		return page.Values, nil
	})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if len(starts) != 2 || starts[0] != "0" || starts[1] != "2" {
		t.Errorf("startAt sequence = %v", starts)
	}
}

func TestCollect_PageStopsOnEmptyPageAndLimit(t *testing.T) {
	pages := 0
	c := newTestClient(t, newFakeClock(), func(w http.ResponseWriter, r *http.Request) {
		pages++
		if r.URL.Query().Get("page") == "3" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[1,2]`))
	}, func(cfg *ClientConfig) { cfg.RequestsPerMinute = 0 })

	parse := func(resp *Response) ([]int, error) {
		var out []int
		if err := resp.JSON(&out); err != nil {
			return nil, err
		}
		return out, nil
	}

	all, err := Collect(context.Background(), c, NewPagePaginator("/repos", 2, nil), 0, parse)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(all) != 4 || pages != 3 {
		t.Errorf("items = %d pages = %d, want 4 and 3", len(all), pages)
	}

	pages = 0
	limited, err := Collect(context.Background(), c, NewPagePaginator("/repos", 2, nil), 3, parse)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(limited) != 3 || pages != 2 {
		t.Errorf("items = %d pages = %d, want 3 and 2", len(limited), pages)
	}
}

func TestPageSize(t *testing.T) {
	if PageSize(0, 100) != 100 || PageSize(250, 100) != 100 || PageSize(10, 100) != 10 {
		t.Error("PageSize did not cap correctly")
	}
}
