package github

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
)

// stubServer hosts an in-memory GitHub API (no network listeners).
type stubServer struct {
	token string
	repos []map[string]any
	calls map[string]int
}

func newStubServer() *stubServer {
	s := &stubServer{token: "stub-token", calls: map[string]int{}}
	for i := 1; i <= 5; i++ {
		s.repos = append(s.repos, map[string]any{
			"id":               100 + i,
			"name":             fmt.Sprintf("repo-%d", i),
			"full_name":        fmt.Sprintf("owner/repo-%d", i),
			"html_url":         fmt.Sprintf("https://github.local/owner/repo-%d", i),
			"description":      nil,
			"language":         "Go",
			"default_branch":   "develop",
			"private":          i%2 == 0,
			"created_at":       "2023-01-01T00:00:00Z",
			"updated_at":       "2024-01-01T00:00:00Z",
			"size":             i * 10,
			"stargazers_count": i,
			"forks_count":      0,
			"topics":           []string{"sync"},
		})
	}
	return s
}

func (s *stubServer) Transport() http.RoundTripper {
	return &stubRoundTripper{handler: http.HandlerFunc(s.handle)}
}

func (s *stubServer) handle(w http.ResponseWriter, r *http.Request) {
	s.calls[r.URL.Path]++
	if r.Header.Get("Authorization") != "token "+s.token {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Bad credentials"})
		return
	}

	switch {
	case r.URL.Path == "/user":
		writeJSON(w, http.StatusOK, map[string]any{"login": "octocat", "id": 1})
	case r.URL.Path == "/user/repos":
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		start := (page - 1) * perPage
		if start >= len(s.repos) {
			writeJSON(w, http.StatusOK, []any{})
			return
		}
		end := start + perPage
		if end > len(s.repos) {
			end = len(s.repos)
		}
		writeJSON(w, http.StatusOK, s.repos[start:end])
	case r.URL.Path == "/repos/owner/repo":
		writeJSON(w, http.StatusOK, map[string]any{
			"id":               42,
			"name":             "repo",
			"full_name":        "owner/repo",
			"html_url":         "https://github.com/owner/repo",
			"description":      "demo",
			"language":         nil,
			"default_branch":   "",
			"private":          false,
			"created_at":       "2023-06-01T08:00:00Z",
			"updated_at":       "2024-02-01T09:30:00+01:00",
			"size":             1234,
			"stargazers_count": 10,
			"forks_count":      3,
			"topics":           nil,
		})
	case strings.HasPrefix(r.URL.Path, "/repos/"):
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
	}
}

type stubRoundTripper struct {
	handler http.Handler
}

func (rt *stubRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rr := httptest.NewRecorder()
	rt.handler.ServeHTTP(rr, req)
	res := rr.Result()
	res.Request = req
	return res, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
