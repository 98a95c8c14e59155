package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Scalingo/sclng-language-stats/config"
	"github.com/Scalingo/sclng-language-stats/model"
	githubMock "github.com/migueleliasweb/go-github-mock/src/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type mockResponse struct {
	status  int
	headers map[string]string
	body    string
}

func ok(body string) mockResponse {
	return mockResponse{status: http.StatusOK, body: body}
}

func (m mockResponse) write(t *testing.T, w http.ResponseWriter) {
	for k, v := range m.headers {
		w.Header().Set(k, v)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(m.status)

	if _, err := w.Write([]byte(m.body)); err != nil {
		t.Error("unable to configure mock http client")
	}
}

// repoFromPath extracts the repository name from /repos/{owner}/{repo}/languages
func repoFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 {
		return ""
	}

	return parts[2]
}

type mockGithub struct {
	reposResponse     mockResponse
	languageResponses map[string]mockResponse

	reposCalls     atomic.Int32
	languagesCalls atomic.Int32

	mu             sync.Mutex
	requestedRepos []string
}

func (m *mockGithub) requested() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.requestedRepos
}

func (m *mockGithub) httpClient(t *testing.T) *http.Client {
	return githubMock.NewMockedHTTPClient(
		githubMock.WithRequestMatchHandler(
			githubMock.GetUsersReposByUsername,
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				m.reposCalls.Add(1)
				m.reposResponse.write(t, w)
			}),
		),
		githubMock.WithRequestMatchHandler(
			githubMock.GetReposLanguagesByOwnerByRepo,
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				m.languagesCalls.Add(1)

				repo := repoFromPath(r.URL.Path)
				m.mu.Lock()
				m.requestedRepos = append(m.requestedRepos, repo)
				m.mu.Unlock()

				response, found := m.languageResponses[repo]
				if !found {
					response = ok("{}")
				}

				response.write(t, w)
			}),
		),
	)
}

func newTestGithubService(t *testing.T, httpClient *http.Client, rateLimit int) GithubService {
	conf := config.GetDefault()
	svc, err := NewGithubService(*conf, httpClient, rate.NewLimiter(rate.Every(time.Hour), rateLimit))
	require.NoError(t, err)

	return svc
}

// TestAggregate will test function Aggregate
func TestAggregate(t *testing.T) {
	rateLimited := mockResponse{
		status: http.StatusForbidden,
		headers: map[string]string{
			model.HeaderRateLimitRemaining: "0",
			model.HeaderRateLimitReset:     "1700000000",
		},
		body: `{"message":"API rate limit exceeded for 127.0.0.1."}`,
	}

	tests := []struct {
		name                   string
		reposResponse          mockResponse
		languageResponses      map[string]mockResponse
		rateLimit              int
		expectedStats          model.LanguageStats
		expectedCode           model.APIErrorCode
		expectedRateLimit      model.RateLimitInfo
		expectedLanguagesCalls int32
	}{
		{
			name:          "Ties keep the first seen order",
			rateLimit:     60,
			reposResponse: ok(`[{"name":"repo1","language":"B"},{"name":"repo2","language":"C"}]`),
			languageResponses: map[string]mockResponse{
				"repo1": ok(`{"A":10,"B":20}`),
				"repo2": ok(`{"C":10,"B":10}`),
			},
			expectedStats: model.LanguageStats{
				{Language: "B", Bytes: 30},
				{Language: "A", Bytes: 10},
				{Language: "C", Bytes: 10},
			},
			expectedCode:           model.NoError,
			expectedRateLimit:      model.NewRateLimitInfo(),
			expectedLanguagesCalls: 2,
		},
		{
			name:          "Repositories without name are skipped",
			rateLimit:     60,
			reposResponse: ok(`[{"language":"Go"},{"name":"repo2","language":"Go"}]`),
			languageResponses: map[string]mockResponse{
				"repo2": ok(`{"Go":100}`),
			},
			expectedStats:          model.LanguageStats{{Language: "Go", Bytes: 100}},
			expectedCode:           model.NoError,
			expectedRateLimit:      model.NewRateLimitInfo(),
			expectedLanguagesCalls: 1,
		},
		{
			name:                   "Account without repositories",
			rateLimit:              60,
			reposResponse:          ok(`[]`),
			expectedStats:          model.LanguageStats{},
			expectedCode:           model.OtherError,
			expectedRateLimit:      model.NewRateLimitInfo(),
			expectedLanguagesCalls: 0,
		},
		{
			name:                   "Unknown account",
			rateLimit:              60,
			reposResponse:          mockResponse{status: http.StatusNotFound, body: `{"message":"Not Found"}`},
			expectedStats:          model.LanguageStats{},
			expectedCode:           model.OtherError,
			expectedRateLimit:      model.NewRateLimitInfo(),
			expectedLanguagesCalls: 0,
		},
		{
			name:                   "Rate limit while listing repositories",
			rateLimit:              60,
			reposResponse:          rateLimited,
			expectedStats:          model.LanguageStats{},
			expectedCode:           model.RateLimitExceeded,
			expectedRateLimit:      model.RateLimitInfo{Remaining: "0", Reset: "1700000000"},
			expectedLanguagesCalls: 0,
		},
		{
			name:          "Error on second repository stops the aggregation",
			rateLimit:     60,
			reposResponse: ok(`[{"name":"repo1"},{"name":"repo2"},{"name":"repo3"}]`),
			languageResponses: map[string]mockResponse{
				"repo1": ok(`{"Go":100,"Shell":5}`),
				"repo2": {status: http.StatusInternalServerError, body: `{"message":"Server Error"}`},
				"repo3": ok(`{"Rust":1000}`),
			},
			expectedStats: model.LanguageStats{
				{Language: "Go", Bytes: 100},
				{Language: "Shell", Bytes: 5},
			},
			expectedCode:           model.OtherError,
			expectedRateLimit:      model.NewRateLimitInfo(),
			expectedLanguagesCalls: 2,
		},
		{
			name:          "Rate limit on second repository returns partial stats",
			rateLimit:     60,
			reposResponse: ok(`[{"name":"repo1"},{"name":"repo2"},{"name":"repo3"}]`),
			languageResponses: map[string]mockResponse{
				"repo1": {status: http.StatusOK, body: `{"Go":100}`, headers: map[string]string{model.HeaderRateLimitRemaining: "1"}},
				"repo2": rateLimited,
			},
			expectedStats:          model.LanguageStats{{Language: "Go", Bytes: 100}},
			expectedCode:           model.RateLimitExceeded,
			expectedRateLimit:      model.RateLimitInfo{Remaining: "0", Reset: "1700000000"},
			expectedLanguagesCalls: 2,
		},
		{
			name:          "Local rate limiter exhausted after listing repositories",
			rateLimit:     1,
			reposResponse: ok(`[{"name":"repo1"},{"name":"repo2"}]`),
			languageResponses: map[string]mockResponse{
				"repo1": ok(`{"Go":100}`),
			},
			expectedStats:          model.LanguageStats{},
			expectedCode:           model.RateLimitExceeded,
			expectedRateLimit:      model.NewRateLimitInfo(),
			expectedLanguagesCalls: 0,
		},
		{
			name:          "Rate limit headers of the last call are kept",
			rateLimit:     60,
			reposResponse: mockResponse{status: http.StatusOK, body: `[{"name":"repo1"}]`, headers: map[string]string{model.HeaderRateLimitRemaining: "42", model.HeaderRateLimitReset: "1700000000"}},
			languageResponses: map[string]mockResponse{
				"repo1": {status: http.StatusOK, body: `{"Go":100}`, headers: map[string]string{model.HeaderRateLimitRemaining: "41"}},
			},
			expectedStats:          model.LanguageStats{{Language: "Go", Bytes: 100}},
			expectedCode:           model.NoError,
			expectedRateLimit:      model.RateLimitInfo{Remaining: "41", Reset: "1700000000"},
			expectedLanguagesCalls: 1,
		},
	}

	// execute tests
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockGithub{
				reposResponse:     tt.reposResponse,
				languageResponses: tt.languageResponses,
			}

			svc := newTestGithubService(t, mock.httpClient(t), tt.rateLimit)
			stats, code, rateLimitInfo := svc.Aggregate(context.Background(), "test-owner")

			assert.Equal(t, tt.expectedCode, code)
			assert.Equal(t, tt.expectedStats, stats)
			assert.Equal(t, tt.expectedRateLimit, rateLimitInfo)
			assert.Equal(t, int32(1), mock.reposCalls.Load())
			assert.Equal(t, tt.expectedLanguagesCalls, mock.languagesCalls.Load())
		})
	}
}

// TestAggregateStopsBeforeThirdRepository checks the third repository is never requested
func TestAggregateStopsBeforeThirdRepository(t *testing.T) {
	mock := &mockGithub{
		reposResponse: ok(`[{"name":"repo1"},{"name":"repo2"},{"name":"repo3"}]`),
		languageResponses: map[string]mockResponse{
			"repo1": ok(`{"Go":100}`),
			"repo2": {status: http.StatusBadGateway, body: "bad gateway"},
		},
	}

	svc := newTestGithubService(t, mock.httpClient(t), 60)
	_, code, _ := svc.Aggregate(context.Background(), "test-owner")

	assert.Equal(t, model.OtherError, code)
	assert.Equal(t, []string{"repo1", "repo2"}, mock.requested())
}

// TestListRepositoriesPagination checks a full page triggers the next one
func TestListRepositoriesPagination(t *testing.T) {
	var firstPage strings.Builder
	firstPage.WriteString("[")
	for i := 0; i < repositoriesPerPage; i++ {
		if i > 0 {
			firstPage.WriteString(",")
		}
		fmt.Fprintf(&firstPage, `{"name":"repo%d","owner":{"login":"test-owner"}}`, i)
	}
	firstPage.WriteString("]")

	var calls atomic.Int32
	var mu sync.Mutex
	var requestedPages []string

	mockedHTTPClient := githubMock.NewMockedHTTPClient(
		githubMock.WithRequestMatchHandler(
			githubMock.GetUsersReposByUsername,
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				mu.Lock()
				requestedPages = append(requestedPages, r.URL.Query().Get("page"))
				mu.Unlock()

				body := `[{"name":"last","language":"Go"}]`
				if r.URL.Query().Get("page") == "1" {
					body = firstPage.String()
				}

				ok(body).write(t, w)
			}),
		),
	)

	svc := newTestGithubService(t, mockedHTTPClient, 60)
	rateLimitInfo := model.NewRateLimitInfo()
	repos, code := svc.ListRepositories(context.Background(), "test-owner", &rateLimitInfo)

	assert.Equal(t, model.NoError, code)
	assert.Len(t, repos, repositoriesPerPage+1)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"1", "2"}, requestedPages)

	require.NotNil(t, repos[0].OwnerLogin)
	assert.Equal(t, "test-owner", *repos[0].OwnerLogin)
	assert.Equal(t, "last", repos[repositoriesPerPage].Name)
	require.NotNil(t, repos[repositoriesPerPage].Language)
	assert.Equal(t, "Go", *repos[repositoriesPerPage].Language)
}

// TestFetchRepositoryLanguages test the function called FetchRepositoryLanguages
func TestFetchRepositoryLanguages(t *testing.T) {
	tests := []struct {
		name          string
		response      mockResponse
		expectedStats model.LanguageStats
		expectedCode  model.APIErrorCode
	}{
		{
			name:     "Fetch languages successfully",
			response: ok(`{"Go":10000,"Python":5000}`),
			expectedStats: model.LanguageStats{
				{Language: "Go", Bytes: 10000},
				{Language: "Python", Bytes: 5000},
			},
			expectedCode: model.NoError,
		},
		{
			name:          "Empty body",
			response:      ok(""),
			expectedStats: nil,
			expectedCode:  model.NoError,
		},
		{
			name:          "Invalid body",
			response:      ok(`["Go"]`),
			expectedStats: nil,
			expectedCode:  model.OtherError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockGithub{
				languageResponses: map[string]mockResponse{"Repo1": tt.response},
			}

			svc := newTestGithubService(t, mock.httpClient(t), 60)
			result := svc.FetchRepositoryLanguages(context.Background(), "Owner1", "Repo1")

			assert.Equal(t, tt.expectedCode, result.Code)
			assert.Equal(t, tt.expectedStats, result.Value)
			assert.Equal(t, []string{"Repo1"}, mock.requested())
		})
	}
}

// TestHandleRateLimitExceeded checks the local rate limiter is drained
func TestHandleRateLimitExceeded(t *testing.T) {
	rateLimiter := rate.NewLimiter(rate.Every(time.Hour), 60)
	conf := config.GetDefault()

	svc, err := NewGithubService(*conf, http.DefaultClient, rateLimiter)
	require.NoError(t, err)

	svc.HandleRateLimitExceeded()

	assert.False(t, rateLimiter.Allow())
}

func TestNewRateLimiter(t *testing.T) {
	rateLimiter := newRateLimiter(60, 2)

	assert.True(t, rateLimiter.Allow())
	assert.True(t, rateLimiter.Allow())
	assert.False(t, rateLimiter.Allow())
	assert.Equal(t, 60, rateLimiter.Burst())
}

func TestNewGithubClientBaseURL(t *testing.T) {
	githubClient, err := NewGithubClient(config.GithubConfig{BaseURL: "https://github.example.com/api/v3"}, http.DefaultClient)
	require.NoError(t, err)

	assert.Equal(t, "https://github.example.com/api/v3/", githubClient.BaseURL.String())
}

// TestPrimaryLanguageCounts test the function called PrimaryLanguageCounts
func TestPrimaryLanguageCounts(t *testing.T) {
	tests := []struct {
		name              string
		reposResponse     mockResponse
		expectedCounts    model.LanguageStats
		expectedCode      model.APIErrorCode
		expectedRateLimit model.RateLimitInfo
	}{
		{
			name: "Counts keep the first seen order",
			reposResponse: mockResponse{
				status:  http.StatusOK,
				headers: map[string]string{model.HeaderRateLimitRemaining: "58"},
				body:    `[{"name":"a","language":"Shell"},{"name":"b","language":"Go"},{"name":"c"},{"name":"d","language":"Go"},{"name":"e","language":null}]`,
			},
			expectedCounts:    model.LanguageStats{{Language: "Shell", Bytes: 1}, {Language: "Go", Bytes: 2}},
			expectedCode:      model.NoError,
			expectedRateLimit: model.RateLimitInfo{Remaining: "58", Reset: "0"},
		},
		{
			name:              "Repositories without primary language",
			reposResponse:     ok(`[{"name":"a"},{"name":"b","language":""}]`),
			expectedCounts:    model.LanguageStats{},
			expectedCode:      model.NoError,
			expectedRateLimit: model.NewRateLimitInfo(),
		},
		{
			name:              "Account without repositories",
			reposResponse:     ok(`[]`),
			expectedCounts:    model.LanguageStats{},
			expectedCode:      model.OtherError,
			expectedRateLimit: model.NewRateLimitInfo(),
		},
		{
			name:              "Listing fails",
			reposResponse:     mockResponse{status: http.StatusInternalServerError, body: `{"message":"Server Error"}`},
			expectedCounts:    model.LanguageStats{},
			expectedCode:      model.OtherError,
			expectedRateLimit: model.NewRateLimitInfo(),
		},
		{
			name: "Rate limit while listing repositories",
			reposResponse: mockResponse{
				status:  http.StatusForbidden,
				headers: map[string]string{model.HeaderRateLimitRemaining: "0", model.HeaderRateLimitReset: "1700000000"},
				body:    `{"message":"API rate limit exceeded"}`,
			},
			expectedCounts:    model.LanguageStats{},
			expectedCode:      model.RateLimitExceeded,
			expectedRateLimit: model.RateLimitInfo{Remaining: "0", Reset: "1700000000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockGithub{reposResponse: tt.reposResponse}

			svc := newTestGithubService(t, mock.httpClient(t), 60)
			counts, code, rateLimitInfo := svc.PrimaryLanguageCounts(context.Background(), "test-owner")

			assert.Equal(t, tt.expectedCode, code)
			assert.Equal(t, tt.expectedCounts, counts)
			assert.Equal(t, tt.expectedRateLimit, rateLimitInfo)
			assert.Equal(t, int32(1), mock.reposCalls.Load())
			assert.Equal(t, int32(0), mock.languagesCalls.Load())
		})
	}
}

// TestAggregateUsesOwnerLogin checks languages are requested under the owner reported by github
func TestAggregateUsesOwnerLogin(t *testing.T) {
	var mu sync.Mutex
	var requestedOwners []string

	mockedHTTPClient := githubMock.NewMockedHTTPClient(
		githubMock.WithRequestMatchHandler(
			githubMock.GetUsersReposByUsername,
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				ok(`[{"name":"repo1","owner":{"login":"Test-Owner"}},{"name":"repo2"}]`).write(t, w)
			}),
		),
		githubMock.WithRequestMatchHandler(
			githubMock.GetReposLanguagesByOwnerByRepo,
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

				mu.Lock()
				requestedOwners = append(requestedOwners, parts[1])
				mu.Unlock()

				ok(`{"Go":1}`).write(t, w)
			}),
		),
	)

	svc := newTestGithubService(t, mockedHTTPClient, 60)
	stats, code, _ := svc.Aggregate(context.Background(), "test-owner")

	assert.Equal(t, model.NoError, code)
	assert.Equal(t, model.LanguageStats{{Language: "Go", Bytes: 2}}, stats)
	assert.Equal(t, []string{"Test-Owner", "test-owner"}, requestedOwners)
}
