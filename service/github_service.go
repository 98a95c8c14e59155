package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Scalingo/sclng-language-stats/config"
	"github.com/Scalingo/sclng-language-stats/model"
	"github.com/google/go-github/v66/github"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// github returns at most 100 items per page
const repositoriesPerPage = 100

// PrimaryLanguageCounter is the part of the github service used by the primary languages endpoint
type PrimaryLanguageCounter interface {
	PrimaryLanguageCounts(ctx context.Context, account string) (model.LanguageStats, model.APIErrorCode, model.RateLimitInfo)
}

type GithubService interface {
	PrimaryLanguageCounter

	Aggregate(ctx context.Context, account string) (model.LanguageStats, model.APIErrorCode, model.RateLimitInfo)
	ListRepositories(ctx context.Context, account string, rateLimitInfo *model.RateLimitInfo) ([]model.RepositoryDescriptor, model.APIErrorCode)
	FetchRepositoryLanguages(ctx context.Context, owner string, repository string) CallResult[model.LanguageStats]

	HandleRateLimitExceeded()
}

type githubService struct {
	githubClient      *github.Client
	httpClient        *http.Client
	githubRateLimiter *rate.Limiter
	config            config.Config
}

// we have two kinds of github requests: list repositories (one per page) and list languages (one per repository)
// both share the same core rate limit: 60 calls per hour for non-authenticated and 5000 calls for authenticated
// so every call consumes a token from the local rate limiter before being sent
func NewGithubService(config config.Config, httpClient *http.Client, rateLimiter *rate.Limiter) (GithubService, error) {
	githubClient, err := NewGithubClient(config.Github, httpClient)
	if err != nil {
		return nil, err
	}

	return githubService{
		githubClient:      githubClient,
		httpClient:        httpClient,
		githubRateLimiter: rateLimiter,
		config:            config,
	}, nil
}

// Aggregate sums the languages bytes of every repository owned by the account
// repositories are processed one at a time and the first failing call stops the loop:
// the stats accumulated so far are returned with the error code, unsorted
func (s githubService) Aggregate(ctx context.Context, account string) (model.LanguageStats, model.APIErrorCode, model.RateLimitInfo) {
	rateLimitInfo := model.NewRateLimitInfo()
	logger := log.WithField("account", account)

	repos, code := s.listAccountRepositories(ctx, account, &rateLimitInfo)
	if code != model.NoError {
		return model.LanguageStats{}, code, rateLimitInfo
	}

	logger.WithField("numberOfRepositories", len(repos)).Debug("will load languages for all repositories")

	totals := model.NewLanguageAccumulator()

	for _, r := range repos {
		if r.Name == "" {
			logger.Debug("repository without name. skipped")
			continue
		}

		result := s.FetchRepositoryLanguages(ctx, r.OwnerOr(account), r.Name)
		rateLimitInfo.Merge(result.Header)

		if result.Code != model.NoError {
			logger.WithFields(log.Fields{
				"repository": r.Name,
				"code":       result.Code.String(),
				"reset":      rateLimitInfo.Reset,
			}).Warning("unable to fetch repository languages. stopping further github calls")

			return totals.Stats(), result.Code, rateLimitInfo
		}

		totals.AddAll(result.Value)
	}

	logger.WithFields(log.Fields{
		"numberOfLanguages": totals.Len(),
		"remaining":         rateLimitInfo.Remaining,
	}).Info("languages aggregated for account")

	return totals.Sorted(), model.NoError, rateLimitInfo
}

// PrimaryLanguageCounts counts the repositories of the account per primary language, in first seen order
// only the repositories list is requested, repositories without a detected language are not counted
func (s githubService) PrimaryLanguageCounts(ctx context.Context, account string) (model.LanguageStats, model.APIErrorCode, model.RateLimitInfo) {
	rateLimitInfo := model.NewRateLimitInfo()

	repos, code := s.listAccountRepositories(ctx, account, &rateLimitInfo)
	if code != model.NoError {
		return model.LanguageStats{}, code, rateLimitInfo
	}

	counts := model.NewLanguageAccumulator()
	for _, r := range repos {
		if r.Language == nil || *r.Language == "" {
			continue
		}

		counts.Add(*r.Language, 1)
	}

	log.WithFields(log.Fields{
		"account":              account,
		"numberOfRepositories": len(repos),
		"numberOfLanguages":    counts.Len(),
	}).Info("primary languages counted for account")

	return counts.Stats(), model.NoError, rateLimitInfo
}

// listAccountRepositories lists the repositories and reduces any failure to the code returned to callers:
// RateLimitExceeded as is, OtherError for anything else including an account without repositories
func (s githubService) listAccountRepositories(ctx context.Context, account string, rateLimitInfo *model.RateLimitInfo) ([]model.RepositoryDescriptor, model.APIErrorCode) {
	logger := log.WithField("account", account)

	repos, code := s.ListRepositories(ctx, account, rateLimitInfo)

	if code == model.RateLimitExceeded {
		logger.WithField("reset", rateLimitInfo.Reset).Warning("rate limit exceeded while fetching repositories. aborting")
		return nil, model.RateLimitExceeded
	}

	if code != model.NoError || len(repos) == 0 {
		logger.WithField("code", code.String()).Info("no repositories found for account")
		return nil, model.OtherError
	}

	return repos, model.NoError
}

// ListRepositories lists the repositories owned by the account, page by page
// pagination stops on the first page that is not full or when the configured max number of pages is reached
// any non successful page returns its code with the repositories already listed
func (s githubService) ListRepositories(ctx context.Context, account string, rateLimitInfo *model.RateLimitInfo) ([]model.RepositoryDescriptor, model.APIErrorCode) {
	repositories := make([]model.RepositoryDescriptor, 0)
	maxPages := max(1, s.config.Github.MaxRepositoryPages)

	for page := 1; page <= maxPages; page++ {
		urlStr := fmt.Sprintf("users/%s/repos?per_page=%d&page=%d", url.PathEscape(account), repositoriesPerPage, page)
		result := callGithub(ctx, s, urlStr, decodeRepositories, nil)
		rateLimitInfo.Merge(result.Header)

		if result.Code != model.NoError {
			if result.Body != "" {
				log.WithFields(log.Fields{
					"account": account,
					"page":    page,
					"content": result.Body,
				}).Debug("github responded with error content")
			}

			return repositories, result.Code
		}

		repositories = append(repositories, result.Value...)

		if len(result.Value) < repositoriesPerPage {
			break
		}
	}

	return repositories, model.NoError
}

// FetchRepositoryLanguages gets the languages breakdown of a single repository
// the languages keep the order of the github document (most used first)
func (s githubService) FetchRepositoryLanguages(ctx context.Context, owner string, repository string) CallResult[model.LanguageStats] {
	log.WithFields(log.Fields{
		"owner":      owner,
		"repository": repository,
	}).Debug("fetch languages for repository")

	urlStr := fmt.Sprintf("repos/%s/%s/languages", url.PathEscape(owner), url.PathEscape(repository))
	return callGithub(ctx, s, urlStr, decodeLanguages, nil)
}

// HandleRateLimitExceeded empties the local rate limiter when github rejected a call for rate limit
// this keeps the local rate limiter up to date: next calls fail fast until tokens are refilled
func (s githubService) HandleRateLimitExceeded() {
	if s.githubRateLimiter == nil {
		return
	}

	if tokens := int(s.githubRateLimiter.Tokens()); tokens > 0 {
		s.githubRateLimiter.AllowN(time.Now(), tokens)
	}

	log.Warning("the Github rate limit has been reached. Use a token or wait until the limit reset")
}

// callGithub sends one GET request to github through the executor
// a token is taken from the local rate limiter first, if none is available nothing is sent
func callGithub[T any](ctx context.Context, s githubService, urlStr string, onSuccess func(body []byte) (T, error), defaultOnError T) CallResult[T] {
	if s.githubRateLimiter != nil && !s.githubRateLimiter.Allow() {
		log.WithField("url", urlStr).Warning("local rate limiter exhausted. github call skipped")
		return CallResult[T]{Value: defaultOnError, Code: model.RateLimitExceeded}
	}

	result := CallAPI(func() (*http.Response, error) {
		req, err := s.githubClient.NewRequest(http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}

		return s.httpClient.Do(req.WithContext(ctx))
	}, onSuccess, defaultOnError)

	if result.Code == model.RateLimitExceeded {
		s.HandleRateLimitExceeded()
	}

	return result
}

func decodeRepositories(body []byte) ([]model.RepositoryDescriptor, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var repos []*github.Repository
	if err := json.Unmarshal(body, &repos); err != nil {
		return nil, fmt.Errorf("decode repositories: %w", err)
	}

	descriptors := make([]model.RepositoryDescriptor, 0, len(repos))
	for _, r := range repos {
		if r == nil {
			continue
		}

		descriptors = append(descriptors, model.NewRepositoryDescriptor(r))
	}

	return descriptors, nil
}

// an empty body means github has no languages for the repository
func decodeLanguages(body []byte) (model.LanguageStats, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var languages model.LanguageStats
	if err := json.Unmarshal(body, &languages); err != nil {
		return nil, fmt.Errorf("decode languages: %w", err)
	}

	return languages, nil
}
