package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Scalingo/sclng-language-stats/config"
	"github.com/google/go-github/v66/github"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// NewHTTPClient builds the http client used for every github call
// when a token is configured, requests carry it as a bearer credential
func NewHTTPClient(ctx context.Context, cfg config.GithubConfig) *http.Client {
	timeout, err := cfg.RequestTimeoutDuration()
	if err != nil {
		timeout = 30 * time.Second
	}

	if cfg.Token == "" {
		log.Warning("no github token configured. rate limit will be low")
		return &http.Client{Timeout: timeout}
	}

	log.Debug("will setup github http client with authorization token")
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	httpClient.Timeout = timeout

	return httpClient
}

// NewGithubClient wraps the http client in a go-github client pointing to the configured base url
func NewGithubClient(cfg config.GithubConfig, httpClient *http.Client) (*github.Client, error) {
	githubClient := github.NewClient(httpClient)

	if cfg.BaseURL == "" {
		return githubClient, nil
	}

	baseURL := cfg.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid github base url %q: %w", cfg.BaseURL, err)
	}

	githubClient.BaseURL = parsed
	return githubClient, nil
}

// NewRateLimiter creates the local rate limiter mirroring the github core budget
// the current limits are loaded from github so requests made elsewhere with the same token are accounted
// when they can't be loaded, the fallback limit is used with a full bucket
func NewRateLimiter(ctx context.Context, githubClient *github.Client, fallbackLimit int) *rate.Limiter {
	limit, remaining := fallbackLimit, fallbackLimit

	log.Debug("loading current rate limit from github")
	rateLimits, _, err := githubClient.RateLimit.Get(ctx)

	if err != nil || rateLimits == nil || rateLimits.Core == nil {
		log.WithError(err).WithField("fallbackLimit", fallbackLimit).Warning("unable to load current github rate limits. using fallback")
	} else {
		limit, remaining = rateLimits.Core.Limit, rateLimits.Core.Remaining
	}

	log.WithFields(log.Fields{
		"totalAvailable":    limit,
		"remainingRequests": remaining,
	}).Debug("will setup local rate limiter with rate limits infos")

	return newRateLimiter(limit, remaining)
}

// newRateLimiter refills the whole limit over one hour, like the github core budget
func newRateLimiter(limit, remaining int) *rate.Limiter {
	if limit <= 0 {
		limit = 1
	}

	rateLimiter := rate.NewLimiter(rate.Every(time.Hour/time.Duration(limit)), limit)

	// consume the requests already used on github side
	if used := limit - remaining; used > 0 {
		rateLimiter.AllowN(time.Now(), min(used, limit))
	}

	return rateLimiter
}
