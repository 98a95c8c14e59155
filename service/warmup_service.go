package service

import (
	"context"
	"strings"

	"github.com/Scalingo/sclng-language-stats/config"
	"github.com/Scalingo/sclng-language-stats/model"
	"github.com/remeh/sizedwaitgroup"
	log "github.com/sirupsen/logrus"
)

type WarmupService interface {
	Warmup(ctx context.Context, accounts []string) map[string]model.APIErrorCode
}

type warmupService struct {
	cache  CacheService
	config config.Config
}

func NewWarmupService(config config.Config, cache CacheService) WarmupService {
	return warmupService{
		cache:  cache,
		config: config,
	}
}

type warmupResult struct {
	account string
	code    model.APIErrorCode
}

// Warmup fills the cache for the given accounts
// accounts are processed in parallel, up to MaxParallelTasksAllowed at a time,
// each account aggregation itself stays sequential
// fresh records are kept, so restarting the server does not spend the github budget again
func (s warmupService) Warmup(ctx context.Context, accounts []string) map[string]model.APIErrorCode {
	ttl := s.cache.DefaultTTL()

	// create a group to wait for all goroutines to finish
	swg := sizedwaitgroup.New(max(1, s.config.Tasks.MaxParallelTasksAllowed))
	results := make(chan warmupResult, len(accounts))

	for _, account := range accounts {
		account = strings.TrimSpace(account)
		if account == "" {
			continue
		}

		swg.Add()
		go func(account string) {
			defer swg.Done()

			_, code, _ := s.cache.GetOrFetch(ctx, account, ttl, false)
			results <- warmupResult{account: account, code: code}
		}(account)
	}

	log.Debug("waiting for all warmup tasks to be finished")
	swg.Wait()
	close(results)

	codes := make(map[string]model.APIErrorCode, len(accounts))
	for result := range results {
		codes[result.account] = result.code

		log.WithFields(log.Fields{
			"account": result.account,
			"code":    result.code.String(),
		}).Info("cache warmup finished for account")
	}

	return codes
}
