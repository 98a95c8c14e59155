package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Scalingo/sclng-language-stats/config"
	"github.com/Scalingo/sclng-language-stats/model"
	log "github.com/sirupsen/logrus"
)

const cacheFileExtension = ".json"

// StatsAggregator is the part of the github service the cache depends on
type StatsAggregator interface {
	Aggregate(ctx context.Context, account string) (model.LanguageStats, model.APIErrorCode, model.RateLimitInfo)
}

type CacheService interface {
	GetOrFetch(ctx context.Context, account string, ttl time.Duration, forceRefresh bool) (model.LanguageStats, model.APIErrorCode, model.RateLimitInfo)
	Write(account string, entry model.CacheEntry) error
	Purge(account string) error
	PurgeAll() (int, error)
	DefaultTTL() time.Duration
}

type cacheService struct {
	dir        string
	defaultTTL time.Duration
	aggregator StatsAggregator
	now        func() time.Time

	// one mutex per account, writes for the same account are serialized
	writeLocks sync.Map
}

// NewCacheService creates the file cache in front of the aggregator
// the cache directory is created if it does not exist
func NewCacheService(cfg config.Config, aggregator StatsAggregator) (CacheService, error) {
	ttl, err := cfg.Cache.TTLDuration()
	if err != nil {
		return nil, fmt.Errorf("invalid cache ttl: %w", err)
	}

	if err := os.MkdirAll(cfg.Cache.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create cache directory: %w", err)
	}

	return &cacheService{
		dir:        cfg.Cache.Dir,
		defaultTTL: ttl,
		aggregator: aggregator,
		now:        time.Now,
	}, nil
}

func (c *cacheService) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// GetOrFetch returns the cached stats when the record is younger than ttl, without calling github
// otherwise the stats are aggregated again and persisted only if the aggregation succeeded
// a failed or partial aggregation is returned as is and the previous record is kept
func (c *cacheService) GetOrFetch(ctx context.Context, account string, ttl time.Duration, forceRefresh bool) (model.LanguageStats, model.APIErrorCode, model.RateLimitInfo) {
	logger := log.WithFields(log.Fields{
		"account":      account,
		"ttl":          ttl.String(),
		"forceRefresh": forceRefresh,
	})

	if !forceRefresh {
		if entry, ok := c.readFresh(account, ttl); ok {
			logger.Debug("using cached language stats")
			return entry.Stats, model.NoError, entry.RateLimit
		}
	}

	logger.Debug("cache miss. aggregating language stats from github")
	stats, code, rateLimitInfo := c.aggregator.Aggregate(ctx, account)

	if code != model.NoError {
		logger.WithField("code", code.String()).Info("aggregation did not succeed. cache left untouched")
		return stats, code, rateLimitInfo
	}

	if err := c.Write(account, model.CacheEntry{Stats: stats, RateLimit: rateLimitInfo}); err != nil {
		logger.WithError(err).Error("unable to write language stats to cache")
	}

	return stats, code, rateLimitInfo
}

// readFresh returns the record when it exists, is valid and is younger than ttl
// anything else is a miss
func (c *cacheService) readFresh(account string, ttl time.Duration) (model.CacheEntry, bool) {
	path := c.path(account)

	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).WithField("account", account).Warning("unable to stat cache record")
		}

		return model.CacheEntry{}, false
	}

	if c.now().Sub(info.ModTime()) >= ttl {
		return model.CacheEntry{}, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).WithField("account", account).Warning("unable to read cache record")
		return model.CacheEntry{}, false
	}

	entry := model.CacheEntry{RateLimit: model.NewRateLimitInfo()}
	if err := json.Unmarshal(data, &entry); err != nil || entry.Stats == nil {
		log.WithError(err).WithField("account", account).Warning("malformed cache record. treated as a miss")
		return model.CacheEntry{}, false
	}

	// records written without rate limit state read as unknown
	entry.RateLimit = entry.RateLimit.WithDefaults()

	return entry, true
}

// Write replaces the record of the account
// the record is written to a temporary file then renamed so readers never see a partial file
func (c *cacheService) Write(account string, entry model.CacheEntry) error {
	lock := c.lockFor(account)
	lock.Lock()
	defer lock.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, ".record-*.tmp")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	if err := os.Rename(tmp.Name(), c.path(account)); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return nil
}

// Purge deletes the record of the account, a missing record is not an error
func (c *cacheService) Purge(account string) error {
	lock := c.lockFor(account)
	lock.Lock()
	defer lock.Unlock()

	err := os.Remove(c.path(account))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

// PurgeAll deletes every record and returns how many were removed
// only files named like a record are touched, other files of the directory are kept
func (c *cacheService) PurgeAll() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}

		return 0, err
	}

	count := 0
	for _, e := range entries {
		if e.IsDir() || !isRecordName(e.Name()) {
			continue
		}

		if err := os.Remove(filepath.Join(c.dir, e.Name())); err == nil {
			count++
		}
	}

	return count, nil
}

func (c *cacheService) lockFor(account string) *sync.Mutex {
	lock, _ := c.writeLocks.LoadOrStore(account, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// isRecordName reports whether name is a sha256 hex digest followed by the record extension
func isRecordName(name string) bool {
	digest, found := strings.CutSuffix(name, cacheFileExtension)
	if !found || len(digest) != sha256.Size*2 {
		return false
	}

	_, err := hex.DecodeString(digest)
	return err == nil
}

// path maps one account to one file, the name is hashed to stay filesystem safe
func (c *cacheService) path(account string) string {
	h := sha256.Sum256([]byte(account))
	return filepath.Join(c.dir, hex.EncodeToString(h[:])+cacheFileExtension)
}
