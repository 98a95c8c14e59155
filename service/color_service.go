package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/Scalingo/sclng-language-stats/config"
	colorful "github.com/lucasb-eyer/go-colorful"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const DefaultLanguageColor = "#cccccc"

type ColorResolver interface {
	Lookup(language string) string
}

type ColorService interface {
	ColorResolver

	Init(ctx context.Context) error
	ForceRefresh(ctx context.Context) error
	Len() int
}

type colorService struct {
	cacheFile  string
	sourceURL  string
	httpClient *http.Client

	mu     sync.RWMutex
	colors map[string]string
}

// NewColorService creates an empty resolver, Init must be called before serving requests
func NewColorService(cfg config.ColorsConfig, httpClient *http.Client) ColorService {
	return &colorService{
		cacheFile:  cfg.CacheFile,
		sourceURL:  cfg.SourceURL,
		httpClient: httpClient,
		colors:     map[string]string{},
	}
}

// Init loads the colors from the local file
// when the file does not exist, colors are fetched from the linguist languages document and saved locally
func (s *colorService) Init(ctx context.Context) error {
	colors, err := s.loadLocal()

	if errors.Is(err, os.ErrNotExist) {
		log.WithField("url", s.sourceURL).Info("fetching language colors from the linguist repository")

		colors, err = s.fetchRemote(ctx)
		if err != nil {
			return err
		}

		if err := s.saveLocal(colors); err != nil {
			log.WithError(err).WithField("file", s.cacheFile).Warning("unable to save language colors locally")
		}
	} else if err != nil {
		return err
	} else {
		log.WithField("file", s.cacheFile).Debug("language colors loaded from local file")
	}

	s.mu.Lock()
	s.colors = colors
	s.mu.Unlock()

	log.WithField("numberOfLanguages", len(colors)).Info("language colors ready")
	return nil
}

// ForceRefresh drops the local file and fetches the colors again
func (s *colorService) ForceRefresh(ctx context.Context) error {
	if err := os.Remove(s.cacheFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return s.Init(ctx)
}

// Lookup never fails, unknown languages get the default color
func (s *colorService) Lookup(language string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if color, found := s.colors[language]; found {
		return color
	}

	return DefaultLanguageColor
}

func (s *colorService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.colors)
}

func (s *colorService) loadLocal() (map[string]string, error) {
	data, err := os.ReadFile(s.cacheFile)
	if err != nil {
		return nil, err
	}

	colors := map[string]string{}
	if err := json.Unmarshal(data, &colors); err != nil {
		return nil, fmt.Errorf("invalid language colors file %s: %w", s.cacheFile, err)
	}

	return colors, nil
}

func (s *colorService) saveLocal(colors map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.cacheFile), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(colors, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.cacheFile, data, 0o644)
}

func (s *colorService) fetchRemote(ctx context.Context) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.sourceURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch language colors: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch language colors: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch language colors: %w", err)
	}

	return ParseLinguistColors(data)
}

type linguistLanguage struct {
	Color string `yaml:"color"`
}

// ParseLinguistColors extracts the color of each language from a linguist languages.yml document
// languages without a color or with an invalid one are left out
func ParseLinguistColors(data []byte) (map[string]string, error) {
	languages := map[string]linguistLanguage{}
	if err := yaml.Unmarshal(data, &languages); err != nil {
		return nil, fmt.Errorf("parse linguist languages: %w", err)
	}

	colors := make(map[string]string, len(languages))
	for language, props := range languages {
		if props.Color == "" {
			continue
		}

		c, err := colorful.Hex(props.Color)
		if err != nil {
			log.WithField("language", language).WithField("color", props.Color).Debug("invalid language color. skipped")
			continue
		}

		colors[language] = c.Hex()
	}

	return colors, nil
}
