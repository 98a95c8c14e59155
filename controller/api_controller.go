package controller

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Scalingo/sclng-language-stats/config"
	"github.com/Scalingo/sclng-language-stats/model"
	"github.com/Scalingo/sclng-language-stats/service"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const svgContentType = "image/svg+xml; charset=utf-8"

type APIController interface {
	GetLanguageStats(ctx *gin.Context)
	GetLanguageChart(ctx *gin.Context)
	GetPrimaryLanguages(ctx *gin.Context)
}

type apiController struct {
	cacheService    service.CacheService
	chartService    service.ChartService
	languageCounter service.PrimaryLanguageCounter
	config          config.Config
}

func NewAPIController(config config.Config, cacheService service.CacheService, chartService service.ChartService, languageCounter service.PrimaryLanguageCounter) APIController {
	return apiController{
		cacheService:    cacheService,
		chartService:    chartService,
		languageCounter: languageCounter,
		config:          config,
	}
}

// GetLanguageStats returns the languages distribution of the account as JSON
// partial results are returned with their error code, rate limits and empty results get their own status
func (s apiController) GetLanguageStats(c *gin.Context) {
	var query model.StatsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, model.NewAPIError(model.ErrInvalidParameters))
		return
	}

	// execute the request
	stats, code, rateLimitInfo := s.cacheService.GetOrFetch(c.Request.Context(), c.Param("account"), s.cacheService.DefaultTTL(), query.Refresh)

	respondJSON(c, stats, code, rateLimitInfo, model.StatsResponse{Stats: stats, ErrorCode: code})
}

// GetPrimaryLanguages returns how many repositories of the account use each primary language
// it only lists the repositories and is never cached
func (s apiController) GetPrimaryLanguages(c *gin.Context) {
	counts, code, rateLimitInfo := s.languageCounter.PrimaryLanguageCounts(c.Request.Context(), c.Param("account"))

	respondJSON(c, counts, code, rateLimitInfo, model.NewPrimaryLanguagesResponse(counts, code))
}

// respondJSON writes payload unless the call was rate limited or found nothing to return
func respondJSON(c *gin.Context, stats model.LanguageStats, code model.APIErrorCode, rateLimitInfo model.RateLimitInfo, payload any) {
	switch {
	case code == model.RateLimitExceeded:
		setRetryAfter(c, rateLimitInfo)
		c.JSON(http.StatusTooManyRequests, model.NewRateLimitAPIError(rateLimitInfo))

	case len(stats) == 0:
		c.JSON(http.StatusNotFound, model.NewAPIError(model.ErrNotFound))

	default:
		c.JSON(http.StatusOK, payload)
	}
}

// GetLanguageChart returns the languages distribution of the account as an SVG chart
// when there is nothing to draw, an SVG with an explanation is returned so embedded images still display
func (s apiController) GetLanguageChart(c *gin.Context) {
	var query model.ChartQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		log.WithError(err).Debug("invalid chart query parameters")
		c.JSON(http.StatusBadRequest, model.NewAPIError(model.ErrInvalidParameters))
		return
	}

	opts := query.ToChartOptions(s.chartService.DefaultOptions())
	stats, code, rateLimitInfo := s.cacheService.GetOrFetch(c.Request.Context(), c.Param("account"), s.cacheService.DefaultTTL(), query.Refresh)

	var svg string

	switch {
	case code == model.RateLimitExceeded:
		setRetryAfter(c, rateLimitInfo)
		svg = s.chartService.RenderMessage(opts.Width, rateLimitMessage(rateLimitInfo))

	case len(stats) == 0:
		svg = s.chartService.RenderMessage(opts.Width, "No repositories found or invalid username")

	default:
		svg = s.chartService.Render(stats, opts)
	}

	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, svgContentType, []byte(svg))
}

func rateLimitMessage(info model.RateLimitInfo) string {
	if resetAt, ok := info.ResetTime(); ok {
		return fmt.Sprintf("GitHub rate limit exceeded, try again after %s UTC", resetAt.Format("15:04"))
	}

	return "GitHub rate limit exceeded, try again later"
}

func setRetryAfter(c *gin.Context, info model.RateLimitInfo) {
	resetAt, ok := info.ResetTime()
	if !ok {
		return
	}

	if seconds := int(time.Until(resetAt).Seconds()); seconds > 0 {
		c.Header("Retry-After", strconv.Itoa(seconds))
	}
}
