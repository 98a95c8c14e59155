package model

import "slices"

type StatsQuery struct {
	Refresh bool `form:"refresh"`
}

type ChartQuery struct {
	Refresh            bool `form:"refresh"`
	Width              int  `form:"width" binding:"omitempty,min=1,max=4000"`
	BarHeight          int  `form:"barHeight" binding:"omitempty,min=1,max=1000"`
	LegendItemWidth    int  `form:"legendItemWidth" binding:"omitempty,min=1,max=4000"`
	LegendItemMaxCount int  `form:"legendItemMaxCount" binding:"omitempty,min=1,max=100"`
	FontSize           int  `form:"fontSize" binding:"omitempty,min=1,max=200"`
}

// ChartOptions holds the chart size parameters, all of them positive
type ChartOptions struct {
	Width              int
	BarHeight          int
	LegendItemWidth    int
	LegendItemMaxCount int
	FontSize           int
}

var DefaultChartOptions = ChartOptions{
	Width:              600,
	BarHeight:          50,
	LegendItemWidth:    120,
	LegendItemMaxCount: 8,
	FontSize:           14,
}

// WithDefaults replaces every non positive field with the matching default
func (o ChartOptions) WithDefaults(defaults ChartOptions) ChartOptions {
	if o.Width <= 0 {
		o.Width = defaults.Width
	}

	if o.BarHeight <= 0 {
		o.BarHeight = defaults.BarHeight
	}

	if o.LegendItemWidth <= 0 {
		o.LegendItemWidth = defaults.LegendItemWidth
	}

	if o.LegendItemMaxCount <= 0 {
		o.LegendItemMaxCount = defaults.LegendItemMaxCount
	}

	if o.FontSize <= 0 {
		o.FontSize = defaults.FontSize
	}

	return o
}

func (params ChartQuery) ToChartOptions(defaults ChartOptions) ChartOptions {
	return ChartOptions{
		Width:              params.Width,
		BarHeight:          params.BarHeight,
		LegendItemWidth:    params.LegendItemWidth,
		LegendItemMaxCount: params.LegendItemMaxCount,
		FontSize:           params.FontSize,
	}.WithDefaults(defaults)
}

// StatsResponse is the structured result returned by the stats endpoint
type StatsResponse struct {
	Stats     LanguageStats `json:"stats"`
	ErrorCode APIErrorCode  `json:"errorCode"`
}

// PrimaryLanguagesResponse is returned by the primary languages endpoint
// Repositories maps each primary language to its number of repositories, in first seen order
// Ranking lists the same languages from the most to the least used
type PrimaryLanguagesResponse struct {
	Repositories LanguageStats `json:"repositories"`
	Ranking      []string      `json:"ranking"`
	ErrorCode    APIErrorCode  `json:"errorCode"`
}

func NewPrimaryLanguagesResponse(counts LanguageStats, code APIErrorCode) PrimaryLanguagesResponse {
	ranked := slices.Clone(counts)
	ranked.SortByBytes()

	return PrimaryLanguagesResponse{
		Repositories: counts,
		Ranking:      ranked.Languages(),
		ErrorCode:    code,
	}
}
