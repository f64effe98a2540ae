// Package resource holds the simulated providers behind the payment
// gate and the typed request parameters for each of them. The engine
// treats these as external collaborators; nothing here touches
// payment state.
package resource

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// DefaultPricing maps resource names to their per-request cost in USD.
var DefaultPricing = map[string]float64{
	"weather":       0.10,
	"stock_data":    0.25,
	"news":          0.15,
	"translation":   0.20,
	"data_analysis": 0.50,
}

var ErrUnknownResource = errors.New("unknown resource")

// Params is the tagged union of known per-resource request
// parameters. Implementations are the only valid parameter shapes;
// anything else is rejected at the boundary.
type Params interface {
	Resource() string
	Validate() error
}

type WeatherParams struct {
	City string `json:"city"`
}

func (WeatherParams) Resource() string { return "weather" }

func (p WeatherParams) Validate() error {
	if p.City == "" {
		return fmt.Errorf("must provide city")
	}
	return nil
}

type StockParams struct {
	Symbol string `json:"symbol"`
}

func (StockParams) Resource() string { return "stock_data" }

func (p StockParams) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("must provide symbol")
	}
	return nil
}

type NewsParams struct {
	Topic string `json:"topic"`
}

func (NewsParams) Resource() string { return "news" }

func (p NewsParams) Validate() error {
	if p.Topic == "" {
		return fmt.Errorf("must provide topic")
	}
	return nil
}

type TranslationParams struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
}

func (TranslationParams) Resource() string { return "translation" }

func (p TranslationParams) Validate() error {
	if p.Text == "" {
		return fmt.Errorf("must provide text")
	}
	if p.TargetLanguage == "" {
		return fmt.Errorf("must provide target_language")
	}
	return nil
}

type AnalysisParams struct {
	Data map[string]any `json:"data"`
}

func (AnalysisParams) Resource() string { return "data_analysis" }

func (p AnalysisParams) Validate() error {
	if len(p.Data) == 0 {
		return fmt.Errorf("must provide data")
	}
	return nil
}

// Generate produces the simulated response body for validated params.
func Generate(p Params) (map[string]any, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().Format(time.RFC3339)
	cost := DefaultPricing[p.Resource()]

	switch v := p.(type) {
	case WeatherParams:
		conditions := []string{"Sunny", "Cloudy", "Rainy", "Partly Cloudy"}
		return map[string]any{
			"city":        v.City,
			"temperature": 15 + rand.Intn(21),
			"condition":   conditions[rand.Intn(len(conditions))],
			"humidity":    30 + rand.Intn(61),
			"wind_speed":  5 + rand.Intn(21),
			"timestamp":   now,
			"cost":        cost,
		}, nil

	case StockParams:
		price := 50 + rand.Float64()*450
		return map[string]any{
			"symbol":     strings.ToUpper(v.Symbol),
			"price":      round2(price),
			"change":     round2(rand.Float64()*20 - 10),
			"volume":     1000000 + rand.Intn(9000000),
			"market_cap": fmt.Sprintf("$%dB", 1+rand.Intn(100)),
			"timestamp":  now,
			"cost":       cost,
		}, nil

	case NewsParams:
		return map[string]any{
			"topic": v.Topic,
			"articles": []map[string]any{
				{
					"title":        fmt.Sprintf("Breaking: %s developments shake the market", v.Topic),
					"source":       "Tech News Daily",
					"published_at": now,
				},
				{
					"title":        fmt.Sprintf("Analysis: What %s means for the future", v.Topic),
					"source":       "Business Insider",
					"published_at": now,
				},
				{
					"title":        fmt.Sprintf("Expert insights on %s", v.Topic),
					"source":       "Industry Watch",
					"published_at": now,
				},
			},
			"cost": cost,
		}, nil

	case TranslationParams:
		return map[string]any{
			"original_text":   v.Text,
			"translated_text": fmt.Sprintf("[%s] %s", v.TargetLanguage, reverse(v.Text)),
			"source_language": "auto-detected",
			"target_language": v.TargetLanguage,
			"confidence":      0.95,
			"cost":            cost,
		}, nil

	case AnalysisParams:
		return map[string]any{
			"input_data": v.Data,
			"summary": map[string]any{
				"data_points":   len(v.Data),
				"analysis_type": "comprehensive",
				"insights": []string{
					"Data shows positive trend",
					"Key metrics within expected range",
					"Anomalies detected: 2",
				},
			},
			"recommendations": []string{
				"Continue monitoring key metrics",
				"Investigate detected anomalies",
			},
			"timestamp": now,
			"cost":      cost,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownResource, p)
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}
