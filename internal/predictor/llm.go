package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stockcast/backend-go/internal/domain"
)

// Client calls an external text-generation service that returns structured
// JSON completions.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
}

type ClientConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		http:     &http.Client{Timeout: timeout},
	}
}

type completionRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	ResponseFormat string `json:"response_format"`
}

type completionResponse struct {
	Output string `json:"output"`
}

// Complete sends a prompt and returns the raw completion text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:          c.model,
		Prompt:         prompt,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion call failed: %v: %w", err, domain.ErrPredictionUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("completion provider returned 429: %w", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion provider returned %d: %w", resp.StatusCode, domain.ErrPredictionUnavailable)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read completion response: %w", domain.ErrPredictionUnavailable)
	}

	var completion completionResponse
	if err := json.Unmarshal(raw, &completion); err != nil {
		return "", fmt.Errorf("malformed completion envelope: %w", domain.ErrPredictionUnavailable)
	}

	return completion.Output, nil
}

// LLM is the LLM-backed demand predictor.
type LLM struct {
	client *Client
}

func NewLLM(client *Client) *LLM {
	return &LLM{client: client}
}

// llmForecast is the JSON shape the model is asked to produce.
type llmForecast struct {
	Predictions []struct {
		Date            string  `json:"date"`
		PredictedQty    float64 `json:"predicted_qty"`
		ConfidenceLower float64 `json:"confidence_lower"`
		ConfidenceUpper float64 `json:"confidence_upper"`
	} `json:"predictions"`
	Summary struct {
		Trend               string `json:"trend"`
		SeasonalityDetected bool   `json:"seasonality_detected"`
	} `json:"summary"`
	Explanation string `json:"explanation"`
	RiskLevel   string `json:"risk_level"`
	Reorder     struct {
		ShouldReorder bool    `json:"should_reorder"`
		SuggestedQty  float64 `json:"suggested_qty"`
		Reasoning     string  `json:"reasoning"`
	} `json:"reorder_recommendation"`
}

func (l *LLM) Predict(ctx context.Context, req Request) (*Payload, error) {
	output, err := l.client.Complete(ctx, forecastPrompt(req))
	if err != nil {
		return nil, err
	}

	var parsed llmForecast
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		log.Warn().Str("sku", req.SKU).Msg("llm returned malformed forecast JSON")
		return nil, fmt.Errorf("malformed forecast JSON: %w", domain.ErrPredictionUnavailable)
	}

	points := make([]domain.ForecastPoint, 0, len(parsed.Predictions))
	for _, p := range parsed.Predictions {
		date, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid prediction date %q: %w", p.Date, domain.ErrPredictionUnavailable)
		}
		points = append(points, domain.ForecastPoint{
			Date:            date,
			PredictedQty:    p.PredictedQty,
			ConfidenceLower: p.ConfidenceLower,
			ConfidenceUpper: p.ConfidenceUpper,
		})
	}

	var total float64
	for _, p := range points {
		total += p.PredictedQty
	}

	payload := &Payload{
		Predictions: points,
		Summary: domain.ForecastSummary{
			TotalPredicted:      total,
			DailyAverage:        total / float64(max(req.HorizonDays, 1)),
			PeakDate:            peakDate(points),
			Trend:               parsed.Summary.Trend,
			SeasonalityDetected: parsed.Summary.SeasonalityDetected,
		},
		RiskLevel: parsed.RiskLevel,
		Explanation: parsed.Explanation,
		Reorder: domain.ReorderRecommendation{
			ShouldReorder: parsed.Reorder.ShouldReorder,
			SuggestedQty:  parsed.Reorder.SuggestedQty,
			Reasoning:     parsed.Reorder.Reasoning,
		},
		ModelVersion: "llm-" + l.client.model,
	}

	if err := validatePayload(payload, req.HorizonDays); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrPredictionUnavailable)
	}

	return payload, nil
}

// forecastPrompt serializes up to 90 days of history into a structured prompt
// constrained to the forecast JSON shape.
func forecastPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a demand forecasting model for a retail inventory system.\n")
	fmt.Fprintf(&b, "SKU: %s (%s), brand %s, category %s, unit price %.2f.\n",
		req.SKU, req.ProductName, req.Brand, req.Category, req.UnitPrice)
	fmt.Fprintf(&b, "Current stock: %d units, safety stock: %d units.\n", req.CurrentStock, req.SafetyStock)
	fmt.Fprintf(&b, "Sales history (date,qty,unit_price,discount):\n")

	history := req.History
	if len(history) > 90 {
		history = history[len(history)-90:]
	}
	for _, rec := range history {
		fmt.Fprintf(&b, "%s,%d,%s,%s\n",
			rec.SoldAt.Format("2006-01-02"), rec.Quantity, rec.UnitPrice.StringFixed(2), rec.Discount.StringFixed(2))
	}

	fmt.Fprintf(&b, "\nForecast daily demand for the next %d days starting %s.\n",
		req.HorizonDays, req.Now.AddDate(0, 0, 1).Format("2006-01-02"))
	fmt.Fprintf(&b, `Respond with JSON only: {"predictions":[{"date":"YYYY-MM-DD","predicted_qty":n,"confidence_lower":n,"confidence_upper":n}, one per day],"summary":{"trend":"increasing|stable|decreasing","seasonality_detected":bool},"risk_level":"critical|high|medium|low","explanation":"...","reorder_recommendation":{"should_reorder":bool,"suggested_qty":n,"reasoning":"..."}}`)

	return b.String()
}

// LLMPlanner drafts purchase orders through the same completion service.
type LLMPlanner struct {
	client *Client
}

func NewLLMPlanner(client *Client) *LLMPlanner {
	return &LLMPlanner{client: client}
}

type llmDraft struct {
	Lines []struct {
		SKU string `json:"sku"`
		Qty int    `json:"qty"`
	} `json:"line_items"`
	Reasoning    string `json:"reasoning"`
	EmailSubject string `json:"email_subject"`
	EmailBody    string `json:"email_body"`
}

func (l *LLMPlanner) PlanOrder(ctx context.Context, req DraftRequest) (*DraftPlan, error) {
	output, err := l.client.Complete(ctx, draftPrompt(req))
	if err != nil {
		return nil, err
	}

	var parsed llmDraft
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		return nil, fmt.Errorf("malformed draft JSON: %w", domain.ErrPredictionUnavailable)
	}
	if len(parsed.Lines) == 0 {
		return nil, fmt.Errorf("draft has no line items: %w", domain.ErrPredictionUnavailable)
	}

	itemsBySKU := make(map[string]DraftItem, len(req.Items))
	for _, item := range req.Items {
		itemsBySKU[item.SKU] = item
	}

	lines := make([]DraftLine, 0, len(parsed.Lines))
	for _, line := range parsed.Lines {
		item, ok := itemsBySKU[line.SKU]
		if !ok || line.Qty <= 0 {
			return nil, fmt.Errorf("draft references unknown SKU %q: %w", line.SKU, domain.ErrPredictionUnavailable)
		}
		lines = append(lines, DraftLine{
			SKU:         item.SKU,
			ProductName: item.ProductName,
			Qty:         line.Qty,
			UnitPrice:   item.UnitPrice,
		})
	}

	return &DraftPlan{
		Lines:        lines,
		Reasoning:    parsed.Reasoning,
		EmailSubject: parsed.EmailSubject,
		EmailBody:    parsed.EmailBody,
	}, nil
}

func draftPrompt(req DraftRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You draft purchase orders for a retail replenishment system.\n")
	fmt.Fprintf(&b, "Supplier: %s (lead time %d days, terms %s).\n",
		req.Supplier.Name, req.Supplier.LeadTimeDays, req.Supplier.PaymentTerms)
	fmt.Fprintf(&b, "Candidate items (sku,name,stock,safety,reorder_point,30d_forecast,unit_price,moq):\n")
	for _, item := range req.Items {
		fmt.Fprintf(&b, "%s,%s,%d,%d,%d,%.0f,%s,%d\n",
			item.SKU, item.ProductName, item.CurrentStock, item.SafetyStock,
			item.ReorderPoint, item.ForecastTotal, item.UnitPrice.StringFixed(2), item.MOQ)
	}
	if req.Reason != "" {
		fmt.Fprintf(&b, "Reason for ordering: %s\n", req.Reason)
	}
	fmt.Fprintf(&b, `Respond with JSON only: {"line_items":[{"sku":"...","qty":n}],"reasoning":"...","email_subject":"...","email_body":"..."}`)

	return b.String()
}
