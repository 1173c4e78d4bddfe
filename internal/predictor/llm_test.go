package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockcast/backend-go/internal/domain"
)

func llmTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{Endpoint: srv.URL, APIKey: "test-key", Model: "sc-forecast-1"})
}

// completionOutput wraps a forecast JSON document into the completion envelope.
func completionOutput(t *testing.T, doc any) []byte {
	t.Helper()
	inner, err := json.Marshal(doc)
	require.NoError(t, err)
	raw, err := json.Marshal(map[string]string{"output": string(inner)})
	require.NoError(t, err)
	return raw
}

func validForecastDoc(now time.Time, horizon int) map[string]any {
	predictions := make([]map[string]any, 0, horizon)
	for i := 1; i <= horizon; i++ {
		predictions = append(predictions, map[string]any{
			"date":             now.AddDate(0, 0, i).Format("2006-01-02"),
			"predicted_qty":    5.0,
			"confidence_lower": 3.0,
			"confidence_upper": 7.0,
		})
	}
	return map[string]any{
		"predictions": predictions,
		"summary":     map[string]any{"trend": "stable", "seasonality_detected": false},
		"risk_level":  "medium",
		"explanation": "steady movement",
		"reorder_recommendation": map[string]any{
			"should_reorder": true, "suggested_qty": 60.0, "reasoning": "stock below projected demand",
		},
	}
}

func TestLLMPredictParsesValidResponse(t *testing.T) {
	now := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

	var gotAuth string
	client := llmTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/v1/completions", r.URL.Path)
		w.Write(completionOutput(t, validForecastDoc(now, 30)))
	})

	req := heuristicRequest(30)
	req.Now = now
	req.History = []domain.SalesRecord{{Quantity: 4, UnitPrice: decimal.NewFromInt(42), SoldAt: now.AddDate(0, 0, -3)}}

	payload, err := NewLLM(client).Predict(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Len(t, payload.Predictions, 30)
	assert.Equal(t, 150.0, payload.Summary.TotalPredicted)
	assert.Equal(t, 5.0, payload.Summary.DailyAverage)
	assert.Equal(t, "medium", payload.RiskLevel)
	assert.True(t, payload.Reorder.ShouldReorder)
	assert.Equal(t, "llm-sc-forecast-1", payload.ModelVersion)
}

func TestLLMPredictErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantErr: domain.ErrRateLimited,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: domain.ErrPredictionUnavailable,
		},
		{
			name: "malformed forecast JSON",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"output": "not json at all"}`)
			},
			wantErr: domain.ErrPredictionUnavailable,
		},
		{
			name: "wrong prediction count",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				doc := validForecastDoc(time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), 7)
				inner, _ := json.Marshal(doc)
				_ = json.NewEncoder(w).Encode(map[string]string{"output": string(inner)})
			},
			wantErr: domain.ErrPredictionUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := llmTestClient(t, tt.handler)
			_, err := NewLLM(client).Predict(context.Background(), heuristicRequest(30))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLLMPlannerRejectsUnknownSKU(t *testing.T) {
	client := llmTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write(completionOutput(t, map[string]any{
			"line_items":    []map[string]any{{"sku": "GHOST-001", "qty": 10}},
			"reasoning":     "restock",
			"email_subject": "PO",
			"email_body":    "please ship",
		}))
	})

	req := DraftRequest{
		Supplier: domain.Supplier{ID: 1, Name: "Nordvik Labs"},
		Items:    []DraftItem{{SKU: "NV-SER-001", UnitPrice: decimal.NewFromInt(20)}},
	}
	_, err := NewLLMPlanner(client).PlanOrder(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrPredictionUnavailable)
}

func TestLLMPlannerParsesValidDraft(t *testing.T) {
	client := llmTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write(completionOutput(t, map[string]any{
			"line_items":    []map[string]any{{"sku": "NV-SER-001", "qty": 30}},
			"reasoning":     "forecast exceeds stock",
			"email_subject": "Purchase order",
			"email_body":    "please ship 30 units",
		}))
	})

	req := DraftRequest{
		Supplier: domain.Supplier{ID: 1, Name: "Nordvik Labs"},
		Items: []DraftItem{{
			SKU: "NV-SER-001", ProductName: "Renewal Serum",
			UnitPrice: decimal.RequireFromString("23.10"),
		}},
	}

	plan, err := NewLLMPlanner(client).PlanOrder(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, plan.Lines, 1)
	assert.Equal(t, 30, plan.Lines[0].Qty)
	assert.Equal(t, "Renewal Serum", plan.Lines[0].ProductName)
	assert.True(t, decimal.RequireFromString("23.10").Equal(plan.Lines[0].UnitPrice))
	assert.Equal(t, "forecast exceeds stock", plan.Reasoning)
}
