package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalesRecord is a single fulfilled sale line. Records are append-only and
// written by the order-fulfillment side; this service only reads them.
type SalesRecord struct {
	ID        int64           `json:"id" db:"id"`
	SKU       string          `json:"sku" db:"sku"`
	Quantity  int             `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
	Discount  decimal.Decimal `json:"discount" db:"discount"`
	SoldAt    time.Time       `json:"sold_at" db:"sold_at"`
}

// InventorySnapshot is the current stock position for a SKU. Stock is mutated
// through server-side deltas only; qty_available never goes below zero.
type InventorySnapshot struct {
	SKU             string     `json:"sku" db:"sku"`
	ProductName     string     `json:"product_name" db:"product_name"`
	Brand           string     `json:"brand" db:"brand"`
	Category        string     `json:"category" db:"category"`
	UnitPrice       decimal.Decimal `json:"unit_price" db:"unit_price"`
	QtyAvailable    int        `json:"qty_available" db:"qty_available"`
	SafetyStock     int        `json:"safety_stock" db:"safety_stock"`
	ReorderPoint    int        `json:"reorder_point" db:"reorder_point"`
	LeadTimeDays    int        `json:"lead_time_days" db:"lead_time_days"`
	IsActive        bool       `json:"is_active" db:"is_active"`
	LastRestockedAt *time.Time `json:"last_restocked_at" db:"last_restocked_at"`
}

// ForecastPoint is one predicted day inside a forecast.
type ForecastPoint struct {
	Date            time.Time `json:"date"`
	PredictedQty    float64   `json:"predicted_qty"`
	ConfidenceLower float64   `json:"confidence_lower"`
	ConfidenceUpper float64   `json:"confidence_upper"`
}

// ForecastSummary holds the derived fields of a forecast. These are always
// recomputable from the predictions array.
type ForecastSummary struct {
	TotalPredicted      float64 `json:"total_predicted"`
	DailyAverage        float64 `json:"daily_average"`
	PeakDate            string  `json:"peak_date,omitempty"`
	Trend               string  `json:"trend"`
	SeasonalityDetected bool    `json:"seasonality_detected"`
}

// ReorderRecommendation is the predictor's replenishment signal.
type ReorderRecommendation struct {
	ShouldReorder bool    `json:"should_reorder"`
	SuggestedQty  float64 `json:"suggested_qty"`
	Reasoning     string  `json:"reasoning"`
}

// Forecast is an immutable generated demand forecast for one SKU and horizon.
// A SKU accumulates many forecasts over time; history is kept for accuracy
// tracking.
type Forecast struct {
	ID           int64                 `json:"id" db:"id"`
	SKU          string                `json:"sku" db:"sku"`
	HorizonDays  int                   `json:"horizon_days" db:"horizon_days"`
	GeneratedAt  time.Time             `json:"generated_at" db:"generated_at"`
	Predictions  []ForecastPoint       `json:"predictions"`
	Summary      ForecastSummary       `json:"summary"`
	RiskLevel    string                `json:"risk_level" db:"risk_level"`
	Explanation  string                `json:"explanation" db:"explanation"`
	Reorder      ReorderRecommendation `json:"reorder_recommendation"`
	ModelVersion string                `json:"model_version" db:"model_version"`
}

// Fresh reports whether the forecast was generated within the freshness
// window ending at now.
func (f *Forecast) Fresh(now time.Time, window time.Duration) bool {
	return now.Sub(f.GeneratedAt) < window
}

// Supplier is a vendor the PO engine can order from.
type Supplier struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	Email        string `json:"email" db:"email"`
	LeadTimeDays int    `json:"lead_time_days" db:"lead_time_days"`
	PaymentTerms string `json:"payment_terms" db:"payment_terms"`
	IsActive     bool   `json:"is_active" db:"is_active"`
}

// SupplierPrice is a supplier's quoted unit price for a SKU. A price is
// current iff valid_until is null or in the future; at most one current price
// exists per (supplier, sku), enforced by update-else-insert at write time.
type SupplierPrice struct {
	ID         int64           `json:"id" db:"id"`
	SupplierID int64           `json:"supplier_id" db:"supplier_id"`
	SKU        string          `json:"sku" db:"sku"`
	UnitPrice  decimal.Decimal `json:"unit_price" db:"unit_price"`
	MOQ        int             `json:"moq" db:"moq"`
	ValidUntil *time.Time      `json:"valid_until" db:"valid_until"`
}

// Current reports whether the price record is valid at the given time.
func (p *SupplierPrice) Current(now time.Time) bool {
	return p.ValidUntil == nil || !p.ValidUntil.Before(now)
}

// POLineItem is one ordered SKU on a purchase order.
type POLineItem struct {
	ID          int64           `json:"id" db:"id"`
	POID        int64           `json:"po_id" db:"po_id"`
	SKU         string          `json:"sku" db:"sku"`
	ProductName string          `json:"product_name" db:"product_name"`
	Qty         int             `json:"qty" db:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price" db:"total_price"`
}

// PurchaseOrder is a supplier order moving through the draft → approved →
// sent → received lifecycle. Only the PO engine mutates it.
type PurchaseOrder struct {
	ID                   int64           `json:"id" db:"id"`
	PONumber             string          `json:"po_number" db:"po_number"`
	SupplierID           int64           `json:"supplier_id" db:"supplier_id"`
	Status               POStatus        `json:"status" db:"status"`
	LineItems            []POLineItem    `json:"line_items"`
	TotalAmount          decimal.Decimal `json:"total_amount" db:"total_amount"`
	ExpectedDeliveryDate *time.Time      `json:"expected_delivery_date" db:"expected_delivery_date"`
	AIReasoning          string          `json:"ai_reasoning" db:"ai_reasoning"`
	DraftEmailSubject    string          `json:"draft_email_subject" db:"draft_email_subject"`
	DraftEmailBody       string          `json:"draft_email_body" db:"draft_email_body"`
	ApprovedBy           string          `json:"approved_by" db:"approved_by"`
	ApprovedAt           *time.Time      `json:"approved_at" db:"approved_at"`
	SentAt               *time.Time      `json:"sent_at" db:"sent_at"`
	ReceivedAt           *time.Time      `json:"received_at" db:"received_at"`
	Notes                string          `json:"notes" db:"notes"`
	CreatedBy            string          `json:"created_by" db:"created_by"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
}

// InventoryAuditEntry is one append-only record of an inventory-affecting
// event. ReferenceID links back to the originating PO number.
type InventoryAuditEntry struct {
	ID          int64     `json:"id" db:"id"`
	SKU         string    `json:"sku" db:"sku"`
	ChangeType  string    `json:"change_type" db:"change_type"`
	QtyChange   int       `json:"qty_change" db:"qty_change"`
	QtyBefore   int       `json:"qty_before" db:"qty_before"`
	QtyAfter    int       `json:"qty_after" db:"qty_after"`
	ReferenceID string    `json:"reference_id" db:"reference_id"`
	Reason      string    `json:"reason" db:"reason"`
	ChangedBy   string    `json:"changed_by" db:"changed_by"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
}

// ReorderSuggestion is a low-stock recommendation produced by the advisor.
type ReorderSuggestion struct {
	SKU                       string `json:"sku"`
	ProductName               string `json:"product_name"`
	CurrentStock              int    `json:"current_stock"`
	ReorderPoint              int    `json:"reorder_point"`
	Urgency                   string `json:"urgency"`
	RecommendedQty            int    `json:"recommended_qty"`
	EstimatedDaysUntilStockout int   `json:"estimated_days_until_stockout"`
}

// BatchForecastResult is the per-SKU outcome of a batch run. One SKU failing
// never aborts the rest of the batch.
type BatchForecastResult struct {
	SKU     string `json:"sku"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// AccuracyReport scores a stored forecast against realized sales.
type AccuracyReport struct {
	ForecastID     int64    `json:"forecast_id"`
	SKU            string   `json:"sku"`
	ComparableDays int      `json:"comparable_days"`
	MAPE           *float64 `json:"mape"`
	Confidence     string   `json:"confidence"`
}
