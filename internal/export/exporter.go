package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"github.com/stockcast/backend-go/internal/config"
	"github.com/stockcast/backend-go/internal/domain"
)

// Exporter writes forecast CSVs and purchase order documents to S3-compatible
// object storage.
type Exporter struct {
	client *minio.Client
	bucket string
}

func New(cfg config.ExportConfig) (*Exporter, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object storage client: %w", err)
	}

	e := &Exporter{client: client, bucket: cfg.Bucket}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", cfg.Bucket, err)
		}
	}

	return e, nil
}

// ExportForecastCSV uploads the forecast's daily predictions as a CSV and
// returns the object key.
func (e *Exporter) ExportForecastCSV(ctx context.Context, f *domain.Forecast) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"date", "predicted_qty", "confidence_lower", "confidence_upper"}); err != nil {
		return "", err
	}
	for _, p := range f.Predictions {
		row := []string{
			p.Date.Format("2006-01-02"),
			fmt.Sprintf("%.1f", p.PredictedQty),
			fmt.Sprintf("%.1f", p.ConfidenceLower),
			fmt.Sprintf("%.1f", p.ConfidenceUpper),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	key := fmt.Sprintf("forecasts/%s/%dd-%s.csv", f.SKU, f.HorizonDays, f.GeneratedAt.UTC().Format("20060102T150405Z"))
	return key, e.upload(ctx, key, buf.Bytes(), "text/csv")
}

// ExportPODocument uploads the supplier-facing order document for a sent PO
// and returns the object key.
func (e *Exporter) ExportPODocument(ctx context.Context, po *domain.PurchaseOrder, supplier *domain.Supplier) (string, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n", po.DraftEmailSubject)
	fmt.Fprintf(&buf, "Supplier: %s <%s>\n", supplier.Name, supplier.Email)
	fmt.Fprintf(&buf, "Order:    %s\n", po.PONumber)
	if po.ExpectedDeliveryDate != nil {
		fmt.Fprintf(&buf, "Expected: %s\n", po.ExpectedDeliveryDate.Format("2006-01-02"))
	}
	buf.WriteString("\n")
	for _, item := range po.LineItems {
		fmt.Fprintf(&buf, "%-16s %-32s qty %4d @ %s = %s\n",
			item.SKU, item.ProductName, item.Qty, item.UnitPrice.StringFixed(2), item.TotalPrice.StringFixed(2))
	}
	fmt.Fprintf(&buf, "\nTotal: %s\n\n%s\n", po.TotalAmount.StringFixed(2), po.DraftEmailBody)

	key := fmt.Sprintf("purchase-orders/%s.txt", po.PONumber)
	return key, e.upload(ctx, key, buf.Bytes(), "text/plain")
}

func (e *Exporter) upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := e.client.PutObject(ctx, e.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	log.Info().Str("bucket", e.bucket).Str("key", key).Int("bytes", len(data)).Msg("object exported")
	return nil
}
