package salesimport

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/stockcast/backend-go/internal/domain"
	"github.com/stockcast/backend-go/internal/repository"
)

const insertBatchSize = 500

// Importer backfills sales history from CSV exports. Rows that fail to parse
// are skipped with a log line; a malformed row never aborts the file.
type Importer struct {
	source *DriveSource
	sales  repository.SalesRepository
}

func NewImporter(source *DriveSource, sales repository.SalesRepository) *Importer {
	return &Importer{source: source, sales: sales}
}

// ImportFolder imports every CSV in the Drive folder at path and returns the
// number of records inserted.
func (im *Importer) ImportFolder(ctx context.Context, path string) (int, error) {
	folderID, err := im.source.FindFolderByPath(path)
	if err != nil {
		return 0, err
	}

	files, err := im.source.ListCSVFiles(folderID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, f := range files {
		n, err := im.ImportFile(ctx, f.ID)
		if err != nil {
			return total, fmt.Errorf("importing %s: %w", f.Name, err)
		}
		log.Info().Str("file", f.Name).Int("records", n).Msg("sales file imported")
		total += n
	}
	return total, nil
}

// ImportFile parses one CSV export and inserts its sales records in batches.
// Expected columns: sku, quantity, unit_price, discount, sold_at.
func (im *Importer) ImportFile(ctx context.Context, fileID string) (int, error) {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(im.source.Download(fileID, pw))
	}()

	reader := csv.NewReader(pr)

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colMap := make(map[string]int)
	for i, col := range header {
		colMap[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range []string{"sku", "quantity", "unit_price", "sold_at"} {
		if _, ok := colMap[col]; !ok {
			return 0, fmt.Errorf("missing required column: %s", col)
		}
	}

	var (
		batch    []domain.SalesRecord
		inserted int
		line     = 1
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := im.sales.Insert(ctx, batch); err != nil {
			return err
		}
		inserted += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return inserted, fmt.Errorf("failed to read CSV record: %w", err)
		}
		line++

		rec, err := parseRow(record, colMap)
		if err != nil {
			log.Warn().Err(err).Int("line", line).Msg("skipping malformed sales row")
			continue
		}

		batch = append(batch, *rec)
		if len(batch) >= insertBatchSize {
			if err := flush(); err != nil {
				return inserted, err
			}
		}
	}

	return inserted, flush()
}

func parseRow(record []string, colMap map[string]int) (*domain.SalesRecord, error) {
	get := func(col string) string {
		if idx, ok := colMap[col]; ok && idx < len(record) {
			return strings.TrimSpace(record[idx])
		}
		return ""
	}

	qty, err := strconv.Atoi(get("quantity"))
	if err != nil {
		return nil, fmt.Errorf("quantity: %w", err)
	}
	if qty < 0 {
		return nil, fmt.Errorf("negative quantity %d", qty)
	}

	price, err := decimal.NewFromString(get("unit_price"))
	if err != nil {
		return nil, fmt.Errorf("unit_price: %w", err)
	}

	discount := decimal.Zero
	if raw := get("discount"); raw != "" {
		discount, err = decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("discount: %w", err)
		}
	}

	soldAt, err := parseSoldAt(get("sold_at"))
	if err != nil {
		return nil, err
	}

	sku := get("sku")
	if sku == "" {
		return nil, fmt.Errorf("empty sku")
	}

	return &domain.SalesRecord{
		SKU:       sku,
		Quantity:  qty,
		UnitPrice: price,
		Discount:  discount,
		SoldAt:    soldAt,
	}, nil
}

func parseSoldAt(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable sold_at %q", raw)
}
