package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stockcast/backend-go/internal/domain"
	"github.com/stockcast/backend-go/internal/repository"
)

type poRepository struct {
	db *DB
}

func NewPORepository(db *DB) *poRepository {
	return &poRepository{db: db}
}

// CreateDraft inserts the PO header and line items, assigning the next
// PO-<year>-<seq> number. The advisory lock serializes number assignment per
// year so concurrent drafts cannot collide.
func (r *poRepository) CreateDraft(ctx context.Context, po *domain.PurchaseOrder) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		year := po.CreatedAt.Year()

		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(year)); err != nil {
			return fmt.Errorf("failed to lock PO sequence: %w", err)
		}

		var maxSeq int
		seqQuery := `
			SELECT COALESCE(MAX(CAST(SUBSTRING(po_number FROM 9) AS INTEGER)), 0)
			FROM purchase_orders
			WHERE po_number LIKE $1
		`
		if err := tx.QueryRowContext(ctx, seqQuery, fmt.Sprintf("PO-%d-%%", year)).Scan(&maxSeq); err != nil {
			return fmt.Errorf("failed to read PO sequence: %w", err)
		}

		po.PONumber = fmt.Sprintf("PO-%d-%04d", year, maxSeq+1)
		po.Status = domain.POStatusDraft

		insert := `
			INSERT INTO purchase_orders (
				po_number, supplier_id, status, total_amount, expected_delivery_date,
				ai_reasoning, draft_email_subject, draft_email_body, notes, created_by, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id
		`
		if err := tx.QueryRowContext(ctx, insert,
			po.PONumber, po.SupplierID, po.Status, po.TotalAmount, po.ExpectedDeliveryDate,
			po.AIReasoning, po.DraftEmailSubject, po.DraftEmailBody, po.Notes, po.CreatedBy, po.CreatedAt,
		).Scan(&po.ID); err != nil {
			return fmt.Errorf("failed to insert purchase order: %w", err)
		}

		return insertLineItems(ctx, tx, po)
	})
}

func insertLineItems(ctx context.Context, tx *sql.Tx, po *domain.PurchaseOrder) error {
	query := `
		INSERT INTO po_line_items (po_id, sku, product_name, qty, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare line item statement: %w", err)
	}
	defer stmt.Close()

	for i := range po.LineItems {
		item := &po.LineItems[i]
		item.POID = po.ID
		if err := stmt.QueryRowContext(ctx,
			po.ID, item.SKU, item.ProductName, item.Qty, item.UnitPrice, item.TotalPrice,
		).Scan(&item.ID); err != nil {
			return fmt.Errorf("failed to insert line item for %s: %w", item.SKU, err)
		}
	}

	return nil
}

func (r *poRepository) GetByID(ctx context.Context, id int64) (*domain.PurchaseOrder, error) {
	query := `
		SELECT id, po_number, supplier_id, status, total_amount, expected_delivery_date,
		       ai_reasoning, draft_email_subject, draft_email_body, approved_by, approved_at,
		       sent_at, received_at, notes, created_by, created_at
		FROM purchase_orders
		WHERE id = $1
	`

	var po domain.PurchaseOrder
	if err := sqlx.GetContext(ctx, r.db, &po, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get purchase order: %w", err)
	}

	items, err := r.fetchLineItems(ctx, id)
	if err != nil {
		return nil, err
	}
	po.LineItems = items

	return &po, nil
}

func (r *poRepository) fetchLineItems(ctx context.Context, poID int64) ([]domain.POLineItem, error) {
	query := `
		SELECT id, po_id, sku, product_name, qty, unit_price, total_price
		FROM po_line_items
		WHERE po_id = $1
		ORDER BY id
	`

	var items []domain.POLineItem
	if err := sqlx.SelectContext(ctx, r.db, &items, query, poID); err != nil {
		return nil, fmt.Errorf("failed to load line items: %w", err)
	}

	return items, nil
}

func (r *poRepository) List(ctx context.Context, status domain.POStatus, limit, offset int) ([]domain.PurchaseOrder, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, po_number, supplier_id, status, total_amount, expected_delivery_date,
		       ai_reasoning, draft_email_subject, draft_email_body, approved_by, approved_at,
		       sent_at, received_at, notes, created_by, created_at
		FROM purchase_orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	var orders []domain.PurchaseOrder
	if err := sqlx.SelectContext(ctx, r.db, &orders, query, string(status), limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list purchase orders: %w", err)
	}

	return orders, nil
}

func (r *poRepository) Update(ctx context.Context, po *domain.PurchaseOrder) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE purchase_orders
			SET status = $2, total_amount = $3, expected_delivery_date = $4,
			    ai_reasoning = $5, draft_email_subject = $6, draft_email_body = $7,
			    approved_by = $8, approved_at = $9, sent_at = $10, received_at = $11,
			    notes = $12
			WHERE id = $1
		`
		if _, err := tx.ExecContext(ctx, query,
			po.ID, po.Status, po.TotalAmount, po.ExpectedDeliveryDate,
			po.AIReasoning, po.DraftEmailSubject, po.DraftEmailBody,
			po.ApprovedBy, po.ApprovedAt, po.SentAt, po.ReceivedAt, po.Notes,
		); err != nil {
			return fmt.Errorf("failed to update purchase order: %w", err)
		}

		if po.Status != domain.POStatusDraft {
			return nil
		}

		// Drafts may rewrite their line items wholesale.
		if _, err := tx.ExecContext(ctx, `DELETE FROM po_line_items WHERE po_id = $1`, po.ID); err != nil {
			return fmt.Errorf("failed to clear line items: %w", err)
		}
		return insertLineItems(ctx, tx, po)
	})
}

// receiptTx implements repository.ReceiptTx over a single *sql.Tx.
type receiptTx struct {
	tx *sql.Tx
}

func (t *receiptTx) ApplyStockDelta(ctx context.Context, sku string, delta int, restockedAt time.Time) (int, int, error) {
	query := `
		UPDATE inventory_snapshots
		SET qty_available = qty_available + $2, last_restocked_at = $3
		WHERE sku = $1 AND qty_available + $2 >= 0
		RETURNING qty_available - $2, qty_available
	`

	var before, after int
	if err := t.tx.QueryRowContext(ctx, query, sku, delta, restockedAt).Scan(&before, &after); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, fmt.Errorf("stock delta %d rejected for %s: %w", delta, sku, domain.ErrNoInventoryRecord)
		}
		return 0, 0, fmt.Errorf("failed to apply stock delta: %w", err)
	}

	return before, after, nil
}

func (t *receiptTx) AppendAudit(ctx context.Context, entry *domain.InventoryAuditEntry) error {
	return appendAudit(ctx, t.tx, entry)
}

func (t *receiptTx) MarkReceived(ctx context.Context, poID int64, receivedBy string, at time.Time) error {
	query := `
		UPDATE purchase_orders
		SET status = $2, received_at = $3, notes = TRIM(COALESCE(notes, '') || E'\nReceived by ' || $4)
		WHERE id = $1
	`

	if _, err := t.tx.ExecContext(ctx, query, poID, domain.POStatusReceived, at, receivedBy); err != nil {
		return fmt.Errorf("failed to mark purchase order received: %w", err)
	}

	return nil
}

func (r *poRepository) WithinReceipt(ctx context.Context, fn func(tx repository.ReceiptTx) error) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(&receiptTx{tx: tx})
	})
}

func appendAudit(ctx context.Context, ex interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, entry *domain.InventoryAuditEntry) error {
	query := `
		INSERT INTO inventory_audit_log (
			sku, change_type, qty_change, qty_before, qty_after,
			reference_id, reason, changed_by, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if _, err := ex.ExecContext(ctx, query,
		entry.SKU, entry.ChangeType, entry.QtyChange, entry.QtyBefore, entry.QtyAfter,
		entry.ReferenceID, entry.Reason, entry.ChangedBy, entry.Timestamp,
	); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

func (r *poRepository) AppendAudit(ctx context.Context, entry *domain.InventoryAuditEntry) error {
	return appendAudit(ctx, r.db, entry)
}

func (r *poRepository) ListAuditByReference(ctx context.Context, referenceID string) ([]domain.InventoryAuditEntry, error) {
	query := `
		SELECT id, sku, change_type, qty_change, qty_before, qty_after,
		       reference_id, reason, changed_by, timestamp
		FROM inventory_audit_log
		WHERE reference_id = $1
		ORDER BY timestamp ASC
	`

	var entries []domain.InventoryAuditEntry
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, referenceID); err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	return entries, nil
}
