package database

import (
	"context"
	"fmt"
	"time"
)

// Invoice is one issued-invoice row in the ledger.
type Invoice struct {
	ID          int       `json:"id"`
	InvoiceType string    `json:"invoice_type"`
	Sequence    int64     `json:"sequence"`
	Client      string    `json:"client"`
	FileID      string    `json:"file_id"`
	FileName    string    `json:"file_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordInvoice inserts a ledger row and fills in the generated id/timestamp.
func (s *service) RecordInvoice(ctx context.Context, inv *Invoice) error {
	query := `
		INSERT INTO invoices (invoice_type, sequence, client, file_id, file_name, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		inv.InvoiceType, inv.Sequence, inv.Client, inv.FileID, inv.FileName).
		Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record invoice: %w", err)
	}

	return nil
}

// ListInvoices returns the newest ledger rows first.
func (s *service) ListInvoices(ctx context.Context, limit int) ([]Invoice, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, invoice_type, sequence, client, file_id, file_name, created_at
		FROM invoices
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	invoices := []Invoice{}
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.InvoiceType, &inv.Sequence,
			&inv.Client, &inv.FileID, &inv.FileName, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invoice row: %w", err)
		}
		invoices = append(invoices, inv)
	}

	return invoices, rows.Err()
}
