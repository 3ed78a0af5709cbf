package invoice

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"autoinvoice/internal/counter"
	"autoinvoice/internal/database"
	"autoinvoice/internal/template"
)

// Cell coordinates are a contract with the template file format: sheet
// "Quote", fixed positions, line items one row each from itemStartRow down.
const (
	sheetName = "Quote"

	seqRow, seqCol                 = 17, 6
	issuerNameRow, issuerNameCol   = 12, 2
	clientLabelRow, clientLabelCol = 13, 2
	issuerEmailRow, issuerEmailCol = 14, 2
	issuerPhoneRow, issuerPhoneCol = 15, 2
	recipEmailRow, recipEmailCol   = 14, 7
	recipPhoneRow, recipPhoneCol   = 15, 7
	dueOnRow, dueOnCol             = 17, 7

	itemStartRow = 21
	itemDescCol  = 2
	itemPriceCol = 7
)

// Uploader is the slice of the storage client the workflow needs.
type Uploader interface {
	Upload(ctx context.Context, localPath, name, parentFolderID string) (string, error)
}

// Ledger records issued invoices. A recording failure never undoes an upload.
type Ledger interface {
	RecordInvoice(ctx context.Context, inv *database.Invoice) error
}

// Result reports a completed run. Warnings carry the post-upload outcomes
// (cleanup, counter, ledger) that failed without undoing the upload, so
// partial states stay observable.
type Result struct {
	Message  string   `json:"message"`
	FileID   string   `json:"file_id"`
	Sequence int64    `json:"sequence"`
	Warnings []string `json:"warnings,omitempty"`
}

// Workflow turns an InvoiceRequest into an uploaded, numbered invoice file
// and advances the type's counter once per successful upload.
type Workflow struct {
	counters    counter.Store
	storage     Uploader
	ledger      Ledger
	templateDir string
	workDir     string
	log         *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewWorkflow(counters counter.Store, storage Uploader, ledger Ledger, templateDir, workDir string, log *zap.Logger) *Workflow {
	if templateDir == "" {
		templateDir = "."
	}
	if workDir == "" {
		workDir = "."
	}

	return &Workflow{
		counters:    counters,
		storage:     storage,
		ledger:      ledger,
		templateDir: templateDir,
		workDir:     workDir,
		log:         log,
		locks:       make(map[string]*sync.Mutex),
	}
}

// Run executes a single invoice request. Steps before the upload fail closed
// with no partial state; steps after it are best-effort and reported through
// Result.Warnings.
func (w *Workflow) Run(ctx context.Context, req *InvoiceRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	log := w.log.With(
		zap.String("run_id", uuid.NewString()),
		zap.String("type", req.Type),
		zap.String("client", req.For.Company.Name))

	// Serialize the read-then-advance window per type so sequential numbering
	// holds under concurrent requests.
	lock := w.typeLock(req.Type)
	lock.Lock()
	defer lock.Unlock()

	seq, err := w.counters.Value(ctx, req.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to read counter: %w", err)
	}

	templatePath := filepath.Join(w.templateDir, req.TemplateName())
	workingPath := filepath.Join(w.workDir, req.WorkingCopyName())

	if err := template.Clone(templatePath, workingPath); err != nil {
		return nil, err
	}

	if err := w.populate(workingPath, req, seq); err != nil {
		return nil, err
	}

	fileID, err := w.storage.Upload(ctx, workingPath, req.ClientLabel(), req.ToFolder)
	if err != nil {
		// Working copy stays on disk for manual inspection or retry; the
		// counter is untouched.
		log.Error("upload failed, working copy left on disk",
			zap.String("path", workingPath), zap.Error(err))
		return nil, err
	}

	res := &Result{
		Message:  fmt.Sprintf("File %q successfully uploaded", req.WorkingCopyName()),
		FileID:   fileID,
		Sequence: seq,
	}

	if err := os.Remove(workingPath); err != nil {
		log.Warn("failed to remove working copy", zap.String("path", workingPath), zap.Error(err))
		res.Warnings = append(res.Warnings, fmt.Sprintf("working copy not removed: %v", err))
	}

	if err := w.counters.Advance(ctx, req.Type); err != nil {
		log.Error("counter not advanced after successful upload", zap.Error(err))
		res.Warnings = append(res.Warnings, fmt.Sprintf("counter not advanced: %v", err))
	}

	if w.ledger != nil {
		rec := &database.Invoice{
			InvoiceType: req.Type,
			Sequence:    seq,
			Client:      req.ClientLabel(),
			FileID:      fileID,
			FileName:    req.WorkingCopyName(),
		}
		if err := w.ledger.RecordInvoice(ctx, rec); err != nil {
			log.Error("ledger not updated after successful upload", zap.Error(err))
			res.Warnings = append(res.Warnings, fmt.Sprintf("ledger not updated: %v", err))
		}
	}

	log.Info("invoice issued",
		zap.Int64("sequence", seq),
		zap.String("file_id", fileID),
		zap.Int("warnings", len(res.Warnings)))

	return res, nil
}

// populate writes the counter, issuer/recipient fields, and line items into
// the working copy at the contract coordinates, then saves it in place.
func (w *Workflow) populate(path string, req *InvoiceRequest, seq int64) error {
	wb, err := template.Open(path)
	if err != nil {
		return err
	}
	defer wb.Close()

	cells := []struct {
		row, col int
		value    interface{}
	}{
		{seqRow, seqCol, seq},
		{issuerNameRow, issuerNameCol, req.For.Name},
		{clientLabelRow, clientLabelCol, req.ClientLabel()},
		{issuerEmailRow, issuerEmailCol, req.For.Email},
		{issuerPhoneRow, issuerPhoneCol, req.For.Phone},
		{recipEmailRow, recipEmailCol, req.To.Email},
		{recipPhoneRow, recipPhoneCol, req.To.Phone},
		{dueOnRow, dueOnCol, req.DueOn},
	}

	for _, c := range cells {
		if err := wb.SetCell(sheetName, c.row, c.col, c.value); err != nil {
			return err
		}
	}

	for i, item := range req.Items {
		row := itemStartRow + i
		if err := wb.SetCell(sheetName, row, itemDescCol, item.Desc); err != nil {
			return err
		}
		if err := wb.SetCell(sheetName, row, itemPriceCol, int(item.Price)); err != nil {
			return err
		}
	}

	return wb.SaveAs(path)
}

func (w *Workflow) typeLock(invoiceType string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()

	lock, ok := w.locks[invoiceType]
	if !ok {
		lock = &sync.Mutex{}
		w.locks[invoiceType] = lock
	}
	return lock
}
