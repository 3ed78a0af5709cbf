package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"autoinvoice/internal/database"
	"autoinvoice/internal/invoice"
	"autoinvoice/internal/storage"
)

type fakeDB struct {
	invoices []database.Invoice
	listErr  error
}

func (f *fakeDB) RecordInvoice(_ context.Context, inv *database.Invoice) error {
	inv.ID = len(f.invoices) + 1
	f.invoices = append(f.invoices, *inv)
	return nil
}

func (f *fakeDB) ListInvoices(_ context.Context, _ int) ([]database.Invoice, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.invoices, nil
}

func (f *fakeDB) Health() map[string]string { return map[string]string{"status": "up"} }
func (f *fakeDB) Close() error              { return nil }

type fakeCounters struct {
	values map[string]int64
}

func (f *fakeCounters) Value(_ context.Context, invoiceType string) (int64, error) {
	return f.values[invoiceType], nil
}

func (f *fakeCounters) Advance(_ context.Context, invoiceType string) error {
	f.values[invoiceType]++
	return nil
}

type fakeUploader struct {
	err error
}

func (f *fakeUploader) Upload(_ context.Context, _, _, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "file-abc", nil
}

type fakeServer struct {
	db       database.Service
	storage  *storage.Service
	workflow *invoice.Workflow
}

func (f *fakeServer) GetDB() database.Service        { return f.db }
func (f *fakeServer) GetStorage() *storage.Service   { return f.storage }
func (f *fakeServer) GetWorkflow() *invoice.Workflow { return f.workflow }
func (f *fakeServer) Logger() *zap.Logger            { return zap.NewNop() }

// driveHandler answers folder queries, child listings, media downloads, and
// deletes like a minimal Drive endpoint.
func driveHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		switch {
		case strings.Contains(q, "in parents"):
			fmt.Fprint(w, `{"files": [{"id": "a", "name": "Acme.xlsx"}, {"id": "b", "name": "Beta.xlsx"}]}`)
		case strings.Contains(q, "name = 'Invoices'"):
			fmt.Fprint(w, `{"files": [{"id": "folder-1", "name": "Invoices"}]}`)
		default:
			fmt.Fprint(w, `{"files": []}`)
		}
	})
	mux.HandleFunc("/files/file-1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.URL.Query().Get("alt") == "media" {
			w.Write([]byte("spreadsheet-bytes"))
			return
		}
		fmt.Fprint(w, `{"name": "Acme (UEN:123)"}`)
	})
	return mux
}

func writeTemplate(t *testing.T, dir string) {
	t.Helper()

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Quote"))
	require.NoError(t, f.SaveAs(filepath.Join(dir, "std.xlsx")))
	require.NoError(t, f.Close())
}

func newTestRouter(t *testing.T, up invoice.Uploader) (*gin.Engine, *fakeServer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := httptest.NewServer(driveHandler())
	t.Cleanup(ts.Close)

	driveSvc, err := storage.NewService(context.Background(), zap.NewNop(),
		option.WithEndpoint(ts.URL), option.WithoutAuthentication())
	require.NoError(t, err)

	dir := t.TempDir()
	writeTemplate(t, dir)

	db := &fakeDB{}
	counters := &fakeCounters{values: map[string]int64{"std": 5}}
	wf := invoice.NewWorkflow(counters, up, db, dir, dir, zap.NewNop())

	fs := &fakeServer{db: db, storage: driveSvc, workflow: wf}

	r := gin.New()
	NewInvoiceRoutes(fs).RegisterRoutes(r)
	return r, fs
}

func do(r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const uploadBody = `{
	"type": "std",
	"for": {
		"name": "Jane Doe",
		"email": "jane@acme.test",
		"phone": "91234567",
		"company": {"name": "Acme", "uen": 123}
	},
	"to": {"email": "billing@client.test", "phone": "98765432"},
	"dueon": "2024-07-01",
	"items": [{"desc": "Widget", "price": 10}],
	"tofolder": "folder-1"
}`

func TestGetFolderRequiresName(t *testing.T) {
	r, _ := newTestRouter(t, &fakeUploader{})

	w := do(r, http.MethodGet, "/get_folder", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Folder name is required")
}

func TestGetFolderReturnsChildren(t *testing.T) {
	r, _ := newTestRouter(t, &fakeUploader{})

	w := do(r, http.MethodGet, "/get_folder?foldername=Invoices", "")
	require.Equal(t, http.StatusOK, w.Code)

	var files []storage.File
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &files))
	require.Len(t, files, 2)
	assert.Equal(t, "Acme.xlsx", files[0].Name)
}

func TestGetFolderNotFound(t *testing.T) {
	r, _ := newTestRouter(t, &fakeUploader{})

	w := do(r, http.MethodGet, "/get_folder?foldername=Missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Folder 'Missing' not found.")
}

func TestDownload(t *testing.T) {
	r, _ := newTestRouter(t, &fakeUploader{})

	w := do(r, http.MethodPost, "/download?id=file-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "spreadsheet-bytes", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Acme (UEN:123).xlsx")
	assert.Equal(t, storage.MimeTypeXLSX, w.Header().Get("Content-Type"))
}

func TestDeleteRequiresID(t *testing.T) {
	r, _ := newTestRouter(t, &fakeUploader{})

	w := do(r, http.MethodPost, "/delete", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDelete(t *testing.T) {
	r, _ := newTestRouter(t, &fakeUploader{})

	w := do(r, http.MethodPost, "/delete?id=file-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "File deleted successfully")
}

func TestUploadExcelRejectsBadJSON(t *testing.T) {
	r, _ := newTestRouter(t, &fakeUploader{})

	w := do(r, http.MethodPost, "/upload_excel", "not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No JSON data provided")
}

func TestUploadExcelValidation(t *testing.T) {
	r, _ := newTestRouter(t, &fakeUploader{})

	w := do(r, http.MethodPost, "/upload_excel", `{"type": "std"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing required fields")
	assert.Contains(t, w.Body.String(), "tofolder")
}

func TestUploadExcelSuccess(t *testing.T) {
	r, fs := newTestRouter(t, &fakeUploader{})

	w := do(r, http.MethodPost, "/upload_excel", uploadBody)
	require.Equal(t, http.StatusOK, w.Code)

	var res invoice.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, `File "Acme.xlsx" successfully uploaded`, res.Message)
	assert.Equal(t, "file-abc", res.FileID)
	assert.Equal(t, int64(5), res.Sequence)

	// Ledger picked up the run.
	db := fs.db.(*fakeDB)
	require.Len(t, db.invoices, 1)
	assert.Equal(t, int64(5), db.invoices[0].Sequence)
}

func TestUploadExcelMissingTemplate(t *testing.T) {
	r, _ := newTestRouter(t, &fakeUploader{})

	body := strings.Replace(uploadBody, `"type": "std"`, `"type": "unknown"`, 1)
	w := do(r, http.MethodPost, "/upload_excel", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "template not found")
}

func TestUploadExcelStorageFailure(t *testing.T) {
	r, _ := newTestRouter(t, &fakeUploader{err: &storage.Error{Op: "upload", Err: errors.New("transport failure")}})

	w := do(r, http.MethodPost, "/upload_excel", uploadBody)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "drive upload")
}

func TestListInvoices(t *testing.T) {
	r, fs := newTestRouter(t, &fakeUploader{})
	db := fs.db.(*fakeDB)
	db.invoices = []database.Invoice{{ID: 1, InvoiceType: "std", Sequence: 5, FileID: "file-a"}}

	w := do(r, http.MethodGet, "/invoices", "")
	require.Equal(t, http.StatusOK, w.Code)

	var invoices []database.Invoice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &invoices))
	require.Len(t, invoices, 1)
	assert.Equal(t, int64(5), invoices[0].Sequence)
}

func TestListInvoicesRejectsBadLimit(t *testing.T) {
	r, _ := newTestRouter(t, &fakeUploader{})

	w := do(r, http.MethodGet, "/invoices?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
