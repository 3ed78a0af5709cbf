package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"autoinvoice/internal/database"
	"autoinvoice/internal/invoice"
	"autoinvoice/internal/storage"
	"autoinvoice/internal/template"
)

type ServerInterface interface {
	GetDB() database.Service
	GetStorage() *storage.Service
	GetWorkflow() *invoice.Workflow
	Logger() *zap.Logger
}

type InvoiceRoutes struct {
	server ServerInterface
}

func NewInvoiceRoutes(server ServerInterface) *InvoiceRoutes {
	return &InvoiceRoutes{server: server}
}

func (ir *InvoiceRoutes) RegisterRoutes(r *gin.Engine) {
	r.GET("/get_folder", ir.getFolderHandler)
	r.POST("/download", ir.downloadHandler)
	r.POST("/delete", ir.deleteHandler)
	r.POST("/upload_excel", ir.uploadHandler)
	r.GET("/invoices", ir.listInvoicesHandler)
}

// getFolderHandler resolves a folder by name and returns its children.
// "folder does not exist" (404) is distinguished from a transport failure
// (502).
func (ir *InvoiceRoutes) getFolderHandler(c *gin.Context) {
	folderName := c.Query("foldername")
	if folderName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Folder name is required"})
		return
	}

	store := ir.server.GetStorage()

	folder, err := store.FindFolder(c.Request.Context(), folderName)
	if err != nil {
		ir.server.Logger().Error("folder lookup failed", zap.String("folder", folderName), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("An error occurred: %v", err)})
		return
	}
	if folder == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Folder '%s' not found.", folderName)})
		return
	}

	items, err := store.ListChildren(c.Request.Context(), folder.ID)
	if err != nil {
		ir.server.Logger().Error("folder listing failed", zap.String("folder_id", folder.ID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("An error occurred: %v", err)})
		return
	}

	c.JSON(http.StatusOK, items)
}

func (ir *InvoiceRoutes) downloadHandler(c *gin.Context) {
	fileID := c.Query("id")
	if fileID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File id is required"})
		return
	}

	name, data, err := ir.server.GetStorage().Download(c.Request.Context(), fileID)
	if err != nil {
		ir.server.Logger().Error("download failed", zap.String("file_id", fileID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred while downloading the file"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".xlsx"))
	c.Data(http.StatusOK, storage.MimeTypeXLSX, data)
}

func (ir *InvoiceRoutes) deleteHandler(c *gin.Context) {
	fileID := c.Query("id")
	if fileID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File id is required"})
		return
	}

	if err := ir.server.GetStorage().Delete(c.Request.Context(), fileID); err != nil {
		ir.server.Logger().Error("delete failed", zap.String("file_id", fileID), zap.Error(err))
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete file"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "File deleted successfully"})
}

// uploadHandler runs the invoice workflow. The response status names the
// failing step: 400 validation, 404 missing template, 502 storage transport,
// 500 anything else. Post-upload failures arrive as warnings on a 200.
func (ir *InvoiceRoutes) uploadHandler(c *gin.Context) {
	var req invoice.InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No JSON data provided"})
		return
	}

	result, err := ir.server.GetWorkflow().Run(c.Request.Context(), &req)
	if err != nil {
		var verr *invoice.ValidationError
		var serr *storage.Error
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "missing": verr.Missing})
		case errors.Is(err, template.ErrTemplateNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.As(err, &serr):
			c.JSON(http.StatusBadGateway, gin.H{"error": serr.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

func (ir *InvoiceRoutes) listInvoicesHandler(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}

	invoices, err := ir.server.GetDB().ListInvoices(c.Request.Context(), limit)
	if err != nil {
		ir.server.Logger().Error("ledger listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list invoices"})
		return
	}

	c.JSON(http.StatusOK, invoices)
}
