package router

import (
	"github.com/erp/consignment/internal/interfaces/http/handler"
	"github.com/erp/consignment/internal/interfaces/http/middleware"
)

// Permissions carried in the access token
const (
	PermConsignmentRead  = "consignment:read"
	PermBatchWrite       = "consignment:batch:write"
	PermSaleWrite        = "consignment:sale:write"
	PermPaymentWrite     = "consignment:payment:write"
	PermConsignmentAdmin = "consignment:admin"
)

// ConsignmentRoutes maps the consignment endpoints under /consignment.
// consignment:admin satisfies every guard; rebuild requires it.
func ConsignmentRoutes(h *handler.ConsignmentHandler) *DomainGroup {
	read := middleware.RequireAnyPermission(PermConsignmentRead, PermConsignmentAdmin)
	batchWrite := middleware.RequireAnyPermission(PermBatchWrite, PermConsignmentAdmin)
	saleWrite := middleware.RequireAnyPermission(PermSaleWrite, PermConsignmentAdmin)
	paymentWrite := middleware.RequireAnyPermission(PermPaymentWrite, PermConsignmentAdmin)
	admin := middleware.RequirePermission(PermConsignmentAdmin)

	root := NewDomainGroup("/consignment")

	root.Group("/batches").
		POST("", batchWrite, h.CreateBatch).
		GET("", read, h.ListBatches).
		GET("/:id", read, h.GetBatch).
		POST("/:id/verify", batchWrite, h.VerifyBatch).
		POST("/:id/returns", batchWrite, h.RecordReturn).
		POST("/:id/sales", saleWrite, h.RecordSale)

	root.Group("/payments").
		POST("", paymentWrite, h.RecordPayment).
		GET("", read, h.ListPayments).
		GET("/:id", read, h.GetPayment)

	root.Group("/summaries").
		GET("", read, h.ListSupplierSummaries).
		POST("/rebuild", admin, h.RebuildSupplierBalances)

	return root
}

// StatementRoutes maps supplier statement downloads and exports. Exports
// write to object storage and need consignment:admin.
func StatementRoutes(h *handler.StatementHandler) *DomainGroup {
	read := middleware.RequireAnyPermission(PermConsignmentRead, PermConsignmentAdmin)
	admin := middleware.RequirePermission(PermConsignmentAdmin)

	return NewDomainGroup("/consignment/suppliers").
		GET("/:supplier_id/statement", read, h.DownloadStatement).
		POST("/:supplier_id/statement/exports", admin, h.ExportStatement)
}

// BatchImportRoutes maps CSV batch intake
func BatchImportRoutes(h *handler.BatchImportHandler) *DomainGroup {
	batchWrite := middleware.RequireAnyPermission(PermBatchWrite, PermConsignmentAdmin)

	return NewDomainGroup("/consignment/batches").
		POST("/import", batchWrite, h.ImportBatches)
}
