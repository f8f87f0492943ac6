package handlers

import "github.com/gin-gonic/gin"

// RegisterAdminRoutes mounts the admin catalog endpoints on admin
func RegisterAdminRoutes(admin *gin.RouterGroup, products *AdminProductsHandler, exports *ExportHandler, editors *EditorHandler) {
	p := admin.Group("/products")
	{
		p.GET("", products.ListProducts)
		p.POST("/reload", products.ReloadProducts)
		p.DELETE("/notice", products.DismissNotice)
		p.GET("/export", exports.ExportProducts)

		// Delete confirmation
		p.POST("/:id/delete-request", products.RequestDelete)
		p.POST("/:id/delete-confirm", products.ConfirmDelete)
		p.POST("/:id/delete-cancel", products.CancelDelete)
	}

	e := admin.Group("/editor/sessions")
	{
		e.POST("", editors.OpenSession)
		e.GET("/:sessionId", editors.GetSession)
		e.PATCH("/:sessionId", editors.UpdateFields)
		e.PUT("/:sessionId/image", editors.AttachImage)
		e.DELETE("/:sessionId/image", editors.DetachImage)
		e.POST("/:sessionId/submit", editors.SubmitSession)
		e.DELETE("/:sessionId", editors.CloseSession)
	}
}
