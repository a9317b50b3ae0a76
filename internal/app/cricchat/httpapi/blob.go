package httpapi

import (
	"net/http"

	"cricchat.local/gee"
	"cricchat.local/internal/imageresolve"
)

// NewBlobHandler GET /blob/:id，句柄释放后即 404
func NewBlobHandler(blobs *imageresolve.BlobStore) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		data, contentType, ok := blobs.Get(ctx.Param("id"))
		if !ok {
			ctx.AbortWithError(http.StatusNotFound, "image not found")
			return
		}
		ctx.SetHeader("Cache-Control", "private, max-age=300")
		ctx.Data(http.StatusOK, contentType, data)
	}
}
