package handler

import (
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"textenger/pkg/logger"
	"textenger/pkg/response"
	"textenger/pkg/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StorageHandler 附件上传、签名与下载
type StorageHandler struct {
	store  *storage.Local
	maxTTL time.Duration
}

func NewStorageHandler(store *storage.Local, maxTTL time.Duration) *StorageHandler {
	if maxTTL <= 0 {
		maxTTL = 7 * 24 * time.Hour
	}
	return &StorageHandler{store: store, maxTTL: maxTTL}
}

func objectPath(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("path"), "/")
}

// Upload 上传对象 POST /storage/object/:bucket/*path，表单字段 file
func (h *StorageHandler) Upload(c *gin.Context) {
	if max := h.store.MaxSize(); max > 0 {
		// 预留 multipart 头部开销
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max+1<<20)
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "缺少文件: "+err.Error())
		return
	}
	if max := h.store.MaxSize(); max > 0 && file.Size > max {
		respondError(c, storage.ErrTooLarge, "上传失败")
		return
	}
	src, err := file.Open()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	defer src.Close()

	bucket, p := c.Param("bucket"), objectPath(c)
	n, err := h.store.Save(bucket, p, src)
	if err != nil {
		respondError(c, err, "上传失败")
		return
	}
	logger.Info("附件已上传", zap.String("bucket", bucket), zap.String("path", p), zap.Int64("size", n))
	response.Success(c, &response.UploadResponse{
		Bucket:    bucket,
		Path:      p,
		Size:      n,
		PublicURL: h.store.PublicURL(bucket, p),
	})
}

// Sign 生成限时访问URL
func (h *StorageHandler) Sign(c *gin.Context) {
	var req struct {
		Bucket    string `json:"bucket" binding:"required"`
		Path      string `json:"path" binding:"required"`
		ExpiresIn int64  `json:"expires_in"` // 秒
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ttl := time.Duration(req.ExpiresIn) * time.Second
	if ttl <= 0 || ttl > h.maxTTL {
		ttl = h.maxTTL
	}
	url, err := h.store.SignedURL(req.Bucket, req.Path, ttl)
	if err != nil {
		respondError(c, err, "生成签名URL失败")
		return
	}
	response.Success(c, &response.SignedURLResponse{URL: url, ExpiresIn: int64(ttl / time.Second)})
}

// ServePublic 公开下载 GET /files/:bucket/*path
func (h *StorageHandler) ServePublic(c *gin.Context) {
	f, err := h.store.Open(c.Param("bucket"), objectPath(c))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	defer f.Close()
	serveFile(c, f)
}

// ServeSigned 签名下载 GET /signed/:token
func (h *StorageHandler) ServeSigned(c *gin.Context) {
	f, err := h.store.OpenSigned(c.Param("token"))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	defer f.Close()
	serveFile(c, f)
}

func serveFile(c *gin.Context, f *os.File) {
	info, err := f.Stat()
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	// ServeContent 按扩展名推断 Content-Type
	http.ServeContent(c.Writer, c.Request, path.Base(info.Name()), info.ModTime(), f)
}
