// Package http exposes the upload orchestrator over HTTP using gin.
package http

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/auth"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/uploads"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxJSONBody bounds init and grant request bodies.
const maxJSONBody = 64 << 10

type Uploads interface {
	OpenSession(ctx context.Context, req uploads.OpenRequest) (*uploads.OpenResult, error)
	SubmitChunk(ctx context.Context, token, contentRange string, body io.Reader) (*uploads.ChunkOutcome, error)
	PutWhole(ctx context.Context, req uploads.WholeRequest) (*models.File, error)
	DownloadURL(ctx context.Context, id string) (string, error)
	CacheURL(ctx context.Context, key string) (string, error)
	CacheDelete(ctx context.Context, key string) error
	CacheList(ctx context.Context, prefix string) ([]string, error)
}

type Authorizer interface {
	Authorize(h http.Header) (auth.Principal, error)
	IssueGrant(ctx context.Context, p auth.Principal, subject string, validity time.Duration) (string, time.Time, error)
}

type Handler struct {
	uploads  Uploads
	auth     Authorizer
	gatherer prometheus.Gatherer
	logger   logging.Logger
}

func NewHandler(u Uploads, a Authorizer, g prometheus.Gatherer, l logging.Logger) *Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return &Handler{uploads: u, auth: a, gatherer: g, logger: l.With("module", "http")}
}

// Routes builds the gin engine.
func (h *Handler) Routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.logRequests)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	r.GET("/api/bin/:id", h.download)

	api := r.Group("/api", h.requireAuth)
	api.POST("/upload", h.uploadForm)
	api.POST("/upload/init", h.uploadInit)
	api.POST("/upload/chunk", h.uploadChunk)
	api.POST("/cache/init", h.cacheInit)
	api.POST("/cache/chunk", h.cacheChunk)
	api.GET("/cache", h.cacheList)
	api.PUT("/cache/:key", h.cachePut)
	api.GET("/cache/:key", h.cacheGet)
	api.DELETE("/cache/:key", h.cacheDelete)
	api.POST("/grants", h.issueGrant)

	return r
}

type fileResponse struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	FileSize  int64     `json:"file_size"`
	MimeType  *string   `json:"mime_type"`
	FolderID  *string   `json:"folder_id"`
	Hidden    bool      `json:"hidden"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toFileResponse(f *models.File) fileResponse {
	return fileResponse{
		ID:        f.ID,
		FileName:  f.FileName,
		FileSize:  f.FileSize,
		MimeType:  f.MimeType,
		FolderID:  f.FolderID,
		Hidden:    f.Hidden,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

type pendingResponse struct {
	Done               bool     `json:"done"`
	NextExpectedRanges []string `json:"nextExpectedRanges"`
}

func bindJSON(c *gin.Context, dst any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxJSONBody)
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "invalid JSON body", Detail: err.Error()})
		return false
	}
	return true
}

type uploadInitRequest struct {
	Filename        string `json:"filename"`
	FileSize        int64  `json:"fileSize"`
	MimeType        string `json:"mimeType"`
	FolderPath      string `json:"folderPath"`
	ChunkMultiplier *int   `json:"chunkMultiplier"`
}

func (h *Handler) uploadInit(c *gin.Context) {
	var req uploadInitRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.uploads.OpenSession(c.Request.Context(), uploads.OpenRequest{
		Name:            req.Filename,
		Size:            req.FileSize,
		MimeType:        req.MimeType,
		FolderPath:      req.FolderPath,
		ChunkMultiplier: req.ChunkMultiplier,
	})
	if err != nil {
		h.writeMappedError(c, err, "upload init failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"uploadId":  res.Token,
		"filename":  res.Name,
		"fileSize":  res.Size,
		"chunkSize": res.ChunkSize,
		"expiresAt": res.ExpiresAt.UnixMilli(),
	})
}

type cacheInitRequest struct {
	Key             string `json:"key"`
	FileSize        int64  `json:"fileSize"`
	ChunkMultiplier *int   `json:"chunkMultiplier"`
}

func (h *Handler) cacheInit(c *gin.Context) {
	var req cacheInitRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.uploads.OpenSession(c.Request.Context(), uploads.OpenRequest{
		Name:            req.Key,
		Size:            req.FileSize,
		ChunkMultiplier: req.ChunkMultiplier,
		Hidden:          true,
	})
	if err != nil {
		h.writeMappedError(c, err, "cache upload init failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"uploadId":  res.Token,
		"key":       res.Name,
		"fileSize":  res.Size,
		"chunkSize": res.ChunkSize,
		"expiresAt": res.ExpiresAt.UnixMilli(),
	})
}

func (h *Handler) submitChunk(c *gin.Context) (*uploads.ChunkOutcome, bool) {
	out, err := h.uploads.SubmitChunk(c.Request.Context(),
		c.GetHeader(common.UploadIDHeaderName),
		c.GetHeader(common.ContentRangeHeaderName),
		c.Request.Body,
	)
	if err != nil {
		h.writeMappedError(c, err, "chunk upload failed")
		return nil, false
	}
	if !out.Done {
		c.JSON(http.StatusOK, pendingResponse{NextExpectedRanges: out.NextExpectedRanges})
		return nil, false
	}
	return out, true
}

func (h *Handler) uploadChunk(c *gin.Context) {
	out, done := h.submitChunk(c)
	if !done {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"done":   true,
		"fileId": out.File.ID,
		"size":   out.File.FileSize,
		"file":   toFileResponse(out.File),
	})
}

func (h *Handler) cacheChunk(c *gin.Context) {
	out, done := h.submitChunk(c)
	if !done {
		return
	}
	c.JSON(http.StatusOK, gin.H{"done": true, "key": out.File.ID, "size": out.File.FileSize})
}

// uploadForm accepts a whole file as the multipart field "file".
func (h *Handler) uploadForm(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "multipart field \"file\" is required", Detail: err.Error()})
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.writeMappedError(c, err, "upload failed")
		return
	}
	defer f.Close()

	file, err := h.uploads.PutWhole(c.Request.Context(), uploads.WholeRequest{
		Name:       fh.Filename,
		Size:       fh.Size,
		MimeType:   fh.Header.Get("Content-Type"),
		FolderPath: c.PostForm("folderPath"),
		Body:       f,
	})
	if err != nil {
		h.writeMappedError(c, err, "upload failed")
		return
	}
	c.JSON(http.StatusOK, toFileResponse(file))
}

func (h *Handler) cachePut(c *gin.Context) {
	key := c.Param("key")
	file, err := h.uploads.PutWhole(c.Request.Context(), uploads.WholeRequest{
		Name:   key,
		Size:   c.Request.ContentLength,
		Hidden: true,
		Body:   c.Request.Body,
	})
	if err != nil {
		h.writeMappedError(c, err, "cache upload failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": file.ID, "size": file.FileSize})
}

func (h *Handler) cacheGet(c *gin.Context) {
	u, err := h.uploads.CacheURL(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.writeMappedError(c, err, "cache lookup failed")
		return
	}
	c.Redirect(http.StatusFound, u)
}

func (h *Handler) cacheDelete(c *gin.Context) {
	key := c.Param("key")
	if err := h.uploads.CacheDelete(c.Request.Context(), key); err != nil {
		h.writeMappedError(c, err, "cache delete failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": key})
}

func (h *Handler) cacheList(c *gin.Context) {
	keys, err := h.uploads.CacheList(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		h.writeMappedError(c, err, "cache list failed")
		return
	}
	c.JSON(http.StatusOK, keys)
}

// download redirects to the backend download URL. It is public: file ids
// are unguessable UUIDs.
func (h *Handler) download(c *gin.Context) {
	u, err := h.uploads.DownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeMappedError(c, err, "download failed")
		return
	}
	c.Redirect(http.StatusFound, u)
}

type grantRequest struct {
	Subject    string `json:"subject"`
	TTLSeconds int64  `json:"ttlSeconds"`
}

func (h *Handler) issueGrant(c *gin.Context) {
	var req grantRequest
	if !bindJSON(c, &req) {
		return
	}
	token, exp, err := h.auth.IssueGrant(c.Request.Context(), principal(c), req.Subject, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		h.writeMappedError(c, err, "grant failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expiresAt": exp.UnixMilli()})
}
