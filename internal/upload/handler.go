package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/reseich/reseich-api/internal/auth"
	apierrors "github.com/reseich/reseich-api/internal/errors"
	"github.com/reseich/reseich-api/internal/logger"
)

// MaxFileSize is the largest accepted upload.
const MaxFileSize = 10 << 20

var allowedTypes = []string{"application/pdf", "text/plain", "application/json"}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type Handler struct {
	store  ObjectStore
	logger *logger.Logger
}

func NewHandler(store ObjectStore, logger *logger.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger.WithComponent("upload"),
	}
}

// Upload handles POST /api/upload/file with a multipart `file` field.
// Files land under uploads/{owner}/{uuid}/{name}, owner being the wallet or "demo".
func (h *Handler) Upload(c *gin.Context) {
	ctx := c.Request.Context()

	// Leave room for the multipart envelope around the file itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxFileSize+1<<20)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.AbortWithBadRequest(c, "file too large", map[string]interface{}{"max_bytes": MaxFileSize})
			return
		}
		apierrors.AbortWithBadRequest(c, "file is required", map[string]interface{}{"field": "file"})
		return
	}
	if header.Size > MaxFileSize {
		apierrors.AbortWithBadRequest(c, "file too large", map[string]interface{}{
			"max_bytes": MaxFileSize,
			"size":      header.Size,
		})
		return
	}

	caller, err := auth.Resolve(c, c.PostForm("wallet_address"), false)
	if err != nil {
		apierrors.AbortWithBadRequest(c, "invalid wallet address", nil)
		return
	}

	f, err := header.Open()
	if err != nil {
		apierrors.AbortWithBadRequest(c, "unreadable file", nil)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		apierrors.AbortWithBadRequest(c, "unreadable file", nil)
		return
	}
	if len(data) > MaxFileSize {
		apierrors.AbortWithBadRequest(c, "file too large", map[string]interface{}{"max_bytes": MaxFileSize})
		return
	}

	contentType, ok := detectType(data, header.Header.Get("Content-Type"))
	if !ok {
		apierrors.AbortWithBadRequest(c, "unsupported file type", map[string]interface{}{
			"allowed": allowedTypes,
		})
		return
	}

	owner := "demo"
	if !caller.IsDemo() {
		owner = caller.Wallet
	}
	key := fmt.Sprintf("uploads/%s/%s/%s", owner, uuid.NewString(), sanitizeName(header.Filename))

	url, err := h.store.Put(ctx, key, bytes.NewReader(data), contentType)
	if err != nil {
		h.logger.LogError(ctx, err, "file upload failed", slog.String("key", key))
		apierrors.AbortWithInternal(c, "failed to store file", nil)
		return
	}

	h.logger.WithContext(ctx).Info("file uploaded",
		slog.String("key", key),
		slog.Int("size", len(data)),
		slog.String("content_type", contentType))

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"url":          url,
		"path":         key,
		"size":         len(data),
		"content_type": contentType,
	})
}

// detectType sniffs the content and accepts it when it, or one of its parent
// types, is allowed. Plain text declared as JSON is trusted as JSON.
func detectType(data []byte, declared string) (string, bool) {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		for _, allowed := range allowedTypes {
			if !m.Is(allowed) {
				continue
			}
			if allowed == "text/plain" && strings.HasPrefix(declared, "application/json") {
				return "application/json", true
			}
			return allowed, true
		}
	}
	return "", false
}

func sanitizeName(name string) string {
	name = unsafeName.ReplaceAllString(filepath.Base(name), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	return name
}
