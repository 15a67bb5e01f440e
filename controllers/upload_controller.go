package controllers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harukit/monpix/config"
	"github.com/harukit/monpix/models"
	"github.com/harukit/monpix/quota"
	"github.com/harukit/monpix/utils"
)

// UploadController accepts image uploads gated by the per-account monthly
// quota and serves upload listings and quota status.
type UploadController struct {
	db    *gorm.DB
	guard *quota.Guard
}

// NewUploadController creates a new UploadController instance.
func NewUploadController(db *gorm.DB, guard *quota.Guard) *UploadController {
	return &UploadController{db: db, guard: guard}
}

// Upload handles a multipart image upload. Content-type and size checks
// happen here, before the quota guard is consulted; the guard then decides
// admission atomically and records the upload. The file is written to disk
// first and removed again if the guard rejects.
func (u *UploadController) Upload(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}

	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "no file uploaded")
		return
	}
	defer file.Close()

	cfg := config.Get()
	contentType := header.Header.Get("Content-Type")
	if !contentTypeAllowed(contentType, cfg.UploadAllowedTypes) {
		utils.Error(ctx, http.StatusBadRequest, 40031, "unsupported file type")
		return
	}

	maxSize := int64(cfg.UploadMaxSizeMB) << 20
	if header.Size > maxSize {
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 40032, fmt.Sprintf("file size exceeds %dMB", cfg.UploadMaxSizeMB))
		return
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to create upload directory")
		return
	}

	originalName := filepath.Base(header.Filename)
	storedName := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString(), extensionFor(originalName, contentType))
	dstPath := filepath.Join(cfg.UploadDir, storedName)

	out, err := os.Create(dstPath)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to save file")
		return
	}

	// The multipart header size is client-declared; enforce the ceiling on
	// the actual bytes too.
	lr := &io.LimitedReader{R: file, N: maxSize + 1}
	written, err := io.Copy(out, lr)
	closeErr := out.Close()
	if err != nil || closeErr != nil {
		_ = os.Remove(dstPath)
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to write file")
		return
	}
	if written > maxSize {
		_ = os.Remove(dstPath)
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 40032, fmt.Sprintf("file size exceeds %dMB", cfg.UploadMaxSizeMB))
		return
	}

	adm, err := u.guard.TryRecordUpload(ctx.Request.Context(), userID, quota.Metadata{
		StoredName:   storedName,
		OriginalName: originalName,
	})
	if err != nil {
		_ = os.Remove(dstPath)

		var exceeded *quota.QuotaExceededError
		switch {
		case errors.Is(err, quota.ErrAccountNotFound):
			utils.Error(ctx, http.StatusNotFound, 40410, "account not found")
		case errors.As(err, &exceeded):
			utils.Respond(ctx, http.StatusTooManyRequests, 42930,
				fmt.Sprintf("monthly upload limit of %d reached", exceeded.Limit),
				gin.H{"limit": exceeded.Limit})
		default:
			utils.Sugar.Errorf("upload admission failed for user %d: %v", userID, err)
			utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to record upload")
		}
		return
	}

	// Month usage changed; drop cached stats.
	utils.InvalidateByPrefix("cache:stats")

	utils.Success(ctx, gin.H{
		"id":          adm.RecordID,
		"stored_name": storedName,
		"url":         "/static/uploads/" + storedName,
		"used":        adm.Used,
		"limit":       adm.Limit,
	})
}

// ListMyUploads returns the caller's uploads, newest first.
func (u *UploadController) ListMyUploads(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}

	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	var total int64
	if err := u.db.Model(&models.Upload{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50034, "failed to count uploads")
		return
	}

	var uploads []models.Upload
	if err := u.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&uploads).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50035, "failed to list uploads")
		return
	}

	utils.Success(ctx, gin.H{
		"items": uploads,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	})
}

// QuotaStatus reports the caller's month-to-date usage against their limit.
func (u *UploadController) QuotaStatus(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}

	usage, err := u.guard.CurrentUsage(ctx.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, quota.ErrAccountNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40410, "account not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50036, "failed to load quota status")
		return
	}

	utils.Success(ctx, gin.H{
		"used":         usage.Used,
		"limit":        usage.Limit,
		"remaining":    usage.Remaining,
		"period_start": usage.PeriodStart,
		"period_end":   usage.PeriodEnd,
	})
}

// contentTypeAllowed matches a declared content type against the allowed
// list, ignoring parameters like charset and case.
func contentTypeAllowed(contentType string, allowed []string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	mediaType = strings.ToLower(mediaType)
	for _, a := range allowed {
		if mediaType == strings.ToLower(strings.TrimSpace(a)) {
			return true
		}
	}
	return false
}

// extensionFor picks a file extension for the stored name: the original
// extension if present, otherwise one derived from the content type.
func extensionFor(originalName, contentType string) string {
	if ext := filepath.Ext(originalName); ext != "" && ext != "." {
		return strings.ToLower(ext)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	if idx := strings.IndexByte(mediaType, '/'); idx >= 0 && idx+1 < len(mediaType) {
		return "." + mediaType[idx+1:]
	}
	return ""
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page, pageSize := 1, 10
	if v := strings.TrimSpace(pageStr); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := strings.TrimSpace(sizeStr); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			pageSize = n
		}
	}
	return page, pageSize
}
