package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/harukit/monpix/config"
	"github.com/harukit/monpix/models"
	"github.com/harukit/monpix/quota"
	"github.com/harukit/monpix/utils"
)

// AdminController manages accounts: creation, quota and role adjustment,
// and the usage overview. There is intentionally no delete operation.
type AdminController struct {
	db *gorm.DB
}

// NewAdminController creates a new AdminController instance.
func NewAdminController(db *gorm.DB) *AdminController {
	return &AdminController{db: db}
}

// ListUsers returns all accounts with their current-month upload counts.
func (a *AdminController) ListUsers(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	var total int64
	if err := a.db.Model(&models.User{}).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50000, "failed to count users")
		return
	}

	var users []models.User
	if err := a.db.Order("created_at ASC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&users).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to retrieve users")
		return
	}

	start, end := quota.MonthBounds(time.Now())
	type usageRow struct {
		UserID uint
		Count  int64
	}
	var rows []usageRow
	if err := a.db.Model(&models.Upload{}).
		Select("user_id, COUNT(*) AS count").
		Where("created_at >= ? AND created_at < ?", start, end).
		Group("user_id").
		Scan(&rows).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to aggregate uploads")
		return
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.UserID] = r.Count
	}

	items := make([]gin.H, 0, len(users))
	for _, u := range users {
		entry := userResponse(u)
		entry["month_uploads"] = counts[u.ID]
		items = append(items, entry)
	}

	utils.Success(ctx, gin.H{
		"items":        items,
		"period_start": start,
		"period_end":   end,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	})
}

// CreateUser adds a new account. The monthly limit defaults to the
// configured value when omitted or non-positive.
func (a *AdminController) CreateUser(ctx *gin.Context) {
	var req struct {
		Email        string `json:"email" binding:"required,email"`
		DisplayName  string `json:"display_name"`
		Password     string `json:"password" binding:"required,min=6"`
		MonthlyLimit int    `json:"monthly_limit"`
		Role         string `json:"role"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	var existing models.User
	if err := a.db.Where("email = ?", email).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40901, "email already exists")
		return
	}

	role, ok := normalizeRole(req.Role)
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40041, "invalid role")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to hash password")
		return
	}

	limit := req.MonthlyLimit
	if limit <= 0 {
		limit = config.Get().DefaultMonthlyLimit
	}

	user := models.User{
		Email:        email,
		DisplayName:  utils.SanitizeName(strings.TrimSpace(req.DisplayName)),
		PasswordHash: hash,
		Role:         role,
		MonthlyLimit: limit,
	}
	if err := a.db.Create(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to create user")
		return
	}

	utils.Success(ctx, userResponse(user))
}

// UpdateUser adjusts an account's monthly limit, role, and/or password.
// Absent fields are left untouched; the limit must stay positive. Raising
// a limit mid-month immediately allows further uploads; lowering it never
// touches records already written.
func (a *AdminController) UpdateUser(ctx *gin.Context) {
	id, err := strconv.ParseUint(strings.TrimSpace(ctx.Param("id")), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40042, "invalid user id")
		return
	}

	var req struct {
		DisplayName  *string `json:"display_name"`
		MonthlyLimit *int    `json:"monthly_limit"`
		Role         *string `json:"role"`
		NewPassword  *string `json:"new_password"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.First(&user, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40410, "account not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to load user")
		return
	}

	if req.MonthlyLimit != nil {
		if *req.MonthlyLimit <= 0 {
			utils.Error(ctx, http.StatusBadRequest, 40043, "monthly limit must be positive")
			return
		}
		user.MonthlyLimit = *req.MonthlyLimit
	}
	if req.Role != nil {
		role, ok := normalizeRole(*req.Role)
		if !ok {
			utils.Error(ctx, http.StatusBadRequest, 40041, "invalid role")
			return
		}
		user.Role = role
	}
	if req.DisplayName != nil {
		user.DisplayName = utils.SanitizeName(strings.TrimSpace(*req.DisplayName))
	}
	if req.NewPassword != nil && *req.NewPassword != "" {
		if len(*req.NewPassword) < 6 {
			utils.Error(ctx, http.StatusBadRequest, 40044, "password too short")
			return
		}
		hash, err := utils.HashPassword(*req.NewPassword)
		if err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to hash password")
			return
		}
		user.PasswordHash = hash
	}

	if err := a.db.Save(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to update user")
		return
	}

	utils.Success(ctx, userResponse(user))
}

// normalizeRole maps an optional role string to a stored value. Empty
// defaults to standard.
func normalizeRole(role string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "", models.RoleStandard:
		return models.RoleStandard, true
	case models.RoleAdmin, "administrator":
		return models.RoleAdmin, true
	default:
		return "", false
	}
}
