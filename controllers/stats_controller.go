package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/harukit/monpix/models"
	"github.com/harukit/monpix/quota"
	"github.com/harukit/monpix/utils"
)

// StatsController provides aggregate service statistics.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

const statsCacheKey = "cache:stats:site"

// GetStats returns aggregate statistics. The payload is cached in Redis
// and invalidated whenever an upload is admitted.
func (s *StatsController) GetStats(ctx *gin.Context) {
	if b, ok := utils.CacheGetBytes(statsCacheKey); ok {
		ctx.Data(200, "application/json", b)
		return
	}

	var userCount int64
	var uploadCount int64
	var monthUploads int64
	var dailyViews int64

	if err := s.db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		userCount = 0
	}
	if err := s.db.Model(&models.Upload{}).Count(&uploadCount).Error; err != nil {
		uploadCount = 0
	}

	start, end := quota.MonthBounds(time.Now())
	if err := s.db.Model(&models.Upload{}).
		Where("created_at >= ? AND created_at < ?", start, end).
		Count(&monthUploads).Error; err != nil {
		monthUploads = 0
	}

	// String date equality avoids timezone/type mismatches with the DATE column
	today := time.Now().In(time.Local).Format("2006-01-02")
	if err := s.db.Model(&models.PageView{}).
		Where("date = ?", today).
		Select("COALESCE(SUM(count),0)").
		Scan(&dailyViews).Error; err != nil {
		dailyViews = 0
	}

	payload := gin.H{
		"user_count":         userCount,
		"upload_count":       uploadCount,
		"month_upload_count": monthUploads,
		"daily_page_views":   dailyViews,
	}

	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON(statsCacheKey, wrapper, 5*time.Minute)
	utils.Success(ctx, payload)
}
