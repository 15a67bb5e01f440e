package main

import (
	"time"

	"github.com/harukit/monpix/config"
	"github.com/harukit/monpix/models"
	"github.com/harukit/monpix/routes"
	"github.com/harukit/monpix/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.Upload{}, &models.PageView{})

	bootstrapAdmin(cfg)

	r := routes.SetupRouter(db)

	// Background check that upload records still have their files on disk
	utils.StartUploadAuditor(30 * time.Minute)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

// bootstrapAdmin seeds the configured administrator account on boot. An
// existing account with the same email is promoted and gets the configured
// password and limit, matching a re-run of the seed step.
func bootstrapAdmin(cfg config.AppConfig) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		utils.Sugar.Warn("admin bootstrap skipped: ADMIN_EMAIL/ADMIN_PASSWORD not set")
		return
	}

	hash, err := utils.HashPassword(cfg.AdminPassword)
	if err != nil {
		utils.Sugar.Fatalf("failed to hash bootstrap admin password: %v", err)
	}

	db := config.DB()
	var user models.User
	if err := db.Where("email = ?", cfg.AdminEmail).First(&user).Error; err == nil {
		user.PasswordHash = hash
		user.Role = models.RoleAdmin
		if err := db.Save(&user).Error; err != nil {
			utils.Sugar.Fatalf("failed to update bootstrap admin: %v", err)
		}
		return
	}

	user = models.User{
		Email:        cfg.AdminEmail,
		DisplayName:  "Administrator",
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		MonthlyLimit: cfg.AdminMonthlyLimit,
	}
	if err := db.Create(&user).Error; err != nil {
		utils.Sugar.Fatalf("failed to create bootstrap admin: %v", err)
	}
	utils.Sugar.Infof("bootstrap admin account created: %s", cfg.AdminEmail)
}
