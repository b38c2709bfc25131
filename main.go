package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"telecare_rtc/internal/api"
	"telecare_rtc/internal/models"
	"telecare_rtc/internal/repository"
	"telecare_rtc/internal/service"
	"telecare_rtc/internal/storage"
	"telecare_rtc/internal/utils"
	"telecare_rtc/pkg/config"
)

func main() {
	// 載入應用程式配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 設定 JWT 簽章密鑰
	utils.InitJWT(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// 初始化資料庫連接
	db, err := storage.NewPostgresDB(cfg.DB.Host, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.Port)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	// 確保在程序結束時關閉數據庫連接
	defer db.Close()

	// 自動遷移資料庫結構
	if err := db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Message{},
		&models.ConsultationSession{},
		&models.Notification{},
		&models.WalletTransaction{},
	); err != nil {
		log.Fatalf("Failed to auto migrate database: %v", err)
	}

	// 多節點部署時掛上 Redis 在線狀態匯流排
	var bus service.PresenceBus
	if cfg.Redis.Enabled {
		redisBus, err := storage.NewRedisBus(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisBus.Close()
		bus = redisBus
	}

	// 初始化 repositories 與 services
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, service.Options{
		PresenceGrace: cfg.PresenceGrace(),
		CallTimeout:   cfg.CallTimeout(),
		Bus:           bus,
	})

	// 設置 Gin 路由
	r := gin.Default()
	api.SetupRoutes(r, services)

	// 啟動伺服器
	if err := r.Run(cfg.Server.Address); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
