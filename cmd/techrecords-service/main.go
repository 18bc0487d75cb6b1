package main

import (
	"flag"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/FleetTechRegistry/FleetTechRegistry/internal/common/config"
	"github.com/FleetTechRegistry/FleetTechRegistry/internal/common/db"
	"github.com/FleetTechRegistry/FleetTechRegistry/internal/common/logger"
	"github.com/FleetTechRegistry/FleetTechRegistry/internal/common/server"
	"github.com/FleetTechRegistry/FleetTechRegistry/internal/common/tracing"
	"github.com/FleetTechRegistry/FleetTechRegistry/internal/techrecord"
)

var (
	configPath = flag.String("config", "configs/techrecords-service.json", "配置文件路径")
)

func main() {
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 初始化链路追踪
	tracer, closer, err := tracing.InitTracer(
		cfg.Server.Name,
		cfg.Jaeger.Endpoint,
		cfg.Jaeger.Sampler,
	)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		defer closer.Close()
	}
	_ = tracer

	// 初始化数据库
	gormDB, err := db.NewMySQL(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.MaxIdle,
		cfg.Database.MaxOpen,
	)
	if err != nil {
		log.Fatalf("failed to init mysql: %v", err)
	}
	if err := gormDB.AutoMigrate(&techrecord.RowRecord{}); err != nil {
		log.Fatalf("failed to migrate mysql schema: %v", err)
	}

	// 启动统一的 HTTP 服务模板
	httpServer := techrecord.NewHTTPServer(gormDB, log)
	if err := server.RunHTTPServer(cfg, log, func(r *gin.Engine) error {
		httpServer.RegisterRoutes(r)
		return nil
	}); err != nil {
		log.Fatalf("techrecords-service exited with error: %v", err)
	}
}
