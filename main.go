package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"TeleProject/global"
	"TeleProject/logger"
	mid "TeleProject/middleware"
	midsec "TeleProject/middleware/security"
	device "TeleProject/module/device"
	devsrv "TeleProject/module/device/service"
	user "TeleProject/module/user"
	usersrv "TeleProject/module/user/service"
	"TeleProject/service/archive"
	"TeleProject/service/bus"
	"TeleProject/service/directory"
	"TeleProject/service/gateway"
	"TeleProject/service/ingest"
	"TeleProject/service/storage/mgo"
	"TeleProject/service/storage/pg"
	"TeleProject/service/storage/redis"
	"TeleProject/tools/security"
)

func main() {
	cfg := global.Load()
	global.ConfigIds()

	ctx := context.Background()

	if err := pg.Init(ctx, cfg.PostgresURL); err != nil {
		logger.Errorf("[main] postgres init failed: %v", err)
		return
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		logger.Errorf("[main] postgres migrate failed: %v", err)
		return
	}

	if err := mgo.Init(ctx, mgo.Config{URI: cfg.MongoURI, Database: cfg.MongoDatabase}); err != nil {
		logger.Errorf("[main] mongo init failed: %v", err)
		return
	}
	defer func() { _ = mgo.Close(ctx) }()

	b, err := buildBus(cfg)
	if err != nil {
		logger.Errorf("[main] bus init failed: %v", err)
		return
	}

	var mirror *archive.Producer
	if cfg.ArchiveTopic != "" && len(cfg.KafkaBrokers) > 0 {
		mirror, err = archive.NewProducer(cfg.KafkaBrokers, cfg.ArchiveTopic)
		if err != nil {
			logger.Errorf("[main] kafka mirror init failed: %v", err)
			return
		}
		defer func() { _ = mirror.Close() }()
	}

	jwtOpts := security.DefaultOptions(global.GetJwtSecret())
	jwtOpts.TTL = cfg.JwtTTL
	mid.Configure(jwtOpts)

	devices := devsrv.NewDeviceService(pg.Pool())
	readings := devsrv.NewReadingService(mgo.Database())
	if err := readings.EnsureIndexes(ctx); err != nil {
		logger.Warnf("[main] reading indexes: %v", err)
	}
	users := usersrv.NewUserService(pg.Pool())

	dir := directory.NewPgDirectory(pg.Pool())
	gw := gateway.NewServer(cfg.GatewayNodeId, b, dir, jwtOpts)
	ing := ingest.NewService(devices, readings, b, mirror)

	userH := user.NewHandler(users, jwtOpts)
	deviceH := device.NewHandler(devices, readings, ing)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws/devices", mid.Origin(), gw.HandleWS)

	mid.POST(r, "/login", userH.HandlerLogin, mid.RouteOpt{IsAuth: false})

	mid.GET(r, "/api/devices", deviceH.HandlerList, mid.RouteOpt{IsAuth: true})
	mid.POST(r, "/api/devices", deviceH.HandlerCreate, mid.RouteOpt{IsAuth: true})
	mid.GET(r, "/api/devices/:device_id", deviceH.HandlerGet, mid.RouteOpt{IsAuth: true})
	mid.PUT(r, "/api/devices/:device_id", deviceH.HandlerUpdate, mid.RouteOpt{IsAuth: true})
	mid.DELETE(r, "/api/devices/:device_id", deviceH.HandlerDelete, mid.RouteOpt{IsAuth: true})

	mid.POST(r, "/api/readings", deviceH.HandlerIngest, mid.RouteOpt{IsAuth: true})
	mid.GET(r, "/api/readings", deviceH.HandlerReadings, mid.RouteOpt{IsAuth: true})

	mid.GET(r, "/api/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"active_sessions": gw.Registry().Count(),
			"my_sessions":     len(gw.Registry().ListByUser(midsec.UserID(c))),
		})
	}, mid.RouteOpt{IsAuth: true})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Infof("[main] gateway %s listening on %s (bus=%s)", cfg.GatewayNodeId, addr, cfg.BusBackend)
	if err := r.Run(addr); err != nil {
		logger.Errorf("[main] http server failed: %v", err)
	}
}

func buildBus(cfg *global.AppConfig) (bus.Bus, error) {
	switch cfg.BusBackend {
	case "nats":
		return bus.NewNatsBus(bus.NatsConfig{
			Servers: cfg.NatsServers,
			Name:    cfg.GatewayNodeId,
		})
	default:
		if err := redis.Init(redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}); err != nil {
			return nil, err
		}
		return bus.NewRedisBus(redis.Client()), nil
	}
}
