package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"sentinel/internal/alarm"
	"sentinel/internal/automation"
	"sentinel/internal/config"
	"sentinel/internal/connectors"
	"sentinel/internal/db"
	"sentinel/internal/logging"
	"sentinel/internal/mqtt"
	"sentinel/internal/pipeline"
	"sentinel/internal/pubsub"
	"sentinel/internal/redis"
	"sentinel/internal/scheduler"
	"sentinel/internal/taskqueue"
	"sentinel/internal/web"

	"github.com/pion/mdns/v2"
	"go.uber.org/zap"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	dbConn, err := db.NewDB(ctx, cfg.DBURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	redisClient := redis.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
	bus := pubsub.New(redisClient, logger)

	mqttClient, err := mqtt.NewMQTTClient(cfg.MQTTBroker, cfg.MQTTClientID)
	if err != nil {
		logger.Fatal("mqtt connection failed", zap.Error(err))
	}

	cameraClient := connectors.NewCameraClient(cfg.CameraAPIBaseURL, cfg.CameraAPIToken, logger)
	pushClient := connectors.NewPushClient(cfg.PushAPIBaseURL, logger)
	deviceCommander := connectors.NewDeviceCommander(mqttClient, logger)

	zoneService := alarm.NewService(dbConn, logger)

	ledger := automation.NewLedger(dbConn, logger)
	executor := automation.NewExecutor(dbConn, cameraClient, pushClient, deviceCommander, zoneService, ledger, logger)
	evaluator := automation.NewEvaluator(dbConn, executor, logger)
	scheduleEvaluator := automation.NewScheduleEvaluator(dbConn, executor, logger)

	resolver := pipeline.NewResolver(dbConn, logger)
	thumbnails := pipeline.NewThumbnailCoordinator(dbConn, bus, cameraClient, logger)
	publisher := pipeline.NewPublisher(dbConn, resolver, thumbnails, bus, redisClient, zoneService, evaluator, logger)

	queueClient := taskqueue.NewClient(cfg.RedisAddr, cfg.RedisPassword)
	defer queueClient.Close()

	worker := taskqueue.NewWorker(cfg.RedisAddr, cfg.RedisPassword, cfg.WorkerConcurrency, publisher, scheduleEvaluator, logger)
	go func() {
		if err := worker.Run(); err != nil {
			logger.Fatal("worker failed", zap.Error(err))
		}
	}()

	refresher := scheduler.NewSunTimesRefresher(dbConn, logger)
	sched := scheduler.NewScheduler(queueClient, refresher, logger)
	sched.Start()

	bridge := connectors.NewBridge(mqttClient, queueClient, logger)
	if err := bridge.Start(); err != nil {
		logger.Fatal("mqtt bridge failed", zap.Error(err))
	}

	webServer := web.NewWebServer(dbConn, queueClient, zoneService, cfg.JWTSecret, logger)
	go func() {
		if err := webServer.Start(cfg.HTTPAddr); err != nil {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	if cfg.MDNSHostname != "" {
		go startMDNSServer(cfg.MDNSHostname, logger)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	bridge.Stop()
	sched.Stop()
	worker.Shutdown()
	logger.Info("shutdown complete")
}

// startMDNSServer advertises the backend on the local network so on-prem
// connectors can find it without static configuration.
func startMDNSServer(localName string, logger *zap.Logger) {
	addr4, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddressIPv4)
	if err != nil {
		logger.Warn("mdns udp4 resolve failed", zap.Error(err))
		return
	}
	addr6, err := net.ResolveUDPAddr("udp6", mdns.DefaultAddressIPv6)
	if err != nil {
		logger.Warn("mdns udp6 resolve failed", zap.Error(err))
		return
	}

	l4, err := net.ListenUDP("udp4", addr4)
	if err != nil {
		logger.Warn("mdns udp4 listen failed", zap.Error(err))
		return
	}
	l6, err := net.ListenUDP("udp6", addr6)
	if err != nil {
		logger.Warn("mdns udp6 listen failed", zap.Error(err))
		return
	}

	_, err = mdns.Server(ipv4.NewPacketConn(l4), ipv6.NewPacketConn(l6), &mdns.Config{
		LocalNames: []string{localName},
	})
	if err != nil {
		logger.Warn("mdns server failed", zap.Error(err))
	}
}
