package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bybitconn/config"
	"bybitconn/logger"
	"bybitconn/models"
	"bybitconn/rest"
	"bybitconn/ws"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Connector.Name,
		"version": cfg.Connector.Version,
	}).Info("starting bybit connector")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	restClient := rest.New(cfg)
	if serverTime, err := restClient.ServerTime(ctx); err != nil {
		log.WithError(err).Warn("exchange time check failed")
	} else {
		log.WithFields(logger.Fields{"server_time": serverTime.TimeSecond}).Info("exchange reachable")
	}

	// Topics from the config are split across the public and the private
	// stream; the private session only exists when credentials are set.
	var publicTopics, privateTopics []string
	for _, topic := range cfg.Ws.Topics {
		if models.IsPrivateTopic(topic) {
			privateTopics = append(privateTopics, topic)
		} else {
			publicTopics = append(publicTopics, topic)
		}
	}

	publicSession, err := ws.NewSession(cfg, false)
	if err != nil {
		log.WithError(err).Error("failed to create public session")
		os.Exit(1)
	}

	var privateSession *ws.Session
	if len(privateTopics) > 0 {
		privateSession, err = ws.NewSession(cfg, true)
		if err != nil {
			log.WithError(err).Error("failed to create private session")
			os.Exit(1)
		}
	} else if !cfg.Credentials.Configured() {
		log.WithComponent("main").Info("no credentials; running public-only")
	}

	var wg sync.WaitGroup
	startConsumer := func(session *ws.Session, topic string) {
		messages, ack := session.SubscribeChan(topic)
		wg.Add(2)
		go func() {
			defer wg.Done()
			select {
			case err := <-ack:
				if err != nil {
					log.WithError(err).WithFields(logger.Fields{"topic": topic}).
						Warn("subscription rejected")
				}
			case <-ctx.Done():
			}
		}()
		go func() {
			defer wg.Done()
			var count int64
			for {
				select {
				case msg := <-messages:
					count++
					log.WithComponent("consumer").WithFields(logger.Fields{
						"topic": msg.Topic,
						"type":  msg.Type,
						"count": count,
					}).Debug("data message")
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for _, topic := range publicTopics {
		startConsumer(publicSession, topic)
	}
	if privateSession != nil {
		for _, topic := range privateTopics {
			startConsumer(privateSession, topic)
		}
	}

	if err := publicSession.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start public session")
		os.Exit(1)
	}
	if privateSession != nil {
		if err := privateSession.Start(ctx); err != nil {
			log.WithError(err).Error("failed to start private session")
			os.Exit(1)
		}
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	log.Info("stopping public session")
	publicSession.Close()
	if privateSession != nil {
		log.Info("stopping private session")
		privateSession.Close()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("bybit connector stopped")
}
