// Package main (in api-subfolder) provides launch of the whole application
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/ImageCompressor/internal/events"
	"github.com/UnendingLoop/ImageCompressor/internal/gateway"
	"github.com/UnendingLoop/ImageCompressor/internal/kafka"
	"github.com/UnendingLoop/ImageCompressor/internal/model"
	"github.com/UnendingLoop/ImageCompressor/internal/mwlogger"
	"github.com/UnendingLoop/ImageCompressor/internal/repository"
	"github.com/UnendingLoop/ImageCompressor/internal/service"
	"github.com/UnendingLoop/ImageCompressor/internal/storage"
	"github.com/UnendingLoop/ImageCompressor/internal/transport"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/ginext"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/zlog"
)

const (
	defaultPort     = "8080"
	defaultLogLevel = "info"
	defaultTopic    = "image-events"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Printf("No .env loaded (%v), using process environment", err)
	}

	// стартуем логгер
	zlog.InitConsole()
	level := appConfig.GetString("LOG_LEVEL")
	if level == "" {
		level = defaultLogLevel
	}
	if err := zlog.SetLevel(level); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// хранилище метаданных: json-файл или postgres
	repo, closeRepo := repository.NewFromConfig(appConfig)
	// подключиться к хранилищу файлов
	strg := storage.NewFromConfig(appConfig, 10*time.Second)
	// клиент внешнего API сжатия
	cmp, err := gateway.NewFromConfig(appConfig)
	if err != nil {
		log.Fatalf("Failed to init compression gateway: %v", err)
	}
	if appConfig.GetString("TINIFY_API_KEY") == "" {
		zlog.Logger.Warn().Msg("TINIFY_API_KEY is empty, every compression will fall back to a plain copy")
	}

	// события в кафку - только если задан брокер
	var pub service.EventPublisher = events.NoopPublisher{}
	var producer *wbfkafka.Producer
	if broker := appConfig.GetString("KAFKA_BROKER"); broker != "" {
		topic := appConfig.GetString("KAFKA_TOPIC")
		if topic == "" {
			topic = defaultTopic
		}
		if !kafka.WaitKafkaReady(ctx, broker, 5*time.Second) {
			log.Println("Interrupted while waiting for Kafka. Exiting...")
			return
		}
		if err := kafka.InitKafkaTopics(ctx, broker, 10*time.Second, topic); err != nil {
			log.Printf("Kafka topics not ready: %v. Exiting...", err)
			return
		}
		producer = wbfkafka.NewProducer([]string{broker}, topic)
		pub = producer
	}

	// создаем экземпляр сервиса
	var svc ImageAPIService = service.NewImageService(repo, strg, cmp, pub)
	// cоздаем экземпляр хендлера HTTP
	handlers := transport.NewImageHandler(svc)
	// сетапим сервер
	mode := appConfig.GetString("GIN_MODE")
	engine := ginext.New(mode)

	engine.GET("/ping", handlers.SimplePinger)
	engine.POST("/upload", handlers.Upload)                        // загрузка оригинала
	engine.POST("/compress", handlers.Compress)                    // сжатие по id
	engine.GET("/images", handlers.ListOriginals)                  // список оригиналов
	engine.GET("/images/compressed", handlers.ListCompressed)      // список сжатых
	engine.GET("/"+model.UploadsDir+"/:file", handlers.ServeUpload) // отдача файлов по url из записи
	engine.GET("/"+model.CompressedDir+"/:file", handlers.ServeCompressed)

	port := appConfig.GetString("APP_PORT")
	if port == "" {
		port = defaultPort
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mwlogger.NewMWLogger(engine),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Server launch
	go func() {
		log.Printf("Server running on http://localhost%s\n", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				log.Println("Server gracefully stopping...")
			default:
				log.Printf("Server stopped: %v", err)
				stop()
			}
		}
	}()

	// ждем отмены контекста для запуска грейсфул закрытия сервера, бд и кафки
	<-ctx.Done()

	shutdown(srv, producer, closeRepo)
	log.Println("Exiting app...")
}

func shutdown(srv *http.Server, producer *wbfkafka.Producer, closeRepo func() error) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("Failed to shutdown HTTP-server gracefully:", err)
	}
	log.Println("HTTP-server stopped.")

	// Closing Kafka connection:
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Println("Failed to close Kafka-producer:", err)
		}
		log.Println("Kafka-producer connection closed.")
	}

	// Closing DB connection
	if closeRepo != nil {
		if err := closeRepo(); err != nil {
			log.Println("Failed to close DB-conn correctly:", err)
			return
		}
		log.Println("DBconn closed")
	}
}
