package main

import (
	"context"
	"log"
	"os"
	"time"

	"collageapi/dbhelper"
	"collageapi/services"
	"collageapi/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              services.GetEnv("SENTRY_DSN", ""),
		Environment:      services.GetEnv("ENV", "local"),
		Release:          "collageapi@1.0.0",
		TracesSampleRate: 1.0,
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Recover()
	defer sentry.Flush(2 * time.Second)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")},
		asynq.Config{Concurrency: 10, Queues: map[string]int{
			"collage": 7,
		}},
	)
	awsService := &services.AWSService{}
	if err := awsService.InitPresignClient(context.Background()); err != nil {
		log.Fatal("[Queue] Failed to initialize AWS provider: S3")
	}
	storage := services.NewStorageService()
	if err := storage.EnsureDirs(); err != nil {
		log.Fatal("[Queue] Failed to initialize storage dirs: ", err)
	}
	removal := services.NewReplicateService()

	mux := asynq.NewServeMux()
	db := dbhelper.SetupDB()
	mux.HandleFunc(tasks.TypeProcessCollage, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleProcessCollageTask(ctx, t, db, removal, awsService, storage)
	})

	if err := srv.Run(mux); err != nil {
		log.Fatal(err)
	}
}
