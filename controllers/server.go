package controllers

import (
	"context"
	"log"
	"net/http"

	"collageapi/services"

	"github.com/go-playground/validator"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		// Optionally, you could return the error to give each route more control over the status code
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// TaskEnqueuer is the slice of asynq.Client the controllers need; tests swap
// in a recorder.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func SetupServer(
	db *gorm.DB,
	awsService services.AWSServiceProvider,
	storage services.StorageServiceProvider,
	urlCache services.URLCacheServiceProvider,
	enqueuer TaskEnqueuer,
) *echo.Echo {

	err := awsService.InitPresignClient(context.Background())
	if err != nil {
		log.Fatal("Failed to initialize AWS provider: S3")
	}
	if err := storage.EnsureDirs(); err != nil {
		log.Fatal("Failed to initialize storage dirs: ", err)
	}

	e := echo.New()
	v := validator.New()
	e.Validator = &CustomValidator{validator: v}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("__db", db)
			c.Set("__enqueuer", enqueuer)
			return next(c)
		}
	})

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(middleware.Recover())

	e.Static("/static", storage.FullPath(""))

	collageController := CollageController{
		AWSService: awsService,
		Storage:    storage,
		URLCache:   urlCache,
	}
	collageController.HealthRoutes(e)

	collageGroup := e.Group("/api/collage")
	collageController.SessionRoutes(collageGroup)

	return e
}
