package controllers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"collageapi/collage"
	"collageapi/models"
	"collageapi/services"
	"collageapi/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type CollageController struct {
	AWSService services.AWSServiceProvider
	Storage    services.StorageServiceProvider
	URLCache   services.URLCacheServiceProvider
}

func (controller *CollageController) HealthRoutes(e *echo.Echo) {
	e.GET("/", controller.Health)
	e.GET("/api/info", controller.Info)
}

func (controller *CollageController) SessionRoutes(g *echo.Group) {
	g.POST("/session", controller.CreateSession)
	g.GET("/session/:slackUserId", controller.GetActiveSession)
	g.GET("/session/id/:sessionId", controller.GetSessionByID)
	g.POST("/upload", controller.UploadImage)
	g.POST("/process", controller.ProcessSession)
	g.DELETE("/session/:sessionId", controller.DeleteSession)
	g.GET("/backgrounds", controller.ListBackgrounds)
}

func (controller *CollageController) Health(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"status": "error", "detail": "no database"})
	}
	sqlDB, err := db.DB()
	if err != nil || sqlDB.Ping() != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "error", "detail": "database unreachable"})
	}
	if err := controller.Storage.EnsureDirs(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "error", "detail": "storage unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (controller *CollageController) Info(c echo.Context) error {
	cfg := collage.DefaultCanvasConfig()
	return c.JSON(http.StatusOK, echo.Map{
		"canvas": echo.Map{
			"width":  cfg.Width,
			"height": cfg.Height,
			"border": cfg.Border,
			"gap":    cfg.Gap,
			"ratio1": cfg.Ratio1,
			"ratio2": cfg.Ratio2,
		},
		"backgrounds": controller.Storage.ListBackgrounds(),
	})
}

func (controller *CollageController) CreateSession(c echo.Context) error {
	var req models.SessionCreateIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	// a user has at most one session in flight; hand the active one back
	var existing models.CollageSession
	result := db.Where("slack_user_id = ? AND status IN ?", req.SlackUserID, models.ActiveSessionStatuses).
		Order("created_at desc").Take(&existing)
	if result.Error == nil {
		return c.JSON(http.StatusOK, controller.sessionOut(c.Request().Context(), &existing))
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		sentry.CaptureException(result.Error)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to look up sessions"})
	}

	session := models.CollageSession{
		SlackUserID:    req.SlackUserID,
		SlackChannelID: req.SlackChannelID,
		SlackThreadTS:  req.SlackThreadTS,
		Status:         models.SessionAwaitingImage1,
	}
	if err := db.Create(&session).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create session"})
	}
	fmt.Printf("[Session %v] Created for slack user %s\n", session.ID, session.SlackUserID)
	return c.JSON(http.StatusCreated, controller.sessionOut(c.Request().Context(), &session))
}

func (controller *CollageController) GetActiveSession(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	slackUserID := c.Param("slackUserId")

	var session models.CollageSession
	result := db.Where("slack_user_id = ? AND status IN ?", slackUserID, models.ActiveSessionStatuses).
		Order("created_at desc").Take(&session)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "No active session for user"})
	}
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch session"})
	}
	return c.JSON(http.StatusOK, controller.sessionOut(c.Request().Context(), &session))
}

func (controller *CollageController) GetSessionByID(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	var sessionID uint
	if err := echo.PathParamsBinder(c).Uint("sessionId", &sessionID).BindError(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid session id"})
	}

	var session models.CollageSession
	result := db.Take(&session, sessionID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Session not found"})
	}
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch session"})
	}
	return c.JSON(http.StatusOK, controller.sessionOut(c.Request().Context(), &session))
}

func (controller *CollageController) UploadImage(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	slackUserID := c.FormValue("slack_user_id")
	if slackUserID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "slack_user_id is required"})
	}
	imageNum, err := strconv.Atoi(c.FormValue("image_num"))
	if err != nil || (imageNum != 1 && imageNum != 2) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "image_num must be 1 or 2"})
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "file is required"})
	}

	var session models.CollageSession
	result := db.Where("slack_user_id = ? AND status IN ?", slackUserID, models.ActiveSessionStatuses).
		Order("created_at desc").Take(&session)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "No active session for user, create one first"})
	}
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch session"})
	}
	if session.Status == models.SessionProcessing {
		return c.JSON(http.StatusConflict, map[string]string{"error": "Session is already processing"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to read upload"})
	}
	defer src.Close()

	relPath, err := controller.Storage.SaveUpload(session.ID, imageNum, fileHeader.Filename, src)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to store upload"})
	}

	// uploads may arrive in any order; the status only tracks image 1
	if imageNum == 1 {
		session.Image1Path = &relPath
		if session.Status == models.SessionAwaitingImage1 {
			session.Status = models.SessionAwaitingImage2
		}
	} else {
		session.Image2Path = &relPath
	}
	if err := db.Save(&session).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update session"})
	}
	fmt.Printf("[Session %v] Image %d uploaded to %s\n", session.ID, imageNum, relPath)

	return c.JSON(http.StatusOK, models.UploadOut{
		SessionID: session.ID,
		ImageNum:  imageNum,
		Status:    session.Status,
		Path:      relPath,
	})
}

func (controller *CollageController) ProcessSession(c echo.Context) error {
	var req models.ProcessIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	enqueuer, ok := c.Get("__enqueuer").(TaskEnqueuer)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Service is not available, please try again a bit later"})
	}

	var session models.CollageSession
	result := db.Take(&session, req.SessionID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Session not found"})
	}
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch session"})
	}
	if session.IsTerminal() {
		return c.JSON(http.StatusConflict, map[string]string{"error": "Session is already finished"})
	}
	if session.Status == models.SessionProcessing {
		return c.JSON(http.StatusConflict, map[string]string{"error": "Session is already processing"})
	}
	if !session.HasBothImages() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Both images must be uploaded before processing"})
	}
	if req.BackgroundName != nil {
		if _, err := controller.Storage.BackgroundPath(*req.BackgroundName); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Unknown background %q", *req.BackgroundName)})
		}
		session.BackgroundName = req.BackgroundName
	}

	session.Status = models.SessionProcessing
	session.ErrorMessage = nil
	if err := db.Save(&session).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update session"})
	}

	task, err := tasks.NewCollageProcessingTask(session.ID)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not start processing, please try again"})
	}
	info, err := enqueuer.Enqueue(task, asynq.MaxRetry(3), asynq.Queue("collage"))
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not start processing, please try again"})
	}
	fmt.Println("[Queue] Process collage task submitted, Session ID: ", session.ID, " Task ID: ", info.ID)

	return c.JSON(http.StatusAccepted, models.ProcessOut{
		SessionID: session.ID,
		Status:    session.Status,
	})
}

func (controller *CollageController) DeleteSession(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	var sessionID uint
	if err := echo.PathParamsBinder(c).Uint("sessionId", &sessionID).BindError(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid session id"})
	}

	var session models.CollageSession
	result := db.Take(&session, sessionID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Session not found"})
	}
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch session"})
	}
	if err := db.Delete(&session).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete session"})
	}
	fmt.Printf("[Session %v] Deleted\n", session.ID)
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

func (controller *CollageController) ListBackgrounds(c echo.Context) error {
	response := models.BackgroundsOut{
		Backgrounds: []models.BackgroundOut{},
		Palette:     []models.PaletteColorOut{},
	}
	for _, name := range controller.Storage.ListBackgrounds() {
		response.Backgrounds = append(response.Backgrounds, models.BackgroundOut{
			Name: name,
			File: services.BackgroundTemplates[name],
		})
	}
	for _, entry := range collage.OverlayPalette {
		response.Palette = append(response.Palette, models.PaletteColorOut{
			Name: entry.Name,
			R:    entry.RGB.R,
			G:    entry.RGB.G,
			B:    entry.RGB.B,
		})
	}
	return c.JSON(http.StatusOK, response)
}

// sessionOut maps a session to its API shape, resolving the output URL for
// completed sessions via the presigned URL cache with a direct R2 fallback.
func (controller *CollageController) sessionOut(ctx context.Context, session *models.CollageSession) models.SessionOut {
	out := models.SessionOut{
		ID:             session.ID,
		SlackUserID:    session.SlackUserID,
		SlackChannelID: session.SlackChannelID,
		SlackThreadTS:  session.SlackThreadTS,
		Status:         session.Status,
		Image1Uploaded: session.Image1Path != nil,
		Image2Uploaded: session.Image2Path != nil,
		BackgroundName: session.BackgroundName,
		OverlayColor:   session.OverlayColor,
		ErrorMessage:   session.ErrorMessage,
		CreatedAt:      session.CreatedAt.Unix(),
	}
	if session.OutputKey == nil || *session.OutputKey == "" {
		return out
	}

	url, err := controller.URLCache.GetReadURL(ctx, *session.OutputKey)
	if err != nil {
		log.Printf("CACHE WARNING: Cache system failed for key '%s': %v. Triggering manual R2 fallback.", *session.OutputKey, err)
		sentry.CaptureException(err)
		bucketName := services.GetEnv("R2_BUCKET_NAME", "")
		url, err = controller.AWSService.GetPresignedR2FileReadURL(ctx, bucketName, *session.OutputKey)
		if err != nil {
			log.Printf("CRITICAL: Manual R2 fallback also failed for key '%s': %v", *session.OutputKey, err)
			sentry.CaptureException(err)
			// last resort: locally served copy
			url = controller.Storage.PublicURL(fmt.Sprintf("outputs/%d.png", session.ID))
		}
	}
	if url != "" {
		out.OutputURL = &url
	}
	return out
}
