package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"collageapi/collage"
	"collageapi/models"
	"collageapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

const TypeProcessCollage = "collage:process"

type CollageProcessingPayload struct {
	SessionID uint `json:"session_id"`
}

// Client initializes an asynq client for enqueuing tasks
func NewClient() (*asynq.Client, error) {
	return asynq.NewClient(asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")}), nil
}

func NewCollageProcessingTask(sessionID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(CollageProcessingPayload{SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeProcessCollage, payload), nil
}

// HandleProcessCollageTask runs the full pipeline for one session: background
// removal of image 1, overlay color selection, compositing, store and upload.
func HandleProcessCollageTask(
	ctx context.Context, t *asynq.Task, db *gorm.DB,
	removal services.RemovalServiceProvider,
	awsService services.AWSServiceProvider,
	storage services.StorageServiceProvider,
) error {
	var payload CollageProcessingPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Session %v] Start Processing\n", payload.SessionID)

	var session models.CollageSession
	res := db.First(&session, payload.SessionID)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			// cancelled while queued, nothing left to do
			fmt.Printf("[Session %v] Session no longer exists, skipping\n", payload.SessionID)
			return nil
		}
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on retrieving session for processing %v", payload.SessionID))
		return res.Error
	}
	if session.IsTerminal() {
		// completed or failed stays that way even if the queue redelivers
		fmt.Printf("[Session %v] Already %s, skipping\n", session.ID, session.Status)
		return nil
	}
	if !session.HasBothImages() {
		saveSessionProcessingFail(db, session, "Both images must be uploaded before processing", false)
		return nil
	}

	img1Bytes, err := storage.ReadFile(*session.Image1Path)
	if err != nil {
		fmt.Printf("[Session %v] Error reading image 1 %s: %v\n", session.ID, *session.Image1Path, err)
		sentry.CaptureException(fmt.Errorf("[Session %v] Error reading image 1 %s: %v", session.ID, *session.Image1Path, err))
		saveSessionProcessingFail(db, session, "Could not read uploaded product image, please upload again", false)
		return nil
	}
	img2Bytes, err := storage.ReadFile(*session.Image2Path)
	if err != nil {
		fmt.Printf("[Session %v] Error reading image 2 %s: %v\n", session.ID, *session.Image2Path, err)
		sentry.CaptureException(fmt.Errorf("[Session %v] Error reading image 2 %s: %v", session.ID, *session.Image2Path, err))
		saveSessionProcessingFail(db, session, "Could not read uploaded variants image, please upload again", false)
		return nil
	}

	fmt.Printf("[Session %v] Removing background, image 1 size: %d bytes\n", session.ID, len(img1Bytes))
	cutoutBytes, err := removal.RemoveBackground(ctx, img1Bytes)
	if err != nil {
		fmt.Printf("[Session %v] Error on background removal: %v\n", session.ID, err)
		sentry.CaptureException(fmt.Errorf("[Session %v] Error on background removal: %v", session.ID, err))
		saveSessionProcessingFail(db, session, "Background removal failed, please try again", true)
		return err
	}

	cutout, err := collage.DecodeImage(cutoutBytes)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Session %v] Invalid background removal output: %v", session.ID, err))
		saveSessionProcessingFail(db, session, "Background removal returned an unreadable image, please try again", true)
		return err
	}
	img2, err := collage.DecodeImage(img2Bytes)
	if err != nil {
		saveSessionProcessingFail(db, session, "The variants image could not be read, please upload a valid JPEG, PNG or WebP", false)
		return nil
	}

	dominant, err := collage.DominantColorRGBA(cutout)
	if err != nil {
		if errors.Is(err, collage.ErrEmptyForeground) {
			saveSessionProcessingFail(db, session, "No product found after background removal, please upload a clearer product photo", false)
			return nil
		}
		sentry.CaptureException(fmt.Errorf("[Session %v] Error on dominant color: %v", session.ID, err))
		saveSessionProcessingFail(db, session, "Failed to analyze product colors, please try again", true)
		return err
	}
	overlay := collage.SelectOverlayColor(dominant)
	fmt.Printf("[Session %v] Dominant %v, overlay %s\n", session.ID, dominant, overlay.Name)

	backgroundName := storage.PickBackground(session.ID)
	if session.BackgroundName != nil && *session.BackgroundName != "" {
		backgroundName = *session.BackgroundName
	}
	templatePath, err := storage.BackgroundPath(backgroundName)
	if err != nil {
		fmt.Printf("[Session %v] Background template error: %v\n", session.ID, err)
		sentry.CaptureException(fmt.Errorf("[Session %v] Background template error: %v", session.ID, err))
		saveSessionProcessingFail(db, session, fmt.Sprintf("Background template %q is not available", backgroundName), false)
		return nil
	}
	templateBytes, err := os.ReadFile(templatePath)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Session %v] Error reading template %s: %v", session.ID, templatePath, err))
		saveSessionProcessingFail(db, session, "Background template could not be read", true)
		return err
	}
	template, err := collage.DecodeImage(templateBytes)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Session %v] Invalid template %s: %v", session.ID, templatePath, err))
		saveSessionProcessingFail(db, session, "Background template is corrupted", false)
		return nil
	}

	result, err := collage.CreateCollage(cutout, img2, template, overlay, canvasConfigFromEnv())
	if err != nil {
		fmt.Printf("[Session %v] Error on compositing: %v\n", session.ID, err)
		sentry.CaptureException(fmt.Errorf("[Session %v] Error on compositing: %v", session.ID, err))
		saveSessionProcessingFail(db, session, "Failed to compose the collage, please try again", true)
		return err
	}
	pngBytes, err := collage.EncodePNG(result)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Session %v] Error encoding output: %v", session.ID, err))
		saveSessionProcessingFail(db, session, "Failed to save the collage, please try again", true)
		return err
	}

	outputPath, err := storage.SaveOutput(session.ID, pngBytes)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Session %v] Error saving output: %v", session.ID, err))
		saveSessionProcessingFail(db, session, "Failed to save the collage, please try again", true)
		return err
	}
	fmt.Printf("[Session %v] Collage saved to %s, %d bytes\n", session.ID, outputPath, len(pngBytes))

	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	outputKey := fmt.Sprintf("collages/%d.png", session.ID)
	uploadUrl, presignErr := awsService.PresignLink(context.Background(), bucketName, outputKey)
	if presignErr != nil {
		fmt.Printf("[Session %v] Unable to create presign link for %s: %v\n", session.ID, outputKey, presignErr)
		sentry.CaptureException(presignErr)
		saveSessionProcessingFail(db, session, "Failed to publish the collage, please try again", true)
		return presignErr
	}
	respBody, statusCode, err := awsService.UploadToPresignedURL(context.Background(), bucketName, uploadUrl, pngBytes)
	fmt.Printf("[Session %v] R2 upload size %v, response body: %s, status code: %d\n", session.ID, len(pngBytes), respBody, statusCode)
	if err != nil || statusCode != 200 {
		fmt.Printf("[Session %v] Error uploading collage: %v\n", session.ID, err)
		sentry.CaptureException(fmt.Errorf("[Session %v] Error uploading collage: %v", session.ID, err))
		saveSessionProcessingFail(db, session, "Failed to publish the collage, please try again", true)
		return fmt.Errorf("[Session %v] upload failed with status %d: %v", session.ID, statusCode, err)
	}

	session.Status = models.SessionCompleted
	session.OutputKey = &outputKey
	session.BackgroundName = &backgroundName
	session.OverlayColor = services.StrPointer(overlay.Name)
	session.ErrorMessage = nil
	if err := db.Save(&session).Error; err != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on saving session %v", session.ID))
		return err
	}
	fmt.Printf("[Session %v] Processing finished succesfully..\n", session.ID)
	return nil
}

func canvasConfigFromEnv() collage.CanvasConfig {
	cfg := collage.DefaultCanvasConfig()
	cfg.Width = services.GetEnvInt("CANVAS_WIDTH", cfg.Width)
	cfg.Height = services.GetEnvInt("CANVAS_HEIGHT", cfg.Height)
	cfg.Border = services.GetEnvInt("CANVAS_BORDER", cfg.Border)
	cfg.Gap = services.GetEnvInt("CANVAS_GAP", cfg.Gap)
	return cfg
}

func saveSessionProcessingFail(db *gorm.DB, session models.CollageSession, msg string, shouldRetry bool) error {
	session.ProcessRetryTimes = session.ProcessRetryTimes + 1
	session.ErrorMessage = &msg
	if !shouldRetry || session.ProcessRetryTimes >= 3 {
		session.Status = models.SessionFailed
	}
	tx := db.Save(&session)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Fail Session %v] Error on saving session for failed status", session.ID))
		return tx.Error
	}
	return nil
}
