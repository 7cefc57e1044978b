package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"collageapi/models"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

func NewJSONRequest(method string, target string, param interface{}) *http.Request {

	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

// NewUploadRequest builds the multipart form the upload endpoint expects.
func NewUploadRequest(target string, fields map[string]string, fileName string, fileContent []byte) *http.Request {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		writer.WriteField(key, value)
	}
	part, _ := writer.CreateFormFile("file", fileName)
	part.Write(fileContent)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func NewRefString(data string) *string {
	return &data
}

// FakeSession inserts a session in the given status with both image paths
// populated when the status implies they were uploaded.
func FakeSession(db *gorm.DB, slackUserID string, status string) *models.CollageSession {
	session := &models.CollageSession{
		SlackUserID:    slackUserID,
		SlackChannelID: "C123456",
		Status:         status,
	}
	if status != models.SessionAwaitingImage1 {
		session.Image1Path = NewRefString(fmt.Sprintf("inputs/%s_1.png", slackUserID))
	}
	if status == models.SessionProcessing || status == models.SessionCompleted {
		session.Image2Path = NewRefString(fmt.Sprintf("inputs/%s_2.png", slackUserID))
	}
	db.Create(session)
	return session
}

// PNGBytes renders a uniform image as PNG for upload fixtures.
func PNGBytes(w, h int, c color.NRGBA) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

// CutoutPNGBytes renders a cutout-shaped fixture: an opaque block of the
// given color surrounded by a fully transparent margin.
func CutoutPNGBytes(w, h int, c color.NRGBA) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := h / 4; y < 3*h/4; y++ {
		for x := w / 4; x < 3*w/4; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

type AWSProviderMock struct {
	MockUrl string

	mu       sync.Mutex
	Uploaded map[string][]byte
}

func (awsService *AWSProviderMock) InitPresignClient(ctx context.Context) error {
	return nil
}

func (awsService *AWSProviderMock) PresignLink(ctx context.Context, bucketName string, fileName string) (string, error) {

	return fmt.Sprintf("https://fakebucketurl.com/%s", fileName), nil
}

func (awsService *AWSProviderMock) GetPresignedR2FileReadURL(ctx context.Context, bucketName, fileKey string) (string, error) {
	return awsService.MockUrl, nil
}

func (awsService *AWSProviderMock) UploadToPresignedURL(ctx context.Context, bucketName, url string, fileContent []byte) (string, int, error) {
	awsService.mu.Lock()
	defer awsService.mu.Unlock()
	if awsService.Uploaded == nil {
		awsService.Uploaded = map[string][]byte{}
	}
	awsService.Uploaded[url] = fileContent
	return url, 200, nil
}

// RemovalServiceMock fakes the background removal API by returning a fixed
// cutout regardless of input.
type RemovalServiceMock struct {
	Cutout []byte
	Err    error
	Calls  int
}

func (m *RemovalServiceMock) RemoveBackground(ctx context.Context, imageBytes []byte) ([]byte, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Cutout != nil {
		return m.Cutout, nil
	}
	return CutoutPNGBytes(200, 200, color.NRGBA{220, 50, 50, 255}), nil
}

type URLCacheMock struct {
	MockUrl string
	Err     error
}

func (m *URLCacheMock) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.MockUrl, nil
}

// EnqueuerMock records enqueued tasks instead of talking to Redis.
type EnqueuerMock struct {
	mu    sync.Mutex
	Tasks []*asynq.Task
	Err   error
}

func (m *EnqueuerMock) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.Tasks = append(m.Tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("task-%d", len(m.Tasks)), Type: task.Type()}, nil
}

func (m *EnqueuerMock) Enqueued() []*asynq.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*asynq.Task(nil), m.Tasks...)
}

func ReadBody(r io.Reader) string {
	b, _ := io.ReadAll(r)
	return string(b)
}
