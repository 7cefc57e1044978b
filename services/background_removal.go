package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemovalServiceProvider cuts the background out of a product photo. The
// returned bytes are a PNG with the same pixel dimensions as the input and
// alpha 0 where the background was.
type RemovalServiceProvider interface {
	RemoveBackground(ctx context.Context, imageBytes []byte) ([]byte, error)
}

const (
	replicatePollInterval = 2 * time.Second
	replicateDeadline     = 120 * time.Second
)

// ReplicateService drives the Replicate predictions API: create a prediction
// with the image inlined as a data URI, poll until it settles, download the
// output image.
type ReplicateService struct {
	APIToken string
	Model    string
	BaseURL  string
	Client   *http.Client
}

func NewReplicateService() *ReplicateService {
	return &ReplicateService{
		APIToken: GetEnv("REPLICATE_API_TOKEN", ""),
		Model:    GetEnv("REPLICATE_REMBG_VERSION", "fb8af171cfa1616ddcf1242c093f9c46bcada5ad4cf6f2fbe8b81b330ec5c003"),
		BaseURL:  GetEnv("REPLICATE_BASE_URL", "https://api.replicate.com"),
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type replicatePrediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  *string         `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

func (rs *ReplicateService) RemoveBackground(ctx context.Context, imageBytes []byte) ([]byte, error) {
	mimeType := http.DetectContentType(imageBytes)
	dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageBytes))

	payload, err := json.Marshal(map[string]any{
		"version": rs.Model,
		"input":   map[string]any{"image": dataURI},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal prediction request: %w", err)
	}

	pred, err := rs.doJSON(ctx, "POST", rs.BaseURL+"/v1/predictions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create prediction: %w", err)
	}

	deadline := time.Now().Add(replicateDeadline)
	for pred.Status != "succeeded" {
		switch pred.Status {
		case "failed", "canceled":
			msg := "no detail"
			if pred.Error != nil {
				msg = *pred.Error
			}
			return nil, fmt.Errorf("prediction %s %s: %s", pred.ID, pred.Status, msg)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("prediction %s timed out after %v", pred.ID, replicateDeadline)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(replicatePollInterval):
		}

		getURL := pred.URLs.Get
		if getURL == "" {
			getURL = fmt.Sprintf("%s/v1/predictions/%s", rs.BaseURL, pred.ID)
		}
		pred, err = rs.doJSON(ctx, "GET", getURL, nil)
		if err != nil {
			return nil, fmt.Errorf("poll prediction: %w", err)
		}
	}

	outputURL, err := decodeOutputURL(pred.Output)
	if err != nil {
		return nil, fmt.Errorf("prediction %s: %w", pred.ID, err)
	}
	result, err := ReadFileFromUrl(outputURL)
	if err != nil {
		return nil, fmt.Errorf("download prediction output: %w", err)
	}
	return result, nil
}

func (rs *ReplicateService) doJSON(ctx context.Context, method, url string, body io.Reader) (*replicatePrediction, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+rs.APIToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := rs.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("replicate status %d: %s", resp.StatusCode, string(respBody))
	}

	var pred replicatePrediction
	if err := json.Unmarshal(respBody, &pred); err != nil {
		return nil, fmt.Errorf("decode prediction response: %w", err)
	}
	return &pred, nil
}

// Output is either a single URL string or a list of URLs depending on the
// model version; take the first either way.
func decodeOutputURL(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("prediction has no output")
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return many[0], nil
	}
	return "", fmt.Errorf("unrecognized prediction output: %s", string(raw))
}
