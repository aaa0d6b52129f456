package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"hypersync/src/helpers"
	"hypersync/src/logger"
	"hypersync/src/models"
)

type AsyncNetworkManager struct {
	Config *models.MConfig
	Client *http.Client
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, log *logger.Logger) *AsyncNetworkManager {
	return &AsyncNetworkManager{
		Config: cfg,
		Logger: log,
		Client: &http.Client{
			Timeout: time.Duration(cfg.Exchange.RequestTimeout) * time.Second,
		},
	}
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) userAgent() string {
	if nm.Config.Exchange.UserAgent != "" {
		return nm.Config.Exchange.UserAgent
	}
	return "hypersync/1.0"
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries.
func (nm *AsyncNetworkManager) Get(urlStr string, params map[string]string) ([]byte, error) {
	reqUrl, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqUrl.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	reqUrl.RawQuery = q.Encode()

	finalUrl := reqUrl.String()

	maxRetries := nm.Config.Exchange.MaxRetries
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			time.Sleep(time.Duration(i*i) * time.Second) // Exponential backoff
		}

		req, err := http.NewRequest("GET", finalUrl, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", nm.userAgent())

		resp, err := nm.Client.Do(req)
		if err != nil {
			lastErr = err
			nm.Logger.Info("Request failed (attempt %d/%d): %v", i+1, maxRetries+1, err)
			continue
		}

		body, readErr := readAndClose(resp)
		if readErr != nil {
			lastErr = readErr
			nm.Logger.Info("Bad response (attempt %d/%d): %v", i+1, maxRetries+1, readErr)
			continue
		}

		return body, nil
	}

	return nil, &helpers.NetworkError{SyncError: helpers.SyncError{
		Message: "max retries exceeded",
		Cause:   lastErr,
	}}
}

// -----------------------------------------------------------------------------

// PostJSON performs a JSON POST under the context's deadline. Retries stop as
// soon as the context is done; a deadline expiry surfaces as ErrTimedOut.
func (nm *AsyncNetworkManager) PostJSON(ctx context.Context, urlStr string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	maxRetries := nm.Config.Exchange.MaxRetries
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, helpers.WrapTimeout("post", ctx.Err())
			case <-time.After(time.Duration(i*i) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", urlStr, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", nm.userAgent())

		resp, err := nm.Client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, helpers.WrapTimeout("post", ctx.Err())
			}
			lastErr = err
			nm.Logger.Info("Request failed (attempt %d/%d): %v", i+1, maxRetries+1, err)
			continue
		}

		respBody, readErr := readAndClose(resp)
		if readErr != nil {
			lastErr = readErr
			nm.Logger.Info("Bad response (attempt %d/%d): %v", i+1, maxRetries+1, readErr)
			continue
		}

		return respBody, nil
	}

	return nil, &helpers.NetworkError{SyncError: helpers.SyncError{
		Message: "max retries exceeded",
		Cause:   lastErr,
	}}
}

// -----------------------------------------------------------------------------

func readAndClose(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("bad status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return body, nil
}
