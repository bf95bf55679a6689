package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/onegreenvn/campaign-monitor/internal/models"
)

// Client talks to the messaging platform REST API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a platform client. timeout bounds every request; the
// control command is additionally bounded by the caller's context.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Control sends a control command. A non-2xx answer that still carries a
// JSON body is decoded, so the platform message reaches the dashboard.
func (c *Client) Control(ctx context.Context, req models.ControlRequest) (models.ControlResponse, error) {
	var resp models.ControlResponse
	endpoint := fmt.Sprintf("%s/campaigns/%s/control", c.baseURL, url.PathEscape(req.CampaignID))

	status, body, err := c.do(ctx, http.MethodPost, endpoint, req)
	if err != nil {
		return resp, err
	}
	if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil {
		if status >= 300 {
			return resp, fmt.Errorf("platform returned status %d", status)
		}
		return resp, fmt.Errorf("failed to decode control response: %w", jsonErr)
	}
	if status >= 300 {
		resp.Status = false
	}
	return resp, nil
}

// ListInstances returns every instance visible to the account
func (c *Client) ListInstances(ctx context.Context) ([]models.Instance, error) {
	status, body, err := c.do(ctx, http.MethodGet, c.baseURL+"/instances", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("platform returned status %d", status)
	}

	var instances []models.Instance
	if err := decodeEnvelope(body, &instances); err != nil {
		return nil, fmt.Errorf("failed to decode instances: %w", err)
	}
	return instances, nil
}

// GetCampaign fetches the authoritative campaign record
func (c *Client) GetCampaign(ctx context.Context, campaignID string) (models.Campaign, error) {
	var campaign models.Campaign
	endpoint := fmt.Sprintf("%s/campaigns/%s", c.baseURL, url.PathEscape(campaignID))

	status, body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return campaign, err
	}
	if status == http.StatusNotFound {
		return campaign, fmt.Errorf("campaign %s not found", campaignID)
	}
	if status != http.StatusOK {
		return campaign, fmt.Errorf("platform returned status %d", status)
	}
	if err := decodeEnvelope(body, &campaign); err != nil {
		return campaign, fmt.Errorf("failed to decode campaign: %w", err)
	}
	return campaign, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload interface{}) (int, []byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Campaign-Monitor/1.0")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to make request to platform: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// decodeEnvelope accepts both a bare payload and a {"data": payload} wrapper
func decodeEnvelope(body []byte, out interface{}) error {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && len(wrapper.Data) > 0 && wrapper.Data[0] != 'n' {
		return json.Unmarshal(wrapper.Data, out)
	}
	return json.Unmarshal(body, out)
}
