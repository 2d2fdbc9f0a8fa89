// Package avatar talks to the HeyGen streaming avatar API. The server
// only brokers tokens and avatar metadata; the frontend drives the actual
// video session with the token it receives.
package avatar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://api.heygen.com/v1"

// PlaceholderToken is handed out when no API key is configured so local
// development works without HeyGen credentials.
const PlaceholderToken = "placeholder_token_configure_heygen_api_key"

// Avatar describes one available streaming avatar.
type Avatar struct {
	AvatarID        string `json:"avatar_id"`
	AvatarName      string `json:"avatar_name"`
	PreviewImageURL string `json:"preview_image_url,omitempty"`
}

type tokenResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

type avatarsResponse struct {
	Data struct {
		Avatars []Avatar `json:"avatars"`
	} `json:"data"`
}

// Client is a thin HeyGen API client.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string

	log zerolog.Logger
}

// NewClient builds a HeyGen client. An empty apiKey switches the client
// into development mode: placeholder token, built-in avatar list.
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		BaseURL:    defaultBaseURL,
		APIKey:     apiKey,
		log:        log,
	}
}

// CreateStreamingToken requests a session token for the frontend SDK.
func (c *Client) CreateStreamingToken(ctx context.Context) (string, error) {
	if c.APIKey == "" {
		c.log.Warn().Msg("heygen api key not configured, returning placeholder token")
		return PlaceholderToken, nil
	}

	var tr tokenResponse
	if err := c.do(ctx, http.MethodPost, "/streaming.create_token", &tr); err != nil {
		c.log.Error().Err(err).Msg("failed to create heygen streaming token")
		return "", fmt.Errorf("avatar: create streaming token: %w", err)
	}
	return tr.Data.Token, nil
}

// AvailableAvatars lists avatars from the API, falling back to the
// built-in set when unconfigured or on API failure.
func (c *Client) AvailableAvatars(ctx context.Context) []Avatar {
	if c.APIKey == "" {
		return defaultAvatars()
	}

	var ar avatarsResponse
	if err := c.do(ctx, http.MethodGet, "/avatars", &ar); err != nil {
		c.log.Error().Err(err).Msg("failed to fetch avatars")
		return defaultAvatars()
	}
	return ar.Data.Avatars
}

// ForPersonality maps an interviewer personality to its avatar.
func ForPersonality(personalityID string) string {
	switch personalityID {
	case "strict":
		return "strict_interviewer"
	case "friendly":
		return "friendly_interviewer"
	}
	return "default_interviewer"
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Api-Key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("heygen error: status=%d body=%s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func defaultAvatars() []Avatar {
	return []Avatar{
		{AvatarID: "default_interviewer", AvatarName: "Professional Interviewer"},
		{AvatarID: "strict_interviewer", AvatarName: "Technical Lead"},
		{AvatarID: "friendly_interviewer", AvatarName: "HR Manager"},
	}
}
