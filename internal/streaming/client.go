package streaming

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/townsquare/server/internal/town"
)

const defaultAPIURL = "https://api.spotify.com"

// Config describes the streaming-service endpoint.
type Config struct {
	// APIURL overrides the service base URL, mainly for tests. Empty means the
	// production endpoint.
	APIURL string
	// Timeout bounds each outgoing call. Zero means 10 seconds.
	Timeout time.Duration
}

// Client performs authenticated calls to the music-streaming service on
// behalf of town participants. It implements town.MediaProxy. One client is
// constructed at process start and shared by every town controller; the
// per-participant credentials live in its token store.
type Client struct {
	apiURL     string
	httpClient *http.Client
	tokens     *TokenStore
	logger     *slog.Logger
}

func NewClient(cfg *Config, tokens *TokenStore, logger *slog.Logger) *Client {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		logger:     logger,
	}
}

// RegisterTown sets up credential storage for a town. Called when the town is
// created.
func (c *Client) RegisterTown(townID string) {
	c.tokens.Register(townID)
}

// UnregisterTown discards a town's credentials. Called when the town is
// destroyed.
func (c *Client) UnregisterTown(townID string) {
	c.tokens.Unregister(townID)
}

// AddParticipant stores a participant's raw credential payload. Called when a
// participant joins with a streaming token.
func (c *Client) AddParticipant(townID, participantID, raw string) error {
	return c.tokens.Put(townID, participantID, raw)
}

// RemoveParticipant evicts a participant's credential. Called when the
// participant leaves its town.
func (c *Client) RemoveParticipant(townID, participantID string) {
	c.tokens.Remove(townID, participantID)
}

type trackResponse struct {
	ProgressMs int `json:"progress_ms"`
	Item       *struct {
		Name  string `json:"name"`
		URI   string `json:"uri"`
		Album struct {
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"album"`
	} `json:"item"`
}

// CurrentTrack fetches the participant's currently playing track. A missing
// credential, an empty player, or a soft failure all yield nil without error.
func (c *Client) CurrentTrack(ctx context.Context, townID, participantID string) (*town.Song, error) {
	body, err := c.get(ctx, townID, participantID, "/v1/me/player/currently-playing")
	if err != nil || body == nil {
		return nil, err
	}

	var track trackResponse
	if err := json.Unmarshal(body, &track); err != nil {
		return nil, fmt.Errorf("decode current track: %w", err)
	}
	if track.Item == nil {
		return nil, nil
	}

	title := track.Item.Name
	if artists := track.Item.Album.Artists; len(artists) > 0 {
		title = fmt.Sprintf("%s by %s", track.Item.Name, artists[0].Name)
	}

	return &town.Song{
		DisplayTitle: title,
		URIs:         []string{track.Item.URI},
		Progress:     track.ProgressMs,
	}, nil
}

// PlaybackState fetches the participant's playing/paused state. A missing
// credential or an empty player yields nil without error.
func (c *Client) PlaybackState(ctx context.Context, townID, participantID string) (*town.PlaybackState, error) {
	body, err := c.get(ctx, townID, participantID, "/v1/me/player")
	if err != nil || body == nil {
		return nil, err
	}

	var state town.PlaybackState
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, fmt.Errorf("decode playback state: %w", err)
	}
	return &state, nil
}

// StartPlayback asks the service to play the given song on the participant's
// active device. Reports whether the service accepted the request; a missing
// credential reports false without error.
func (c *Client) StartPlayback(ctx context.Context, townID, participantID string, song town.Song) (bool, error) {
	cred, ok := c.tokens.Get(townID, participantID)
	if !ok {
		return false, nil
	}

	payload, err := json.Marshal(map[string]any{
		"uris":        song.URIs,
		"position_ms": song.Progress,
	})
	if err != nil {
		return false, fmt.Errorf("encode playback request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.apiURL+"/v1/me/player/play", bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	c.setHeaders(req, cred)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("start playback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return false, fmt.Errorf("start playback: unexpected status %d", resp.StatusCode)
	}
	return true, nil
}

// get performs an authenticated GET against the service. It returns nil body
// without error when there is no credential or the service answered 204.
func (c *Client) get(ctx context.Context, townID, participantID, path string) ([]byte, error) {
	cred, ok := c.tokens.Get(townID, participantID)
	if !ok {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, cred)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("streaming call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("streaming call %s: unexpected status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("streaming call %s: %w", path, err)
	}
	return body, nil
}

func (c *Client) setHeaders(req *http.Request, cred Credential) {
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json")
}
