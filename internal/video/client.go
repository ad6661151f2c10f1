package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultCredentialTTL = time.Hour

// Config holds the signing material for video credentials.
type Config struct {
	APIKey    string
	APISecret string
	// CredentialTTL bounds how long an issued credential stays valid. Zero
	// means one hour.
	CredentialTTL time.Duration
}

// Client issues signed credentials that let a participant join a town's video
// channel. The controller treats the credential as opaque; the video provider
// maps it back to the (town, participant) pair encoded in its grants.
type Client struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
	logger    *slog.Logger
}

func NewClient(cfg *Config, logger *slog.Logger) (*Client, error) {
	if cfg.APISecret == "" {
		return nil, errors.New("video api secret is required")
	}

	ttl := cfg.CredentialTTL
	if ttl <= 0 {
		ttl = defaultCredentialTTL
	}

	return &Client{
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		ttl:       ttl,
		logger:    logger,
	}, nil
}

// IssueCredential mints a credential scoped to one participant in one town's
// video channel.
func (c *Client) IssueCredential(ctx context.Context, townID, participantID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": c.apiKey,
		"sub": participantID,
		"iat": now.Unix(),
		"exp": now.Add(c.ttl).Unix(),
		"grants": map[string]any{
			"identity": participantID,
			"video": map[string]string{
				"room": townID,
			},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(c.apiSecret))
	if err != nil {
		return "", fmt.Errorf("sign video credential: %w", err)
	}

	c.logger.DebugContext(ctx, "issued video credential",
		"town_id", townID, "participant_id", participantID)

	return signed, nil
}
