package core

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"InboxGate/entity"
)

// AuthenticateByToken accepts the configured API key or any key issued through GenerateApiKey.
func (c *Core) AuthenticateByToken(token string) (*entity.UserAuth, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}
	if c.authKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(c.authKey)) == 1 {
		return &entity.UserAuth{Username: "internal", Token: token}, nil
	}

	c.keysMu.RLock()
	username, ok := c.keys[token]
	c.keysMu.RUnlock()
	if ok {
		return &entity.UserAuth{Username: username, Token: token}, nil
	}

	if c.repo == nil {
		return nil, fmt.Errorf("invalid token")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	username, err := c.repo.CheckApiKey(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	c.keysMu.Lock()
	c.keys[token] = username
	c.keysMu.Unlock()
	return &entity.UserAuth{Username: username, Token: token}, nil
}

func (c *Core) GenerateApiKey(ctx context.Context, username string) (string, error) {
	if c.repo == nil {
		return "", fmt.Errorf("repository is not set")
	}

	apiKey, err := c.repo.GenerateApiKey(ctx, username)
	if err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}

	c.keysMu.Lock()
	c.keys[apiKey] = username
	c.keysMu.Unlock()
	return apiKey, nil
}

// VerifySubscription answers the platform's GET handshake.
func (c *Core) VerifySubscription(mode, token string) bool {
	if mode != "subscribe" || c.verifyToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(c.verifyToken)) == 1
}

// VerifySignature checks the delivery signature. Without a configured app secret
// verification is disabled and every body is accepted.
func (c *Core) VerifySignature(body []byte, header string) bool {
	if c.verifier == nil || !c.verifier.Enabled() {
		return true
	}
	return c.verifier.Verify(body, header)
}
