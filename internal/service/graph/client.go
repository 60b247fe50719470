package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"

	"InboxGate/entity"
	"InboxGate/internal/config"
	"InboxGate/internal/lib/sl"
)

const (
	defaultGraphURL          = "https://graph.facebook.com"
	defaultInstagramGraphURL = "https://graph.instagram.com"
	defaultAPIVersion        = "v21.0"
	defaultTokenLifetime     = 60 * 24 * time.Hour
)

// Client talks to the Facebook and Instagram Graph APIs.
type Client struct {
	http       *resty.Client
	graphURL   string
	igGraphURL string
	version    string
	appID      string
	appSecret  string
	tokenURL   string
	log        *slog.Logger
}

func NewClient(conf *config.Config, log *slog.Logger) *Client {
	graphURL := strings.TrimRight(conf.Meta.GraphURL, "/")
	if graphURL == "" {
		graphURL = defaultGraphURL
	}
	igGraphURL := strings.TrimRight(conf.Meta.InstagramGraphURL, "/")
	if igGraphURL == "" {
		igGraphURL = defaultInstagramGraphURL
	}
	version := conf.Meta.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}

	return &Client{
		http:       resty.New().SetTimeout(conf.Meta.RequestTimeout).SetHeader("Accept", "application/json"),
		graphURL:   graphURL,
		igGraphURL: igGraphURL,
		version:    version,
		appID:      conf.Meta.AppID,
		appSecret:  conf.Meta.AppSecret,
		tokenURL:   fmt.Sprintf("%s/%s/oauth/access_token", graphURL, version),
		log:        log.With(sl.Module("graph.client")),
	}
}

type sendTextRequest struct {
	MessagingProduct string `json:"messaging_product,omitempty"`
	RecipientType    string `json:"recipient_type,omitempty"`
	To               string `json:"to,omitempty"`
	Type             string `json:"type,omitempty"`
	Text             *struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text,omitempty"`
	Recipient *struct {
		ID string `json:"id"`
	} `json:"recipient,omitempty"`
	Message *struct {
		Text string `json:"text"`
	} `json:"message,omitempty"`
	MessagingType string `json:"messaging_type,omitempty"`
}

type sendTextResponse struct {
	MessageID   string `json:"message_id"`
	RecipientID string `json:"recipient_id"`
	Messages    []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText delivers text to recipient and returns the provider's message id.
// channelID is the WhatsApp phone number id; it is ignored for Messenger and Instagram.
func (c *Client) SendText(ctx context.Context, provider entity.Provider, token, channelID, recipient, text string) (string, error) {
	var url string
	body := sendTextRequest{}
	req := c.http.R().SetContext(ctx)

	switch provider {
	case entity.ProviderWhatsApp:
		if channelID == "" {
			return "", fmt.Errorf("whatsapp send requires a phone number id")
		}
		url = fmt.Sprintf("%s/%s/%s/messages", c.graphURL, c.version, channelID)
		body.MessagingProduct = "whatsapp"
		body.RecipientType = "individual"
		body.To = recipient
		body.Type = "text"
		body.Text = &struct {
			PreviewURL bool   `json:"preview_url"`
			Body       string `json:"body"`
		}{Body: text}
		req.SetAuthToken(token)
	case entity.ProviderMessenger, entity.ProviderInstagram:
		base := c.graphURL
		if provider == entity.ProviderInstagram {
			base = c.igGraphURL
		}
		url = fmt.Sprintf("%s/%s/me/messages", base, c.version)
		body.Recipient = &struct {
			ID string `json:"id"`
		}{ID: recipient}
		body.Message = &struct {
			Text string `json:"text"`
		}{Text: text}
		body.MessagingType = "RESPONSE"
		req.SetQueryParam("access_token", token)
	default:
		return "", fmt.Errorf("unsupported provider: %s", provider)
	}

	var result sendTextResponse
	var apiErr errorEnvelope
	resp, err := req.
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post(url)
	if err != nil {
		return "", &ProviderError{Provider: provider, Message: err.Error(), cause: err}
	}
	if resp.IsError() {
		return "", apiErr.toError(provider, resp.StatusCode(), resp.String())
	}

	messageID := result.MessageID
	if messageID == "" && len(result.Messages) > 0 {
		messageID = result.Messages[0].ID
	}
	c.log.With(
		slog.String("provider", provider.String()),
		slog.String("recipient", recipient),
		slog.String("message_id", messageID),
	).Debug("message sent")
	return messageID, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ExchangeToken trades a long-lived token for a renewed one. Meta's fb_exchange_token and
// ig_refresh_token grants are not standard OAuth2 exchanges, so only the resulting token
// is expressed as an oauth2.Token.
func (c *Client) ExchangeToken(ctx context.Context, provider entity.Provider, token string) (*oauth2.Token, error) {
	req := c.http.R().SetContext(ctx)
	var url string

	switch provider {
	case entity.ProviderInstagram:
		url = c.igGraphURL + "/refresh_access_token"
		req.SetQueryParams(map[string]string{
			"grant_type":   "ig_refresh_token",
			"access_token": token,
		})
	case entity.ProviderWhatsApp, entity.ProviderMessenger:
		url = c.tokenURL
		req.SetQueryParams(map[string]string{
			"grant_type":        "fb_exchange_token",
			"client_id":         c.appID,
			"client_secret":     c.appSecret,
			"fb_exchange_token": token,
		})
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}

	var result tokenResponse
	var apiErr errorEnvelope
	resp, err := req.SetResult(&result).SetError(&apiErr).Get(url)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Message: err.Error(), cause: err}
	}
	if resp.IsError() {
		return nil, apiErr.toError(provider, resp.StatusCode(), resp.String())
	}
	if result.AccessToken == "" {
		return nil, &ProviderError{Provider: provider, Status: resp.StatusCode(), Message: "token exchange returned no access_token"}
	}

	lifetime := defaultTokenLifetime
	if result.ExpiresIn > 0 {
		lifetime = time.Duration(result.ExpiresIn) * time.Second
	}
	tokenType := result.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}
	return &oauth2.Token{
		AccessToken: result.AccessToken,
		TokenType:   tokenType,
		Expiry:      time.Now().Add(lifetime),
	}, nil
}
