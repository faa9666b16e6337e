package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shelfchat/internal/constants"
	apperrors "shelfchat/internal/errors"
	"shelfchat/internal/metrics"
	"shelfchat/internal/models"
	"shelfchat/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Client talks to the request/response half of the chat surface. All calls
// require the bearer token and return JSON with an ok/error-body duality;
// non-2xx responses surface the server's error text when present.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *logrus.Logger
}

func NewClient(baseURL, token string, httpClient *http.Client, logger *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.DefaultAPITimeoutSec * time.Second}
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  httpClient,
		logger:  logger,
	}
}

// GetConversations fetches the inbox summary list, most-recently-active
// first.
func (c *Client) GetConversations(ctx context.Context) ([]models.Conversation, error) {
	var resp conversationsResponse
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// GetMessages fetches one page of the conversation with peer, newest-first.
func (c *Client) GetMessages(ctx context.Context, peerID string, page int) (MessagePage, error) {
	if page < constants.DefaultMessagesPage {
		page = constants.DefaultMessagesPage
	}

	var resp MessagePage
	endpoint := fmt.Sprintf("/conversation/%s?page=%d", url.PathEscape(peerID), page)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return MessagePage{}, err
	}
	return resp, nil
}

// SendMessage submits a message to peer and returns the server-confirmed
// entry carrying the permanent identity.
func (c *Client) SendMessage(ctx context.Context, peerID string, req SendMessageRequest) (*models.Message, error) {
	var resp sendMessageResponse
	endpoint := "/send/" + url.PathEscape(peerID)
	if err := c.do(ctx, http.MethodPost, endpoint, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Message, nil
}

// MarkRead marks the whole conversation with peer as read.
func (c *Client) MarkRead(ctx context.Context, peerID string) error {
	return c.do(ctx, http.MethodPut, "/mark-read/"+url.PathEscape(peerID), nil, nil)
}

// EditMessage replaces the text of a previously sent message.
func (c *Client) EditMessage(ctx context.Context, messageID, text string) error {
	return c.do(ctx, http.MethodPatch, "/edit/"+url.PathEscape(messageID), editMessageRequest{Text: text}, nil)
}

// DeleteForMe removes the message on this device only.
func (c *Client) DeleteForMe(ctx context.Context, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/delete-me/"+url.PathEscape(messageID), nil, nil)
}

// DeleteForEveryone unsends the message for both parties. The peer learns
// about it through a mirrored message_deleted stream event.
func (c *Client) DeleteForEveryone(ctx context.Context, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/delete-everyone/"+url.PathEscape(messageID), nil, nil)
}

// ClearChat deletes the conversation history server-side for this user.
func (c *Client) ClearChat(ctx context.Context, peerID string) error {
	return c.do(ctx, http.MethodDelete, "/clear/"+url.PathEscape(peerID), nil, nil)
}

// GetUnreadCount fetches the global unread message count.
func (c *Client) GetUnreadCount(ctx context.Context) (int, error) {
	var resp unreadCountResponse
	if err := c.do(ctx, http.MethodGet, "/unread-count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	ctx, span := tracing.StartSpan(ctx, "api."+method+" "+endpoint,
		attribute.String("http.method", method),
		attribute.String("http.route", endpoint),
	)
	defer span.End()

	start := time.Now()
	err := c.doRequest(ctx, method, endpoint, body, out)
	metrics.RecordTimer("api_latency", time.Since(start), map[string]string{"method": method})

	if err != nil {
		tracing.RecordError(ctx, err)
		metrics.IncrementCounter("api_errors", map[string]string{"method": method})
	}
	return err
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.WithFields(logrus.Fields{
		"method":   method,
		"endpoint": endpoint,
	}).Debug("Chat API request")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return apperrors.NewTimeoutError(method + " " + endpoint)
		}
		return apperrors.NewAPIError(endpoint, 0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		bodyBytes, _ := io.ReadAll(resp.Body)
		serverMsg := decodeServerError(bodyBytes)
		c.logger.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		}).Warn("Chat API returned error status")
		return apperrors.NewAPIError(endpoint, resp.StatusCode, serverMsg,
			fmt.Errorf("chat API error: status %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewAPIError(endpoint, resp.StatusCode, "",
			fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func decodeServerError(body []byte) string {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	return resp.Error
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	for e := err; e != nil; e = unwrap(e) {
		if te, ok := e.(timeout); ok && te.Timeout() {
			return true
		}
	}
	return false
}

func unwrap(err error) error {
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		return nil
	}
	return u.Unwrap()
}
