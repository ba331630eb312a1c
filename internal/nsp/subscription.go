package nsp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"nsp-alarm-correlator/internal/config"
)

const subscriptionsPath = "/nbi-notification/api/v1/notifications/subscriptions"

// Subscription identifies one active notification subscription and the
// stream topic it publishes to.
type Subscription struct {
	ID    string `json:"subscriptionId"`
	Topic string `json:"topicId"`
}

// SubscriptionClient manages the fault-notification subscription lifecycle
// against the platform's northbound API.
type SubscriptionClient struct {
	tokens  *TokenManager
	baseURL string
	client  *resty.Client
	logger  *zap.Logger
}

// NewSubscriptionClient creates a subscription client.
func NewSubscriptionClient(tokens *TokenManager, cfg *config.NSPConfig, logger *zap.Logger) *SubscriptionClient {
	client := resty.New().SetTimeout(30 * time.Second)
	if cfg.InsecureSkipVerify {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return &SubscriptionClient{
		tokens:  tokens,
		baseURL: cfg.BaseURL,
		client:  client,
		logger:  logger,
	}
}

// Create registers a fault-category subscription and returns its identity.
func (c *SubscriptionClient) Create(ctx context.Context) (*Subscription, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var sub Subscription
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(map[string]interface{}{
			"categories": []map[string]string{{"name": "NSP-FAULT"}},
			"clientId":   "alarm-correlator-" + uuid.NewString(),
		}).
		SetResult(&sub).
		Post(c.baseURL + subscriptionsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("subscription request rejected: %s", resp.Status())
	}
	if sub.ID == "" {
		return nil, fmt.Errorf("subscription response missing subscriptionId")
	}

	c.logger.Info("Created notification subscription",
		zap.String("subscription_id", sub.ID),
		zap.String("topic_id", sub.Topic),
	)

	return &sub, nil
}

// Renew extends the subscription's lease.
func (c *SubscriptionClient) Renew(ctx context.Context, subscriptionID string) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		Post(fmt.Sprintf("%s%s/%s/renewals", c.baseURL, subscriptionsPath, subscriptionID))
	if err != nil {
		return fmt.Errorf("failed to renew subscription: %w", err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return errUnauthorized
	}
	if resp.IsError() {
		return fmt.Errorf("subscription renewal rejected: %s", resp.Status())
	}

	return nil
}

// Delete removes the subscription. Best effort during shutdown.
func (c *SubscriptionClient) Delete(ctx context.Context, subscriptionID string) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		Delete(fmt.Sprintf("%s%s/%s", c.baseURL, subscriptionsPath, subscriptionID))
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("subscription delete rejected: %s", resp.Status())
	}

	c.logger.Info("Deleted notification subscription",
		zap.String("subscription_id", subscriptionID),
	)

	return nil
}

var errUnauthorized = fmt.Errorf("unauthorized")

// RunRenewal renews the subscription on the given interval until the
// context is canceled. A 401 triggers re-authentication and another try on
// the next tick.
func (c *SubscriptionClient) RunRenewal(ctx context.Context, subscriptionID string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := c.Renew(ctx, subscriptionID)
		if err == nil {
			c.logger.Info("Subscription renewed",
				zap.String("subscription_id", subscriptionID),
			)
			continue
		}

		if err == errUnauthorized {
			c.logger.Warn("Token expired during renewal, re-authenticating")
			if err := c.tokens.EnsureToken(ctx); err != nil {
				c.logger.Error("Re-authentication failed", zap.Error(err))
			}
			continue
		}

		if ctx.Err() != nil {
			return
		}
		c.logger.Error("Subscription renewal failed", zap.Error(err))
	}
}
