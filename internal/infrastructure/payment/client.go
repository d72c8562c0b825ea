package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"toyshop/internal/config"
	"toyshop/internal/domain"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

type ClientConfig struct {
	BaseURL         string
	Timeout         time.Duration
	OAuth           config.OAuth
	BreakerFailures int
}

// Client talks to the ledger over HTTP. Calls are not retried; once
// BreakerFailures consecutive calls fail the breaker opens and calls fail fast.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[result]
	logger  logrus.FieldLogger
}

type result struct {
	status int
	body   []byte
}

func NewClient(cfg ClientConfig, logger logrus.FieldLogger) *Client {
	base := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   cfg.Timeout,
	}

	httpClient := base
	if cfg.OAuth.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			TokenURL:     cfg.OAuth.TokenURL,
			Scopes:       cfg.OAuth.Scopes,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		httpClient = cc.Client(ctx)
		httpClient.Timeout = cfg.Timeout
	}

	failures := cfg.BreakerFailures
	if failures <= 0 {
		failures = 5
	}
	breaker := gobreaker.NewCircuitBreaker[result](gobreaker.Settings{
		Name:    "ledger",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
		},
	})

	return &Client{
		baseURL: cfg.BaseURL,
		http:    httpClient,
		breaker: breaker,
		logger:  logger,
	}
}

var errNotFound = errors.New("not found")

func (c *Client) GetBalance(ctx context.Context, accountID string) (domain.BalanceResponse, error) {
	var out domain.BalanceResponse
	path := "/balance"
	if accountID != "" {
		path += "?accountId=" + url.QueryEscape(accountID)
	}
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) Pay(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResponse, error) {
	var out domain.PaymentResponse
	err := c.do(ctx, http.MethodPost, "/pay", req, &out)
	return out, err
}

func (c *Client) Confirm(ctx context.Context, orderID, transactionID string) (domain.ConfirmResponse, error) {
	var out domain.ConfirmResponse
	err := c.do(ctx, http.MethodPost, "/confirm", domain.ConfirmRequest{OrderID: orderID, TransactionID: transactionID}, &out)
	return out, err
}

func (c *Client) Refund(ctx context.Context, orderID, transactionID string) (domain.RefundResponse, error) {
	var out domain.RefundResponse
	err := c.do(ctx, http.MethodPost, "/refund", domain.RefundRequest{OrderID: orderID, TransactionID: transactionID}, &out)
	return out, err
}

func (c *Client) PaymentStatus(ctx context.Context, orderID string) (*domain.PaymentStatusResponse, error) {
	var out domain.PaymentStatusResponse
	err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(orderID), nil, &out)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	res, err := c.breaker.Execute(func() (result, error) {
		return c.send(ctx, method, path, in)
	})
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{"method": method, "path": path}).Warn("payment service call failed")
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	switch {
	case res.status >= 200 && res.status < 300:
		if err := json.Unmarshal(res.body, out); err != nil {
			return fmt.Errorf("%w: decode %s: %v", ErrBadResponse, path, err)
		}
		return nil
	case res.status == http.StatusUnauthorized || res.status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, res.status)
	case res.status == http.StatusNotFound:
		return errNotFound
	default:
		return fmt.Errorf("%w: status %d: %s", ErrBadResponse, res.status, string(res.body))
	}
}

// send performs one request. Transport errors and 5xx count against the breaker.
func (c *Client) send(ctx context.Context, method, path string, in any) (result, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return result{}, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return result{}, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return result{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return result{}, fmt.Errorf("read response: %w", err)
	}
	res := result{status: resp.StatusCode, body: data}
	if resp.StatusCode >= http.StatusInternalServerError {
		return res, fmt.Errorf("status %d", resp.StatusCode)
	}
	return res, nil
}
