package product

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

const (
	defaultTimeout  = 3 * time.Second
	productsPath    = "/api/products/"
	maxErrorBodyLen = 512
)

// ClientOption настраивает Client.
type ClientOption func(*Client)

// WithHTTPClient подменяет http.Client (например, в тестах).
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client обращается к сервису каталога товаров по HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Entry
}

// productResponse - тело ответа GET /api/products/{id}.
type productResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
}

// NewClient создаёт клиента каталога. timeout ограничивает каждый запрос.
func NewClient(baseURL string, timeout time.Duration, options ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, option := range options {
		option(c)
	}
	if c.logger == nil {
		c.logger = log.WithField("component", "product-client")
	}
	return c
}

// GetProductByID возвращает текущее состояние товара.
// 404 превращается в ProductNotFoundError, остальные сбои возвращаются как есть.
func (c *Client) GetProductByID(ctx context.Context, productID int64) (domain.Product, error) {
	url := fmt.Sprintf("%s%s%d", c.baseURL, productsPath, productID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Product{}, fmt.Errorf("build product request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Product{}, fmt.Errorf("request product %d: %w", productID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.Product{}, &domain.ProductNotFoundError{ProductID: productID}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		c.logger.WithFields(log.Fields{
			"product_id": productID,
			"status":     resp.StatusCode,
		}).Warn("unexpected product service response")
		return domain.Product{}, fmt.Errorf("product service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload productResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.Product{}, fmt.Errorf("decode product %d: %w", productID, err)
	}

	return domain.Product{
		ID:          payload.ID,
		Name:        payload.Name,
		Description: payload.Description,
		Price:       payload.Price,
		Stock:       payload.Stock,
		Category:    payload.Category,
	}, nil
}

// Ping проверяет доступность сервиса каталога. Любой ответ ниже 500 считается успешным.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+strings.TrimSuffix(productsPath, "/"), nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping product service: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("product service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

var _ domain.ProductLookup = (*Client)(nil)
