package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pitlane/service-booking/internal/domain/payment"
	"github.com/pitlane/service-booking/internal/domain/pricing"
	"github.com/pitlane/service-booking/internal/platform/domain"
	"go.uber.org/zap"
)

// DefaultMercadoPagoURL is the public API endpoint.
const DefaultMercadoPagoURL = "https://api.mercadopago.com"

// MercadoPagoConfig configures the REST client.
type MercadoPagoConfig struct {
	BaseURL     string
	AccessToken string
	Currency    string
	Timeout     time.Duration
	MaxRetries  uint64
}

// MercadoPagoGateway talks to the Mercado Pago REST API.
type MercadoPagoGateway struct {
	cfg    MercadoPagoConfig
	client *http.Client
	logger *zap.Logger
}

// NewMercadoPagoGateway creates a gateway client.
func NewMercadoPagoGateway(cfg MercadoPagoConfig, logger *zap.Logger) *MercadoPagoGateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultMercadoPagoURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Currency == "" {
		cfg.Currency = "ARS"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &MercadoPagoGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// mpPayment is the subset of the provider's payment resource we rely on.
type mpPayment struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	ExternalReference string      `json:"external_reference"`
	TransactionAmount float64     `json:"transaction_amount"`
}

type mpSearchResult struct {
	Results []json.RawMessage `json:"results"`
}

type mpPreferenceItem struct {
	Title      string `json:"title"`
	Quantity   int    `json:"quantity"`
	CurrencyID string `json:"currency_id"`
	UnitPrice  int64  `json:"unit_price"`
}

type mpBackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type mpPreference struct {
	Items             []mpPreferenceItem `json:"items"`
	ExternalReference string             `json:"external_reference"`
	NotificationURL   string             `json:"notification_url,omitempty"`
	BackURLs          *mpBackURLs        `json:"back_urls,omitempty"`
	AutoReturn        string             `json:"auto_return,omitempty"`
}

type mpPreferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// errNotFound marks a 404 from the provider.
var errNotFound = errors.New("resource not found")

// CreateCheckout creates a checkout preference for the deposit.
func (g *MercadoPagoGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	ref := req.ReservationID.String()
	pref := mpPreference{
		Items: []mpPreferenceItem{{
			Title:      req.Title,
			Quantity:   1,
			CurrencyID: g.cfg.Currency,
			UnitPrice:  req.Amount,
		}},
		ExternalReference: ref,
		NotificationURL:   req.NotificationURL,
	}
	if req.ReturnURL != "" {
		back := strings.TrimRight(req.ReturnURL, "/") + "?reservation=" + url.QueryEscape(ref) + "&status="
		pref.BackURLs = &mpBackURLs{Success: back + "success", Failure: back + "failure", Pending: back + "pending"}
		// The provider only honours auto_return on https return URLs.
		if strings.HasPrefix(req.ReturnURL, "https://") {
			pref.AutoReturn = "approved"
		}
	}

	body, err := json.Marshal(pref)
	if err != nil {
		return nil, fmt.Errorf("marshal preference: %w", err)
	}
	raw, err := g.do(ctx, http.MethodPost, "/checkout/preferences", body)
	if err != nil {
		return nil, domain.NewGatewayError("create checkout", err)
	}

	var resp mpPreferenceResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, domain.NewGatewayError("create checkout", fmt.Errorf("decode preference: %w", err))
	}
	g.logger.Info("checkout created",
		zap.String("reservation_id", ref),
		zap.String("preference_id", resp.ID),
		zap.Int64("amount", req.Amount),
	)
	return &Checkout{PreferenceID: resp.ID, InitPoint: resp.InitPoint, SandboxInitPoint: resp.SandboxInitPoint}, nil
}

// FetchPayment retrieves one payment.
func (g *MercadoPagoGateway) FetchPayment(ctx context.Context, paymentID string) (*payment.GatewayPayment, error) {
	raw, err := g.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil)
	if errors.Is(err, errNotFound) {
		return nil, domain.NewNotFoundError("payment", paymentID)
	}
	if err != nil {
		return nil, domain.NewGatewayError("fetch payment", err)
	}
	gp, err := normalise(raw)
	if err != nil {
		return nil, domain.NewGatewayError("fetch payment", err)
	}
	return gp, nil
}

// SearchByReference returns the newest payment for externalReference.
func (g *MercadoPagoGateway) SearchByReference(ctx context.Context, externalReference string) (*payment.GatewayPayment, error) {
	q := url.Values{}
	q.Set("external_reference", externalReference)
	q.Set("sort", "date_created")
	q.Set("criteria", "desc")

	raw, err := g.do(ctx, http.MethodGet, "/v1/payments/search?"+q.Encode(), nil)
	if err != nil {
		return nil, domain.NewGatewayError("search payments", err)
	}
	var res mpSearchResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, domain.NewGatewayError("search payments", fmt.Errorf("decode search: %w", err))
	}
	if len(res.Results) == 0 {
		return nil, nil
	}
	gp, err := normalise(res.Results[0])
	if err != nil {
		return nil, domain.NewGatewayError("search payments", err)
	}
	return gp, nil
}

func normalise(raw json.RawMessage) (*payment.GatewayPayment, error) {
	var p mpPayment
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode payment: %w", err)
	}
	if p.ID.String() == "" {
		return nil, errors.New("payment without id")
	}
	return &payment.GatewayPayment{
		ID:                p.ID.String(),
		ExternalReference: p.ExternalReference,
		Status:            payment.Status(p.Status),
		Amount:            pricing.RoundHalfUp(p.TransactionAmount),
		Raw:               raw,
	}, nil
}

// do performs a request with bounded exponential backoff. Transport errors,
// 429 and 5xx are retried; other 4xx fail immediately.
func (g *MercadoPagoGateway) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	policy.MaxElapsedTime = 3 * g.cfg.Timeout

	var out []byte
	op := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+g.cfg.AccessToken)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := g.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(errNotFound)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, truncate(data, 200)))
		}
		out = data
		return nil
	}

	notify := func(err error, wait time.Duration) {
		g.logger.Warn("retrying payment provider call",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	var b backoff.BackOff = policy
	if g.cfg.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, g.cfg.MaxRetries)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
