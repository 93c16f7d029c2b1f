package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// ClientConfig configures the aggregator REST client.
type ClientConfig struct {
	QuoteBaseURL string
	PriceBaseURL string
	Timeout      time.Duration
	SlippageBps  uint16
}

// Client talks to the swap-quote and price endpoints of the aggregator.
// Requests go through a shared circuit breaker so a flapping upstream
// stops being hammered; the breaker opens after 5 consecutive failures
// and probes again after 30 s.
type Client struct {
	http        *resty.Client
	priceURL    string
	slippageBps uint16
	breaker     *gobreaker.CircuitBreaker
	log         zerolog.Logger
}

// NewClient creates an aggregator client. The underlying HTTP client is
// reused across requests for connection pooling.
func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.QuoteBaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "quote-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return &Client{
		http:        httpClient,
		priceURL:    strings.TrimRight(cfg.PriceBaseURL, "/"),
		slippageBps: cfg.SlippageBps,
		breaker:     breaker,
		log:         log,
	}
}

// u64str decodes an unsigned integer that the wire may carry as either a
// JSON string or a bare number.
type u64str uint64

func (u *u64str) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*u = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*u = u64str(v)
	return nil
}

// f64str decodes a float that the wire may carry as either a JSON string
// or a bare number.
type f64str float64

func (f *f64str) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = f64str(v)
	return nil
}

// quoteResponse is the wire shape of GET /quote. Unknown fields are ignored.
type quoteResponse struct {
	InputMint            string          `json:"inputMint"`
	OutputMint           string          `json:"outputMint"`
	InAmount             u64str          `json:"inAmount"`
	OutAmount            u64str          `json:"outAmount"`
	OtherAmountThreshold u64str          `json:"otherAmountThreshold"`
	SwapMode             string          `json:"swapMode"`
	SlippageBps          uint16          `json:"slippageBps"`
	PlatformFeeBps       uint16          `json:"platformFeeBps"`
	PriceImpactPct       f64str          `json:"priceImpactPct"`
	RoutePlan            json.RawMessage `json:"routePlan"`
}

// GetQuote fetches a swap quote for one directed pair. Transport failures
// wrap ErrNetwork, non-2xx responses become *UpstreamError, and malformed
// bodies become *ParseError. The returned quote carries no timestamp; the
// caller stamps it at publish time.
func (c *Client) GetQuote(ctx context.Context, pair Pair) (*Quote, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.getQuote(ctx, pair)
	})
	if err != nil {
		return nil, err
	}
	return out.(*Quote), nil
}

func (c *Client) getQuote(ctx context.Context, pair Pair) (*Quote, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"inputMint":   pair.InputMint.String(),
			"outputMint":  pair.OutputMint.String(),
			"amount":      strconv.FormatUint(pair.Amount, 10),
			"slippageBps": strconv.FormatUint(uint64(c.slippageBps), 10),
		}).
		Get("/quote")
	if err != nil {
		return nil, fmt.Errorf("%w: get quote %s: %v", ErrNetwork, pair.Key(), err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, &UpstreamError{Endpoint: "quote", Status: resp.StatusCode(), Body: truncate(resp.String(), 256)}
	}

	var wire quoteResponse
	if err := json.Unmarshal(resp.Body(), &wire); err != nil {
		return nil, &ParseError{Endpoint: "quote", Err: err}
	}
	return wire.toQuote()
}

func (w *quoteResponse) toQuote() (*Quote, error) {
	inMint, err := solana.PublicKeyFromBase58(w.InputMint)
	if err != nil {
		return nil, &ParseError{Endpoint: "quote", Err: fmt.Errorf("inputMint: %w", err)}
	}
	outMint, err := solana.PublicKeyFromBase58(w.OutputMint)
	if err != nil {
		return nil, &ParseError{Endpoint: "quote", Err: fmt.Errorf("outputMint: %w", err)}
	}
	if w.InAmount == 0 {
		return nil, &ParseError{Endpoint: "quote", Err: fmt.Errorf("inAmount must be > 0")}
	}
	return &Quote{
		InputMint:            inMint,
		OutputMint:           outMint,
		InAmount:             uint64(w.InAmount),
		OutAmount:            uint64(w.OutAmount),
		OtherAmountThreshold: uint64(w.OtherAmountThreshold),
		SwapMode:             w.SwapMode,
		SlippageBps:          w.SlippageBps,
		PlatformFeeBps:       w.PlatformFeeBps,
		PriceImpactPct:       float64(w.PriceImpactPct),
		RoutePlan:            []byte(w.RoutePlan),
	}, nil
}

// priceResponse is the wire shape of GET /price.
type priceResponse struct {
	Data map[string]struct {
		Price f64str `json:"price"`
	} `json:"data"`
}

// GetPrices fetches the latest price for each mint in one request. Mints
// missing from the response are absent from the returned map.
func (c *Client) GetPrices(ctx context.Context, mints []solana.PublicKey) (map[solana.PublicKey]float64, error) {
	if len(mints) == 0 {
		return map[solana.PublicKey]float64{}, nil
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.getPrices(ctx, mints)
	})
	if err != nil {
		return nil, err
	}
	return out.(map[solana.PublicKey]float64), nil
}

func (c *Client) getPrices(ctx context.Context, mints []solana.PublicKey) (map[solana.PublicKey]float64, error) {
	ids := make([]string, len(mints))
	for i, m := range mints {
		ids[i] = m.String()
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("ids", strings.Join(ids, ",")).
		Get(c.priceURL + "/price")
	if err != nil {
		return nil, fmt.Errorf("%w: get prices: %v", ErrNetwork, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, &UpstreamError{Endpoint: "price", Status: resp.StatusCode(), Body: truncate(resp.String(), 256)}
	}

	var wire priceResponse
	if err := json.Unmarshal(resp.Body(), &wire); err != nil {
		return nil, &ParseError{Endpoint: "price", Err: err}
	}

	prices := make(map[solana.PublicKey]float64, len(wire.Data))
	for id, entry := range wire.Data {
		mint, err := solana.PublicKeyFromBase58(id)
		if err != nil {
			c.log.Debug().Str("mint", id).Msg("skipping unparseable mint in price response")
			continue
		}
		prices[mint] = float64(entry.Price)
	}
	return prices, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
