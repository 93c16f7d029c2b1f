package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/vaultfunk/vaultfunk/internal/strategy"
)

// EngineClient submits swaps through the vault engine's REST API. The
// engine owns keys and transaction layout; this client only ships the
// plan fields over and maps the response.
type EngineClient struct {
	http *resty.Client
	log  zerolog.Logger
}

// NewEngineClient creates a vault engine client. timeout bounds each
// individual submit attempt; retries are the executor's concern.
func NewEngineClient(baseURL string, timeout time.Duration, log zerolog.Logger) *EngineClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EngineClient{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		log: log,
	}
}

// swapRequest is the engine's wire shape for an agent swap.
type swapRequest struct {
	Bucket          string `json:"bucket"`
	InputMint       string `json:"inputMint"`
	OutputMint      string `json:"outputMint"`
	InputAmount     uint64 `json:"inputAmount"`
	MinOutputAmount uint64 `json:"minOutputAmount"`
	SlippageBps     uint16 `json:"slippageBps"`
	PriorityFee     uint64 `json:"priorityFee"`
	RoutePlan       string `json:"routePlan,omitempty"` // base64 of the opaque blob
}

type swapResponse struct {
	Signature   string `json:"signature"`
	ObservedOut uint64 `json:"observedOut"`
	GasUsed     uint64 `json:"gasUsed"`
	Error       string `json:"error,omitempty"`
}

// Submit sends the plan to the engine and waits for confirmation.
func (c *EngineClient) Submit(ctx context.Context, plan *strategy.Plan) (*Receipt, error) {
	req := swapRequest{
		Bucket:          plan.Bucket.String(),
		InputMint:       plan.InputMint.String(),
		OutputMint:      plan.OutputMint.String(),
		InputAmount:     plan.InputAmount,
		MinOutputAmount: plan.MinOutputAmount,
		SlippageBps:     plan.MaxSlippageBps,
		PriorityFee:     plan.PriorityFee,
	}
	if len(plan.RoutePlan) > 0 {
		req.RoutePlan = base64.StdEncoding.EncodeToString(plan.RoutePlan)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/v1/agent/swap")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, &Error{Kind: KindTimeout, Msg: "submit deadline exceeded", Err: err}
		}
		return nil, &Error{Kind: KindNetwork, Msg: "submit transport failure", Err: err}
	}

	switch {
	case resp.StatusCode() == http.StatusOK:
	case resp.StatusCode() == http.StatusRequestTimeout || resp.StatusCode() == http.StatusGatewayTimeout:
		return nil, Errorf(KindTimeout, "engine timeout: status %d", resp.StatusCode())
	case resp.StatusCode() >= 500:
		return nil, Errorf(KindUpstream, "engine error: status %d: %s", resp.StatusCode(), resp.String())
	case resp.StatusCode() == http.StatusTooManyRequests:
		return nil, Errorf(KindUpstream, "engine throttled: status %d", resp.StatusCode())
	default:
		return nil, Errorf(KindValidation, "engine rejected plan: status %d: %s", resp.StatusCode(), resp.String())
	}

	var wire swapResponse
	if err := json.Unmarshal(resp.Body(), &wire); err != nil {
		return nil, &Error{Kind: KindUpstream, Msg: "malformed engine response", Err: err}
	}
	if wire.Error != "" {
		return nil, Errorf(KindValidation, "engine rejected plan: %s", wire.Error)
	}

	sig, err := solana.SignatureFromBase58(wire.Signature)
	if err != nil {
		return nil, &Error{Kind: KindUpstream, Msg: "unparseable signature in engine response", Err: err}
	}

	c.log.Debug().
		Str("plan_id", plan.ID.String()).
		Str("signature", sig.String()).
		Uint64("observed_out", wire.ObservedOut).
		Msg("swap confirmed")

	return &Receipt{Signature: sig, ObservedOut: wire.ObservedOut, GasUsed: wire.GasUsed}, nil
}
