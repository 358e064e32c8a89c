package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dcaengine/src/asset"
	"dcaengine/src/model"
)

// HTTPInvoker calls a venue's swap endpoint. Venues are opaque: the
// request carries the invocation payload verbatim and the response body is
// not interpreted, because settlement is measured by the gateway as a
// custody balance delta.
type HTTPInvoker struct {
	http *resty.Client
}

func NewHTTPInvoker(timeout time.Duration) *HTTPInvoker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPInvoker{
		// No retry here: a swap is not idempotent, the caller decides
		// whether a failed slice is attempted again in a later batch.
		http: resty.New().SetTimeout(timeout),
	}
}

type swapRequest struct {
	Reference  string          `json:"reference"`
	InputAsset string          `json:"input_asset"`
	AmountIn   decimal.Decimal `json:"amount_in"`
	Native     bool            `json:"native"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

func (i *HTTPInvoker) Swap(ctx context.Context, v *model.Venue, input asset.Asset, amountIn decimal.Decimal, payload json.RawMessage) error {
	body := swapRequest{
		Reference:  uuid.NewString(),
		InputAsset: input.Symbol,
		AmountIn:   amountIn,
		Native:     input.IsNative(),
		Payload:    payload,
	}

	resp, err := i.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(v.Endpoint)

	if err != nil {
		return err
	}

	if resp.StatusCode() >= 400 {
		return fmt.Errorf("venue %s returned status %d: %s", v.Name, resp.StatusCode(), resp.String())
	}

	return nil
}
