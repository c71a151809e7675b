package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrLookupNotOK is returned when the service answers with a non-200 code field
var ErrLookupNotOK = errors.New("product lookup returned non-200 code")

// ProductAPIClient queries the internal product service for channel listing ids
type ProductAPIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewProductAPIClient creates a client with the given per-request timeout
func NewProductAPIClient(baseURL string, timeout time.Duration) *ProductAPIClient {
	return &ProductAPIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type channelProductResponse struct {
	Code    json.RawMessage `json:"code"`
	Product struct {
		ChannelProductIDs map[string]any `json:"channelProductIds"`
	} `json:"product"`
}

// ChannelProductIDs returns canonical channel name -> listing id for one product.
// Unknown channel keys and placeholder values are dropped.
func (c *ProductAPIClient) ChannelProductIDs(ctx context.Context, productID int64) (map[string]string, error) {
	url := fmt.Sprintf("%s/api/v1/product/%d/channel-product-id", c.baseURL, productID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get channel product ids: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("product service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var body channelProductResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if code := strings.Trim(string(body.Code), `"`); code != "200" {
		return nil, fmt.Errorf("%w: %s", ErrLookupNotOK, code)
	}

	out := make(map[string]string)
	for key, raw := range body.Product.ChannelProductIDs {
		value := listingID(raw)
		if isPlaceholder(value) {
			continue
		}
		name, ok := CanonicalForKey(key)
		if !ok {
			zap.L().Debug("unknown channel key", zap.String("key", key), zap.Int64("product_id", productID))
			continue
		}
		out[name] = value
	}
	return out, nil
}

func listingID(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
