package bingx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"perp-trader/pkg/exchanges/common"
)

// DefaultBaseURL is the BingX perpetual swap demo (VST) endpoint.
const DefaultBaseURL = "https://open-api-vst.bingx.com"

const (
	pathKlines     = "/openApi/swap/v3/quote/klines"
	pathDepth      = "/openApi/swap/v2/quote/depth"
	pathTicker     = "/openApi/swap/v2/quote/ticker"
	pathPrice      = "/openApi/swap/v1/ticker/price"
	pathOrder      = "/openApi/swap/v2/trade/order"
	pathServerTime = "/openApi/swap/v2/server/time"

	headerAPIKey = "X-BX-APIKEY"
)

// Config holds BingX swap credentials and transport settings.
type Config struct {
	APIKey     string
	APISecret  string
	BaseURL    string
	Timeout    time.Duration
	RecvWindow int64   // ms
	RateLimit  float64 // requests per second, 0 disables
}

// Client talks to the BingX perpetual swap REST API.
type Client struct {
	cfg      Config
	http     *resty.Client
	throttle *common.Throttle
	timeSync *common.TimeSync
	log      *logrus.Entry
}

var (
	_ common.Gateway     = (*Client)(nil)
	_ common.PriceSource = (*Client)(nil)
)

// NewClient creates a BingX client. Requests are never retried.
func NewClient(cfg Config, log *logrus.Entry) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5000
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &Client{
		cfg: cfg,
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetRetryCount(0).
			SetHeader(headerAPIKey, cfg.APIKey),
		throttle: common.NewThrottle(cfg.RateLimit, 1),
		log:      log.WithField("component", "bingx"),
	}
	c.timeSync = common.NewTimeSync(c.GetServerTime, c.log)
	return c
}

// StartTimeSync keeps request timestamps aligned with the venue clock until ctx is done.
func (c *Client) StartTimeSync(ctx context.Context) {
	c.timeSync.Start(ctx)
}

func (c *Client) now() int64 {
	if c.timeSync != nil && c.timeSync.Synced() {
		return c.timeSync.Now()
	}
	return time.Now().UnixMilli()
}

// GetServerTime returns the venue clock in unix millis.
func (c *Client) GetServerTime(ctx context.Context) (int64, error) {
	var out struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := c.doPublic(ctx, "server time", pathServerTime, url.Values{}, &out); err != nil {
		return 0, err
	}
	return out.ServerTime, nil
}

// doPublic issues an unsigned GET and decodes the envelope's data into out.
func (c *Client) doPublic(ctx context.Context, op, path string, params url.Values, out any) error {
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	return c.do(ctx, op, resty.MethodGet, path, params, out)
}

// doSigned appends the HMAC signature and sends params in the query string.
func (c *Client) doSigned(ctx context.Context, op, method, path string, params url.Values, out any) error {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return &common.GatewayError{Op: op, Message: "API key/secret required"}
	}
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	params.Set("signature", sign(canonicalQuery(params), c.cfg.APISecret))
	return c.do(ctx, op, method, path, params, out)
}

func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, out any) error {
	if err := ctx.Err(); err != nil {
		return &common.GatewayError{Op: op, Err: err}
	}
	if err := c.throttle.Wait(ctx); err != nil {
		return &common.GatewayError{Op: op, Err: err}
	}

	req := c.http.R().SetContext(ctx).SetQueryParamsFromValues(params)
	if method == resty.MethodPost {
		req.SetHeader("Content-Type", "application/x-www-form-urlencoded")
	}
	c.log.WithFields(logrus.Fields{"op": op, "path": path}).Debug("request")

	res, err := req.Execute(method, path)
	if err != nil {
		return &common.GatewayError{Op: op, Err: err}
	}
	if res.StatusCode() >= 300 {
		return &common.GatewayError{Op: op, Code: res.StatusCode(), Message: string(res.Body())}
	}

	var env envelope
	if err := json.Unmarshal(res.Body(), &env); err != nil {
		return &common.GatewayError{Op: op, Err: fmt.Errorf("decode envelope: %w", err)}
	}
	if env.Code != 0 {
		return &common.GatewayError{Op: op, Code: env.Code, Message: env.Msg}
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return &common.GatewayError{Op: op, Message: "empty data"}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &common.GatewayError{Op: op, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}
