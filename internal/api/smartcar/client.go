package smartcar

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

	"golang.org/x/oauth2"

	"github.com/langchou/carva/internal/models"
)

// Options 客户端参数
type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Mode         string // live | simulated
	AuthURL      string
	TokenURL     string
	APIHost      string
}

// Client Smartcar API 客户端
// 不持有令牌，每次请求由调用方传入 access token
type Client struct {
	httpClient *http.Client
	oauth      *oauth2.Config
	apiHost    string
	mode       string
}

// NewClient 创建新的 Smartcar API 客户端
func NewClient(opts Options) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   opts.AuthURL,
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		apiHost: strings.TrimRight(opts.APIHost, "/"),
		mode:    opts.Mode,
	}
}

// AuthURL 生成授权链接，state 原样回传给 callback
func (c *Client) AuthURL(state string) string {
	var opts []oauth2.AuthCodeOption
	if c.mode == "simulated" {
		opts = append(opts, oauth2.SetAuthURLParam("mode", "simulated"))
	}
	return c.oauth.AuthCodeURL(state, opts...)
}

// ExchangeCode 用授权码换取凭证
func (c *Client) ExchangeCode(ctx context.Context, code string) (*models.Credential, error) {
	tok, err := c.oauth.Exchange(c.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return toCredential(tok), nil
}

// Refresh 用 refresh token 换取新凭证
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*models.Credential, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("no refresh token available")
	}

	src := c.oauth.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return toCredential(tok), nil
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func toCredential(tok *oauth2.Token) *models.Credential {
	cred := &models.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		cred.Expiration = &exp
	}
	return cred
}

// doRequest 执行带认证的请求并解码 JSON 响应
func (c *Client) doRequest(ctx context.Context, accessToken, method, path string, in, out any) error {
	if accessToken == "" {
		return ErrNoAccessToken
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiHost+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("sc-unit-system", "metric")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(data)}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func vehiclePath(id, endpoint string) string {
	return "/vehicles/" + url.PathEscape(id) + endpoint
}

// ListVehicleIDs 获取授权范围内的车辆 ID
func (c *Client) ListVehicleIDs(ctx context.Context, accessToken string) ([]string, error) {
	var resp vehiclesResponse
	if err := c.doRequest(ctx, accessToken, http.MethodGet, "/vehicles", nil, &resp); err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	return resp.Vehicles, nil
}

// Attributes 获取品牌、型号、年份
func (c *Client) Attributes(ctx context.Context, accessToken, vehicleID string) (*models.VehicleInfo, error) {
	var resp attributesResponse
	if err := c.doRequest(ctx, accessToken, http.MethodGet, vehiclePath(vehicleID, ""), nil, &resp); err != nil {
		return nil, fmt.Errorf("get attributes: %w", err)
	}

	info := &models.VehicleInfo{ID: vehicleID}
	if resp.Make != "" {
		info.Make = &resp.Make
	}
	if resp.Model != "" {
		info.Model = &resp.Model
	}
	if resp.Year != 0 {
		info.Year = &resp.Year
	}
	return info, nil
}

// Odometer 获取里程
func (c *Client) Odometer(ctx context.Context, accessToken, vehicleID string) (*models.Odometer, error) {
	var resp odometerResponse
	if err := c.doRequest(ctx, accessToken, http.MethodGet, vehiclePath(vehicleID, "/odometer"), nil, &resp); err != nil {
		return nil, fmt.Errorf("get odometer: %w", err)
	}
	return &models.Odometer{DistanceKm: resp.Distance}, nil
}

// Fuel 获取燃油信息
func (c *Client) Fuel(ctx context.Context, accessToken, vehicleID string) (*models.Fuel, error) {
	var resp fuelResponse
	if err := c.doRequest(ctx, accessToken, http.MethodGet, vehiclePath(vehicleID, "/fuel"), nil, &resp); err != nil {
		return nil, fmt.Errorf("get fuel: %w", err)
	}
	return &models.Fuel{
		PercentRemaining: percent(resp.PercentRemaining),
		AmountRemaining:  resp.AmountRemaining,
		RangeKm:          resp.Range,
	}, nil
}

// Battery 获取电池信息
func (c *Client) Battery(ctx context.Context, accessToken, vehicleID string) (*models.Battery, error) {
	var resp batteryResponse
	if err := c.doRequest(ctx, accessToken, http.MethodGet, vehiclePath(vehicleID, "/battery"), nil, &resp); err != nil {
		return nil, fmt.Errorf("get battery: %w", err)
	}
	return &models.Battery{
		PercentRemaining: percent(resp.PercentRemaining),
		RangeKm:          resp.Range,
	}, nil
}

// Location 获取位置
func (c *Client) Location(ctx context.Context, accessToken, vehicleID string) (*models.Location, error) {
	var resp locationResponse
	if err := c.doRequest(ctx, accessToken, http.MethodGet, vehiclePath(vehicleID, "/location"), nil, &resp); err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return &models.Location{Latitude: resp.Latitude, Longitude: resp.Longitude}, nil
}

// TirePressure 获取胎压
func (c *Client) TirePressure(ctx context.Context, accessToken, vehicleID string) (*models.TirePressure, error) {
	var resp tirePressureResponse
	if err := c.doRequest(ctx, accessToken, http.MethodGet, vehiclePath(vehicleID, "/tires/pressure"), nil, &resp); err != nil {
		return nil, fmt.Errorf("get tire pressure: %w", err)
	}
	return &models.TirePressure{
		FrontLeft:  resp.FrontLeft,
		FrontRight: resp.FrontRight,
		BackLeft:   resp.BackLeft,
		BackRight:  resp.BackRight,
	}, nil
}

// Lock 锁车
func (c *Client) Lock(ctx context.Context, accessToken, vehicleID string) error {
	return c.security(ctx, accessToken, vehicleID, "LOCK")
}

// Unlock 解锁
func (c *Client) Unlock(ctx context.Context, accessToken, vehicleID string) error {
	return c.security(ctx, accessToken, vehicleID, "UNLOCK")
}

func (c *Client) security(ctx context.Context, accessToken, vehicleID, action string) error {
	var resp securityResponse
	err := c.doRequest(ctx, accessToken, http.MethodPost, vehiclePath(vehicleID, "/security"), securityRequest{Action: action}, &resp)
	if err != nil {
		return fmt.Errorf("%s vehicle: %w", strings.ToLower(action), err)
	}
	if resp.Status != "" && resp.Status != "success" {
		return fmt.Errorf("%s vehicle: status=%s message=%s", strings.ToLower(action), resp.Status, resp.Message)
	}
	return nil
}

// percent 小数转百分比
func percent(frac *float64) *float64 {
	if frac == nil {
		return nil
	}
	v := *frac * 100
	return &v
}

// IsUnauthorized 是否为令牌失效
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
