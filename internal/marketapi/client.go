// Package marketapi calls the marketplace's HTTPS endpoints: token
// issuance for the socket registration and item-detail lookup. Both are
// external collaborators; failures here abandon the triggering message,
// never the process.
package marketapi

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ktao87/goofish-agent/internal/domain"
)

const (
	defaultBaseURL = "https://h5api.m.goofish.com/h5"

	// signAppKey signs mtop requests; regAppKey identifies the web IM
	// application inside request payloads. Both are protocol constants.
	signAppKey = "34839810"
	regAppKey  = "444e9908a51d1cb236a27862abc769c9"

	tokenAPI = "mtop.taobao.idlemessage.pc.login.token"
	itemAPI  = "mtop.taobao.idle.pc.detail"
)

// Client is an mtop-style HTTP API client authenticated by the
// operator's raw browser cookies.
type Client struct {
	baseURL    string
	rawCookies string
	cookies    map[string]string
	httpClient *http.Client
}

// NewClient builds a client from the raw cookie string captured from a
// logged-in browser session.
func NewClient(cookieStr string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		rawCookies: cookieStr,
		cookies:    ParseCookies(cookieStr),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetBaseURL overrides the API root. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimSuffix(u, "/")
}

// ParseCookies splits a raw Cookie header value into a name/value map.
// Values may themselves contain '=' characters.
func ParseCookies(cookieStr string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(cookieStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		out[name] = value
	}
	return out
}

// UserID returns the account id ("unb" cookie) the session belongs to.
func (c *Client) UserID() string {
	return c.cookies["unb"]
}

// Sign computes the mtop request signature:
// md5(token & timestamp & appKey & data).
func Sign(token, timestamp, data string) string {
	msg := token + "&" + timestamp + "&" + signAppKey + "&" + data
	sum := md5.Sum([]byte(msg))
	return hex.EncodeToString(sum[:])
}

// signToken is the signing secret: the first segment of the _m_h5_tk
// cookie issued on login.
func (c *Client) signToken() string {
	tk := c.cookies["_m_h5_tk"]
	if i := strings.Index(tk, "_"); i >= 0 {
		return tk[:i]
	}
	return tk
}

type mtopResponse struct {
	Ret  []string        `json:"ret"`
	Data json.RawMessage `json:"data"`
}

// call performs one signed mtop POST and returns the data block.
func (c *Client) call(ctx context.Context, api, data string) (json.RawMessage, error) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)

	params := url.Values{
		"jsv":         {"2.7.2"},
		"appKey":      {signAppKey},
		"t":           {ts},
		"sign":        {Sign(c.signToken(), ts, data)},
		"v":           {"1.0"},
		"type":        {"originaljson"},
		"accountSite": {"xianyu"},
		"dataType":    {"json"},
		"timeout":     {"20000"},
		"api":         {api},
		"sessionOption": {
			"AutoLoginOnly",
		},
	}

	endpoint := fmt.Sprintf("%s/%s/1.0/?%s", c.baseURL, api, params.Encode())
	form := url.Values{"data": {data}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("marketapi: build %s request: %w", api, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cookie", c.rawCookies)
	req.Header.Set("Origin", "https://www.goofish.com")
	req.Header.Set("Referer", "https://www.goofish.com/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketapi: call %s: %w", api, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("marketapi: read %s response: %w", api, err)
	}

	var parsed mtopResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("marketapi: decode %s response: %w", api, err)
	}
	if len(parsed.Ret) == 0 || !strings.HasPrefix(parsed.Ret[0], "SUCCESS") {
		return nil, fmt.Errorf("marketapi: %s rejected: %v", api, parsed.Ret)
	}
	return parsed.Data, nil
}

// Token obtains the access token used in the socket registration frame.
func (c *Client) Token(ctx context.Context, deviceID string) (string, error) {
	data, err := json.Marshal(map[string]string{
		"appKey":   regAppKey,
		"deviceId": deviceID,
	})
	if err != nil {
		return "", fmt.Errorf("marketapi: marshal token request: %w", err)
	}

	raw, err := c.call(ctx, tokenAPI, string(data))
	if err != nil {
		return "", err
	}

	var parsed struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("marketapi: decode token data: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("marketapi: token response missing accessToken")
	}
	return parsed.AccessToken, nil
}

// ItemInfo fetches listing metadata for an item id.
func (c *Client) ItemInfo(ctx context.Context, itemID string) (*domain.Item, error) {
	data, err := json.Marshal(map[string]string{"itemId": itemID})
	if err != nil {
		return nil, fmt.Errorf("marketapi: marshal item request: %w", err)
	}

	raw, err := c.call(ctx, itemAPI, string(data))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		ItemDO json.RawMessage `json:"itemDO"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("marketapi: decode item data: %w", err)
	}
	if len(parsed.ItemDO) == 0 {
		return nil, fmt.Errorf("marketapi: item %s has no detail block", itemID)
	}

	var itemDO struct {
		Desc      string          `json:"desc"`
		SoldPrice json.RawMessage `json:"soldPrice"`
	}
	if err := json.Unmarshal(parsed.ItemDO, &itemDO); err != nil {
		return nil, fmt.Errorf("marketapi: decode itemDO: %w", err)
	}

	return &domain.Item{
		ItemID:      itemID,
		Description: itemDO.Desc,
		SoldPrice:   rawToString(itemDO.SoldPrice),
		Raw:         string(parsed.ItemDO),
		LastUpdated: time.Now(),
	}, nil
}

// rawToString renders a JSON scalar that may be a quoted string or a
// bare number.
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
