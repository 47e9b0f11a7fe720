// internal/adapters/imagestore/cloudinary/client.go
package cloudinary

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"realty/internal/adapters/observability"
	"realty/internal/domain"
)

const DefaultBase = "https://api.cloudinary.com/v1_1"

type Client struct {
	base   string // includes cloud name
	hc     *http.Client
	key    string
	secret string
	rl     *rate.Limiter
	now    func() time.Time
}

func New(base, cloud, key, secret string, rps int) (*Client, error) {
	if cloud == "" || key == "" || secret == "" {
		return nil, fmt.Errorf("cloud name, API key and API secret are required")
	}
	if base == "" {
		base = DefaultBase
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base:   strings.TrimRight(base, "/") + "/" + cloud,
		hc:     &http.Client{Timeout: 60 * time.Second},
		key:    key,
		secret: secret,
		rl:     rate.NewLimiter(rate.Limit(rps), rps),
		now:    time.Now,
	}, nil
}

var (
	ErrUnauthorized = errors.New("cloudinary: unauthorized")
	ErrRejected     = errors.New("cloudinary: rejected")
)

type uploadResponse struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
}

type destroyResponse struct {
	Result string `json:"result"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ---- Public API ----

func (c *Client) Upload(ctx context.Context, req domain.UploadRequest) (img domain.ImageAsset, err error) {
	start := time.Now()
	defer func() { observability.ObserveImageStore("cloudinary", "upload", err, time.Since(start)) }()
	observability.ObserveUploadSize("cloudinary", len(req.Data))

	params := map[string]string{"timestamp": c.timestamp()}
	if req.Folder != "" {
		params["folder"] = req.Folder
	}
	if t := transformation(req.Transform); t != "" {
		params["transformation"] = t
	}
	c.sign(params)

	var out uploadResponse
	build := func() (io.Reader, string, error) {
		return multipartBody(params, req.Filename, req.Data)
	}
	if err := c.post(ctx, c.base+"/image/upload", false, build, &out); err != nil {
		return domain.ImageAsset{}, err
	}
	u := out.SecureURL
	if u == "" {
		u = out.URL
	}
	return domain.ImageAsset{URL: u, PublicID: out.PublicID}, nil
}

// Delete destroys the asset. An already missing asset counts as deleted.
func (c *Client) Delete(ctx context.Context, publicID string) (err error) {
	start := time.Now()
	defer func() { observability.ObserveImageStore("cloudinary", "delete", err, time.Since(start)) }()

	params := map[string]string{"public_id": publicID, "timestamp": c.timestamp()}
	c.sign(params)

	var out destroyResponse
	build := func() (io.Reader, string, error) {
		form := url.Values{}
		for k, v := range params {
			form.Set(k, v)
		}
		return strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil
	}
	if err := c.post(ctx, c.base+"/image/destroy", true, build, &out); err != nil {
		return err
	}
	switch out.Result {
	case "ok", "not found":
		return nil
	default:
		return fmt.Errorf("%w: destroy %q: result %q", ErrRejected, publicID, out.Result)
	}
}

// ---- Internals ----

func (c *Client) timestamp() string { return strconv.FormatInt(c.now().Unix(), 10) }

// sign adds api_key and the SHA-1 signature over the sorted parameters.
func (c *Client) sign(params map[string]string) {
	params["signature"] = Signature(params, c.secret)
	params["api_key"] = c.key
}

// Signature computes the request signature: parameters sorted by name, joined
// as k=v with '&', followed by the API secret, SHA-1 hex encoded. file,
// api_key, resource_type and cloud_name are never signed.
func Signature(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		switch k {
		case "file", "api_key", "resource_type", "cloud_name", "signature":
			continue
		}
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "&") + secret))
	return hex.EncodeToString(sum[:])
}

func transformation(t domain.Transform) string {
	var parts []string
	if t.Crop != "" {
		parts = append(parts, "c_"+t.Crop)
	}
	if t.Height > 0 {
		parts = append(parts, "h_"+strconv.Itoa(t.Height))
	}
	if t.Width > 0 {
		parts = append(parts, "w_"+strconv.Itoa(t.Width))
	}
	return strings.Join(parts, ",")
}

func multipartBody(params map[string]string, filename string, data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range params {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if filename == "" {
		filename = "upload"
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// post performs a POST with client-side rate limiting, retries, and JSON decode into out.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
// build is called once per attempt so every retry sends a fresh body.
// post sends one API call. Only idempotent calls are retried after network
// errors and 5xx; a 429 means nothing was stored, so it is always retried.
func (c *Client) post(ctx context.Context, endpoint string, idempotent bool, build func() (io.Reader, string, error), out any) error {
	// client-side rate limiting
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		body, contentType, err := build()
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "realty-api/1.0")

		resp, err := c.hc.Do(req)
		if err != nil {
			// network error or context canceled
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if idempotent && i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusUnauthorized, http.StatusForbidden:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			retry := idempotent || resp.StatusCode == http.StatusTooManyRequests
			if retry && i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			// 400/404/420 etc: surface the API's message
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			var ae apiError
			if json.Unmarshal(b, &ae) == nil && ae.Error.Message != "" {
				return fmt.Errorf("%w: %d: %s", ErrRejected, resp.StatusCode, ae.Error.Message)
			}
			return fmt.Errorf("%w: %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential delay (200ms, 400ms, 800ms...) with up to
// +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
