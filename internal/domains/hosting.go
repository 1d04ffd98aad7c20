package domains

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

	"github.com/hashicorp/go-cleanhttp"
	"github.com/patissio/patissio/internal/apierror"
	"github.com/patissio/patissio/internal/circuitbreaker"
	"github.com/patissio/patissio/internal/metrics"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/tidwall/gjson"
)

const upstreamName = "hosting"

// HostingConfig holds the project API credentials.
type HostingConfig struct {
	BaseURL   string
	Token     string
	ProjectID string
	TeamID    string
}

// HostingClient talks to a Vercel-style project domains API.
type HostingClient struct {
	cfg     HostingConfig
	http    *http.Client
	breaker *circuitbreaker.Breaker
}

// NewHostingClient returns a client for cfg. breaker may be shared with
// other upstream clients; calls are keyed "hosting".
func NewHostingClient(cfg HostingConfig, breaker *circuitbreaker.Breaker) *HostingClient {
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = 10 * time.Second
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HostingClient{cfg: cfg, http: client, breaker: breaker}
}

func (h *HostingClient) AddDomain(ctx context.Context, domain string) (*Verification, error) {
	body, _ := json.Marshal(map[string]string{"name": domain})
	res, err := h.do(ctx, http.MethodPost, "/v10/projects/"+url.PathEscape(h.cfg.ProjectID)+"/domains", body)
	if err != nil {
		return nil, err
	}
	return parseVerification(res), nil
}

func (h *HostingClient) VerifyDomain(ctx context.Context, domain string) (*Verification, error) {
	res, err := h.do(ctx, http.MethodPost, h.domainPath(domain)+"/verify", nil)
	if err != nil {
		return nil, err
	}
	return parseVerification(res), nil
}

func (h *HostingClient) RemoveDomain(ctx context.Context, domain string) error {
	_, err := h.do(ctx, http.MethodDelete, h.domainPath(domain), nil)
	return err
}

func (h *HostingClient) domainPath(domain string) string {
	return "/v9/projects/" + url.PathEscape(h.cfg.ProjectID) + "/domains/" + url.PathEscape(domain)
}

// do sends one request through the breaker. Provider-side rejections of
// the domain are not upstream failures and do not trip it.
func (h *HostingClient) do(ctx context.Context, method, path string, body []byte) (gjson.Result, error) {
	var result gjson.Result
	var rejected error
	err := h.breaker.Call(ctx, upstreamName, func(ctx context.Context) error {
		u := h.cfg.BaseURL + path
		if h.cfg.TeamID != "" {
			u += "?teamId=" + url.QueryEscape(h.cfg.TeamID)
		}
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+h.cfg.Token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := h.http.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("hosting %s %s: status %d", method, path, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			rejected = rejection(resp.StatusCode, raw)
			return nil
		}
		result = gjson.ParseBytes(raw)
		return nil
	})
	if err != nil {
		metrics.UpstreamFailuresTotal.WithLabelValues(upstreamName).Inc()
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return result, err
		}
		return result, apierror.New("hosting_error", "domain provider request failed", fmt.Errorf("%w: %v", apierror.ErrUpstream, err))
	}
	return result, rejected
}

func rejection(status int, raw []byte) error {
	code := gjson.GetBytes(raw, "error.code").String()
	msg := gjson.GetBytes(raw, "error.message").String()
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch {
	case code == "domain_already_in_use" || status == http.StatusConflict:
		return tenant.ErrDomainTaken
	case status == http.StatusNotFound:
		return apierror.New("domain_not_found", msg, apierror.ErrNotFound)
	default:
		return apierror.New("hosting_rejected", msg, apierror.ErrUpstream)
	}
}

func parseVerification(res gjson.Result) *Verification {
	v := &Verification{Verified: res.Get("verified").Bool(), Records: []DNSRecord{}}
	res.Get("verification").ForEach(func(_, rec gjson.Result) bool {
		v.Records = append(v.Records, DNSRecord{
			Type:   rec.Get("type").String(),
			Name:   rec.Get("domain").String(),
			Value:  rec.Get("value").String(),
			Reason: rec.Get("reason").String(),
		})
		return true
	})
	return v
}

var _ Provider = (*HostingClient)(nil)
