// Package wcs talks to the Météo-France AROME WCS 2.0.1 endpoint: a
// GetCapabilities scan to find the latest published run for a parameter,
// and GetCoverage to download one forecast-hour grid.
package wcs

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/nwp-overlay/internal/domain"
)

// Client is the upstream WCS client.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a WCS client. baseURL is the service root, e.g.
// https://public-api.meteofrance.fr/public/arome/1.0/wcs/MF-NWP-HIGHRES-AROME-001-FRANCE-WCS.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// LatestReference scans the capabilities document for the newest reference
// time published for the parameter's coverage pattern. An error here means
// the upstream index is unusable and the whole parameter fetch aborts.
func (c *Client) LatestReference(ctx context.Context, p domain.Parameter) (time.Time, error) {
	spec, err := domain.Spec(p)
	if err != nil {
		return time.Time{}, err
	}
	prefix, suffix, err := splitPattern(spec.CoveragePattern)
	if err != nil {
		return time.Time{}, err
	}

	params := url.Values{
		"service":  {"WCS"},
		"version":  {"2.0.1"},
		"language": {"eng"},
	}
	body, err := c.get(ctx, "/GetCapabilities", params)
	if err != nil {
		return time.Time{}, fmt.Errorf("fetch capabilities: %w", err)
	}

	var caps capabilities
	if err := xml.Unmarshal(body, &caps); err != nil {
		return time.Time{}, fmt.Errorf("parse capabilities: %w", err)
	}

	var latest time.Time
	for _, id := range caps.CoverageIDs() {
		if !strings.HasPrefix(id, prefix) || !strings.HasSuffix(id, suffix) {
			continue
		}
		stamp := id[len(prefix) : len(id)-len(suffix)]
		ref, err := time.Parse(domain.ReferenceTimeFormat, stamp)
		if err != nil {
			c.logger.Warn("coverage id with unparseable reference time", "coverage_id", id)
			continue
		}
		if ref.After(latest) {
			latest = ref
		}
	}
	if latest.IsZero() {
		return time.Time{}, fmt.Errorf("no coverage matches pattern %q", spec.CoveragePattern)
	}
	return latest, nil
}

// FetchOffset downloads the GRIB blob for one forecast-hour offset of a run.
func (c *Client) FetchOffset(ctx context.Context, p domain.Parameter, ref time.Time, offset int) ([]byte, error) {
	spec, err := domain.Spec(p)
	if err != nil {
		return nil, err
	}
	subset := ref.UTC().Add(time.Duration(offset) * time.Hour).Format("2006-01-02T15:04:05Z")
	params := url.Values{
		"service":    {"WCS"},
		"version":    {"2.0.1"},
		"coverageid": {spec.CoverageID(ref)},
		"subset":     {fmt.Sprintf("time(%s)", subset)},
		"format":     {"application/wmo-grib"},
	}
	body, err := c.get(ctx, "/GetCoverage", params)
	if err != nil {
		return nil, fmt.Errorf("fetch coverage %s +%03dh: %w", p, offset, err)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wcs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("wcs API error: status %d: %s", resp.StatusCode, snippet)
	}
	return io.ReadAll(resp.Body)
}

// splitPattern splits a coverage pattern around its {reference_time}
// placeholder.
func splitPattern(pattern string) (prefix, suffix string, err error) {
	parts := strings.SplitN(pattern, "{reference_time}", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("coverage pattern %q lacks {reference_time}", pattern)
	}
	return parts[0], parts[1], nil
}

// WCS capabilities document, reduced to the coverage summary list.

type capabilities struct {
	XMLName  xml.Name             `xml:"Capabilities"`
	Contents capabilitiesContents `xml:"Contents"`
}

type capabilitiesContents struct {
	Summaries []coverageSummary `xml:"CoverageSummary"`
}

type coverageSummary struct {
	CoverageID string `xml:"CoverageId"`
}

func (c *capabilities) CoverageIDs() []string {
	ids := make([]string, 0, len(c.Contents.Summaries))
	for _, s := range c.Contents.Summaries {
		ids = append(ids, s.CoverageID)
	}
	return ids
}
