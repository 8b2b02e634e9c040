// Package media looks up video thumbnails through oEmbed.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrUnsupported is returned for media hosted somewhere without a known
// oEmbed endpoint. Callers fall back to the category picture.
var ErrUnsupported = errors.New("no oEmbed provider for media url")

type Thumbnailer interface {
	Thumbnail(ctx context.Context, mediaURL string) (string, error)
}

// DefaultEndpoints maps a media host suffix to its oEmbed endpoint.
var DefaultEndpoints = map[string]string{
	"youtube.com": "https://www.youtube.com/oembed",
	"youtu.be":    "https://www.youtube.com/oembed",
	"vimeo.com":   "https://vimeo.com/api/oembed.json",
}

type OEmbed struct {
	client    *resty.Client
	endpoints map[string]string
}

func NewOEmbed(timeout time.Duration, endpoints map[string]string) *OEmbed {
	if endpoints == nil {
		endpoints = DefaultEndpoints
	}
	return &OEmbed{
		client:    resty.New().SetTimeout(timeout).SetHeader("Accept", "application/json"),
		endpoints: endpoints,
	}
}

type oembedResponse struct {
	ThumbnailURL string `json:"thumbnail_url"`
}

func (o *OEmbed) endpointFor(mediaURL string) (string, error) {
	u, err := url.Parse(mediaURL)
	if err != nil || u.Host == "" {
		return "", ErrUnsupported
	}
	host := strings.ToLower(u.Hostname())
	for suffix, endpoint := range o.endpoints {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return endpoint, nil
		}
	}
	return "", ErrUnsupported
}

func (o *OEmbed) Thumbnail(ctx context.Context, mediaURL string) (string, error) {
	endpoint, err := o.endpointFor(mediaURL)
	if err != nil {
		return "", err
	}

	var out oembedResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"url": mediaURL, "format": "json"}).
		SetResult(&out).
		Get(endpoint)
	if err != nil {
		return "", fmt.Errorf("oembed request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("oembed %s: status %d", endpoint, resp.StatusCode())
	}
	if out.ThumbnailURL == "" {
		return "", fmt.Errorf("oembed %s: empty thumbnail", endpoint)
	}
	return out.ThumbnailURL, nil
}
