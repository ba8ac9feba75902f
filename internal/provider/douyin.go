package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/rs/zerolog"

	"dyfetch/internal/extract"
	"dyfetch/internal/httputil"
	"dyfetch/internal/media"
)

// Timeouts bounds each kind of request the resolver issues.
type Timeouts struct {
	Probe time.Duration // CDN redirect probe
	Page  time.Duration // Short-link hop, share page and slides API
}

// DefaultTimeouts returns a 10s probe and 30s page timeout.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Probe: 10 * time.Second,
		Page:  30 * time.Second,
	}
}

// Douyin resolves Douyin share links. It holds no per-call state and is safe
// for sequential reuse.
type Douyin struct {
	transport httputil.Transport
	extractor *extract.Extractor
	timeouts  Timeouts
	logger    zerolog.Logger
}

// NewDouyin creates a resolver issuing requests through transport.
func NewDouyin(transport httputil.Transport, timeouts Timeouts, logger zerolog.Logger) *Douyin {
	return &Douyin{
		transport: transport,
		extractor: extract.New(logger),
		timeouts:  timeouts,
		logger:    logger,
	}
}

// Resolve classifies shareURL, recovers its content identifier, fetches the
// content record and returns the normalized descriptor with a CDN-resolved
// video URL.
func (d *Douyin) Resolve(ctx context.Context, shareURL string) (*media.Descriptor, error) {
	route, err := Classify(shareURL)
	if err != nil {
		return nil, err
	}

	var id string
	switch route {
	case RoutePCDirect:
		u, _ := url.Parse(strings.TrimSpace(shareURL))
		id, err = ContentIDFromURL(u)
	case RouteAppRedirect:
		id, err = d.ResolveRedirect(ctx, shareURL)
	}
	if err != nil {
		return nil, err
	}
	if err := httputil.ValidateID(id); err != nil {
		return nil, media.Wrap(media.KindInvalidURL, err, "invalid content identifier")
	}

	log := d.logger.With().Str("content_id", id).Str("route", route.String()).Logger()
	log.Debug().Msg("Resolved content identifier")

	payload, isGallery, err := d.fetchPayload(ctx, id)
	if err != nil {
		return nil, err
	}

	desc, err := Normalize(id, payload, isGallery)
	if err != nil {
		return nil, err
	}

	if desc.VideoURL != "" {
		desc.VideoURL = d.probeCDN(ctx, desc.VideoURL)
	}

	if err := desc.Validate(); err != nil {
		return nil, media.Wrap(media.KindEmptyResult, err, "invalid descriptor")
	}

	log.Debug().
		Bool("gallery", desc.IsGallery()).
		Int("images", len(desc.Images)).
		Msg("Descriptor ready")
	return desc, nil
}

// ResolveRedirect follows one hop of a short link without following it
// further and returns the content identifier encoded in the target.
func (d *Douyin) ResolveRedirect(ctx context.Context, rawURL string) (string, error) {
	reqURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", media.Wrap(media.KindInvalidURL, err, "invalid share URL")
	}

	resp, err := d.transport.Get(ctx, httputil.Request{
		URL:     reqURL.String(),
		Timeout: d.timeouts.Page,
	})
	if err != nil {
		return "", media.Wrap(media.KindNetwork, err, "resolving short link")
	}

	location := resp.Header.Get("Location")
	if !resp.IsRedirect() || location == "" {
		return "", media.Errorf(media.KindNoRedirect, "short link returned status %d without a redirect", resp.StatusCode)
	}

	locURL, err := url.Parse(location)
	if err != nil {
		return "", media.Wrap(media.KindNoRedirect, err, "unreadable redirect target")
	}
	target := reqURL.ResolveReference(locURL)

	if strings.Contains(strings.ToLower(target.Hostname()), competitorDomain) {
		return "", media.Errorf(media.KindUnsupportedPlatform, "short link points at another platform").WithHost(target.Hostname())
	}

	id, err := ContentIDFromURL(target)
	if err != nil {
		return "", media.Errorf(media.KindNoRedirect, "redirect target %q has no content identifier", target.String())
	}

	d.logger.Debug().
		Str("url", rawURL).
		Str("location", target.String()).
		Msg("Short link resolved")
	return id, nil
}

// fetchPayload fetches the share page and recovers the content record.
// isGallery is true only when the slides API supplied the record.
func (d *Douyin) fetchPayload(ctx context.Context, id string) (extract.Payload, bool, error) {
	pageURL := httputil.BuildURL(sharePageBase, id)

	resp, err := d.transport.Get(ctx, httputil.Request{
		URL:             pageURL,
		Timeout:         d.timeouts.Page,
		FollowRedirects: true,
	})
	if err != nil {
		return extract.Payload{}, false, media.Wrap(media.KindNetwork, err, "fetching share page")
	}
	if !resp.OK() {
		return extract.Payload{}, false, media.Errorf(media.KindNetwork, "share page returned status %d", resp.StatusCode)
	}

	page, err := extract.NewPage(string(resp.Body), id)
	if err != nil {
		return extract.Payload{}, false, media.Wrap(media.KindPageStructureChanged, err, "unreadable share page")
	}

	if page.IsGallery() {
		payload, ok, err := d.fetchGallery(ctx, id)
		if err != nil {
			return extract.Payload{}, false, err
		}
		if ok {
			return payload, true, nil
		}
	}

	payload, err := d.extractor.ExtractPage(page)
	if err != nil {
		return extract.Payload{}, false, err
	}
	return payload, false, nil
}

// slidesQuery is the slides API query string.
type slidesQuery struct {
	ReflowSource  string `url:"reflow_source"`
	WebID         string `url:"web_id"`
	DeviceID      string `url:"device_id"`
	AwemeIDs      string `url:"aweme_ids"`
	RequestSource int    `url:"request_source"`
	ABogus        string `url:"a_bogus"`
}

// fetchGallery asks the slides API for a note's record. ok is false when the
// API gave nothing usable and the caller should fall back to the page.
// Only transport failures are errors.
func (d *Douyin) fetchGallery(ctx context.Context, id string) (extract.Payload, bool, error) {
	device := webID()
	v, err := query.Values(slidesQuery{
		ReflowSource:  "reflow_page",
		WebID:         device,
		DeviceID:      device,
		AwemeIDs:      fmt.Sprintf("[%s]", id),
		RequestSource: 200,
		ABogus:        placeholderSignature(),
	})
	if err != nil {
		return extract.Payload{}, false, fmt.Errorf("encoding slides query: %w", err)
	}

	log := d.logger.With().Str("content_id", id).Logger()

	resp, err := d.transport.Get(ctx, httputil.Request{
		URL:             slidesAPIURL + "?" + v.Encode(),
		Timeout:         d.timeouts.Page,
		FollowRedirects: true,
	})
	if err != nil {
		return extract.Payload{}, false, media.Wrap(media.KindNetwork, err, "fetching gallery details")
	}
	if !resp.OK() {
		log.Debug().Int("status", resp.StatusCode).Msg("Slides API unavailable, falling back to page")
		return extract.Payload{}, false, nil
	}

	var body struct {
		AwemeDetails []json.RawMessage `json:"aweme_details"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		log.Debug().Err(err).Msg("Slides API response undecodable, falling back to page")
		return extract.Payload{}, false, nil
	}
	if len(body.AwemeDetails) == 0 {
		log.Debug().Msg("Slides API returned no details, falling back to page")
		return extract.Payload{}, false, nil
	}

	payload, err := extract.DecodeStandard(body.AwemeDetails[0])
	if err != nil {
		log.Debug().Err(err).Msg("Slides API detail undecodable, falling back to page")
		return extract.Payload{}, false, nil
	}
	return payload, true, nil
}

// probeCDN returns the redirect target of videoURL, or videoURL itself when
// the probe fails or does not redirect.
func (d *Douyin) probeCDN(ctx context.Context, videoURL string) string {
	resp, err := d.transport.Get(ctx, httputil.Request{
		URL:     videoURL,
		Timeout: d.timeouts.Probe,
	})
	if err != nil {
		d.logger.Debug().Err(err).Str("url", videoURL).Msg("CDN probe failed, keeping play URL")
		return videoURL
	}

	location := resp.Header.Get("Location")
	if !resp.IsRedirect() || location == "" {
		return videoURL
	}

	base, err := url.Parse(videoURL)
	if err != nil {
		return videoURL
	}
	loc, err := url.Parse(location)
	if err != nil {
		return videoURL
	}
	return base.ResolveReference(loc).String()
}
