// Package provider turns Douyin share links into media descriptors.
package provider

import (
	"context"

	"dyfetch/internal/media"
)

// Resolver is the interface the CLI consumes.
type Resolver interface {
	// Resolve turns a share URL into a validated descriptor. Failures are
	// *media.Error values.
	Resolve(ctx context.Context, shareURL string) (*media.Descriptor, error)
}

// Hosts recognized by the classifier.
const (
	hostShareDirect = "www.iesdouyin.com"
	hostWebDirect   = "www.douyin.com"
	hostShortLink   = "v.douyin.com"

	// competitorDomain hosts content the pipeline cannot resolve.
	competitorDomain = "ixigua.com"
)

// Platform endpoints.
const (
	sharePageBase = "https://www.iesdouyin.com/share/video"
	slidesAPIURL  = "https://www.iesdouyin.com/web/api/v2/aweme/slidesinfo/"
)

var _ Resolver = (*Douyin)(nil)
