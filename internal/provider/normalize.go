package provider

import (
	"strings"

	"dyfetch/internal/extract"
	"dyfetch/internal/media"
)

// Normalize reduces a raw payload to a descriptor. Gallery stills take
// precedence over any play address, and isGallery suppresses the video
// entirely. A result with neither is media.ErrEmptyResult.
func Normalize(id string, p extract.Payload, isGallery bool) (*media.Descriptor, error) {
	d := &media.Descriptor{
		ID:    id,
		Title: p.Desc,
	}

	for _, img := range p.Images {
		u := PreferNonWebP(img.URLs)
		if u == "" {
			continue
		}
		item := media.ImageItem{URL: u}
		if len(img.ClipURLs) > 0 {
			item.LivePhotoURL = img.ClipURLs[0]
		}
		d.Images = append(d.Images, item)
	}

	if !isGallery && len(p.Video.PlayURLs) > 0 {
		d.VideoURL = StripWatermark(p.Video.PlayURLs[0])
	}
	// Gallery posts also carry the soundtrack as a play address.
	if len(d.Images) > 0 {
		d.VideoURL = ""
	}

	d.CoverURL = PreferNonWebP(p.Video.CoverURLs)

	d.Author = media.AuthorInfo{
		UID:  p.Author.SecUID,
		Name: p.Author.Nickname,
	}
	if len(p.Author.Avatars) > 0 {
		d.Author.Avatar = p.Author.Avatars[0]
	}

	if d.VideoURL == "" && len(d.Images) == 0 {
		return nil, media.Errorf(media.KindEmptyResult, "post %s has neither a video nor images", id)
	}
	return d, nil
}

// PreferNonWebP returns the first candidate that is not WebP, else the first
// candidate, else "".
func PreferNonWebP(candidates []string) string {
	for _, u := range candidates {
		if !strings.Contains(u, ".webp") {
			return u
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}

// StripWatermark swaps the watermarked play endpoint for the clean one.
func StripWatermark(u string) string {
	return strings.ReplaceAll(u, "playwm", "play")
}
