// Package media defines shared types for the dyfetch application.
package media

import "fmt"

// Descriptor is the canonical result of resolving a share link.
// A valid descriptor carries either a playable video or a gallery, never both.
type Descriptor struct {
	ID       string      `json:"id"`        // Content identifier
	Title    string      `json:"title"`     // Post description
	VideoURL string      `json:"video_url"` // Unwatermarked, CDN-resolved play URL
	CoverURL string      `json:"cover_url"` // Cover still
	Images   []ImageItem `json:"images"`    // Gallery items, empty for video posts
	Author   AuthorInfo  `json:"author"`
}

// ImageItem is a single gallery still with an optional motion clip.
type ImageItem struct {
	URL          string `json:"url"`
	LivePhotoURL string `json:"live_photo_url,omitempty"`
}

// AuthorInfo describes the post author. Empty fields mean "not recovered".
type AuthorInfo struct {
	UID    string `json:"uid"`    // sec_uid
	Name   string `json:"name"`   // Display name
	Avatar string `json:"avatar"` // Avatar thumbnail URL
}

// IsGallery reports whether the descriptor is an image gallery.
func (d *Descriptor) IsGallery() bool {
	return len(d.Images) > 0
}

// Validate checks the video/gallery exclusivity invariant.
func (d *Descriptor) Validate() error {
	hasVideo := d.VideoURL != ""
	hasImages := len(d.Images) > 0
	switch {
	case hasVideo && hasImages:
		return fmt.Errorf("descriptor %q has both a video and %d images", d.ID, len(d.Images))
	case !hasVideo && !hasImages:
		return ErrEmptyResult
	}
	return nil
}
