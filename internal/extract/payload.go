package extract

import (
	"encoding/json"
	"fmt"
)

// Kind tags what a payload carries.
type Kind int

const (
	KindUnknown Kind = iota
	KindVideo
	KindGallery
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindGallery:
		return "gallery"
	default:
		return "unknown"
	}
}

// Payload is the raw content record recovered from a page or the slides API,
// reduced to the fields the normalizer reads.
type Payload struct {
	Kind   Kind
	Desc   string
	Author Author
	Video  Video
	Images []Image
}

// Author holds the raw author fields.
type Author struct {
	SecUID   string
	Nickname string
	Avatars  []string
}

// Video holds play and cover URL candidates in platform order.
type Video struct {
	PlayURLs  []string
	CoverURLs []string
}

// Image holds the candidate URLs of one gallery still and its optional motion clip.
type Image struct {
	URLs     []string
	ClipURLs []string
}

// urlList is the {"url_list": [...]} wrapper used throughout the platform's JSON.
type urlList struct {
	URLList []string `json:"url_list"`
}

// standardImage is a gallery entry. Both shapes carry images this way.
type standardImage struct {
	URLList []string `json:"url_list"`
	Video   struct {
		PlayAddr urlList `json:"play_addr"`
	} `json:"video"`
}

// standardItem is the aweme record found in router data and the slides API.
type standardItem struct {
	Desc   string `json:"desc"`
	Author struct {
		SecUID      string  `json:"sec_uid"`
		Nickname    string  `json:"nickname"`
		AvatarThumb urlList `json:"avatar_thumb"`
	} `json:"author"`
	Video struct {
		PlayAddr urlList `json:"play_addr"`
		Cover    urlList `json:"cover"`
	} `json:"video"`
	Images []standardImage `json:"images"`
}

// hydratedItem is the looser record embedded by server-side rendering.
// The play address appears under either key, and the avatar is either a
// url_list object or a bare string.
type hydratedItem struct {
	Desc   string `json:"desc"`
	Author struct {
		SecUID      string          `json:"sec_uid"`
		Nickname    string          `json:"nickname"`
		AvatarThumb json.RawMessage `json:"avatar_thumb"`
	} `json:"author"`
	Video struct {
		PlayAddrCamel json.RawMessage `json:"playAddr"`
		PlayAddr      json.RawMessage `json:"play_addr"`
		Cover         json.RawMessage `json:"cover"`
	} `json:"video"`
	Images []standardImage `json:"images"`
}

// DecodeStandard decodes an aweme record in the standard shape.
func DecodeStandard(data []byte) (Payload, error) {
	var item standardItem
	if err := json.Unmarshal(data, &item); err != nil {
		return Payload{}, fmt.Errorf("decoding item: %w", err)
	}

	p := Payload{
		Desc: item.Desc,
		Author: Author{
			SecUID:   item.Author.SecUID,
			Nickname: item.Author.Nickname,
			Avatars:  item.Author.AvatarThumb.URLList,
		},
		Video: Video{
			PlayURLs:  item.Video.PlayAddr.URLList,
			CoverURLs: item.Video.Cover.URLList,
		},
		Images: convertImages(item.Images),
	}
	p.Kind = classify(p)
	return p, nil
}

// decodeHydrated decodes a server-rendered record into the same Payload a
// standard record with equivalent content would produce.
func decodeHydrated(data []byte) (Payload, error) {
	var item hydratedItem
	if err := json.Unmarshal(data, &item); err != nil {
		return Payload{}, fmt.Errorf("decoding item: %w", err)
	}

	play, ok := urlListOf(item.Video.PlayAddrCamel)
	if !ok {
		play, _ = urlListOf(item.Video.PlayAddr)
	}
	cover, _ := urlListOf(item.Video.Cover)

	p := Payload{
		Desc: item.Desc,
		Author: Author{
			SecUID:   item.Author.SecUID,
			Nickname: item.Author.Nickname,
			Avatars:  avatarOf(item.Author.AvatarThumb),
		},
		Video: Video{
			PlayURLs:  play,
			CoverURLs: cover,
		},
		Images: convertImages(item.Images),
	}
	p.Kind = classify(p)
	return p, nil
}

// urlListOf reads a {"url_list": [...]} object. ok is false when the field is
// absent or not such an object.
func urlListOf(raw json.RawMessage) ([]string, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	listRaw, found := obj["url_list"]
	if !found {
		return nil, false
	}
	var list []string
	if err := json.Unmarshal(listRaw, &list); err != nil {
		return nil, false
	}
	return list, true
}

func avatarOf(raw json.RawMessage) []string {
	if list, ok := urlListOf(raw); ok {
		return list
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return []string{s}
	}
	return nil
}

func convertImages(in []standardImage) []Image {
	if len(in) == 0 {
		return nil
	}
	out := make([]Image, 0, len(in))
	for _, img := range in {
		out = append(out, Image{
			URLs:     img.URLList,
			ClipURLs: img.Video.PlayAddr.URLList,
		})
	}
	return out
}

func classify(p Payload) Kind {
	switch {
	case len(p.Images) > 0:
		return KindGallery
	case len(p.Video.PlayURLs) > 0:
		return KindVideo
	default:
		return KindUnknown
	}
}
