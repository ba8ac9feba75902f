package extract

import (
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"dyfetch/internal/media"
)

// Strategy recovers a payload from one inline JSON format.
type Strategy struct {
	Name string
	Func func(p *Page) (Payload, error)
}

// DefaultStrategies is the fixed try order, most current page format first.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "router-data", Func: routerData},
		{Name: "ssr-hydrated", Func: ssrHydrated},
		{Name: "render-data-script", Func: renderDataScript},
		{Name: "render-data-global", Func: renderDataGlobal},
		{Name: "raw-fragment", Func: rawFragment},
	}
}

var (
	routerDataRe       = regexp.MustCompile(`(?s)window\._ROUTER_DATA\s*=\s*(.*?)</script>`)
	ssrHydratedRe      = regexp.MustCompile(`(?s)window\._SSR_HYDRATED_DATA\s*=\s*({.+?});`)
	renderDataGlobalRe = regexp.MustCompile(`(?s)window\.RENDER_DATA\s*=\s*({.+?});`)

	fragmentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?s)"videoData":\s*({.+?}),`),
		regexp.MustCompile(`(?s)"aweme_detail":\s*({.+?}),`),
		regexp.MustCompile(`(?s)"itemList":\s*\[({.+?})\]`),
	}
)

// Router data keys its page entry by this literal route template, or by the
// concrete route on older pages.
const routerPageKey = "video_(id)/page"

func routerData(p *Page) (Payload, error) {
	m := routerDataRe.FindStringSubmatch(p.Raw)
	if m == nil {
		return Payload{}, fmt.Errorf("%w: no _ROUTER_DATA assignment", errNoMatch)
	}
	text := strings.TrimSuffix(strings.TrimSpace(m[1]), ";")

	var doc struct {
		LoaderData map[string]json.RawMessage `json:"loaderData"`
	}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", errNoMatch, err)
	}

	pageData, ok := doc.LoaderData[routerPageKey]
	if !ok {
		pageData, ok = doc.LoaderData[fmt.Sprintf("video_%s/page", p.ID)]
	}
	if !ok {
		return Payload{}, fmt.Errorf("%w: no page entry in loaderData", errNoMatch)
	}

	var entry struct {
		VideoInfoRes *struct {
			ItemList   []json.RawMessage `json:"item_list"`
			FilterList []struct {
				AwemeID      string `json:"aweme_id"`
				FilterReason string `json:"filter_reason"`
				DetailMsg    string `json:"detail_msg"`
			} `json:"filter_list"`
		} `json:"videoInfoRes"`
	}
	if err := json.Unmarshal(pageData, &entry); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", errNoMatch, err)
	}
	if entry.VideoInfoRes == nil {
		return Payload{}, fmt.Errorf("%w: no videoInfoRes", errNoMatch)
	}

	if len(entry.VideoInfoRes.ItemList) > 0 {
		payload, err := DecodeStandard(entry.VideoInfoRes.ItemList[0])
		if err != nil {
			return Payload{}, fmt.Errorf("%w: %v", errNoMatch, err)
		}
		return payload, nil
	}

	for _, f := range entry.VideoInfoRes.FilterList {
		if f.AwemeID == p.ID {
			reason := f.FilterReason
			if reason == "" {
				reason = "unknown reason"
			}
			return Payload{}, media.Rejected(reason, f.DetailMsg)
		}
	}
	return Payload{}, fmt.Errorf("%w: empty item_list", errNoMatch)
}

func ssrHydrated(p *Page) (Payload, error) {
	m := ssrHydratedRe.FindStringSubmatch(p.Raw)
	if m == nil {
		return Payload{}, fmt.Errorf("%w: no _SSR_HYDRATED_DATA assignment", errNoMatch)
	}
	return fromDefaultScope(unescapeEntities(m[1]), "videoData")
}

func renderDataScript(p *Page) (Payload, error) {
	sel := p.Doc.Find("script#RENDER_DATA").First()
	if sel.Length() == 0 {
		return Payload{}, fmt.Errorf("%w: no RENDER_DATA script", errNoMatch)
	}
	text := strings.TrimSpace(sel.Text())
	if text == "" {
		return Payload{}, fmt.Errorf("%w: empty RENDER_DATA script", errNoMatch)
	}
	return fromDefaultScope(percentDecode(text), "videoData", "aweme")
}

func renderDataGlobal(p *Page) (Payload, error) {
	m := renderDataGlobalRe.FindStringSubmatch(p.Raw)
	if m == nil {
		return Payload{}, fmt.Errorf("%w: no RENDER_DATA assignment", errNoMatch)
	}
	return fromDefaultScope(percentDecode(unescapeEntities(m[1])), "videoData")
}

func rawFragment(p *Page) (Payload, error) {
	for _, re := range fragmentPatterns {
		m := re.FindStringSubmatch(p.Raw)
		if m == nil {
			continue
		}
		text := percentDecode(unescapeEntities(m[1]))
		if !json.Valid([]byte(text)) || text == "{}" {
			continue
		}
		payload, err := decodeHydrated([]byte(text))
		if err != nil {
			continue
		}
		return payload, nil
	}
	return Payload{}, fmt.Errorf("%w: no embedded fragment", errNoMatch)
}

// fromDefaultScope decodes text and returns the first present key of its
// defaultScope object as a hydrated record.
func fromDefaultScope(text string, keys ...string) (Payload, error) {
	var doc struct {
		DefaultScope map[string]json.RawMessage `json:"defaultScope"`
	}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", errNoMatch, err)
	}
	for _, key := range keys {
		raw, ok := doc.DefaultScope[key]
		if !ok {
			continue
		}
		payload, err := decodeHydrated(raw)
		if err != nil {
			return Payload{}, fmt.Errorf("%w: %v", errNoMatch, err)
		}
		return payload, nil
	}
	return Payload{}, fmt.Errorf("%w: defaultScope has none of %v", errNoMatch, keys)
}

func unescapeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return html.UnescapeString(s)
}

// percentDecode leaves s untouched when it is not valid percent-encoding.
func percentDecode(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}
