package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dyfetch/internal/httputil"
	"dyfetch/internal/media"
)

const testID = "7312345678901234567"

// route answers requests whose URL starts with prefix.
type route struct {
	prefix string
	handle func(req httputil.Request) (*httputil.Response, error)
}

// fakeTransport serves canned responses and records every request.
type fakeTransport struct {
	routes []route
	calls  []httputil.Request
}

func (f *fakeTransport) on(prefix string, handle func(httputil.Request) (*httputil.Response, error)) *fakeTransport {
	f.routes = append(f.routes, route{prefix: prefix, handle: handle})
	return f
}

func (f *fakeTransport) Get(_ context.Context, req httputil.Request) (*httputil.Response, error) {
	f.calls = append(f.calls, req)
	for _, r := range f.routes {
		if strings.HasPrefix(req.URL, r.prefix) {
			return r.handle(req)
		}
	}
	return nil, errors.New("connection refused")
}

func (f *fakeTransport) Stream(context.Context, httputil.Request) (*http.Response, error) {
	return nil, errors.New("not implemented")
}

func redirectTo(location string) func(httputil.Request) (*httputil.Response, error) {
	return func(httputil.Request) (*httputil.Response, error) {
		return &httputil.Response{
			StatusCode: http.StatusFound,
			Header:     http.Header{"Location": []string{location}},
		}, nil
	}
}

func status(code int, body string) func(httputil.Request) (*httputil.Response, error) {
	return func(httputil.Request) (*httputil.Response, error) {
		return &httputil.Response{StatusCode: code, Header: http.Header{}, Body: []byte(body)}, nil
	}
}

func fixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

func newTestDouyin(ft *fakeTransport) *Douyin {
	return NewDouyin(ft, DefaultTimeouts(), zerolog.Nop())
}

const (
	sharePage  = "https://www.iesdouyin.com/share/video/" + testID
	playPrefix = "https://aweme.snssdk.com/aweme/v1/play/"
	cdnURL     = "https://v26-web.douyinvod.com/0a1b2c/video.mp4"
)

func TestResolveRedirectExtractsID(t *testing.T) {
	ft := (&fakeTransport{}).on("https://v.douyin.com/", redirectTo("/share/video/"+testID+"/"))
	d := newTestDouyin(ft)

	id, err := d.ResolveRedirect(context.Background(), "https://v.douyin.com/iRNBho6u/")
	require.NoError(t, err)
	assert.Equal(t, testID, id)

	require.Len(t, ft.calls, 1)
	assert.False(t, ft.calls[0].FollowRedirects)
}

func TestResolveRedirectModalID(t *testing.T) {
	ft := (&fakeTransport{}).on("https://v.douyin.com/",
		redirectTo("https://www.douyin.com/jingxuan?modal_id="+testID))
	d := newTestDouyin(ft)

	id, err := d.ResolveRedirect(context.Background(), "https://v.douyin.com/iRNBho6u/")
	require.NoError(t, err)
	assert.Equal(t, testID, id)
}

func TestResolveRedirectCompetitor(t *testing.T) {
	ft := (&fakeTransport{}).on("https://v.douyin.com/",
		redirectTo("https://www.ixigua.com/7312345678901234567"))
	d := newTestDouyin(ft)

	_, err := d.Resolve(context.Background(), "https://v.douyin.com/abc123/")
	require.Error(t, err)
	assert.ErrorIs(t, err, media.ErrUnsupportedPlatform)
	assert.Len(t, ft.calls, 1)
}

func TestResolveRedirectFailures(t *testing.T) {
	tests := []struct {
		name   string
		handle func(httputil.Request) (*httputil.Response, error)
		want   error
	}{
		{"200 without redirect", status(http.StatusOK, "<html></html>"), media.ErrNoRedirect},
		{"302 without location", status(http.StatusFound, ""), media.ErrNoRedirect},
		{"target without identifier", redirectTo("https://www.douyin.com/"), media.ErrNoRedirect},
		{"transport failure", func(httputil.Request) (*httputil.Response, error) {
			return nil, errors.New("dial tcp: i/o timeout")
		}, media.ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := (&fakeTransport{}).on("https://v.douyin.com/", tt.handle)
			_, err := newTestDouyin(ft).ResolveRedirect(context.Background(), "https://v.douyin.com/x/")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResolveVideo(t *testing.T) {
	ft := (&fakeTransport{}).
		on("https://v.douyin.com/", redirectTo("https://www.iesdouyin.com/share/video/"+testID+"/?region=CN")).
		on(sharePage, status(http.StatusOK, fixture(t, "share_video.html"))).
		on(playPrefix, redirectTo(cdnURL))
	d := newTestDouyin(ft)

	desc, err := d.Resolve(context.Background(), "https://v.douyin.com/iRNBho6u/")
	require.NoError(t, err)

	assert.Equal(t, testID, desc.ID)
	assert.Equal(t, "周末去海边 #vlog", desc.Title)
	assert.Equal(t, cdnURL, desc.VideoURL)
	assert.Equal(t, "https://p3.douyinpic.com/obj/cover.jpeg", desc.CoverURL)
	assert.Empty(t, desc.Images)
	assert.Equal(t, media.AuthorInfo{
		UID:    "MS4wLjABAAAAexample",
		Name:   "小海",
		Avatar: "https://p3.douyinpic.com/aweme/100x100/avatar.jpeg",
	}, desc.Author)
	require.NoError(t, desc.Validate())

	// short link, share page, CDN probe
	require.Len(t, ft.calls, 3)
	probe := ft.calls[2]
	assert.False(t, probe.FollowRedirects)
	assert.Equal(t, DefaultTimeouts().Probe, probe.Timeout)
	assert.NotContains(t, probe.URL, "playwm")
}

func TestResolveDirectHostsSkipRedirect(t *testing.T) {
	for _, shareURL := range []string{
		"https://www.iesdouyin.com/share/video/" + testID + "/",
		"https://www.douyin.com/video/" + testID,
		"https://www.douyin.com/jingxuan?modal_id=" + testID,
	} {
		t.Run(shareURL, func(t *testing.T) {
			ft := (&fakeTransport{}).
				on(sharePage, status(http.StatusOK, fixture(t, "share_video.html"))).
				on(playPrefix, status(http.StatusOK, ""))
			desc, err := newTestDouyin(ft).Resolve(context.Background(), shareURL)
			require.NoError(t, err)

			assert.Equal(t, testID, desc.ID)
			// No CDN redirect: the watermark-free play URL is kept.
			assert.True(t, strings.HasPrefix(desc.VideoURL, playPrefix))
			assert.Equal(t, sharePage, ft.calls[0].URL)
		})
	}
}

func TestResolveProbeFailureKeepsURL(t *testing.T) {
	ft := (&fakeTransport{}).on(sharePage, status(http.StatusOK, fixture(t, "share_video.html")))
	desc, err := newTestDouyin(ft).Resolve(context.Background(), sharePage)
	require.NoError(t, err)
	assert.Equal(t, "https://aweme.snssdk.com/aweme/v1/play/?video_id=v0200fg10000&ratio=720p&line=0", desc.VideoURL)
}

func TestResolveGalleryUsesSlidesAPI(t *testing.T) {
	var apiQuery url.Values
	ft := (&fakeTransport{}).
		on(sharePage, status(http.StatusOK, fixture(t, "share_note.html"))).
		on(slidesAPIURL, func(req httputil.Request) (*httputil.Response, error) {
			u, err := url.Parse(req.URL)
			require.NoError(t, err)
			apiQuery = u.Query()
			return status(http.StatusOK, fixture(t, "slides_response.json"))(req)
		})
	desc, err := newTestDouyin(ft).Resolve(context.Background(), sharePage)
	require.NoError(t, err)

	assert.True(t, desc.IsGallery())
	assert.Empty(t, desc.VideoURL)
	require.Len(t, desc.Images, 2)
	assert.Equal(t, "https://p3.douyinpic.com/tos/1.jpeg", desc.Images[0].URL)
	assert.Equal(t, "https://v26.douyinvod.com/live/1.mp4", desc.Images[0].LivePhotoURL)
	assert.Equal(t, "https://p3.douyinpic.com/tos/2.webp", desc.Images[1].URL)
	assert.Empty(t, desc.Images[1].LivePhotoURL)

	require.NotNil(t, apiQuery)
	assert.Equal(t, "reflow_page", apiQuery.Get("reflow_source"))
	assert.Equal(t, "["+testID+"]", apiQuery.Get("aweme_ids"))
	assert.Equal(t, "200", apiQuery.Get("request_source"))
	assert.Len(t, apiQuery.Get("web_id"), 17)
	assert.Equal(t, apiQuery.Get("web_id"), apiQuery.Get("device_id"))
	assert.Len(t, apiQuery.Get("a_bogus"), 64)

	// No probe for galleries.
	assert.Len(t, ft.calls, 2)
}

func TestResolveGalleryFallsBackToPage(t *testing.T) {
	tests := []struct {
		name   string
		handle func(httputil.Request) (*httputil.Response, error)
	}{
		{"empty details", status(http.StatusOK, `{"status_code":0,"aweme_details":[]}`)},
		{"server error", status(http.StatusBadGateway, "")},
		{"not json", status(http.StatusOK, "<html>captcha</html>")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := (&fakeTransport{}).
				on(sharePage, status(http.StatusOK, fixture(t, "share_note.html"))).
				on(slidesAPIURL, tt.handle)
			desc, err := newTestDouyin(ft).Resolve(context.Background(), sharePage)
			require.NoError(t, err)

			// The page record still carries images, which win over the soundtrack.
			assert.True(t, desc.IsGallery())
			assert.Empty(t, desc.VideoURL)
			assert.Len(t, desc.Images, 2)
		})
	}
}

func TestResolveGalleryTransportFailure(t *testing.T) {
	ft := (&fakeTransport{}).on(sharePage, status(http.StatusOK, fixture(t, "share_note.html")))
	_, err := newTestDouyin(ft).Resolve(context.Background(), sharePage)
	assert.ErrorIs(t, err, media.ErrNetwork)
}

func TestResolveSharePageFailures(t *testing.T) {
	tests := []struct {
		name   string
		handle func(httputil.Request) (*httputil.Response, error)
		want   error
	}{
		{"not found", status(http.StatusNotFound, ""), media.ErrNetwork},
		{"transport failure", func(httputil.Request) (*httputil.Response, error) {
			return nil, io.ErrUnexpectedEOF
		}, media.ErrNetwork},
		{"unknown markup", status(http.StatusOK, "<html><body>verify you are human</body></html>"), media.ErrPageStructureChanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := (&fakeTransport{}).on(sharePage, tt.handle)
			_, err := newTestDouyin(ft).Resolve(context.Background(), sharePage)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResolveEmptyRecord(t *testing.T) {
	page := `<script>window._ROUTER_DATA = {"loaderData":{"video_(id)/page":{"videoInfoRes":{"item_list":[{"desc":"nothing","video":{"play_addr":{"url_list":[]}}}]}}}}</script>`
	ft := (&fakeTransport{}).on(sharePage, status(http.StatusOK, page))
	_, err := newTestDouyin(ft).Resolve(context.Background(), sharePage)
	assert.ErrorIs(t, err, media.ErrEmptyResult)
}

func TestResolveRejectsBeforeIO(t *testing.T) {
	tests := []struct {
		url  string
		want error
	}{
		{"https://www.tiktok.com/@user/video/1", media.ErrUnsupportedHost},
		{"not a url", media.ErrInvalidURL},
		{"https://www.douyin.com/", media.ErrInvalidURL},
		{"https://www.douyin.com/video/abc;rm", media.ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			ft := &fakeTransport{}
			_, err := newTestDouyin(ft).Resolve(context.Background(), tt.url)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, ft.calls)
		})
	}
}
