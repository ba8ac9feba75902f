package provider

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dyfetch/internal/media"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		url     string
		want    Route
		wantErr error
	}{
		{"https://www.iesdouyin.com/share/video/7312345678901234567/", RoutePCDirect, nil},
		{"https://www.douyin.com/video/7312345678901234567", RoutePCDirect, nil},
		{"https://WWW.DOUYIN.COM/video/1", RoutePCDirect, nil},
		{"https://v.douyin.com/iRNBho6u/", RouteAppRedirect, nil},
		{"http://v.douyin.com/iRNBho6u", RouteAppRedirect, nil},
		{"https://douyin.com/video/1", 0, media.ErrUnsupportedHost},
		{"https://www.ixigua.com/123", 0, media.ErrUnsupportedHost},
		{"", 0, media.ErrInvalidURL},
		{"v.douyin.com/iRNBho6u", 0, media.ErrInvalidURL},
		{"https://%zz", 0, media.ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := Classify(tt.url)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyUnsupportedHostCarriesHost(t *testing.T) {
	_, err := Classify("https://www.tiktok.com/@user/video/1")

	var merr *media.Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "www.tiktok.com", merr.Host)
	assert.Contains(t, err.Error(), "www.tiktok.com")
}

func TestContentIDFromURL(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.iesdouyin.com/share/video/7312345678901234567/", "7312345678901234567", false},
		{"https://www.douyin.com/video/7312345678901234567", "7312345678901234567", false},
		{"https://www.douyin.com/jingxuan?modal_id=7312345678901234567", "7312345678901234567", false},
		{"https://www.douyin.com/user/self?modal_id=7312345678901234567&showTab=post", "7312345678901234567", false},
		{"https://www.iesdouyin.com/share/note/7312345678901234567//", "7312345678901234567", false},
		{"https://www.douyin.com/", "", true},
		{"https://www.douyin.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			u, err := url.Parse(tt.url)
			require.NoError(t, err)

			got, err := ContentIDFromURL(u)
			if tt.wantErr {
				assert.ErrorIs(t, err, media.ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindShareURL(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"bare url", "https://v.douyin.com/iRNBho6u/", "https://v.douyin.com/iRNBho6u/"},
		{"padded url", "  https://v.douyin.com/iRNBho6u/\n", "https://v.douyin.com/iRNBho6u/"},
		{
			"app share text",
			"7.43 复制打开抖音，看看【小海的作品】周末去海边 # vlog https://v.douyin.com/iRNBho6u/ a@b.cn 08/21 bAG:/",
			"https://v.douyin.com/iRNBho6u/",
		},
		{"cjk directly after url", "看看https://v.douyin.com/iRNBho6u/复制此链接", "https://v.douyin.com/iRNBho6u/"},
		{"no url", "just some words", "just some words"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindShareURL(tt.text))
		})
	}
}
