package media

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		d       Descriptor
		wantErr bool
	}{
		{"video only", Descriptor{VideoURL: "https://v/1.mp4"}, false},
		{"gallery only", Descriptor{Images: []ImageItem{{URL: "https://i/1.jpg"}}}, false},
		{"both", Descriptor{VideoURL: "https://v/1.mp4", Images: []ImageItem{{URL: "https://i/1.jpg"}}}, true},
		{"neither", Descriptor{Title: "nothing"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "Validate() error = %v", err)
		})
	}
}

func TestValidateEmptyIsEmptyResult(t *testing.T) {
	d := Descriptor{}
	assert.ErrorIs(t, d.Validate(), ErrEmptyResult)
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("resolving: %w", Errorf(KindUnsupportedHost, "unsupported host").WithHost("example.com"))

	assert.ErrorIs(t, err, ErrUnsupportedHost)
	assert.NotErrorIs(t, err, ErrInvalidURL)
	assert.Equal(t, KindUnsupportedHost, KindOf(err))
	assert.Contains(t, err.Error(), "example.com")
}

func TestRejectedMessage(t *testing.T) {
	err := Rejected("filtered", "video is private")

	assert.ErrorIs(t, err, ErrPlatformRejected)
	assert.Equal(t, "filtered", err.Reason)
	assert.Equal(t, "content rejected by platform: filtered - video is private", err.Error())
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindNetwork, cause, "fetching share page")

	require.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, "fetching share page: connection reset", err.Error())
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, "NetworkError", KindNetwork.String())
}
