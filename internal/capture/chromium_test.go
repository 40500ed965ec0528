package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsNormalizeDefaults(t *testing.T) {
	got, err := Options{URL: "http://127.0.0.1:8080/", OutputPath: "preview.png"}.normalize()
	require.NoError(t, err)
	assert.Equal(t, DefaultWidth, got.Width)
	assert.Equal(t, DefaultHeight, got.Height)
	assert.Equal(t, DefaultTimeout, got.Timeout)
	assert.Equal(t, DefaultWaitSelector, got.WaitSelector)
}

func TestOptionsNormalizeKeepsOverrides(t *testing.T) {
	in := Options{
		URL:          "https://flyer.example/",
		OutputPath:   "out.png",
		Width:        400,
		Height:       800,
		Timeout:      5 * time.Second,
		WaitSelector: "#event-2",
	}
	got, err := in.normalize()
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestOptionsNormalizeRejects(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want error
	}{
		{name: "missing url", opts: Options{OutputPath: "a.png"}, want: ErrMissingURL},
		{name: "missing output", opts: Options{URL: "http://localhost:8080/"}, want: ErrMissingOutput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.normalize()
			assert.ErrorIs(t, err, tt.want)
		})
	}

	for _, raw := range []string{"localhost:8080", "/relative", "ftp://host/x"} {
		_, err := Options{URL: raw, OutputPath: "a.png"}.normalize()
		assert.Error(t, err, raw)
	}
}

func TestCaptureFlyerPNGValidatesBeforeLaunching(t *testing.T) {
	err := CaptureFlyerPNG(context.Background(), Options{URL: "http://localhost/"})
	assert.ErrorIs(t, err, ErrMissingOutput)
}
