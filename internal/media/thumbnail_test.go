package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThumbnailFromOEmbed(t *testing.T) {
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.Query().Get("url")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"thumbnail_url":"https://img.example/t.jpg"}`))
	}))
	defer srv.Close()

	o := NewOEmbed(time.Second, map[string]string{"youtube.com": srv.URL})
	thumb, err := o.Thumbnail(context.Background(), "https://www.youtube.com/watch?v=abc")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/t.jpg", thumb)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc", gotURL)
}

func TestThumbnailUnsupportedHost(t *testing.T) {
	o := NewOEmbed(time.Second, nil)
	_, err := o.Thumbnail(context.Background(), "https://cdn.example/video.mp4")
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = o.Thumbnail(context.Background(), "not a url")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestThumbnailProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	o := NewOEmbed(time.Second, map[string]string{"vimeo.com": srv.URL})
	_, err := o.Thumbnail(context.Background(), "https://vimeo.com/123")
	assert.Error(t, err)
}
