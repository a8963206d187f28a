// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLauncher hands out a fixed control URL and records teardown calls.
type fakeLauncher struct {
	url       string
	launchErr error
	killed    int
	cleaned   int
}

func (f *fakeLauncher) Launch() (string, error) { return f.url, f.launchErr }
func (f *fakeLauncher) Kill()                   { f.killed++ }
func (f *fakeLauncher) Cleanup()                { f.cleaned++ }

func TestRodRendererConnectFailureStopsBrowser(t *testing.T) {
	// A server that refuses the websocket upgrade stands in for a browser
	// that started but cannot be driven.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no devtools here", http.StatusNotFound)
	}))
	defer ts.Close()

	fl := &fakeLauncher{url: "ws" + strings.TrimPrefix(ts.URL, "http") + "/devtools/browser/x"}
	r := NewRodRenderer(time.Second)
	r.newLauncher = func() browserLauncher { return fl }

	_, err := r.RenderPDF(context.Background(), filepath.Join(t.TempDir(), "doc.html"), PageSettings{Width: 8.5, Height: 11, Margin: 0.75})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBrowserConnect), "got %v", err)
	assert.Equal(t, 1, fl.killed)
	assert.Equal(t, 1, fl.cleaned)

	// Nothing is left to close.
	assert.NoError(t, r.Close())
	assert.Equal(t, 1, fl.cleaned)
}

func TestRodRendererLaunchFailure(t *testing.T) {
	fl := &fakeLauncher{launchErr: errors.New("chrome not found")}
	r := NewRodRenderer(time.Second)
	r.newLauncher = func() browserLauncher { return fl }

	_, err := r.RenderPDF(context.Background(), "doc.html", PageSettings{Width: 8.5, Height: 11})
	assert.ErrorIs(t, err, ErrBrowserConnect)
	assert.Contains(t, err.Error(), "chrome not found")
	assert.Zero(t, fl.killed)
}
