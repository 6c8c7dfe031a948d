package client

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/psantana5/lumirender/pkg/api"
	"github.com/psantana5/lumirender/pkg/auth"
	"github.com/psantana5/lumirender/pkg/models"
	"github.com/psantana5/lumirender/pkg/render"
	"github.com/psantana5/lumirender/pkg/retry"
	"github.com/psantana5/lumirender/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, keyAuth *auth.APIKeyAuth) *httptest.Server {
	t.Helper()
	s := scheduler.New(render.NewSoftwareBackend(render.Config{Width: 4, Height: 4}), scheduler.Options{})
	t.Cleanup(func() { s.Close() })

	rig := models.NewDeviceSet(models.NewDevice("key"))
	router := api.NewRouter(api.NewHandler(s, rig, nil), api.RouterOptions{Auth: keyAuth})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientModes(t *testing.T) {
	srv := newServer(t, nil)
	c := NewClient(srv.URL+"/", "")

	st, err := c.Status()
	require.NoError(t, err)
	assert.Equal(t, models.ModeStopped, st.Mode)

	st, err = c.SetMode(ActionInteractive)
	require.NoError(t, err)
	assert.Equal(t, models.ModeInteractive, st.Mode)

	_, err = c.SetMode(ActionEndRecording)
	assert.True(t, IsConflict(err), "got %v", err)

	_, err = c.SetMode("fast-forward")
	assert.Error(t, err)

	st, err = c.SetMode(ActionStop)
	require.NoError(t, err)
	assert.Equal(t, models.ModeStopped, st.Mode)

	st, err = c.Reset()
	require.NoError(t, err)
	assert.Equal(t, models.ModeInteractive, st.Mode)
}

func TestClientDevicesAndFrames(t *testing.T) {
	srv := newServer(t, nil)
	c := NewClient(srv.URL, "")

	d, err := c.SetParams("key", map[string]float64{"intensity": 0.4})
	require.NoError(t, err)
	assert.Equal(t, 0.4, d.Params["intensity"])

	devices, err := c.Devices()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, 0.4, devices[0].Params["intensity"])

	_, err = c.SetParams("ghost", map[string]float64{"intensity": 1})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 404, se.Code)

	frames, err := c.Frames(false)
	require.NoError(t, err)
	assert.Empty(t, frames)

	_, err = c.Frames(true)
	assert.Error(t, err, "no archive configured")
}

func TestClientSendsAPIKey(t *testing.T) {
	keyAuth, err := auth.NewAPIKeyAuth("s3cret")
	require.NoError(t, err)
	srv := newServer(t, keyAuth)

	_, err = NewClient(srv.URL, "").SetMode(ActionInteractive)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 401, se.Code)

	_, err = NewClient(srv.URL, "").Status()
	assert.NoError(t, err, "reads need no key")

	st, err := NewClient(srv.URL, "s3cret").SetMode(ActionInteractive)
	require.NoError(t, err)
	assert.Equal(t, models.ModeInteractive, st.Mode)
}

func TestClientRetriesReads(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"mode":"recording","queued":2}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	c.SetRetry(retry.Config{MaxRetries: 3, InitialBackoff: time.Millisecond, Multiplier: 1})

	st, err := c.Status()
	require.NoError(t, err)
	assert.Equal(t, models.ModeRecording, st.Mode)
	assert.Equal(t, 2, st.Queued)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestClientDoesNotRetryWrites(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	c.SetRetry(retry.Config{MaxRetries: 3, InitialBackoff: time.Millisecond, Multiplier: 1})

	_, err := c.SetMode(ActionStop)
	assert.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
