package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/mylesscott/portfolio/internal/config"
	"github.com/mylesscott/portfolio/internal/embeds"
	"github.com/mylesscott/portfolio/internal/metrics"
	"github.com/mylesscott/portfolio/internal/store"
	"github.com/mylesscott/portfolio/internal/viewport"
)

type testEnv struct {
	srv    *server
	router *gin.Engine
	store  *store.Store
	host   *viewport.Host
	embeds *embeds.Registry

	mu     sync.Mutex
	visits []store.Visit
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		Port:          8080,
		GinMode:       gin.TestMode,
		LogLevel:      "info",
		DatabasePath:  ":memory:",
		TemplatesGlob: "templates/*",
		StaticDir:     "./static",
		ImagesDir:     "./images",
		EmbedTTL:      time.Minute,
		AdminUsername: "myles",
		AdminPassword: "secret",
	}

	promReg := prometheus.NewRegistry()
	host := viewport.New(nil)
	reg := embeds.NewRegistry(host, cfg.EmbedTTL,
		embeds.WithRecorder(st),
		embeds.WithMetrics(metrics.NewEmbeds(promReg)),
	)
	t.Cleanup(reg.Close)

	env := &testEnv{store: st, host: host, embeds: reg}
	env.srv = newServer(cfg, st, reg, promReg, zap.NewNop())
	env.srv.track = func(v store.Visit) {
		env.mu.Lock()
		env.visits = append(env.visits, v)
		env.mu.Unlock()
		env.srv.recordVisit(v)
	}
	env.router = env.srv.router()
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (e *testEnv) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

// findEmbeds returns the container attributes and iframe src of every embed
// in body.
func findEmbeds(t *testing.T, body string) []map[string]string {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	require.NoError(t, err)

	var out []map[string]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "div" {
			attrs := map[string]string{}
			for _, a := range n.Attr {
				attrs[a.Key] = a.Val
			}
			if _, ok := attrs["data-embed-release"]; ok {
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.ElementNode && c.Data == "iframe" {
						for _, a := range c.Attr {
							if a.Key == "src" {
								attrs["src"] = a.Val
							}
						}
					}
				}
				out = append(out, attrs)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func TestHomeRendersDormantEmbed(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Myles Scott")
	assert.Contains(t, body, "AI Foul Detection System")
	assert.Contains(t, body, "PostgreSQL")

	found := findEmbeds(t, body)
	require.Len(t, found, 1)
	assert.Equal(t,
		"https://www.youtube.com/embed/LmHFdx8SZsU?autoplay=0&mute=1&start=5&controls=1&rel=0&modestbranding=1",
		found[0]["src"])
	assert.Equal(t, "intersect threshold:0.5 once", found[0]["hx-trigger"])
	assert.True(t, strings.HasPrefix(found[0]["id"], "embed-"))
	assert.Equal(t, 1, env.host.Live())
}

func TestEachPageViewMountsItsOwnInstance(t *testing.T) {
	env := newTestEnv(t)
	first := findEmbeds(t, env.get("/").Body.String())
	second := findEmbeds(t, env.get("/").Body.String())
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0]["id"], second[0]["id"])
	assert.Equal(t, 2, env.embeds.Len())
}

func TestIntersectActivatesEmbed(t *testing.T) {
	env := newTestEnv(t)
	found := findEmbeds(t, env.get("/").Body.String())
	require.Len(t, found, 1)
	intersect := found[0]["hx-post"]
	require.NotEmpty(t, intersect)

	w := env.postForm(intersect, url.Values{"ratio": {"0.2"}})
	require.Equal(t, http.StatusOK, w.Code)
	frag := findEmbeds(t, w.Body.String())
	require.Len(t, frag, 1)
	assert.Contains(t, frag[0]["src"], "autoplay=0")

	w = env.postForm(intersect, url.Values{"ratio": {"0.5"}})
	require.Equal(t, http.StatusOK, w.Code)
	frag = findEmbeds(t, w.Body.String())
	require.Len(t, frag, 1)
	assert.Equal(t,
		"https://www.youtube.com/embed/LmHFdx8SZsU?autoplay=1&mute=1&start=5&controls=1&rel=0&modestbranding=1",
		frag[0]["src"])
	_, stillObserving := frag[0]["hx-post"]
	assert.False(t, stillObserving)

	// Later reports never turn autoplay off again.
	for _, ratio := range []string{"0", "1", "0.1"} {
		w = env.postForm(intersect, url.Values{"ratio": {ratio}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, findEmbeds(t, w.Body.String())[0]["src"], "autoplay=1")
	}

	stats, err := env.store.Stats(context.Background(), time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalActivations)
}

func TestIntersectRejectsBadRatio(t *testing.T) {
	env := newTestEnv(t)
	found := findEmbeds(t, env.get("/").Body.String())
	require.Len(t, found, 1)

	for _, form := range []url.Values{{}, {"ratio": {"1.5"}}, {"ratio": {"-0.1"}}, {"ratio": {"half"}}} {
		w := env.postForm(found[0]["hx-post"], form)
		assert.Equal(t, http.StatusBadRequest, w.Code, form.Encode())
	}
}

func TestIntersectUnknownInstance(t *testing.T) {
	env := newTestEnv(t)
	w := env.postForm("/embeds/does-not-exist/intersect", url.Values{"ratio": {"1"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIntersectRestoresReapedInstance(t *testing.T) {
	env := newTestEnv(t)
	found := findEmbeds(t, env.get("/").Body.String())
	require.Len(t, found, 1)
	assert.Equal(t, `{"ratio": 0.5, "project": 0}`, found[0]["hx-vals"])

	// The visitor lingers past the idle timeout before scrolling down.
	require.Equal(t, 1, env.embeds.Reap(time.Now().Add(2*time.Minute)))
	require.Equal(t, 0, env.host.Live())

	w := env.postForm(found[0]["hx-post"], url.Values{"ratio": {"0.5"}, "project": {"0"}})
	require.Equal(t, http.StatusOK, w.Code)
	frag := findEmbeds(t, w.Body.String())
	require.Len(t, frag, 1)
	assert.Equal(t, found[0]["id"], frag[0]["id"])
	assert.Contains(t, frag[0]["src"], "autoplay=1")
	assert.Equal(t, 1, env.embeds.Len())
}

func TestIntersectRestoreAfterBeaconRelease(t *testing.T) {
	env := newTestEnv(t)
	found := findEmbeds(t, env.get("/").Body.String())
	require.Len(t, found, 1)
	require.Equal(t, http.StatusNoContent, env.postForm(found[0]["data-embed-release"], nil).Code)

	w := env.postForm(found[0]["hx-post"], url.Values{"ratio": {"0.2"}, "project": {"0"}})
	require.Equal(t, http.StatusOK, w.Code)
	frag := findEmbeds(t, w.Body.String())
	require.Len(t, frag, 1)
	assert.Contains(t, frag[0]["src"], "autoplay=0")
	assert.Equal(t, found[0]["hx-post"], frag[0]["hx-post"])
	assert.Equal(t, 1, env.host.Live())
}

func TestIntersectRestoreRejectsUnknownProjects(t *testing.T) {
	env := newTestEnv(t)
	found := findEmbeds(t, env.get("/").Body.String())
	require.Len(t, found, 1)
	env.embeds.Close()

	// Index 1 is a project without a video.
	for _, project := range []string{"1", "-1", "99"} {
		w := env.postForm(found[0]["hx-post"], url.Values{"ratio": {"1"}, "project": {project}})
		assert.Equal(t, http.StatusNotFound, w.Code, project)
	}
	w := env.postForm("/embeds/does-not-exist/intersect", url.Values{"ratio": {"1"}, "project": {"0"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, env.embeds.Len())
}

func TestReleaseUnmountsOnce(t *testing.T) {
	env := newTestEnv(t)
	found := findEmbeds(t, env.get("/").Body.String())
	require.Len(t, found, 1)
	release := found[0]["data-embed-release"]

	w := env.postForm(release, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, env.host.Live())

	w = env.postForm(release, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, env.host.Live())

	w = env.postForm(found[0]["hx-post"], url.Values{"ratio": {"1"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHomeFailsWhenObservationUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.host.Close()

	w := env.get("/")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 0, env.embeds.Len())
}

func TestVisitorTracking(t *testing.T) {
	env := newTestEnv(t)

	env.get("/")
	env.get("/privacy")
	env.get("/static/site.css")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("DNT", "1")
	env.do(req)

	env.mu.Lock()
	defer env.mu.Unlock()
	require.Len(t, env.visits, 1)
	assert.Equal(t, "/", env.visits[0].Path)
	assert.Len(t, env.visits[0].HashedIP, 16)
	assert.NotContains(t, env.visits[0].HashedIP, "192.0.2.1")
}

func TestStaticAssetsServed(t *testing.T) {
	env := newTestEnv(t)
	w := env.get("/static/site.js")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sendBeacon")
}

func TestPageHideKeepsCachedPagesMounted(t *testing.T) {
	env := newTestEnv(t)
	w := env.get("/static/site.js")
	require.Equal(t, http.StatusOK, w.Code)
	script := w.Body.String()

	hide := strings.Index(script, `addEventListener("pagehide"`)
	require.NotEqual(t, -1, hide)
	guard := strings.Index(script[hide:], "if (event.persisted) return;")
	beacon := strings.Index(script[hide:], "sendBeacon")
	require.NotEqual(t, -1, guard)
	assert.Less(t, guard, beacon)
}
