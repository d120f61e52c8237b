package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mylesscott/portfolio/internal/config"
	"github.com/mylesscott/portfolio/internal/embeds"
	"github.com/mylesscott/portfolio/internal/logging"
	"github.com/mylesscott/portfolio/internal/store"
)

type server struct {
	cfg      *config.Config
	store    *store.Store
	embeds   *embeds.Registry
	gatherer prometheus.Gatherer
	log      *zap.Logger

	adminToken  string
	hashingSalt string

	// track records a visit; it runs in the background outside tests.
	track func(store.Visit)
}

func newServer(cfg *config.Config, st *store.Store, reg *embeds.Registry, g prometheus.Gatherer, log *zap.Logger) *server {
	s := &server{
		cfg:      cfg,
		store:    st,
		embeds:   reg,
		gatherer: g,
		log:      log,
	}
	s.track = func(v store.Visit) { go s.recordVisit(v) }
	s.initAdminToken()
	return s
}

// embedView is what embed.html renders.
type embedView struct {
	ID          string
	ContainerID string
	URL         string
	Active      bool
	// Project indexes Projects so a released instance can be restored.
	Project int
}

func viewOf(inst *embeds.Instance) embedView {
	return embedView{
		ID:          inst.ID,
		ContainerID: inst.ContainerID(),
		URL:         inst.Embed.URL(),
		Active:      inst.Embed.Active(),
		Project:     projectIndex(inst.Embed.Ref()),
	}
}

// projectIndex finds the project whose video is ref, or -1.
func projectIndex(ref string) int {
	for i, p := range Projects {
		if p.VideoRef != "" && p.VideoRef == ref {
			return i
		}
	}
	return -1
}

type projectView struct {
	Project
	Embed *embedView
}

type intersectForm struct {
	Ratio   *float64 `form:"ratio" binding:"required,gte=0,lte=1"`
	Project *int     `form:"project"`
}

func (s *server) router() *gin.Engine {
	r := gin.New()
	r.Use(logging.Gin(s.log), gin.Recovery())
	r.LoadHTMLGlob(s.cfg.TemplatesGlob)

	r.Static("/images", s.cfg.ImagesDir)
	r.Static("/static", s.cfg.StaticDir)

	r.Use(s.visitorTrackingMiddleware())

	// Home page route
	r.GET("/", s.home)

	// HTMX embed endpoints
	r.POST("/embeds/:id/intersect", s.intersect)
	r.POST("/embeds/:id/release", s.release)

	s.setupAdminRoutes(r)
	return r
}

// home mounts a fresh embed instance per video project for this page view.
func (s *server) home(c *gin.Context) {
	var mounted []string
	projects := make([]projectView, 0, len(Projects))
	for _, p := range Projects {
		pv := projectView{Project: p}
		if p.VideoRef != "" {
			inst, err := s.embeds.Mount(p.VideoRef, p.VideoStart)
			if err != nil {
				for _, id := range mounted {
					s.embeds.Release(id)
				}
				s.log.Error("mount embed", zap.String("video", p.VideoRef), zap.Error(err))
				c.HTML(http.StatusInternalServerError, "error.html", gin.H{
					"error": "Sorry, the page could not be rendered. Please try again later.",
				})
				return
			}
			mounted = append(mounted, inst.ID)
			v := viewOf(inst)
			pv.Embed = &v
		}
		projects = append(projects, pv)
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"owner":       Owner,
		"tagline":     Tagline,
		"about":       AboutMe,
		"projects":    projects,
		"experiences": Experiences,
		"skills":      Skills,
		"email":       ContactEmail,
		"links":       SocialLinks,
	})
}

// intersect applies a visibility report and re-renders the player. Reports
// for an instance that was already released, by the idle reaper or by a
// page restored from the back/forward cache, restore it for its project.
func (s *server) intersect(c *gin.Context) {
	var form intersectForm
	if err := c.ShouldBind(&form); err != nil {
		c.String(http.StatusBadRequest, "invalid ratio")
		return
	}

	id := c.Param("id")
	inst, err := s.embeds.Intersect(id, *form.Ratio)
	if errors.Is(err, embeds.ErrUnknownInstance) && form.Project != nil {
		inst, err = s.restore(id, *form.Project, *form.Ratio)
	}
	switch {
	case errors.Is(err, embeds.ErrUnknownInstance), errors.Is(err, embeds.ErrInvalidID):
		c.Status(http.StatusNotFound)
		return
	case err != nil:
		s.log.Error("intersect embed", zap.String("instance", id), zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	c.HTML(http.StatusOK, "embed.html", viewOf(inst))
}

func (s *server) restore(id string, project int, ratio float64) (*embeds.Instance, error) {
	if project < 0 || project >= len(Projects) || Projects[project].VideoRef == "" {
		return nil, embeds.ErrUnknownInstance
	}
	p := Projects[project]
	if _, err := s.embeds.Restore(id, p.VideoRef, p.VideoStart); err != nil {
		return nil, err
	}
	return s.embeds.Intersect(id, ratio)
}

// release is the sendBeacon target fired when the page is hidden.
func (s *server) release(c *gin.Context) {
	if !s.embeds.Release(c.Param("id")) {
		c.Status(http.StatusNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// untracked reports paths that never count as a visit.
func untracked(path string) bool {
	for _, prefix := range []string{"/static/", "/images/", "/admin/", "/embeds/", "/favicon", "/privacy"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
