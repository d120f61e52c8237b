// admin.go - privacy-conscious admin system
package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mylesscott/portfolio/internal/store"
)

const (
	adminCookie = "admin_token"

	defaultAdminUsername = "admin"
	defaultAdminPassword = "admin123"
)

// Initialize admin system with privacy considerations
func (s *server) initAdminToken() {
	s.adminToken = generateAdminToken()
	s.hashingSalt = generateAdminToken() // Use for IP hashing

	s.log.Info("admin access available", zap.String("path", "/admin/login"))
	if s.cfg.Debug() {
		s.log.Debug("admin token (dev only)", zap.String("token", s.adminToken))
	}
}

func generateAdminToken() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		panic("generate admin token: " + err.Error())
	}
	return hex.EncodeToString(bytes)
}

// Hash IP address for privacy compliance (consistent per IP)
func (s *server) hashIP(ip string) string {
	hash := sha256.New()
	hash.Write([]byte(ip + s.hashingSalt))
	return hex.EncodeToString(hash.Sum(nil))[:16]
}

// adminCredentials falls back to development defaults only in debug mode.
func (s *server) adminCredentials() (string, string, bool) {
	username, password := s.cfg.AdminUsername, s.cfg.AdminPassword
	if username != "" && password != "" {
		return username, password, true
	}
	if !s.cfg.Debug() {
		return "", "", false
	}
	if username == "" {
		username = defaultAdminUsername
		s.log.Warn("using default admin username, set ADMIN_USERNAME")
	}
	if password == "" {
		password = defaultAdminPassword
		s.log.Warn("using default admin password, set ADMIN_PASSWORD")
	}
	return username, password, true
}

// Middleware to check admin authentication
func (s *server) adminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminCookie)
		if err != nil || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Privacy-conscious visitor tracking middleware
func (s *server) visitorTrackingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if untracked(path) || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		// Respect Do Not Track header
		if c.GetHeader("DNT") == "1" {
			c.Next()
			return
		}

		s.track(store.Visit{
			HashedIP:  s.hashIP(c.ClientIP()),
			UserAgent: c.GetHeader("User-Agent"),
			Path:      path,
			Timestamp: time.Now(),
		})
		c.Next()
	}
}

func (s *server) recordVisit(v store.Visit) {
	if err := s.store.RecordVisit(context.Background(), v); err != nil {
		s.log.Warn("record visitor", zap.Error(err))
	}
}

// cleanupOldVisitorData drops visitor rows past the retention window.
func (s *server) cleanupOldVisitorData(ctx context.Context) {
	if _, err := s.store.PurgeVisitsBefore(ctx, time.Now().Add(-store.VisitorRetention)); err != nil {
		s.log.Warn("privacy cleanup", zap.Error(err))
	}
}

// Setup all admin routes
func (s *server) setupAdminRoutes(r *gin.Engine) {
	// Privacy policy route
	r.GET("/privacy", func(c *gin.Context) {
		c.HTML(http.StatusOK, "privacy.html", gin.H{
			"title": "Privacy Policy",
			"owner": Owner,
		})
	})

	// Admin login page
	r.GET("/admin/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "admin-login.html", gin.H{
			"title": "Admin Login",
		})
	})

	// Admin login handler
	r.POST("/admin/login", func(c *gin.Context) {
		username := c.PostForm("username")
		password := c.PostForm("password")

		wantUser, wantPass, ok := s.adminCredentials()
		if !ok {
			s.log.Error("admin login disabled: ADMIN_USERNAME and ADMIN_PASSWORD are not set")
			c.HTML(http.StatusServiceUnavailable, "admin-login.html", gin.H{
				"error": "Admin login is not configured",
			})
			return
		}

		userOK := subtle.ConstantTimeCompare([]byte(username), []byte(wantUser)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(password), []byte(wantPass)) == 1
		if userOK && passOK {
			// Set secure cookie (24 hours)
			c.SetCookie(adminCookie, s.adminToken, 3600*24, "/admin", "", !s.cfg.Debug(), true)
			s.log.Info("admin login", zap.String("from", s.hashIP(c.ClientIP())))
			c.Redirect(http.StatusFound, "/admin/dashboard")
			return
		}

		s.log.Warn("failed admin login", zap.String("from", s.hashIP(c.ClientIP())))
		c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{
			"error": "Invalid credentials",
		})
	})

	// Admin logout
	r.GET("/admin/logout", func(c *gin.Context) {
		c.SetCookie(adminCookie, "", -1, "/admin", "", !s.cfg.Debug(), true)
		s.log.Info("admin logout", zap.String("from", s.hashIP(c.ClientIP())))
		c.Redirect(http.StatusFound, "/admin/login")
	})

	// Protected admin routes group
	adminGroup := r.Group("/admin")
	adminGroup.Use(s.adminAuthMiddleware())

	// Admin dashboard
	adminGroup.GET("/dashboard", func(c *gin.Context) {
		stats, err := s.store.Stats(c.Request.Context(), time.Now())
		if err != nil {
			s.log.Error("load admin stats", zap.Error(err))
			c.HTML(http.StatusInternalServerError, "error.html", gin.H{
				"error": "Failed to load statistics",
			})
			return
		}

		c.HTML(http.StatusOK, "admin-dashboard.html", gin.H{
			"stats":      stats,
			"liveEmbeds": s.embeds.Len(),
		})
	})

	// Admin API endpoints for HTMX/AJAX
	adminGroup.GET("/api/stats", func(c *gin.Context) {
		stats, err := s.store.Stats(c.Request.Context(), time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	// View visitors
	adminGroup.GET("/visitors", func(c *gin.Context) {
		visitors, err := s.store.RecentVisits(c.Request.Context(), 200)
		if err != nil {
			s.log.Error("load visitors", zap.Error(err))
			c.HTML(http.StatusInternalServerError, "error.html", gin.H{
				"error": "Failed to load visitors",
			})
			return
		}

		c.HTML(http.StatusOK, "admin-visitors.html", gin.H{
			"visitors": visitors,
		})
	})

	// Live embed instances
	adminGroup.GET("/embeds", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"embeds": s.embeds.Snapshot()})
	})

	// Privacy compliance endpoint
	adminGroup.POST("/privacy/cleanup", func(c *gin.Context) {
		go s.cleanupOldVisitorData(context.Background())
		c.JSON(http.StatusOK, gin.H{"message": "Privacy cleanup initiated"})
	})

	// Admin statistics export (for backups or analysis)
	adminGroup.GET("/export/stats", func(c *gin.Context) {
		stats, err := s.store.Stats(c.Request.Context(), time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.Header("Content-Disposition", "attachment; filename=admin-stats.json")
		s.log.Info("admin stats exported", zap.String("by", s.hashIP(c.ClientIP())))
		c.JSON(http.StatusOK, stats)
	})

	adminGroup.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
}
