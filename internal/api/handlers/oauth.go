package handlers

import (
	"net/http"

	"github.com/AsarMichil/jockee/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	spotifyauth "github.com/markbates/goth/providers/spotify"
)

const sessionName = "jockee_session"

type OAuthHandler struct {
	cfg *config.Config
}

func NewOAuthHandler(cfg *config.Config) *OAuthHandler {
	// Initialize gothic session store
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options.HttpOnly = true
	store.Options.Secure = cfg.IsProduction()
	gothic.Store = store

	goth.UseProviders(
		spotifyauth.New(
			cfg.SpotifyClientID,
			cfg.SpotifyClientSecret,
			cfg.BaseURL+"/api/auth/spotify/callback",
			"playlist-read-private", "playlist-read-collaborative",
		),
	)

	return &OAuthHandler{cfg: cfg}
}

// BeginAuth redirects the user to the provider's consent page
func (h *OAuthHandler) BeginAuth(c *gin.Context) {
	provider := c.Param("provider")
	if provider != providerSpotify {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported provider"})
		return
	}

	// Set provider in query param for gothic
	q := c.Request.URL.Query()
	q.Add("provider", provider)
	c.Request.URL.RawQuery = q.Encode()

	gothic.BeginAuthHandler(c.Writer, c.Request)
}

// Callback completes the OAuth flow and stores the user token in the
// session so private playlists resolve for this browser
func (h *OAuthHandler) Callback(c *gin.Context) {
	provider := c.Param("provider")
	if provider != providerSpotify {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported provider"})
		return
	}

	q := c.Request.URL.Query()
	q.Add("provider", provider)
	c.Request.URL.RawQuery = q.Encode()

	gothUser, err := gothic.CompleteUserAuth(c.Writer, c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "OAuth authentication failed"})
		return
	}

	session, err := gothic.Store.Get(c.Request, sessionName)
	if err == nil {
		session.Values["spotify_user_id"] = gothUser.UserID
		session.Values["spotify_access_token"] = gothUser.AccessToken
		_ = session.Save(c.Request, c.Writer)
	}

	c.JSON(http.StatusOK, gin.H{
		"provider":     provider,
		"user_id":      gothUser.UserID,
		"display_name": gothUser.NickName,
		"expires_at":   gothUser.ExpiresAt,
	})
}

// Logout clears the session
func (h *OAuthHandler) Logout(c *gin.Context) {
	if err := gothic.Logout(c.Writer, c.Request); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}
