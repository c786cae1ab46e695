package handlers

import (
	"net/http"

	"github.com/AsarMichil/jockee/internal/spotify"
	"github.com/gin-gonic/gin"
)

type PlaylistHandler struct {
	catalogue *spotify.Client
}

func NewPlaylistHandler(catalogue *spotify.Client) *PlaylistHandler {
	return &PlaylistHandler{catalogue: catalogue}
}

// Get resolves a playlist reference and returns its header
func (h *PlaylistHandler) Get(c *gin.Context) {
	id, err := spotify.ResolvePlaylistID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unrecognised playlist reference"})
		return
	}

	playlist, err := h.catalogue.GetPlaylist(c.Request.Context(), id)
	if err != nil {
		if err == spotify.ErrPlaylistNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "playlist not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "playlist lookup failed"})
		return
	}

	c.JSON(http.StatusOK, playlist)
}

// GetTracks lists a playlist's tracks in playlist order
func (h *PlaylistHandler) GetTracks(c *gin.Context) {
	id, err := spotify.ResolvePlaylistID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unrecognised playlist reference"})
		return
	}

	tracks, err := h.catalogue.GetPlaylistTracks(c.Request.Context(), id)
	if err != nil {
		if err == spotify.ErrPlaylistNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "playlist not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "track listing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"playlist_id": id,
		"total":       len(tracks),
		"tracks":      tracks,
	})
}

// Search runs a playlist search against the catalogue
func (h *PlaylistHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}

	playlists, err := h.catalogue.SearchPlaylists(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "playlist search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":     query,
		"playlists": playlists,
	})
}
