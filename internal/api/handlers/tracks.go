package handlers

import (
	"net/http"
	"strconv"

	"github.com/AsarMichil/jockee/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AudioURLResolver maps stored object keys to public URLs
type AudioURLResolver interface {
	PublicURL(key string) string
}

type TrackHandler struct {
	db       *gorm.DB
	resolver AudioURLResolver // nil when no object store is configured
}

func NewTrackHandler(db *gorm.DB, resolver AudioURLResolver) *TrackHandler {
	return &TrackHandler{db: db, resolver: resolver}
}

// List returns analysed catalogue tracks, newest first. Filters:
// analyzed=true|false, artist=<substring>.
func (h *TrackHandler) List(c *gin.Context) {
	query := h.db.Model(&models.Track{})

	if analyzed := c.Query("analyzed"); analyzed != "" {
		switch analyzed {
		case "true":
			query = query.Where("analyzed_at IS NOT NULL")
		case "false":
			query = query.Where("analyzed_at IS NULL")
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "analyzed must be true or false"})
			return
		}
	}
	if artist := c.Query("artist"); artist != "" {
		query = query.Where("artist ILIKE ?", "%"+artist+"%")
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count tracks"})
		return
	}

	var tracks []models.Track
	if err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&tracks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tracks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tracks":    tracks,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Get returns one track with its full analysis block and, when stored in
// the object store, a public audio URL
func (h *TrackHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid track id"})
		return
	}

	var track models.Track
	if err := h.db.First(&track, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "track not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load track"})
		}
		return
	}

	resp := gin.H{"track": track}
	if h.resolver != nil && track.S3Key != nil && *track.S3Key != "" {
		resp["audio_url"] = h.resolver.PublicURL(*track.S3Key)
	}
	c.JSON(http.StatusOK, resp)
}
