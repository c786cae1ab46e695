// Package spotify is a thin Web API client for playlist resolution and
// track listing. User-facing OAuth runs at the HTTP edge via goth; this
// client uses the client-credentials flow for catalogue reads and accepts
// a user token when one is available.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	apiBaseURL   = "https://api.spotify.com/v1"
	tokenURL     = "https://accounts.spotify.com/api/token"
	pageLimit    = 100
	searchLimit  = 20
	tokenPadding = 30 * time.Second
)

// ErrPlaylistNotFound is returned when the reference cannot be resolved
var ErrPlaylistNotFound = errors.New("spotify: playlist not found")

var playlistRefPattern = regexp.MustCompile(`(?:playlist[/:])([A-Za-z0-9]{22})`)

// Playlist is the resolved playlist header
type Playlist struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Public bool   `json:"public"`
	Owner  string `json:"owner"`
	Total  int    `json:"total_tracks"`
}

// PlaylistTrack is one catalogue entry from a playlist
type PlaylistTrack struct {
	SpotifyID  string  `json:"spotify_id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Album      string  `json:"album"`
	Duration   float64 `json:"duration"` // seconds
	Popularity int     `json:"popularity"`
	PreviewURL string  `json:"preview_url,omitempty"`
}

// Client talks to the Spotify Web API
type Client struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// ResolvePlaylistID extracts the playlist id from a URL, URI, or bare id
func ResolvePlaylistID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if m := playlistRefPattern.FindStringSubmatch(ref); m != nil {
		return m[1], nil
	}
	// Bare 22-character base62 id
	if matched, _ := regexp.MatchString(`^[A-Za-z0-9]{22}$`, ref); matched {
		return ref, nil
	}
	return "", fmt.Errorf("%w: unrecognised reference %q", ErrPlaylistNotFound, ref)
}

// GetPlaylist fetches the playlist header
func (c *Client) GetPlaylist(ctx context.Context, id string) (*Playlist, error) {
	var resp struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Public bool   `json:"public"`
		Owner  struct {
			DisplayName string `json:"display_name"`
		} `json:"owner"`
		Tracks struct {
			Total int `json:"total"`
		} `json:"tracks"`
	}

	if err := c.get(ctx, fmt.Sprintf("%s/playlists/%s", apiBaseURL, url.PathEscape(id)), &resp); err != nil {
		return nil, err
	}

	return &Playlist{
		ID:     resp.ID,
		Name:   resp.Name,
		Public: resp.Public,
		Owner:  resp.Owner.DisplayName,
		Total:  resp.Tracks.Total,
	}, nil
}

// GetPlaylistTracks pages through the playlist and returns all playable
// tracks in playlist order
func (c *Client) GetPlaylistTracks(ctx context.Context, id string) ([]PlaylistTrack, error) {
	var tracks []PlaylistTrack

	next := fmt.Sprintf("%s/playlists/%s/tracks?limit=%d", apiBaseURL, url.PathEscape(id), pageLimit)
	for next != "" {
		var page struct {
			Items []struct {
				Track *struct {
					ID      string `json:"id"`
					Name    string `json:"name"`
					Artists []struct {
						Name string `json:"name"`
					} `json:"artists"`
					Album struct {
						Name string `json:"name"`
					} `json:"album"`
					DurationMS int    `json:"duration_ms"`
					Popularity int    `json:"popularity"`
					PreviewURL string `json:"preview_url"`
					IsLocal    bool   `json:"is_local"`
				} `json:"track"`
			} `json:"items"`
			Next string `json:"next"`
		}

		if err := c.get(ctx, next, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			t := item.Track
			if t == nil || t.ID == "" || t.IsLocal {
				continue
			}
			artist := ""
			if len(t.Artists) > 0 {
				artist = t.Artists[0].Name
			}
			tracks = append(tracks, PlaylistTrack{
				SpotifyID:  t.ID,
				Title:      t.Name,
				Artist:     artist,
				Album:      t.Album.Name,
				Duration:   float64(t.DurationMS) / 1000.0,
				Popularity: t.Popularity,
				PreviewURL: t.PreviewURL,
			})
		}

		next = page.Next
	}

	return tracks, nil
}

// SearchPlaylists runs a playlist search for the browse endpoints
func (c *Client) SearchPlaylists(ctx context.Context, query string) ([]Playlist, error) {
	endpoint := fmt.Sprintf("%s/search?type=playlist&limit=%d&q=%s",
		apiBaseURL, searchLimit, url.QueryEscape(query))

	var resp struct {
		Playlists struct {
			Items []struct {
				ID    string `json:"id"`
				Name  string `json:"name"`
				Owner struct {
					DisplayName string `json:"display_name"`
				} `json:"owner"`
				Tracks struct {
					Total int `json:"total"`
				} `json:"tracks"`
			} `json:"items"`
		} `json:"playlists"`
	}

	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	playlists := make([]Playlist, 0, len(resp.Playlists.Items))
	for _, item := range resp.Playlists.Items {
		playlists = append(playlists, Playlist{
			ID:    item.ID,
			Name:  item.Name,
			Owner: item.Owner.DisplayName,
			Total: item.Tracks.Total,
		})
	}
	return playlists, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("spotify: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrPlaylistNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("spotify: unexpected status %d from %s", resp.StatusCode, endpoint)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// token returns a cached client-credentials token, refreshing when close
// to expiry
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.expiresAt.Add(-tokenPadding)) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("spotify: token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("spotify: token request returned %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}

	c.accessToken = body.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return c.accessToken, nil
}
