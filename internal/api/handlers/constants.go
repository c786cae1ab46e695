package handlers

const (
	// OAuth providers
	providerSpotify = "spotify"

	// Pagination defaults
	defaultPageSize = 20
	maxPageSize     = 100
)
