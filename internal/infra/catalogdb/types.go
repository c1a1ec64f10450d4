package catalogdb

import "time"

// Stats contains catalog statistics.
type Stats struct {
	SongCount     int       `json:"songCount"`
	LikedCount    int       `json:"likedCount"`
	FacetCount    int       `json:"facetCount"`
	PlaylistCount int       `json:"playlistCount"`
	SchemaVersion string    `json:"schemaVersion"`
	LastImport    time.Time `json:"lastImport,omitzero"`
}

// titleBatchSize is how many titles one membership lookup matches.
const titleBatchSize = 10

// prefixEnd is appended to a search prefix to bound the title range.
const prefixEnd = "\uf8ff"
