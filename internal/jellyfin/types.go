package jellyfin

// Item is the subset of the server's BaseItemDto the engine cares about.
type Item struct {
	ID       string `json:"Id"`
	Name     string `json:"Name"`
	Type     string `json:"Type"`
	ParentID string `json:"ParentId,omitempty"`
	Path     string `json:"Path,omitempty"`

	SeriesID   string `json:"SeriesId,omitempty"`
	SeriesName string `json:"SeriesName,omitempty"`
	// IndexNumber is the episode number, ParentIndexNumber the season.
	IndexNumber       int `json:"IndexNumber,omitempty"`
	ParentIndexNumber int `json:"ParentIndexNumber,omitempty"`

	ProductionYear  int               `json:"ProductionYear,omitempty"`
	Overview        string            `json:"Overview,omitempty"`
	Genres          []string          `json:"Genres,omitempty"`
	CommunityRating float64           `json:"CommunityRating,omitempty"`
	RunTimeTicks    int64             `json:"RunTimeTicks,omitempty"`
	ProviderIDs     map[string]string `json:"ProviderIds,omitempty"`
}

// itemsPage is the standard paged envelope around item queries.
type itemsPage struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}

// VirtualFolder is one configured server library.
//
// ItemID is the folder's own item id; content items reference their
// library through ancestor collection folders, which may carry a
// different id, hence the resolver's two-sided matching.
type VirtualFolder struct {
	Name           string   `json:"Name"`
	ItemID         string   `json:"ItemId"`
	CollectionType string   `json:"CollectionType,omitempty"` // "movies", "tvshows", "" (mixed)
	Locations      []string `json:"Locations,omitempty"`
}
