package roblox

// Presence types reported by the presence API
const (
	PresenceOffline  = 0
	PresenceOnline   = 1
	PresenceInGame   = 2
	PresenceInStudio = 3
)

// UserPresence represents one user's presence record from the presence API
type UserPresence struct {
	UserID           int64   `json:"userId"`
	UserPresenceType int     `json:"userPresenceType"`
	LastLocation     string  `json:"lastLocation"`
	PlaceID          *int64  `json:"placeId"`
	RootPlaceID      *int64  `json:"rootPlaceId"`
	GameID           *string `json:"gameId"`
	UniverseID       *int64  `json:"universeId"`
	LastOnline       string  `json:"lastOnline"`
}

// Online reports whether the presence record represents any online state
func (p *UserPresence) Online() bool {
	return p.UserPresenceType != PresenceOffline
}

// InGame reports whether the user is in a game
func (p *UserPresence) InGame() bool {
	return p.UserPresenceType == PresenceInGame
}

// presenceResponse is the envelope returned by the presence API
type presenceResponse struct {
	UserPresences []UserPresence `json:"userPresences"`
}

// userRecord is one entry from the users API
type userRecord struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// usersResponse is the envelope returned by the users API
type usersResponse struct {
	Data []userRecord `json:"data"`
}

// friendEntry is one entry from the friends API
type friendEntry struct {
	ID int64 `json:"id"`
}

// friendsPage is one page of the cursored friends listing
type friendsPage struct {
	PreviousPageCursor *string       `json:"previousPageCursor"`
	NextPageCursor     *string       `json:"nextPageCursor"`
	Data               []friendEntry `json:"data"`
}
