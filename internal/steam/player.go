package steam

// Player is a Steam player summary as returned by the GetPlayerSummaries Web
// API. Only steamid, personaname, profileurl and avatarfull feed the identity
// token; the remaining fields are carried so callers can log or extend without
// re-fetching.
type Player struct {
	SteamID                  string `json:"steamid"`
	CommunityVisibilityState int    `json:"communityvisibilitystate"`
	ProfileState             int    `json:"profilestate"`
	PersonaName              string `json:"personaname"`
	ProfileURL               string `json:"profileurl"`
	Avatar                   string `json:"avatar"`
	AvatarMedium             string `json:"avatarmedium"`
	AvatarFull               string `json:"avatarfull"`
	LastLogoff               int64  `json:"lastlogoff"`
	PersonaState             int    `json:"personastate"`
	PrimaryClanID            string `json:"primaryclanid,omitempty"`
	TimeCreated              int64  `json:"timecreated,omitempty"`
	PersonaStateFlags        int    `json:"personastateflags,omitempty"`
}

type playerSummariesResponse struct {
	Response struct {
		Players []Player `json:"players"`
	} `json:"response"`
}
