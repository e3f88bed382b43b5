package models

type Sport struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsTeamSport bool   `json:"isTeamSport"`
	MinPlayers  int    `json:"minPlayers"`
	MaxPlayers  int    `json:"maxPlayers"`
	ImageURL    string `json:"imageUrl"`
	IsActive    bool   `json:"isActive"`
}
