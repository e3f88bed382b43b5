package models

// User is a registered person; browsing candidates are Users too.
type User struct {
	ID            int64    `json:"id"`
	Email         string   `json:"email"`
	FirstName     string   `json:"firstName"`
	LastName      string   `json:"lastName"`
	ProfileImage  string   `json:"profileImage,omitempty"`
	PhoneNumber   string   `json:"phoneNumber,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	MaxDistanceKm int      `json:"maxDistanceKm"`
	IsActive      bool     `json:"isActive"`
}

// DisplayName is "First Last", falling back to the email.
func (u User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}

type SkillLevel string

const (
	SkillBeginner     SkillLevel = "BEGINNER"
	SkillIntermediate SkillLevel = "INTERMEDIATE"
	SkillAdvanced     SkillLevel = "ADVANCED"
	SkillExpert       SkillLevel = "EXPERT"
)

// SportSkill is one element of the "save user sports" request body.
type SportSkill struct {
	SportID    int64      `json:"sportId"`
	SkillLevel SkillLevel `json:"skillLevel"`
}
