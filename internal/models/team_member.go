package models

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

var roleRank = map[string]int{
	RoleMember: 1,
	RoleAdmin:  2,
	RoleOwner:  3,
}

type TeamMember struct {
	BaseModel

	TeamID uint   `gorm:"not null;uniqueIndex:idx_team_user"`
	UserID uint   `gorm:"not null;uniqueIndex:idx_team_user;index"`
	Role   string `gorm:"not null"`

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Team Team `gorm:"foreignKey:TeamID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// HasRole reports whether the member's role is at least min.
func (m *TeamMember) HasRole(min string) bool {
	return roleRank[m.Role] >= roleRank[min]
}

func ValidRole(role string) bool {
	_, ok := roleRank[role]
	return ok
}
