package models

import "time"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Member is a person in a family who can be assigned tasks.
type Member struct {
	ID        string    `json:"id" firestore:"id"`
	FamilyID  string    `json:"family_id" firestore:"family_id"`
	UserID    string    `json:"user_id" firestore:"user_id"`
	Name      string    `json:"name" firestore:"name"`
	Email     *string   `json:"email" firestore:"email"`
	AvatarURL *string   `json:"avatar_url" firestore:"avatar_url"`
	Role      Role      `json:"role" firestore:"role"`
	CreatedAt time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updated_at"`
}
