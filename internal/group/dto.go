package group

// GroupResponse represents the response for a group
type GroupResponse struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description *string           `json:"description,omitempty"`
	IsTemporary bool              `json:"is_temporary"`
	CreatedAt   string            `json:"created_at"`
	Members     []*MemberResponse `json:"members,omitempty"`
}

// MemberResponse represents a member in a group response
type MemberResponse struct {
	ID        int64        `json:"id"`
	UserID    int64        `json:"user_id"`
	Username  string       `json:"username"`
	Email     string       `json:"email"`
	AvatarURL *string      `json:"avatar_url,omitempty"`
	Status    MemberStatus `json:"status"`
	Role      MemberRole   `json:"role"`
	JoinedAt  string       `json:"joined_at"`
}

// ToResponse converts a Group model to a GroupResponse DTO
func (g *Group) ToResponse() *GroupResponse {
	return &GroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		IsTemporary: g.IsTemporary,
		CreatedAt:   g.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// ToResponse converts a GroupMember model to a MemberResponse DTO
func (m *GroupMember) ToResponse() *MemberResponse {
	return &MemberResponse{
		ID:        m.ID,
		UserID:    m.UserID,
		Username:  m.Username,
		Email:     m.Email,
		AvatarURL: m.AvatarURL,
		Status:    m.Status,
		Role:      m.Role,
		JoinedAt:  m.JoinedAt.Format("2006-01-02T15:04:05Z"),
	}
}
