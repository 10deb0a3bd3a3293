package domain

import "time"

// GrantedFreeAccount is an administrator-provisioned email allowed to
// register and receive a paid plan at no charge. The token is a
// one-time registration credential: once used it is permanently inert,
// and an expired token is inert even if unused.
type GrantedFreeAccount struct {
	Email     string     `json:"email"`
	Plan      PlanID     `json:"plan"`
	Token     string     `json:"token"`
	IsUsed    bool       `json:"is_used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Redeemable reports whether the token can still be consumed.
func (g *GrantedFreeAccount) Redeemable(now time.Time) bool {
	if g.IsUsed {
		return false
	}
	if g.ExpiresAt != nil && now.After(*g.ExpiresAt) {
		return false
	}
	return true
}
