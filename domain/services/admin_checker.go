package services

import "watchparty/domain/interfaces"

// StaticAdminChecker grants admin capability to a fixed set of users
type StaticAdminChecker struct {
	admins map[int64]struct{}
}

// NewStaticAdminChecker creates a checker for the given admin ids
func NewStaticAdminChecker(adminIDs []int64) *StaticAdminChecker {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &StaticAdminChecker{admins: admins}
}

// IsAdmin implements interfaces.AdminChecker
func (c *StaticAdminChecker) IsAdmin(discordID int64) bool {
	_, ok := c.admins[discordID]
	return ok
}

var _ interfaces.AdminChecker = (*StaticAdminChecker)(nil)
