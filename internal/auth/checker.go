package auth

// AdminChecker decides whether a chat may run administrator commands.
// The administrator is a single chat id from configuration; an unset id
// disables admin commands entirely.
type AdminChecker struct {
	adminChatID int64
}

// NewAdminChecker creates an AdminChecker for the configured admin chat id.
func NewAdminChecker(adminChatID int64) *AdminChecker {
	return &AdminChecker{adminChatID: adminChatID}
}

// IsAdmin reports whether chatID is the configured administrator.
func (ac *AdminChecker) IsAdmin(chatID int64) bool {
	return ac.adminChatID != 0 && chatID == ac.adminChatID
}
