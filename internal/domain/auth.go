package domain

// SubjectType differentiates marketplace users from platform admins.
type SubjectType string

const (
	SubjectTypeUser  SubjectType = "USER"
	SubjectTypeAdmin SubjectType = "ADMIN"
	// SubjectTypeSystem marks transitions triggered by deadlines.
	SubjectTypeSystem SubjectType = "SYSTEM"
)
