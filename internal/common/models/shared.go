package models

import (
	"fmt"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PermissionLevel is the ordered capability tier granted over a resource.
// Comparisons use the ordinal ordering: None < View < Edit < Admin.
type PermissionLevel int

const (
	LevelNone PermissionLevel = iota
	LevelView
	LevelEdit
	LevelAdmin
)

func (l PermissionLevel) String() string {
	switch l {
	case LevelView:
		return "view"
	case LevelEdit:
		return "edit"
	case LevelAdmin:
		return "admin"
	default:
		return "none"
	}
}

// Satisfies reports whether this level meets the required level.
func (l PermissionLevel) Satisfies(required PermissionLevel) bool {
	return l >= required
}

// PermissionType is the category of protected resource.
type PermissionType string

const (
	TypeTimelineItem PermissionType = "timeline_item"
	TypeFamilyMember PermissionType = "family_member"
	TypeFamily       PermissionType = "family"
)

// TimelineType optionally narrows a timeline-item grant to a specific kind
// of timeline entry. It is empty for family and family-member grants.
type TimelineType string

const (
	TimelineAny         TimelineType = ""
	TimelinePhoto       TimelineType = "photo"
	TimelineVideo       TimelineType = "video"
	TimelineNote        TimelineType = "note"
	TimelineCalendar    TimelineType = "calendar"
	TimelineMeasurement TimelineType = "measurement"
	TimelineSleep       TimelineType = "sleep"
	TimelineContact     TimelineType = "contact"
	TimelineFriend      TimelineType = "friend"
	TimelineSkill       TimelineType = "skill"
	TimelineVocabulary  TimelineType = "vocabulary"
	TimelineVaccination TimelineType = "vaccination"
	TimelineLocation    TimelineType = "location"
)

// GrantTarget identifies who a permission grant applies to: a single user
// or a single group, never both. The zero value is invalid; use UserTarget
// or GroupTarget.
type GrantTarget struct {
	userID  string
	groupID primitive.ObjectID
}

// UserTarget returns a target for a direct user grant.
func UserTarget(userID string) GrantTarget {
	return GrantTarget{userID: userID}
}

// GroupTarget returns a target for a group grant.
func GroupTarget(groupID primitive.ObjectID) GrantTarget {
	return GrantTarget{groupID: groupID}
}

// User returns the user id when the target is a direct user grant.
func (t GrantTarget) User() (string, bool) {
	return t.userID, t.userID != ""
}

// Group returns the group id when the target is a group grant.
func (t GrantTarget) Group() (primitive.ObjectID, bool) {
	return t.groupID, !t.groupID.IsZero()
}

// IsZero reports whether the target identifies neither a user nor a group.
func (t GrantTarget) IsZero() bool {
	return t.userID == "" && t.groupID.IsZero()
}

func (t GrantTarget) String() string {
	if t.userID != "" {
		return "user:" + t.userID
	}
	if !t.groupID.IsZero() {
		return "group:" + t.groupID.Hex()
	}
	return "none"
}

// MarshalJSON emits whichever side of the target is set, so audit
// snapshots read as {"user_id":…} or {"group_id":…}.
func (t GrantTarget) MarshalJSON() ([]byte, error) {
	if t.userID != "" {
		return json.Marshal(struct {
			UserID string `json:"user_id"`
		}{t.userID})
	}
	if !t.groupID.IsZero() {
		return json.Marshal(struct {
			GroupID string `json:"group_id"`
		}{t.groupID.Hex()})
	}
	return []byte("null"), nil
}

// GroupScope is the owning scope of a user group: a family or a single
// progeny, never both. The zero value is invalid; use FamilyScope or
// ProgenyScope.
type GroupScope struct {
	familyID  uint64
	progenyID uint64
}

// FamilyScope returns a scope owned by a family.
func FamilyScope(familyID uint64) GroupScope {
	return GroupScope{familyID: familyID}
}

// ProgenyScope returns a scope owned by a single progeny.
func ProgenyScope(progenyID uint64) GroupScope {
	return GroupScope{progenyID: progenyID}
}

// Family returns the family id when the scope is family-owned.
func (s GroupScope) Family() (uint64, bool) {
	return s.familyID, s.familyID != 0
}

// Progeny returns the progeny id when the scope is progeny-owned.
func (s GroupScope) Progeny() (uint64, bool) {
	return s.progenyID, s.progenyID != 0
}

// ID returns the owning id regardless of scope kind.
func (s GroupScope) ID() uint64 {
	if s.familyID != 0 {
		return s.familyID
	}
	return s.progenyID
}

// PermissionType returns the permission type access checks against this
// scope are performed with: Family access for family-owned groups,
// FamilyMember access for progeny-owned groups.
func (s GroupScope) PermissionType() PermissionType {
	if s.familyID != 0 {
		return TypeFamily
	}
	return TypeFamilyMember
}

// IsZero reports whether the scope identifies neither a family nor a progeny.
func (s GroupScope) IsZero() bool {
	return s.familyID == 0 && s.progenyID == 0
}

func (s GroupScope) String() string {
	if s.familyID != 0 {
		return fmt.Sprintf("family:%d", s.familyID)
	}
	if s.progenyID != 0 {
		return fmt.Sprintf("progeny:%d", s.progenyID)
	}
	return "none"
}

// MarshalJSON emits whichever side of the scope is set, so audit
// snapshots read as {"family_id":…} or {"progeny_id":…}.
func (s GroupScope) MarshalJSON() ([]byte, error) {
	if s.familyID != 0 {
		return json.Marshal(struct {
			FamilyID uint64 `json:"family_id"`
		}{s.familyID})
	}
	if s.progenyID != 0 {
		return json.Marshal(struct {
			ProgenyID uint64 `json:"progeny_id"`
		}{s.progenyID})
	}
	return []byte("null"), nil
}

// AuditAction identifies what kind of mutation an audit entry records.
type AuditAction string

const (
	AuditActionCreate        AuditAction = "CREATE"
	AuditActionUpdate        AuditAction = "UPDATE"
	AuditActionDelete        AuditAction = "DELETE"
	AuditActionMemberAdded   AuditAction = "MEMBER_ADDED"
	AuditActionMemberUpdated AuditAction = "MEMBER_UPDATED"
	AuditActionMemberRemoved AuditAction = "MEMBER_REMOVED"
)
