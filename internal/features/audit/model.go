package audit

import (
	"time"

	common_models "go-family/internal/common/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Entity type names audit entries are keyed by.
const (
	EntityResourcePermission = "resource_permission"
	EntityUserGroup          = "user_group"
	EntityUserGroupMember    = "user_group_member"
)

// DeletedMarker is the After snapshot recorded when a delete action
// commits; it serializes as {"deleted":true}.
var DeletedMarker = struct {
	Deleted bool `json:"deleted"`
}{Deleted: true}

// Entry is one record of the append-style audit trail. For update/delete
// actions the entry is written Before-only when the mutation begins and
// patched with After once it commits; an entry that stays After-empty is
// the visible trace of an aborted mutation. Entries are never deleted or
// rewritten beyond that single patch.
type Entry struct {
	ID         primitive.ObjectID        `bson:"_id,omitempty" json:"id"`
	EntityType string                    `bson:"entity_type" json:"entity_type"`
	EntityID   string                    `bson:"entity_id" json:"entity_id"`
	Action     common_models.AuditAction `bson:"action" json:"action"`
	ChangedBy  string                    `bson:"changed_by" json:"changed_by"`
	ChangeTime time.Time                 `bson:"change_time" json:"change_time"`
	Before     string                    `bson:"before,omitempty" json:"before,omitempty"`
	After      string                    `bson:"after,omitempty" json:"after,omitempty"`
}
