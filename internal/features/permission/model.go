package permission

import (
	"time"

	common_models "go-family/internal/common/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ResourcePermission is a single grant: a permission level held by one
// user or one group over a resource. At most one grant exists per
// (target, type, resource, timeline type) tuple; the store enforces this
// with a unique index.
type ResourcePermission struct {
	ID             primitive.ObjectID            `json:"id"`
	Target         common_models.GrantTarget     `json:"target"`
	PermissionType common_models.PermissionType  `json:"permission_type"`
	ResourceID     uint64                        `json:"resource_id"`
	TimelineType   common_models.TimelineType    `json:"timeline_type,omitempty"`
	Level          common_models.PermissionLevel `json:"level"`
	CreatedTime    time.Time                     `json:"created_time"`
	ModifiedTime   time.Time                     `json:"modified_time"`
	ModifiedBy     string                        `json:"modified_by"`
}

// permissionDoc is the persisted shape of a grant. The GrantTarget sum
// type flattens into the dual user_id/group_id fields here; the unique
// grant-tuple index spans both so user and group grants collide within
// their own target.
type permissionDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	UserID         string             `bson:"user_id,omitempty"`
	GroupID        primitive.ObjectID `bson:"group_id,omitempty"`
	PermissionType string             `bson:"permission_type"`
	ResourceID     uint64             `bson:"resource_id"`
	TimelineType   string             `bson:"timeline_type"`
	Level          int                `bson:"level"`
	CreatedTime    time.Time          `bson:"created_time"`
	ModifiedTime   time.Time          `bson:"modified_time"`
	ModifiedBy     string             `bson:"modified_by"`
}

func toDoc(p *ResourcePermission) *permissionDoc {
	doc := &permissionDoc{
		ID:             p.ID,
		PermissionType: string(p.PermissionType),
		ResourceID:     p.ResourceID,
		TimelineType:   string(p.TimelineType),
		Level:          int(p.Level),
		CreatedTime:    p.CreatedTime,
		ModifiedTime:   p.ModifiedTime,
		ModifiedBy:     p.ModifiedBy,
	}
	if userID, ok := p.Target.User(); ok {
		doc.UserID = userID
	}
	if groupID, ok := p.Target.Group(); ok {
		doc.GroupID = groupID
	}
	return doc
}

func fromDoc(doc *permissionDoc) *ResourcePermission {
	p := &ResourcePermission{
		ID:             doc.ID,
		PermissionType: common_models.PermissionType(doc.PermissionType),
		ResourceID:     doc.ResourceID,
		TimelineType:   common_models.TimelineType(doc.TimelineType),
		Level:          common_models.PermissionLevel(doc.Level),
		CreatedTime:    doc.CreatedTime,
		ModifiedTime:   doc.ModifiedTime,
		ModifiedBy:     doc.ModifiedBy,
	}
	if doc.UserID != "" {
		p.Target = common_models.UserTarget(doc.UserID)
	} else if !doc.GroupID.IsZero() {
		p.Target = common_models.GroupTarget(doc.GroupID)
	}
	return p
}
