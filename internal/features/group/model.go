package group

import (
	"time"

	common_models "go-family/internal/common/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserGroup is a named collection of members, scoped to either a family
// or a single progeny. Members are held in their own collection and
// populated on demand, not persisted on the group row.
type UserGroup struct {
	ID           primitive.ObjectID       `json:"id"`
	Name         string                   `json:"name"`
	Description  string                   `json:"description"`
	IsFamily     bool                     `json:"is_family"`
	Scope        common_models.GroupScope `json:"scope"`
	CreatedTime  time.Time                `json:"created_time"`
	ModifiedTime time.Time                `json:"modified_time"`
	ModifiedBy   string                   `json:"modified_by"`
	Members      []UserGroupMember        `json:"members,omitempty"`
}

// UserGroupMember is one membership row. A member may be created with an
// email only; UserID is backfilled from the directory whenever it is
// missing and an email is present, at write time and by the periodic
// sweep.
type UserGroupMember struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserGroupID     primitive.ObjectID `json:"user_group_id" bson:"user_group_id"`
	UserID          string             `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Email           string             `json:"email,omitempty" bson:"email,omitempty"`
	NormalizedEmail string             `json:"-" bson:"normalized_email,omitempty"`
	UserOwnerUserID string             `json:"user_owner_user_id,omitempty" bson:"user_owner_user_id,omitempty"`
	FamilyOwnerID   uint64             `json:"family_owner_id,omitempty" bson:"family_owner_id,omitempty"`
	CreatedTime     time.Time          `json:"created_time" bson:"created_time"`
	ModifiedTime    time.Time          `json:"modified_time" bson:"modified_time"`
	ModifiedBy      string             `json:"modified_by" bson:"modified_by"`
}

// groupDoc is the persisted shape of a group; the GroupScope sum type
// flattens into the dual family_id/progeny_id fields here.
type groupDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Description  string             `bson:"description"`
	IsFamily     bool               `bson:"is_family"`
	FamilyID     uint64             `bson:"family_id,omitempty"`
	ProgenyID    uint64             `bson:"progeny_id,omitempty"`
	CreatedTime  time.Time          `bson:"created_time"`
	ModifiedTime time.Time          `bson:"modified_time"`
	ModifiedBy   string             `bson:"modified_by"`
}

func toDoc(g *UserGroup) *groupDoc {
	doc := &groupDoc{
		ID:           g.ID,
		Name:         g.Name,
		Description:  g.Description,
		IsFamily:     g.IsFamily,
		CreatedTime:  g.CreatedTime,
		ModifiedTime: g.ModifiedTime,
		ModifiedBy:   g.ModifiedBy,
	}
	if familyID, ok := g.Scope.Family(); ok {
		doc.FamilyID = familyID
	}
	if progenyID, ok := g.Scope.Progeny(); ok {
		doc.ProgenyID = progenyID
	}
	return doc
}

func fromDoc(doc *groupDoc) *UserGroup {
	g := &UserGroup{
		ID:           doc.ID,
		Name:         doc.Name,
		Description:  doc.Description,
		IsFamily:     doc.IsFamily,
		CreatedTime:  doc.CreatedTime,
		ModifiedTime: doc.ModifiedTime,
		ModifiedBy:   doc.ModifiedBy,
	}
	if doc.FamilyID != 0 {
		g.Scope = common_models.FamilyScope(doc.FamilyID)
	} else if doc.ProgenyID != 0 {
		g.Scope = common_models.ProgenyScope(doc.ProgenyID)
	}
	return g
}
