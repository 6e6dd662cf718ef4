package schema

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MitreTechnique is a technique record from the MITRE ATT&CK (or ATLAS)
// dataset. Records are loaded per platform by the shield-import tool;
// ExtractionPlatform tags which platform extraction a record came from
// so one platform's data can be replaced without touching the others.
type MitreTechnique struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	TechniqueID        string             `bson:"technique_id" json:"technique_id"`
	Name               string             `bson:"name" json:"name"`
	Description        string             `bson:"description,omitempty" json:"description,omitempty"`
	Tactic             string             `bson:"tactic" json:"tactic"`
	Tactics            []string           `bson:"tactics,omitempty" json:"tactics,omitempty"`
	Platforms          []string           `bson:"platforms,omitempty" json:"platforms,omitempty"`
	DataSources        []string           `bson:"data_sources,omitempty" json:"data_sources,omitempty"`
	Detection          string             `bson:"detection,omitempty" json:"detection,omitempty"`
	ExtractionPlatform string             `bson:"extraction_platform,omitempty" json:"extraction_platform,omitempty"`
	UpdatedAt          time.Time          `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// IsSubTechnique reports whether the technique ID carries a sub-technique
// suffix (T1059.001 as opposed to T1059).
func (t *MitreTechnique) IsSubTechnique() bool {
	for _, c := range t.TechniqueID {
		if c == '.' {
			return true
		}
	}
	return false
}
