package models

import (
	"time"

	"github.com/uptrace/bun"
)

const SettingPublicationID = "shopify.publicationId"

// AdminSetting is a single admin-managed key/value pair. A nil Value means
// the setting was explicitly cleared.
type AdminSetting struct {
	bun.BaseModel `bun:"table:admin_settings"`

	Key       string    `bun:"key,pk" json:"key"`
	Value     *string   `bun:"value" json:"value"`
	UpdatedBy string    `bun:"updated_by" json:"updatedBy,omitempty"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

type PublicationIDRequest struct {
	PublicationID *string `json:"publicationId"`
}

type PublicationIDResponse struct {
	OK            bool    `json:"ok"`
	PublicationID *string `json:"publicationId"`
}
