// Package models defines the card data model shared by the registry, SQL,
// and API layers.
package models

import (
	"time"
)

// RegistryType selects which card kind, and therefore which SQL table, a
// record belongs to.
type RegistryType string

const (
	RegistryTypeData       RegistryType = "data"
	RegistryTypeModel      RegistryType = "model"
	RegistryTypeExperiment RegistryType = "experiment"
	RegistryTypeAudit      RegistryType = "audit"
	RegistryTypePrompt     RegistryType = "prompt"
	RegistryTypeService    RegistryType = "service"
)

// AllRegistryTypes lists every card kind in table order.
var AllRegistryTypes = []RegistryType{
	RegistryTypeData,
	RegistryTypeModel,
	RegistryTypeExperiment,
	RegistryTypeAudit,
	RegistryTypePrompt,
	RegistryTypeService,
}

// Table maps a registry type to its SQL table.
func (rt RegistryType) Table() string {
	switch rt {
	case RegistryTypeData:
		return "opsml_data_registry"
	case RegistryTypeModel:
		return "opsml_model_registry"
	case RegistryTypeExperiment:
		return "opsml_experiment_registry"
	case RegistryTypeAudit:
		return "opsml_audit_registry"
	case RegistryTypePrompt:
		return "opsml_prompt_registry"
	case RegistryTypeService:
		return "opsml_service_registry"
	default:
		return ""
	}
}

// Valid reports whether rt names a known card kind.
func (rt RegistryType) Valid() bool {
	return rt.Table() != ""
}

// Card is the tagged union describing a dataset, model, experiment, audit,
// prompt, or service record. Common fields apply to every kind; the
// kind-specific fields are meaningful only for the registry type carried in
// Type. A card's uid and version pair is immutable once persisted.
type Card struct {
	Type         RegistryType `json:"registry_type"`
	UID          string       `json:"uid"`
	AppEnv       string       `json:"app_env"`
	Name         string       `json:"name"`
	Space        string       `json:"space"`
	Version      string       `json:"version"`
	CreatedAt    time.Time    `json:"created_at"`
	Tags         []string     `json:"tags"`
	Username     string       `json:"username"`
	OpsmlVersion string       `json:"opsml_version"`

	// data
	DataType string `json:"data_type,omitempty"`

	// model
	DatacardUID string `json:"datacard_uid,omitempty"`
	ModelType   string `json:"model_type,omitempty"`
	TaskType    string `json:"task_type,omitempty"`

	// experiment
	ExperimentType string `json:"experiment_type,omitempty"`

	// audit
	Approved bool `json:"approved,omitempty"`

	// prompt
	PromptType string `json:"prompt_type,omitempty"`

	// service
	ServiceType string `json:"service_type,omitempty"`
}

// ArtifactKey is the encrypted data key protecting a card's blob content.
// It is created atomically with the card row, read-only afterward, and
// deleted together with the card. EncryptedKey is the per-card data key
// wrapped under a uid-derived key; it is never stored in plaintext.
type ArtifactKey struct {
	UID          string       `json:"uid"`
	Space        string       `json:"space"`
	RegistryType RegistryType `json:"registry_type"`
	EncryptedKey []byte       `json:"encrypted_key"`
	StorageKey   string       `json:"storage_key"`
	CreatedAt    time.Time    `json:"created_at"`
}

// CardQueryArgs filters card searches. When UID is set it is the sole
// predicate (after UUID-format validation) and every other filter is
// ignored.
type CardQueryArgs struct {
	UID             string     `json:"uid,omitempty"`
	Name            string     `json:"name,omitempty"`
	Space           string     `json:"space,omitempty"`
	VersionSpec     string     `json:"version,omitempty"`
	MaxDate         *time.Time `json:"max_date,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	Limit           int        `json:"limit,omitempty"`
	SortByTimestamp bool       `json:"sort_by_timestamp,omitempty"`
}

// CreateCardRequest is the payload for card registration.
type CreateCardRequest struct {
	Card        Card   `json:"card"`
	Version     string `json:"version,omitempty"`
	VersionType string `json:"version_type,omitempty"`
	PreTag      string `json:"pre_tag,omitempty"`
	BuildTag    string `json:"build_tag,omitempty"`
}

// CreateCardResponse reports the outcome of card registration.
type CreateCardResponse struct {
	Registered bool        `json:"registered"`
	Version    string      `json:"version"`
	Space      string      `json:"space"`
	Name       string      `json:"name"`
	AppEnv     string      `json:"app_env"`
	CreatedAt  time.Time   `json:"created_at"`
	Key        ArtifactKey `json:"key"`
}

// DeleteCardRequest identifies a card to delete.
type DeleteCardRequest struct {
	UID          string       `json:"uid"`
	Space        string       `json:"space"`
	RegistryType RegistryType `json:"registry_type"`
}

// RegistryPageRequest asks for one page of a registry listing.
type RegistryPageRequest struct {
	RegistryType RegistryType `json:"registry_type"`
	Space        string       `json:"space,omitempty"`
	SearchTerm   string       `json:"search_term,omitempty"`
	Page         int          `json:"page"`
}

// RegistryPageEntry summarizes one (space, name) lineage on a page.
type RegistryPageEntry struct {
	Space     string    `json:"space"`
	Name      string    `json:"name"`
	Versions  int       `json:"versions"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RegistryStats summarizes a registry table.
type RegistryStats struct {
	Cards  int `json:"cards"`
	Names  int `json:"names"`
	Spaces int `json:"spaces"`
}
