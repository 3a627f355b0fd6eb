package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/shared"
)

// ParamMap holds variant parameters (e.g. size, pressure class) keyed by
// parameter name. Stored as JSON.
type ParamMap map[string]string

// Value implements driver.Valuer for GORM
func (p ParamMap) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for GORM
func (p *ParamMap) Scan(value interface{}) error {
	if value == nil {
		*p = ParamMap{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ParamMap", value)
	}
	return json.Unmarshal(data, p)
}

// NormalizeParamValue canonicalizes a parameter value: whitespace is
// trimmed and a trailing "mm" or single "m" unit suffix is stripped.
// Historical rows may carry units, so the same normalization must be
// applied to both sides of any variant lookup.
func NormalizeParamValue(value string) string {
	v := strings.TrimSpace(value)
	lower := strings.ToLower(v)
	switch {
	case strings.HasSuffix(lower, "mm"):
		v = strings.TrimSpace(v[:len(v)-2])
	case strings.HasSuffix(lower, "m"):
		v = strings.TrimSpace(v[:len(v)-1])
	}
	return v
}

// NormalizeParams returns a copy of the map with every key trimmed and
// every value normalized
func NormalizeParams(params ParamMap) ParamMap {
	normalized := make(ParamMap, len(params))
	for k, v := range params {
		normalized[strings.TrimSpace(k)] = NormalizeParamValue(v)
	}
	return normalized
}

// ParamsEqual compares two parameter sets after normalizing both sides
func ParamsEqual(a, b ParamMap) bool {
	na, nb := NormalizeParams(a), NormalizeParams(b)
	if len(na) != len(nb) {
		return false
	}
	for k, v := range na {
		if nb[k] != v {
			return false
		}
	}
	return true
}

// EncodeParams renders the normalized parameters as "K1V1-K2V2" with keys
// sorted, for use in batch codes
func EncodeParams(params ParamMap) string {
	normalized := NormalizeParams(params)
	keys := make([]string, 0, len(normalized))
	for k := range normalized {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, strings.ToUpper(k)+normalized[k])
	}
	return strings.Join(parts, "-")
}

// ProductVariant represents a concrete sellable variant of a product type
// under a brand, distinguished by its parameter set. Variants are created
// on demand when production or a return references a parameter set not yet
// present.
type ProductVariant struct {
	shared.BaseEntity
	ProductTypeID uuid.UUID `gorm:"type:uuid;not null;index:idx_variant_type_brand"`
	BrandID       uuid.UUID `gorm:"type:uuid;not null;index:idx_variant_type_brand"`
	Parameters    ParamMap  `gorm:"type:jsonb;not null"`
}

// TableName returns the table name for GORM
func (ProductVariant) TableName() string {
	return "product_variants"
}

// NewProductVariant creates a new variant, storing normalized parameters
func NewProductVariant(productTypeID, brandID uuid.UUID, params ParamMap) (*ProductVariant, error) {
	if productTypeID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_VARIANT", "Product type ID cannot be empty")
	}
	if brandID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_VARIANT", "Brand ID cannot be empty")
	}
	return &ProductVariant{
		BaseEntity:    shared.NewBaseEntity(),
		ProductTypeID: productTypeID,
		BrandID:       brandID,
		Parameters:    NormalizeParams(params),
	}, nil
}

// Matches reports whether the variant's stored parameters equal the given
// set under normalization
func (v *ProductVariant) Matches(params ParamMap) bool {
	return ParamsEqual(v.Parameters, params)
}
