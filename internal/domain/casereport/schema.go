package casereport

import (
	"embed"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/diabcrf/crf/internal/platform/form"
)

//go:embed schema/diabetes_admission.yaml
var schemaFS embed.FS

// SchemaPath is the embedded location of the admission form.
const SchemaPath = "schema/diabetes_admission.yaml"

// Field ids the submission builder reads.
const (
	FieldSerialNumber   = "serial_number"
	FieldAge            = "age"
	FieldSex            = "sex"
	FieldCenterOverride = "center_id"
)

// LoadSchema parses and lints the embedded admission form.
func LoadSchema() (*form.Schema, error) {
	s, err := form.Load(schemaFS, SchemaPath)
	if err != nil {
		return nil, err
	}
	for _, id := range []string{FieldSerialNumber, FieldAge, FieldSex, FieldCenterOverride} {
		if _, ok := s.Field(id); !ok {
			return nil, fmt.Errorf("%s: %w: missing field %q", SchemaPath, form.ErrInvalidSchema, id)
		}
	}
	return s, nil
}

// SchemaSource returns the embedded YAML document.
func SchemaSource() ([]byte, error) {
	return schemaFS.ReadFile(SchemaPath)
}

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// sanitizeText strips markup from free-text answers. The policy escapes the
// text it keeps; answers are stored as entered, so entities are decoded again.
func sanitizeText(raw string) string {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(raw)))
}
