package configdir

// FieldType is the declared type of a source or row field. DATETIME is the
// only type the line parser and schema builder special-case; everything
// else is carried through as opaque text.
type FieldType string

const (
	FieldTypeString   FieldType = "STRING"
	FieldTypeDateTime FieldType = "DATETIME"
	FieldTypeInt64    FieldType = "INT64"
	FieldTypeDouble   FieldType = "DOUBLE"
	FieldTypeBool     FieldType = "BOOL"
)

// Field is one (id, name, type, format?) tuple, shared shape for both
// source_fields and row_fields per the data model.
type Field struct {
	ID     uint32    `yaml:"id" json:"id"`
	Name   string    `yaml:"name" json:"name"`
	Type   FieldType `yaml:"type" json:"type"`
	Format string    `yaml:"format,omitempty" json:"format,omitempty"`
}

// LogfileDefinition is the immutable-per-request snapshot of one customer's
// named ingestion pipeline: a parsing regex plus the field schema it feeds.
type LogfileDefinition struct {
	Name         string  `yaml:"name" json:"name"`
	Regex        string  `yaml:"regex" json:"regex"`
	SourceFields []Field `yaml:"source_fields" json:"source_fields"`
	RowFields    []Field `yaml:"row_fields" json:"row_fields"`
}

// TimeField returns the row_fields entry named "time", if declared.
func (d LogfileDefinition) TimeField() (Field, bool) {
	for _, f := range d.RowFields {
		if f.Name == "time" {
			return f, true
		}
	}
	return Field{}, false
}

// LogfileImportConfig is the customer-scoped collection of logfile
// definitions, matching CustomerConfig.logfile_import_config.logfiles.
type LogfileImportConfig struct {
	Logfiles []LogfileDefinition `yaml:"logfiles" json:"logfiles"`
}

// CustomerConfig is one customer's full configuration document as stored
// in the config directory.
type CustomerConfig struct {
	Customer            string              `yaml:"customer" json:"customer"`
	LogfileImportConfig LogfileImportConfig `yaml:"logfile_import_config" json:"logfile_import_config"`
}
