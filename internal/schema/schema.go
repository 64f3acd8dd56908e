// Package schema derives a typed RowSchema from a LogfileDefinition and
// owns the authoritative logfile-name -> backing-table mapping used by
// both ingestion and scan.
package schema

import (
	"encoding/json"
	"time"

	"logscan/pkg/configdir"
)

// PartitionWindow is the fixed 10-minute time-window every logs.<name>
// table is partitioned on.
const PartitionWindow = 10 * time.Minute

const (
	PartitionerTimeWindow = "time_window"
	StorageColumnar       = "columnar"
)

// RawFieldID is the reserved field id for the raw source line; it is
// always field 1 and always present in every RowSchema.
const RawFieldID uint32 = 1

// Field is one schema field: an id, name, declared type, optional parse
// format, always marked optional per the data model's invariant.
type Field struct {
	ID       uint32
	Name     string
	Type     configdir.FieldType
	Format   string
	Optional bool
}

// RowSchema is the derived, typed shape of rows produced for a logfile:
// field 1 is always raw:string, followed by source_fields then row_fields
// in declaration order, each carrying its declared id.
type RowSchema struct {
	Name   string
	Fields []Field
}

// FieldByID looks up a schema field by its wire id.
func (s RowSchema) FieldByID(id uint32) (Field, bool) {
	for _, f := range s.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// FieldIDs returns the schema's name -> wire id mapping, used to resolve
// a scan request's projected columns and SQL condition against the
// logfile's actual field ids.
func (s RowSchema) FieldIDs() map[string]uint32 {
	ids := make(map[string]uint32, len(s.Fields))
	for _, f := range s.Fields {
		ids[f.Name] = f.ID
	}
	return ids
}

// SchemaFor derives field 1=raw:string, then every source_fields and
// row_fields entry using its declared id, all marked optional.
func SchemaFor(def configdir.LogfileDefinition) RowSchema {
	fields := make([]Field, 0, 1+len(def.SourceFields)+len(def.RowFields))
	fields = append(fields, Field{ID: RawFieldID, Name: "raw", Type: configdir.FieldTypeString, Optional: true})

	for _, f := range def.SourceFields {
		fields = append(fields, Field{ID: f.ID, Name: f.Name, Type: f.Type, Format: f.Format, Optional: true})
	}
	for _, f := range def.RowFields {
		fields = append(fields, Field{ID: f.ID, Name: f.Name, Type: f.Type, Format: f.Format, Optional: true})
	}

	return RowSchema{Name: def.Name, Fields: fields}
}

// TableName is the authoritative logfile-name -> backing-table mapping:
// every logfile is stored in a table named "logs.<name>".
func TableName(logfileName string) string {
	return "logs." + logfileName
}

// TableDefinition describes one backing table: its schema, partitioning
// strategy and storage engine, as handed to the TSDB collaborator to
// create (or verify) the table. EncodedSchema is the serialized form of
// Schema embedded in the definition, so the storage layer can persist
// and compare schemas without depending on this package's types.
type TableDefinition struct {
	Customer        string
	TableName       string
	Schema          RowSchema
	EncodedSchema   []byte
	Partitioner     string
	Storage         string
	PartitionWindow time.Duration
}

// TableDefinitionsFor yields one TableDefinition per logfile configured
// for customer -- the authoritative mapping consumed when provisioning
// storage for a newly-declared logfile. An empty logfile set yields an
// empty slice.
func TableDefinitionsFor(customer string, cfg configdir.CustomerConfig) []TableDefinition {
	defs := cfg.LogfileImportConfig.Logfiles
	tbls := make([]TableDefinition, 0, len(defs))

	for _, def := range defs {
		sch := SchemaFor(def)
		encoded, _ := json.Marshal(sch)
		tbls = append(tbls, TableDefinition{
			Customer:        customer,
			TableName:       TableName(def.Name),
			Schema:          sch,
			EncodedSchema:   encoded,
			Partitioner:     PartitionerTimeWindow,
			Storage:         StorageColumnar,
			PartitionWindow: PartitionWindow,
		})
	}

	return tbls
}
