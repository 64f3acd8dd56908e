package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"logscan/pkg/configdir"
)

func sampleDef() configdir.LogfileDefinition {
	return configdir.LogfileDefinition{
		Name: "web",
		SourceFields: []configdir.Field{
			{ID: 10, Name: "region", Type: configdir.FieldTypeString},
		},
		RowFields: []configdir.Field{
			{ID: 2, Name: "time", Type: configdir.FieldTypeDateTime, Format: "2006-01-02 15:04:05"},
			{ID: 3, Name: "status", Type: configdir.FieldTypeString},
		},
	}
}

func TestSchemaFor_FieldOrderAndIDs(t *testing.T) {
	s := SchemaFor(sampleDef())

	require.Len(t, s.Fields, 4)
	require.Equal(t, RawFieldID, s.Fields[0].ID)
	require.Equal(t, "raw", s.Fields[0].Name)
	require.Equal(t, configdir.FieldTypeString, s.Fields[0].Type)

	require.Equal(t, uint32(10), s.Fields[1].ID)
	require.Equal(t, "region", s.Fields[1].Name)

	require.Equal(t, uint32(2), s.Fields[2].ID)
	require.Equal(t, "time", s.Fields[2].Name)

	require.Equal(t, uint32(3), s.Fields[3].ID)

	for _, f := range s.Fields {
		require.True(t, f.Optional)
	}
}

func TestSchemaFor_Deterministic(t *testing.T) {
	def := sampleDef()
	a := SchemaFor(def)
	b := SchemaFor(def)
	require.Equal(t, a, b)
}

func TestTableDefinitionsFor_NamingAndPartitioning(t *testing.T) {
	cfg := configdir.CustomerConfig{
		Customer: "acme",
		LogfileImportConfig: configdir.LogfileImportConfig{
			Logfiles: []configdir.LogfileDefinition{sampleDef()},
		},
	}

	tbls := TableDefinitionsFor("acme", cfg)
	require.Len(t, tbls, 1)
	require.Equal(t, "logs.web", tbls[0].TableName)
	require.Equal(t, PartitionWindow, tbls[0].PartitionWindow)
	require.Equal(t, PartitionerTimeWindow, tbls[0].Partitioner)
	require.Equal(t, StorageColumnar, tbls[0].Storage)

	var decoded RowSchema
	require.NoError(t, json.Unmarshal(tbls[0].EncodedSchema, &decoded))
	require.Equal(t, tbls[0].Schema, decoded)
}

func TestTableDefinitionsFor_EmptyLogfileSetYieldsEmpty(t *testing.T) {
	tbls := TableDefinitionsFor("acme", configdir.CustomerConfig{Customer: "acme"})
	require.Empty(t, tbls)
}
