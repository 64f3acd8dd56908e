package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeRow_DeterministicAcrossMapOrder(t *testing.T) {
	row := Row{
		7: StringValue("b"),
		1: StringValue("a"),
		3: TimeValue(1577836800000000),
	}

	first := EncodeRow(row)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, EncodeRow(row))
	}
}

func TestDecodeRow_RoundTripsTypedValues(t *testing.T) {
	row := Row{
		1: StringValue("2020-01-01 00:00:00 alpha"),
		2: TimeValue(1577836800000000),
		3: StringValue("alpha"),
	}

	decoded, err := DecodeRow(EncodeRow(row))
	require.NoError(t, err)
	require.Equal(t, row, decoded)
}

func TestDecodeRow_RejectsUnknownValueKind(t *testing.T) {
	// field id 1, kind byte 0xEE: not a kind this codec ever wrote.
	_, err := DecodeRow([]byte{0x01, 0xEE})
	require.Error(t, err)
}

func TestValueString_RendersDatetimeAsRFC3339(t *testing.T) {
	v := TimeValue(1577836800000000)
	require.Equal(t, "2020-01-01T00:00:00Z", v.String())
}
