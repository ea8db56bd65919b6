package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	e, err := Parse([]byte(`{"event":"item.updated","data":{"itemID":"42","extra":true}}`))
	require.NoError(t, err)
	assert.Equal(t, ItemUpdated, e.Event)
	assert.Equal(t, "42", e.ItemID())
	assert.Equal(t, "", e.SaleID())
}

func TestParseNumericIDs(t *testing.T) {
	e, err := Parse([]byte(`{"event":"sale.completed","data":{"saleID":1234}}`))
	require.NoError(t, err)
	assert.Equal(t, "1234", e.SaleID())
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte(`{"event":`))
	assert.Error(t, err)
}

func TestMissingData(t *testing.T) {
	e, err := Parse([]byte(`{"event":"item.deleted"}`))
	require.NoError(t, err)
	assert.Equal(t, "", e.ItemID())
}
