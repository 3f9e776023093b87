package mongodb

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

func TestDecimalCodec(t *testing.T) {
	reg := newRegistry()
	type doc struct {
		Price decimal.Decimal  `bson:"price"`
		Max   *decimal.Decimal `bson:"max,omitempty"`
	}

	max := decimal.RequireFromString("1250.75")
	in := doc{Price: decimal.RequireFromString("499.50"), Max: &max}

	data, err := bson.MarshalWithRegistry(reg, in)
	require.NoError(t, err)
	assert.Equal(t, bsontype.Decimal128, bson.Raw(data).Lookup("price").Type)

	var out doc
	require.NoError(t, bson.UnmarshalWithRegistry(reg, data, &out))
	assert.True(t, in.Price.Equal(out.Price), "got %s", out.Price)
	require.NotNil(t, out.Max)
	assert.True(t, max.Equal(*out.Max), "got %s", out.Max)
}

func TestDecimalCodec_LegacyDouble(t *testing.T) {
	data, err := bson.Marshal(bson.M{"price": 12.5})
	require.NoError(t, err)

	var out struct {
		Price decimal.Decimal `bson:"price"`
	}
	require.NoError(t, bson.UnmarshalWithRegistry(newRegistry(), data, &out))
	assert.True(t, decimal.NewFromFloat(12.5).Equal(out.Price))
}
