package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseRecord() Record {
	return Record{
		ID:          7,
		UserID:      1,
		CategoryID:  3,
		Type:        TypeExpense,
		Description: "groceries",
		Amount:      42.50,
		Date:        time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC),
	}
}

func TestPatchApplyToEmptyIsNoOp(t *testing.T) {
	rec := baseRecord()

	Patch{}.ApplyTo(&rec)

	assert.Equal(t, baseRecord(), rec)
}

func TestPatchApplyToSubset(t *testing.T) {
	rec := baseRecord()
	amount := 99.99
	description := "monthly groceries"

	Patch{Amount: &amount, Description: &description}.ApplyTo(&rec)

	assert.Equal(t, 99.99, rec.Amount)
	assert.Equal(t, "monthly groceries", rec.Description)
	// Untouched fields keep their values.
	assert.Equal(t, TypeExpense, rec.Type)
	assert.Equal(t, int64(3), rec.CategoryID)
	assert.Equal(t, baseRecord().Date, rec.Date)
}

func TestPatchApplyToAllFields(t *testing.T) {
	rec := baseRecord()
	recType := TypeIncome
	description := "salary"
	amount := 2500.0
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	categoryID := int64(9)

	Patch{
		Type:        &recType,
		Description: &description,
		Amount:      &amount,
		Date:        &date,
		CategoryID:  &categoryID,
	}.ApplyTo(&rec)

	assert.Equal(t, Record{
		ID:          7,
		UserID:      1,
		CategoryID:  9,
		Type:        TypeIncome,
		Description: "salary",
		Amount:      2500.0,
		Date:        date,
	}, rec)
}

func TestPatchDecodeDistinguishesAbsentFromZero(t *testing.T) {
	var patch Patch
	require.NoError(t, json.Unmarshal([]byte(`{"amount":0}`), &patch))

	require.NotNil(t, patch.Amount)
	assert.Equal(t, 0.0, *patch.Amount)
	assert.Nil(t, patch.Type)
	assert.Nil(t, patch.Description)
	assert.Nil(t, patch.Date)
	assert.Nil(t, patch.CategoryID)

	rec := baseRecord()
	patch.ApplyTo(&rec)
	assert.Equal(t, 0.0, rec.Amount)
	assert.Equal(t, "groceries", rec.Description)
}

func TestValidType(t *testing.T) {
	assert.True(t, validType(TypeIncome))
	assert.True(t, validType(TypeExpense))
	assert.False(t, validType(""))
	assert.False(t, validType("transfer"))
}
