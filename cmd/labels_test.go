package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junkusano/famille-docsync/internal/model"
)

func TestParseLabelRows(t *testing.T) {
	rows := [][]string{
		{"保険証", "3", ""},
		{"契約書", "2", "true"},
		{"旧様式", "9", "no"},
		{"", "1"},           // blank label skipped
		{"短い行"},             // too few columns skipped
		{" ケアプラン ", " 4 "}, // whitespace trimmed, active defaults on
	}

	entries, err := parseLabelRows(rows)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, model.LabelMasterEntry{Label: "保険証", TypeID: 3, Active: true}, entries[0])
	assert.Equal(t, model.LabelMasterEntry{Label: "契約書", TypeID: 2, Active: true}, entries[1])
	assert.Equal(t, model.LabelMasterEntry{Label: "旧様式", TypeID: 9, Active: false}, entries[2])
	assert.Equal(t, model.LabelMasterEntry{Label: "ケアプラン", TypeID: 4, Active: true}, entries[3])
}

func TestParseLabelRows_BadTypeID(t *testing.T) {
	_, err := parseLabelRows([][]string{{"保険証", "three"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad type id")
}
