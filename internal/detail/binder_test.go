package detail_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-termit/internal/detail"
)

func seed(t *testing.T) *detail.StaticSource {
	t.Helper()
	src, err := detail.SeedSource()
	require.NoError(t, err)
	return src
}

func TestSeedRecords(t *testing.T) {
	src := seed(t)
	assert.Equal(t,
		[]string{"gangnam-gu", "hongjewon-hyundai", "nonhyeon-paragon", "samsung-lotte", "seodaemun-gu"},
		src.IDs())

	r, ok := src.Lookup("samsung-lotte")
	require.True(t, ok)
	assert.Equal(t, "서울특별시 강남구 삼성동 17", r.Title)
	require.Len(t, r.PriceSection.Options, 2)
	require.NotNil(t, r.FeasibilityAnalysis)
	assert.Equal(t, "102.86%", r.FeasibilityAnalysis.ProportionalityRate)
	assert.Len(t, r.ContributionComparisons, 4)

	_, ok = src.Lookup("atlantis")
	assert.False(t, ok)
}

func TestParseRecordsRejectsMissingID(t *testing.T) {
	_, err := detail.ParseRecords([]byte(`[{"title": "no id"}]`))
	assert.Error(t, err)

	_, err = detail.ParseRecords([]byte(`{`))
	assert.Error(t, err)
}

func TestBindProjectsSelection(t *testing.T) {
	b := detail.NewBinder(seed(t))
	assert.False(t, b.View().Open())

	assert.True(t, b.Bind("gangnam-gu"))
	v := b.View()
	require.True(t, v.Open())
	assert.Equal(t, "gangnam-gu", v.Record.ID)
	assert.False(t, b.Bind("gangnam-gu"), "same id is not a change")

	assert.True(t, b.Bind("atlantis"))
	v = b.View()
	assert.False(t, v.Open())
	assert.True(t, v.Missing)

	assert.True(t, b.Bind(""))
	assert.Equal(t, detail.View{}, b.View())
}

func TestSelectionChangeResetsPanelState(t *testing.T) {
	b := detail.NewBinder(seed(t))
	b.Bind("samsung-lotte")

	assert.True(t, b.SelectUnit(1))
	assert.True(t, b.ToggleShowMore())
	v := b.View()
	assert.Equal(t, 1, v.Unit)
	assert.True(t, v.ShowMore)
	assert.Len(t, v.Transactions(), 4)
	price, ok := v.Price()
	require.True(t, ok)
	assert.Equal(t, "24평", price.Unit)

	b.Bind("nonhyeon-paragon")
	v = b.View()
	assert.Zero(t, v.Unit)
	assert.False(t, v.ShowMore)
	assert.Len(t, v.Transactions(), 2)
	assert.False(t, v.CanShowMore())
}

func TestSelectUnitIgnoresOutOfRange(t *testing.T) {
	b := detail.NewBinder(seed(t))
	assert.False(t, b.SelectUnit(0), "nothing bound")
	assert.False(t, b.ToggleShowMore())

	b.Bind("hongjewon-hyundai")
	assert.False(t, b.SelectUnit(1))
	assert.False(t, b.SelectUnit(-1))
	assert.False(t, b.SelectUnit(0), "already active")
	assert.Zero(t, b.View().Unit)
}
