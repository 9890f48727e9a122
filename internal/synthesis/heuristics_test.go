package synthesis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/resilience2relief/backend/internal/taxonomy"
)

func TestEstimateBeneficiaries(t *testing.T) {
	got := estimateBeneficiaries(taxonomy.SectorHousing, []string{
		"The cyclone displaced 3,500 people in the first week.",
		"Later assessments counted 12,000 people in need of shelter.",
	})
	assert.Equal(t, 12000, got)

	// No figures fall back to the sector base.
	got = estimateBeneficiaries(taxonomy.SectorHousing, []string{"General shelter commentary."})
	assert.Equal(t, 8000, got)

	got = estimateBeneficiaries(taxonomy.SectorHealth, nil)
	assert.Equal(t, 25000, got)
}

func TestEstimateBudgetFromHistoricalFigure(t *testing.T) {
	budget, basis := estimateBudget(taxonomy.SectorHousing, 8000, []string{
		"Reconstruction was funded with USD 25 million from development partners.",
	})
	assert.Equal(t, int64(25_000_000), budget)
	assert.Equal(t, "comparable historical figure", basis)
}

func TestEstimateBudgetFromBeneficiaryModel(t *testing.T) {
	budget, basis := estimateBudget(taxonomy.SectorHousing, 8000, nil)
	assert.Equal(t, int64(8000*600), budget)
	assert.Equal(t, "beneficiary cost model", basis)
}

func TestEstimateBudgetClampsToSectorBounds(t *testing.T) {
	// A billion-dollar comparable clamps to the housing ceiling.
	budget, _ := estimateBudget(taxonomy.SectorHousing, 8000, []string{"relief totalled $2 billion"})
	assert.Equal(t, int64(30_000_000), budget)

	// A tiny beneficiary count clamps to the floor.
	budget, _ = estimateBudget(taxonomy.SectorHousing, 10, nil)
	assert.Equal(t, int64(300_000), budget)
}

func TestLargestHistoricalFigureIgnoresNoise(t *testing.T) {
	// Unit prices under 10k are not comparable project budgets.
	got := largestHistoricalFigure([]string{"each kit costs $250", "transport adds $1,200 per village"})
	assert.Zero(t, got)

	got = largestHistoricalFigure([]string{"the appeal raised US$ 4.5m", "plus $80,000 in kind"})
	assert.Equal(t, int64(4_500_000), got)
}

func TestEstimateTimelineMonths(t *testing.T) {
	// 12m budget at 350k burn is 34 months.
	assert.Equal(t, 34, estimateTimelineMonths(taxonomy.SectorHousing, 12_000_000))

	// Small budgets still take at least a quarter.
	assert.Equal(t, 3, estimateTimelineMonths(taxonomy.SectorHousing, 300_000))

	// Huge budgets cap at five years.
	assert.Equal(t, 60, estimateTimelineMonths(taxonomy.SectorGovernance, 5_000_000_000))
}

func TestScorePriority(t *testing.T) {
	// Explicit band positions the score inside that band.
	assert.Equal(t, 8, scorePriority(taxonomy.PriorityHigh, "calm descriptive text"))
	assert.Equal(t, 10, scorePriority(taxonomy.PriorityHigh, "catastrophic destruction, urgent and severe"))
	assert.Equal(t, 1, scorePriority(taxonomy.PriorityLow, "calm descriptive text"))
	assert.Equal(t, 4, scorePriority("", "routine descriptive text"))

	// Inferred high band from the text itself.
	got := scorePriority("", "emergency repairs are critical")
	assert.GreaterOrEqual(t, got, 8)
}

func TestApplyBudgetRange(t *testing.T) {
	// Budget below the requested range is raised into it.
	got := applyBudgetRange(500_000, taxonomy.Budget1MTo10M, taxonomy.SectorHousing)
	assert.Equal(t, int64(1_000_000), got)

	// Budget above the requested range is lowered into it.
	got = applyBudgetRange(20_000_000, taxonomy.Budget1MTo10M, taxonomy.SectorHousing)
	assert.Equal(t, int64(10_000_000), got)

	// No range requested leaves the budget alone.
	got = applyBudgetRange(5_000_000, "", taxonomy.SectorHousing)
	assert.Equal(t, int64(5_000_000), got)

	// A range wholly outside the sector bounds is ignored.
	got = applyBudgetRange(3_000_000, taxonomy.BudgetOver50M, taxonomy.SectorGovernance)
	assert.Equal(t, int64(3_000_000), got)
}

func TestSectorTablesCoverAllSectors(t *testing.T) {
	for _, s := range taxonomy.Sectors() {
		assert.Contains(t, sectorCosts, s)
		assert.NotEmpty(t, sectorResources[s])
		assert.NotEmpty(t, sectorPartners[s])
	}
}
