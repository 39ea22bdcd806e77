package period

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classup/rental-desk/internal/domain/shared"
)

func TestDefaultTable_Shape(t *testing.T) {
	table := DefaultTable()
	periods := table.Periods()

	require.Len(t, periods, 8)
	for i, p := range periods {
		assert.Equal(t, Index(i), p.Index)
		assert.Less(t, p.StartMinute, p.EndMinute)
		if i > 0 {
			assert.LessOrEqual(t, periods[i-1].EndMinute, p.StartMinute, "periods must be disjoint")
		}
	}
}

func TestTable_PeriodsReturnsCopy(t *testing.T) {
	table := DefaultTable()
	ps := table.Periods()
	ps[1].EndMinute = 0

	p, ok := table.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, 600, p.EndMinute)
}

func TestTable_EndTimeOf(t *testing.T) {
	table := DefaultTable()

	expected := map[Index]string{
		1: "10:00",
		2: "12:00",
		3: "15:00",
		4: "16:40",
		5: "18:00",
		6: "20:20",
		7: "22:00",
	}
	for idx, want := range expected {
		assert.Equal(t, want, table.EndTimeOf(idx), "period %d", idx)
	}

	// Unmapped indices fall back to the close of the day.
	assert.Equal(t, FallbackEndTime, table.EndTimeOf(0))
	assert.Equal(t, FallbackEndTime, table.EndTimeOf(9))
	assert.Equal(t, FallbackEndTime, table.EndTimeOf(-1))
}

func TestNewTable_Validation(t *testing.T) {
	_, err := NewTable([]Period{
		{Index: 1, StartMinute: 480, EndMinute: 600},
		{Index: 2, StartMinute: 590, EndMinute: 700},
	})
	assert.True(t, shared.IsValidation(err))
	assert.ErrorIs(t, err, shared.ErrInvalidPeriodTable)

	_, err = NewTable([]Period{{Index: 8, StartMinute: 0, EndMinute: 10}})
	assert.ErrorIs(t, err, shared.ErrInvalidPeriodIndex)
	assert.ErrorIs(t, err, shared.ErrInvalidPeriodTable)

	_, err = NewTable([]Period{{Index: 1, StartMinute: 600, EndMinute: 600}})
	assert.Error(t, err)

	_, err = NewTable([]Period{
		{Index: 1, StartMinute: 10, EndMinute: 20},
		{Index: 1, StartMinute: 30, EndMinute: 40},
	})
	assert.Error(t, err)
}

func TestNewTable_RejectsOutOfOrderRanges(t *testing.T) {
	_, err := NewTable([]Period{
		{Index: 1, StartMinute: 600, EndMinute: 700},
		{Index: 2, StartMinute: 100, EndMinute: 200},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidPeriodTable)
	assert.Contains(t, err.Error(), "period 2 starts before period 1 ends")

	// Touching boundaries are fine.
	_, err = NewTable([]Period{
		{Index: 0, StartMinute: 0, EndMinute: 480},
		{Index: 1, StartMinute: 480, EndMinute: 600},
	})
	assert.NoError(t, err)
}

func TestNewTable_SortsAndFallsBack(t *testing.T) {
	table, err := NewTable([]Period{
		{Index: 2, StartMinute: 700, EndMinute: 800},
		{Index: 1, StartMinute: 500, EndMinute: 600},
	})
	require.NoError(t, err)

	ps := table.Periods()
	assert.Equal(t, Index(1), ps[0].Index)
	assert.Equal(t, "13:20", table.EndTimeOf(2))
	// Index 7 is not mapped here, so the last teaching end wins.
	assert.Equal(t, "13:20", table.EndTimeOf(7))

	clock := NewClock(table, nil)
	assert.Equal(t, Index(2), clock.ReturnDuePeriod(kst(8, 30)))
}

func TestPeriod_Times(t *testing.T) {
	p, ok := DefaultTable().Lookup(4)
	require.True(t, ok)
	assert.Equal(t, "15:20", p.StartTime())
	assert.Equal(t, "16:40", p.EndTime())
}
