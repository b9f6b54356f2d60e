package schedule

import (
	"testing"
	"time"

	"dawailo/internal/domain/adherence"
	"dawailo/internal/domain/calendar"
	"dawailo/internal/domain/prescriptions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = calendar.NewDate(2026, time.October, 16)

func medicine(id string, times ...string) prescriptions.Medicine {
	tt := make([]calendar.TimeOfDay, 0, len(times))
	for _, s := range times {
		tt = append(tt, calendar.MustTimeOfDay(s))
	}
	return prescriptions.Medicine{
		ID:        id,
		PatientID: "patient1",
		Name:      "Med " + id,
		Dosage:    "1 tab",
		Frequency: len(times),
		Times:     tt,
		StartDate: today.AddDays(-5),
		EndDate:   today.AddDays(5),
		Status:    prescriptions.StatusActive,
	}
}

func keys(slots []Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Medicine.ID+"@"+s.Time.String())
	}
	return out
}

func TestDerive_TwoTimesOrdered(t *testing.T) {
	slots := Derive([]prescriptions.Medicine{medicine("m1", "20:00", "08:00")}, today)

	require.Len(t, slots, 2)
	assert.Equal(t, "2026-10-16T08:00", slots[0].ScheduledTime.String())
	assert.Equal(t, "2026-10-16T20:00", slots[1].ScheduledTime.String())
	for _, s := range slots {
		assert.Equal(t, SlotPending, s.Status)
	}
}

func TestDerive_SkipsMedicinesWithoutTimes(t *testing.T) {
	empty := medicine("m1")
	missing := medicine("m2")
	missing.Times = nil

	assert.Empty(t, Derive([]prescriptions.Medicine{empty, missing}, today))
	assert.Empty(t, Derive(nil, today))
}

func TestDerive_OutOfRangeAndStoppedContributeNothing(t *testing.T) {
	past := medicine("past", "08:00")
	past.StartDate, past.EndDate = today.AddDays(-10), today.AddDays(-1)

	future := medicine("future", "08:00")
	future.StartDate, future.EndDate = today.AddDays(1), today.AddDays(3)

	stopped := medicine("stopped", "08:00")
	stopped.Status = prescriptions.StatusStopped

	edgeStart := medicine("edge-start", "09:00")
	edgeStart.StartDate = today
	edgeEnd := medicine("edge-end", "10:00")
	edgeEnd.EndDate = today

	slots := Derive([]prescriptions.Medicine{past, future, stopped, edgeStart, edgeEnd}, today)
	assert.Equal(t, []string{"edge-start@09:00", "edge-end@10:00"}, keys(slots))
}

func TestDerive_TiesAreDeterministic(t *testing.T) {
	a := medicine("b-med", "08:00", "12:00")
	b := medicine("a-med", "12:00", "08:00")
	c := medicine("c-med", "08:00")

	first := Derive([]prescriptions.Medicine{a, b, c}, today)
	second := Derive([]prescriptions.Medicine{c, b, a}, today)

	want := []string{"a-med@08:00", "b-med@08:00", "c-med@08:00", "a-med@12:00", "b-med@12:00"}
	assert.Equal(t, want, keys(first))
	assert.Equal(t, keys(first), keys(second))

	for i := 1; i < len(first); i++ {
		assert.LessOrEqual(t, first[i-1].Time.String(), first[i].Time.String())
	}
}

func logFor(id, medicineID, at string, status adherence.Status) adherence.Log {
	k, err := calendar.ParseSlotKey(at)
	if err != nil {
		panic(err)
	}
	return adherence.Log{
		ID:            id,
		MedicineID:    medicineID,
		PatientID:     "patient1",
		ScheduledTime: k,
		Status:        status,
		MarkedAt:      time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC),
	}
}

func TestCorrelate_ExactKeyMatch(t *testing.T) {
	slots := Derive([]prescriptions.Medicine{medicine("m1", "08:00", "20:00"), medicine("m2", "08:00")}, today)

	logs := []adherence.Log{
		logFor("l1", "m1", "2026-10-16T08:00", adherence.StatusTaken),
		logFor("l2", "m2", "2026-10-16T08:00", adherence.StatusMissed),
		// otro día y otra hora: no cuentan
		logFor("l3", "m1", "2026-10-15T20:00", adherence.StatusTaken),
		logFor("l4", "m1", "2026-10-16T20:01", adherence.StatusTaken),
	}

	got := Correlate(slots, logs)
	require.Len(t, got, 3)
	assert.Equal(t, keys(slots), keys(got))

	assert.Equal(t, SlotTaken, got[0].Status)
	assert.Equal(t, "l1", got[0].LogID)
	assert.Equal(t, SlotMissed, got[1].Status)
	assert.Equal(t, SlotPending, got[2].Status)
	assert.Empty(t, got[2].LogID)

	// no muta la entrada
	assert.Equal(t, SlotPending, slots[0].Status)
}

func TestCorrelate_DuplicateLogsCountOnce(t *testing.T) {
	slots := Derive([]prescriptions.Medicine{medicine("m1", "08:00")}, today)

	first := logFor("first", "m1", "2026-10-16T08:00", adherence.StatusTaken)
	dup := logFor("dup", "m1", "2026-10-16T08:00", adherence.StatusMissed)
	dup.MarkedAt = first.MarkedAt.Add(time.Minute)

	got := Correlate(slots, []adherence.Log{dup, first})
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].LogID)
	assert.Equal(t, Stats{Total: 1, Taken: 1, Percentage: 100}, ComputeStats(got))
}

func TestComputeStats(t *testing.T) {
	mk := func(statuses ...SlotStatus) []Slot {
		out := make([]Slot, 0, len(statuses))
		for _, s := range statuses {
			out = append(out, Slot{Status: s})
		}
		return out
	}

	cases := []struct {
		name  string
		slots []Slot
		want  Stats
	}{
		{"empty", nil, Stats{}},
		{"none taken", mk(SlotPending, SlotPending), Stats{Total: 2}},
		{"half", mk(SlotTaken, SlotPending), Stats{Total: 2, Taken: 1, Percentage: 50}},
		{"one third rounds down", mk(SlotTaken, SlotMissed, SlotPending), Stats{Total: 3, Taken: 1, Percentage: 33}},
		{"two thirds rounds up", mk(SlotTaken, SlotTaken, SlotMissed), Stats{Total: 3, Taken: 2, Percentage: 67}},
		{"half up", mk(SlotTaken, SlotPending, SlotPending, SlotPending, SlotPending, SlotPending, SlotPending, SlotPending), Stats{Total: 8, Taken: 1, Percentage: 13}},
		{"missed is not taken", mk(SlotMissed), Stats{Total: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeStats(tc.slots)
			assert.Equal(t, tc.want, got)
			assert.LessOrEqual(t, got.Taken, got.Total)
		})
	}
}
