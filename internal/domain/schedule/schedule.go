// Package schedule arma el plan diario de dosis de un paciente y lo cruza con
// sus logs de adherencia. Derive, Correlate y ComputeStats son puras: reciben
// todo por parámetro y nunca fallan con entrada bien formada.
package schedule

import (
	"sort"

	"dawailo/internal/domain/adherence"
	"dawailo/internal/domain/calendar"
	"dawailo/internal/domain/prescriptions"
)

type SlotStatus string

const (
	SlotPending SlotStatus = "pending"
	SlotTaken   SlotStatus = "taken"
	SlotMissed  SlotStatus = "missed"
)

// Slot es una dosis esperada: un medicamento en una hora de un día.
type Slot struct {
	Medicine      prescriptions.Medicine
	Time          calendar.TimeOfDay
	ScheduledTime calendar.SlotKey
	Status        SlotStatus
	LogID         string // vacío si pending
}

type Stats struct {
	Total      int
	Taken      int
	Percentage int
}

// Derive genera un slot por cada hora de cada medicamento vigente en day.
// Orden: hora ascendente; empates por id de medicamento y después por
// posición en Times. Medicamentos sin horas no aportan slots.
func Derive(meds []prescriptions.Medicine, day calendar.Date) []Slot {
	type ranked struct {
		slot Slot
		pos  int
	}

	items := make([]ranked, 0, len(meds)*2)
	for _, m := range meds {
		if !m.ActiveOn(day) {
			continue
		}
		for i, t := range m.Times {
			if t.IsZero() {
				continue
			}
			items = append(items, ranked{
				slot: Slot{
					Medicine:      m,
					Time:          t,
					ScheduledTime: calendar.NewSlotKey(day, t),
					Status:        SlotPending,
				},
				pos: i,
			})
		}
	}

	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if c := a.slot.Time.Compare(b.slot.Time); c != 0 {
			return c < 0
		}
		if a.slot.Medicine.ID != b.slot.Medicine.ID {
			return a.slot.Medicine.ID < b.slot.Medicine.ID
		}
		return a.pos < b.pos
	})

	out := make([]Slot, 0, len(items))
	for _, it := range items {
		out = append(out, it.slot)
	}
	return out
}

type slotIdentity struct {
	medicineID string
	at         calendar.SlotKey
}

// Correlate resuelve el status de cada slot contra los logs, por igualdad
// exacta de (medicamento, scheduled_time). Mantiene el orden de slots.
func Correlate(slots []Slot, logs []adherence.Log) []Slot {
	index := make(map[slotIdentity]adherence.Log, len(logs))
	for _, l := range logs {
		k := slotIdentity{medicineID: l.MedicineID, at: l.ScheduledTime}
		// Si hubiera duplicados históricos, gana el primero registrado.
		if prev, ok := index[k]; ok && !l.MarkedAt.Before(prev.MarkedAt) {
			continue
		}
		index[k] = l
	}

	out := make([]Slot, len(slots))
	for i, s := range slots {
		s.Status = SlotPending
		s.LogID = ""
		if l, ok := index[slotIdentity{medicineID: s.Medicine.ID, at: s.ScheduledTime}]; ok {
			s.Status = slotStatusOf(l.Status)
			s.LogID = l.ID
		}
		out[i] = s
	}
	return out
}

// ComputeStats: percentage = round(100*taken/total) redondeando .5 hacia arriba;
// 0 si no hay slots.
func ComputeStats(slots []Slot) Stats {
	st := Stats{Total: len(slots)}
	for _, s := range slots {
		if s.Status == SlotTaken {
			st.Taken++
		}
	}
	if st.Total > 0 {
		st.Percentage = (st.Taken*200 + st.Total) / (2 * st.Total)
	}
	return st
}

func slotStatusOf(s adherence.Status) SlotStatus {
	switch s {
	case adherence.StatusTaken:
		return SlotTaken
	case adherence.StatusMissed:
		return SlotMissed
	default:
		return SlotPending
	}
}
