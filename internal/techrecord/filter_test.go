package techrecord

import (
	"errors"
	"testing"
)

func vehicleWithStatuses(statuses ...StatusCode) *Vehicle {
	v := &Vehicle{SystemNumber: "SYS-1", Vin: "VIN-1"}
	for i, s := range statuses {
		v.TechRecord = append(v.TechRecord, TechRecord{
			"statusCode": string(s),
			"seq":        i,
		})
	}
	return v
}

func TestFilterAllReturnsEverything(t *testing.T) {
	v := vehicleWithStatuses(StatusProvisional, StatusArchived, StatusArchived)
	out, err := ApplyStatusFilter(v, FilterAll)
	if err != nil {
		t.Fatalf("ApplyStatusFilter: %v", err)
	}
	if len(out.TechRecord) != 3 {
		t.Fatalf("expected 3 records, got %d", len(out.TechRecord))
	}
}

func TestFilterPlainStatusPreservesOrder(t *testing.T) {
	v := vehicleWithStatuses(StatusArchived, StatusCurrent, StatusArchived)
	out, err := ApplyStatusFilter(v, FilterArchived)
	if err != nil {
		t.Fatalf("ApplyStatusFilter: %v", err)
	}
	if len(out.TechRecord) != 2 {
		t.Fatalf("expected 2 archived records, got %d", len(out.TechRecord))
	}
	if out.TechRecord[0]["seq"] != 0 || out.TechRecord[1]["seq"] != 2 {
		t.Fatalf("order not preserved: %#v", out.TechRecord)
	}
}

func TestFilterPlainStatusNotFound(t *testing.T) {
	v := vehicleWithStatuses(StatusArchived)
	if _, err := ApplyStatusFilter(v, FilterCurrent); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFilterEmptyListNotFound(t *testing.T) {
	v := &Vehicle{SystemNumber: "SYS-1"}
	for _, f := range []StatusFilter{FilterCurrent, FilterProvisional, FilterArchived, FilterProvisionalOverCurrent} {
		if _, err := ApplyStatusFilter(v, f); !errors.Is(err, ErrNotFound) {
			t.Fatalf("filter %s: expected ErrNotFound, got %v", f, err)
		}
	}
}

// 唯一一条 current 快照按 provisional_over_current 请求时原样返回。
func TestTieBreakSingleCurrentRecord(t *testing.T) {
	v := vehicleWithStatuses(StatusCurrent)
	out, err := ApplyStatusFilter(v, FilterProvisionalOverCurrent)
	if err != nil {
		t.Fatalf("ApplyStatusFilter: %v", err)
	}
	if len(out.TechRecord) != 1 || recordStatus(out.TechRecord[0]) != StatusCurrent {
		t.Fatalf("expected the single current record back, got %#v", out.TechRecord)
	}
}

func TestTieBreakSingleProvisionalRecord(t *testing.T) {
	v := vehicleWithStatuses(StatusProvisional)
	out, err := ApplyStatusFilter(v, FilterProvisionalOverCurrent)
	if err != nil {
		t.Fatalf("ApplyStatusFilter: %v", err)
	}
	if len(out.TechRecord) != 1 || recordStatus(out.TechRecord[0]) != StatusProvisional {
		t.Fatalf("expected the single provisional record back, got %#v", out.TechRecord)
	}
}

// 草稿 + 归档的在途编辑：返回草稿真子集。
func TestTieBreakPrefersProvisionalSubset(t *testing.T) {
	v := vehicleWithStatuses(StatusProvisional, StatusArchived, StatusArchived)
	out, err := ApplyStatusFilter(v, FilterProvisionalOverCurrent)
	if err != nil {
		t.Fatalf("ApplyStatusFilter: %v", err)
	}
	if len(out.TechRecord) != 1 || recordStatus(out.TechRecord[0]) != StatusProvisional {
		t.Fatalf("expected provisional subset, got %#v", out.TechRecord)
	}
}

// 没有任何 provisional：退回按 current 过滤。
func TestTieBreakFallsBackToCurrent(t *testing.T) {
	v := vehicleWithStatuses(StatusCurrent, StatusArchived)
	out, err := ApplyStatusFilter(v, FilterProvisionalOverCurrent)
	if err != nil {
		t.Fatalf("ApplyStatusFilter: %v", err)
	}
	if len(out.TechRecord) != 1 || recordStatus(out.TechRecord[0]) != StatusCurrent {
		t.Fatalf("expected current fallback, got %#v", out.TechRecord)
	}
}

// 全归档且无 current：回退后仍为空 -> 未找到。
func TestTieBreakArchivedOnlyNotFound(t *testing.T) {
	v := vehicleWithStatuses(StatusArchived, StatusArchived)
	if _, err := ApplyStatusFilter(v, FilterProvisionalOverCurrent); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// 全是 provisional（过滤无效果）：规则要求改按 current 重过滤。
func TestTieBreakAllProvisionalRerunsAsCurrent(t *testing.T) {
	v := vehicleWithStatuses(StatusProvisional, StatusProvisional)
	if _, err := ApplyStatusFilter(v, FilterProvisionalOverCurrent); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after current rerun, got %v", err)
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	v := vehicleWithStatuses(StatusProvisional, StatusArchived)
	if _, err := ApplyStatusFilter(v, FilterProvisionalOverCurrent); err != nil {
		t.Fatalf("ApplyStatusFilter: %v", err)
	}
	if len(v.TechRecord) != 2 {
		t.Fatalf("input vehicle was mutated: %d records left", len(v.TechRecord))
	}
	if recordStatus(v.TechRecord[0]) != StatusProvisional || recordStatus(v.TechRecord[1]) != StatusArchived {
		t.Fatalf("input records changed: %#v", v.TechRecord)
	}
}
