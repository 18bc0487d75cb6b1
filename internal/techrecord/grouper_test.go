package techrecord

import (
	"errors"
	"testing"
)

func row(sysNum, vin, createdAt, status string, extra FlatRow) FlatRow {
	r := FlatRow{
		"systemNumber":          sysNum,
		"vin":                   vin,
		"createdTimestamp":      createdAt,
		"techRecord_statusCode": status,
		"techRecord_createdAt":  createdAt,
	}
	for k, v := range extra {
		r[k] = v
	}
	return r
}

func TestGroupRowsEmptyInput(t *testing.T) {
	vehicles, err := GroupRows(nil)
	if err != nil {
		t.Fatalf("GroupRows: %v", err)
	}
	if len(vehicles) != 0 {
		t.Fatalf("expected no vehicles, got %d", len(vehicles))
	}
}

func TestGroupRowsPartitionsBySystemNumber(t *testing.T) {
	rows := []FlatRow{
		row("SYS-1", "VIN-1", "2024-03-01T00:00:00Z", "provisional", nil),
		row("SYS-1", "VIN-1", "2024-02-01T00:00:00Z", "archived", nil),
		row("SYS-1", "VIN-1", "2024-01-01T00:00:00Z", "archived", nil),
		row("SYS-2", "VIN-2", "2024-01-05T00:00:00Z", "current", nil),
	}
	vehicles, err := GroupRows(rows)
	if err != nil {
		t.Fatalf("GroupRows: %v", err)
	}
	if len(vehicles) != 2 {
		t.Fatalf("expected 2 vehicles, got %d", len(vehicles))
	}
	if vehicles[0].SystemNumber != "SYS-1" || len(vehicles[0].TechRecord) != 3 {
		t.Fatalf("first group wrong: %s / %d records", vehicles[0].SystemNumber, len(vehicles[0].TechRecord))
	}
	if vehicles[1].SystemNumber != "SYS-2" || len(vehicles[1].TechRecord) != 1 {
		t.Fatalf("second group wrong: %s / %d records", vehicles[1].SystemNumber, len(vehicles[1].TechRecord))
	}
	// 行流顺序保留：最新的在前
	if recordStatus(vehicles[0].TechRecord[0]) != StatusProvisional {
		t.Fatalf("expected newest record first, got %s", recordStatus(vehicles[0].TechRecord[0]))
	}
}

func TestGroupRowsFirstOccurrenceWins(t *testing.T) {
	r1 := row("SYS-1", "VIN-NEW", "2024-03-01T00:00:00Z", "provisional", FlatRow{"primaryVrm": "ALKH567"})
	r2 := row("SYS-1", "VIN-OLD", "2024-01-01T00:00:00Z", "archived", FlatRow{"primaryVrm": "OLD111"})
	vehicles, err := GroupRows([]FlatRow{r1, r2})
	if err != nil {
		t.Fatalf("GroupRows: %v", err)
	}
	if len(vehicles) != 1 {
		t.Fatalf("expected 1 vehicle, got %d", len(vehicles))
	}
	if vehicles[0].Vin != "VIN-NEW" || vehicles[0].PrimaryVrm != "ALKH567" {
		t.Fatalf("expected first row's vehicle fields to win: %+v", vehicles[0])
	}
}

func TestGroupRowsMergesSecondaryVrms(t *testing.T) {
	r := row("SYS-1", "VIN-1", "2024-03-01T00:00:00Z", "current", FlatRow{
		"secondaryVrms_0": "POI9876",
		"secondaryVrms_1": "QWE1234",
	})
	vehicles, err := GroupRows([]FlatRow{r})
	if err != nil {
		t.Fatalf("GroupRows: %v", err)
	}
	got := vehicles[0].SecondaryVrms
	if len(got) != 2 || got[0] != "POI9876" || got[1] != "QWE1234" {
		t.Fatalf("secondaryVrms mismatch: %#v", got)
	}
}

func TestGroupRowsMissingSystemNumberFatal(t *testing.T) {
	r := FlatRow{"vin": "VIN-1", "techRecord_statusCode": "current"}
	if _, err := GroupRows([]FlatRow{r}); !errors.Is(err, ErrMalformedEncoding) {
		t.Fatalf("expected ErrMalformedEncoding, got %v", err)
	}
}

func TestGroupRowsMissingTechRecordFatal(t *testing.T) {
	r := FlatRow{"systemNumber": "SYS-1", "secondaryVrms_0": "POI9876"}
	if _, err := GroupRows([]FlatRow{r}); !errors.Is(err, ErrMalformedEncoding) {
		t.Fatalf("expected ErrMalformedEncoding, got %v", err)
	}
}
