package techrecord

import (
	"encoding/json"
	"testing"
)

func TestFormatForResponseMergesVrms(t *testing.T) {
	v := &Vehicle{
		SystemNumber:  "SYS-1",
		Vin:           "ABCDEFGH654321",
		PrimaryVrm:    "ALKH567",
		SecondaryVrms: []string{"POI9876"},
		PartialVin:    "654321",
		TechRecord:    []TechRecord{{"statusCode": "current"}},
	}

	out := FormatForResponse(v)

	if len(out.Vrms) != 2 {
		t.Fatalf("expected 2 vrms, got %d", len(out.Vrms))
	}
	if out.Vrms[0].Vrm != "ALKH567" || !out.Vrms[0].IsPrimary {
		t.Fatalf("primary vrm wrong: %+v", out.Vrms[0])
	}
	if out.Vrms[1].Vrm != "POI9876" || out.Vrms[1].IsPrimary {
		t.Fatalf("secondary vrm wrong: %+v", out.Vrms[1])
	}

	// 原始字段不得再出现在出站 JSON 里
	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"primaryVrm", "secondaryVrms", "partialVin"} {
		if _, ok := decoded[key]; ok {
			t.Fatalf("raw field %s leaked into response", key)
		}
	}

	// 输入不被改动
	if v.PrimaryVrm != "ALKH567" || len(v.SecondaryVrms) != 1 {
		t.Fatalf("input vehicle was mutated: %+v", v)
	}
}

func TestFormatForResponseNoVrms(t *testing.T) {
	v := &Vehicle{SystemNumber: "SYS-1", TechRecord: []TechRecord{{"statusCode": "current"}}}
	out := FormatForResponse(v)
	if len(out.Vrms) != 0 {
		t.Fatalf("expected empty vrms, got %#v", out.Vrms)
	}
}

func TestFormatForResponseStringifiesEuroStandard(t *testing.T) {
	v := &Vehicle{
		SystemNumber: "SYS-1",
		TechRecord: []TechRecord{
			{"statusCode": "current", "euroStandard": json.Number("6")},
			{"statusCode": "archived", "euroStandard": "Euro 5"},
			{"statusCode": "archived"},
		},
	}
	out := FormatForResponse(v)
	if out.TechRecord[0]["euroStandard"] != "6" {
		t.Fatalf("numeric euroStandard not stringified: %#v", out.TechRecord[0]["euroStandard"])
	}
	if out.TechRecord[1]["euroStandard"] != "Euro 5" {
		t.Fatalf("string euroStandard changed: %#v", out.TechRecord[1]["euroStandard"])
	}
	if _, ok := out.TechRecord[2]["euroStandard"]; ok {
		t.Fatalf("absent euroStandard must stay absent")
	}
}
