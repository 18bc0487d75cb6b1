package techrecord

import "testing"

func TestValidateCreate(t *testing.T) {
	good := &VehiclePayload{
		Vin:        "ABCDEFGH654321",
		PrimaryVrm: "ALKH567",
		TechRecord: []TechRecord{{"vehicleType": "hgv"}},
	}
	if err := ValidateCreate(good); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}

	cases := map[string]*VehiclePayload{
		"missing vin": {
			TechRecord: []TechRecord{{"vehicleType": "hgv"}},
		},
		"vrm too long": {
			Vin:        "ABCDEFGH654321",
			PrimaryVrm: "TOOLONGVRM1",
			TechRecord: []TechRecord{{"vehicleType": "hgv"}},
		},
		"empty secondary vrm": {
			Vin:           "ABCDEFGH654321",
			SecondaryVrms: []string{""},
			TechRecord:    []TechRecord{{"vehicleType": "hgv"}},
		},
		"no tech records": {
			Vin: "ABCDEFGH654321",
		},
		"unknown vehicle type": {
			Vin:        "ABCDEFGH654321",
			TechRecord: []TechRecord{{"vehicleType": "rocket"}},
		},
	}
	for name, payload := range cases {
		if err := ValidateCreate(payload); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestValidateUpdate(t *testing.T) {
	good := &UpdatePayload{
		TechRecord: []TechRecord{{"grossWeight": 33, "reasonForCreation": "weight corrected"}},
	}
	if err := ValidateUpdate(good); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}

	if err := ValidateUpdate(&UpdatePayload{}); err == nil {
		t.Fatalf("expected error for empty techRecord")
	}
	if err := ValidateUpdate(&UpdatePayload{
		TechRecord: []TechRecord{{"grossWeight": 33}},
	}); err == nil {
		t.Fatalf("expected error for missing reasonForCreation")
	}
}

func TestIsTankOrBattery(t *testing.T) {
	rec := TechRecord{
		"adrDetails": Document{
			"vehicleDetails": Document{"type": "Semi trailer tank"},
		},
	}
	if !IsTankOrBattery(rec) {
		t.Fatalf("expected tank vehicle to be detected")
	}
	rec["adrDetails"].(Document)["vehicleDetails"].(Document)["type"] = "Rigid box body"
	if IsTankOrBattery(rec) {
		t.Fatalf("expected box body to not be tank or battery")
	}
	if IsTankOrBattery(TechRecord{}) {
		t.Fatalf("expected missing adrDetails to be false")
	}
}
