package models

import (
	"testing"

	"gorm.io/datatypes"
)

func TestVariationLabelFromRaw(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		id     int
		want   string
		wantOk bool
	}{
		{"options joined", `{"variations":[{"id":5,"attributes":[{"name":"Color","option":"Red"},{"name":"Size","option":"L"}]}]}`, 5, "Red / L", true},
		{"sku fallback", `{"variations":[{"id":5,"sku":"X-5","attributes":[]}]}`, 5, "X-5", true},
		{"bare ids", `{"variations":[4,5,6]}`, 5, "Variation #5", true},
		{"not present", `{"variations":[{"id":6}]}`, 5, "", false},
		{"malformed", `{"variations":`, 5, "", false},
		{"empty", ``, 5, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := VariationLabelFromRaw(datatypes.JSON([]byte(tc.raw)), tc.id)
			if ok != tc.wantOk || got != tc.want {
				t.Fatalf("got (%q, %v), want (%q, %v)", got, ok, tc.want, tc.wantOk)
			}
		})
	}
}
