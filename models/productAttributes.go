package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"
)

type rawAttribute struct {
	Name   string `json:"name"`
	Option string `json:"option"`
}

type rawVariation struct {
	ID         int            `json:"id"`
	Sku        string         `json:"sku"`
	Attributes []rawAttribute `json:"attributes"`
}

type rawProductPayload struct {
	// upstream sends either bare variation ids or expanded variation objects
	Variations []json.RawMessage `json:"variations"`
}

// VariationLabelFromRaw recovers a human readable label ("Red / Large") for a variation
// that was never synced, using the parent product's raw upstream payload.
func VariationLabelFromRaw(raw datatypes.JSON, variationId int) (string, bool) {
	if len(raw) == 0 || variationId <= 0 {
		return "", false
	}
	var payload rawProductPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", false
	}
	for _, entry := range payload.Variations {
		var id int
		if err := json.Unmarshal(entry, &id); err == nil {
			if id == variationId {
				return fmt.Sprintf("Variation #%d", variationId), true
			}
			continue
		}
		var v rawVariation
		if err := json.Unmarshal(entry, &v); err != nil || v.ID != variationId {
			continue
		}
		options := make([]string, 0, len(v.Attributes))
		for _, a := range v.Attributes {
			if opt := strings.TrimSpace(a.Option); opt != "" {
				options = append(options, opt)
			}
		}
		if len(options) > 0 {
			return strings.Join(options, " / "), true
		}
		if v.Sku != "" {
			return v.Sku, true
		}
		return fmt.Sprintf("Variation #%d", variationId), true
	}
	return "", false
}
