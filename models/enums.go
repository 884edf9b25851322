package models

import (
	"errors"
	"strings"
)

var ErrInvalidPurchaseOrderStatus = errors.New("invalid purchase order status")

type PurchaseOrderStatus string

const (
	PurchaseOrderStatusDraft     PurchaseOrderStatus = "DRAFT"
	PurchaseOrderStatusOrdered   PurchaseOrderStatus = "ORDERED"
	PurchaseOrderStatusReceived  PurchaseOrderStatus = "RECEIVED"
	PurchaseOrderStatusCancelled PurchaseOrderStatus = "CANCELLED"
)

func (s PurchaseOrderStatus) IsValid() bool {
	switch s {
	case PurchaseOrderStatusDraft, PurchaseOrderStatusOrdered, PurchaseOrderStatusReceived, PurchaseOrderStatusCancelled:
		return true
	}
	return false
}

// ParsePurchaseOrderStatus accepts any letter case.
func ParsePurchaseOrderStatus(s string) (PurchaseOrderStatus, error) {
	status := PurchaseOrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", ErrInvalidPurchaseOrderStatus
	}
	return status, nil
}

// ComponentKind says which reference of a BOM item is set.
type ComponentKind string

const (
	ComponentKindSupplierItem    ComponentKind = "supplier_item"
	ComponentKindProduct         ComponentKind = "product"
	ComponentKindInternalProduct ComponentKind = "internal_product"
	ComponentKindInvalid         ComponentKind = "invalid"
)
