package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

var ErrTenantRequired = errors.New("tenant id is required")
