package utils

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/MerlinStacks/overseek-sub002/config"
	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
)

var ErrLockBusy = errors.New("resource is locked by another operation")

var validate = validator.New()

// ValidateStruct runs `validate` struct tags.
func ValidateStruct(v any) error {
	return validate.Struct(v)
}

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errorResponse["error"] = err.Error()
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Namespace()] = ve.Tag()
	}
	return errorResponse
}

func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}

// SortedUnique dedupes and sorts ascending.
func SortedUnique[T cmp.Ordered](slice []T) []T {
	out := UniqueSlice(slice)
	slices.Sort(out)
	if out == nil {
		return []T{}
	}
	return out
}

// TenantLock obtains "<lockType>:<tenantId>" for ttl and returns a release func.
// Without a Redis connection the lock is a no-op (single-instance deployments).
func TenantLock(ctx context.Context, lockType string, tenantId string, ttl time.Duration, moduleName string, functionName string) (func(), error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}, nil
	}
	logger := config.GetLogger()

	lockKey := fmt.Sprintf("%s:%s", lockType, tenantId)
	lock, err := locker.Obtain(ctx, lockKey, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, moduleName, functionName, "could not obtain lock", lockKey, err)
		return nil, ErrLockBusy
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "error obtaining lock", lockKey, err)
		return nil, err
	}

	return func() {
		// Release with a fresh context; the caller's ctx may already be cancelled.
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			config.LogError(logger, moduleName, functionName, "error releasing lock", lockKey, err)
		}
	}, nil
}

// TenantLease is a long-lived lock that the holder refreshes between units of work.
type TenantLease struct {
	lock *redislock.Lock
	ttl  time.Duration
}

// ObtainTenantLease is TenantLock for long runs. A nil lease (no Redis) is valid and inert.
func ObtainTenantLease(ctx context.Context, lockType string, tenantId string, ttl time.Duration) (*TenantLease, error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, nil
	}
	lock, err := locker.Obtain(ctx, fmt.Sprintf("%s:%s", lockType, tenantId), ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockBusy
	} else if err != nil {
		return nil, err
	}
	return &TenantLease{lock: lock, ttl: ttl}, nil
}

func (l *TenantLease) Refresh(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.lock.Refresh(ctx, l.ttl, nil)
}

func (l *TenantLease) Release() {
	if l == nil {
		return
	}
	_ = l.lock.Release(context.Background())
}
