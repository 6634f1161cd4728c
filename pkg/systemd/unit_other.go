//go:build !linux

package systemd

import (
	"context"
	"errors"
)

var ErrUnsupported = errors.New("systemd: unsupported OS (linux only)")

func LookupUnit(ctx context.Context, name string) (UnitStatus, error) {
	return UnitStatus{}, ErrUnsupported
}
