//go:build linux

package systemd

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
)

// LookupUnit reads the unit state over the system D-Bus.
func LookupUnit(ctx context.Context, name string) (UnitStatus, error) {
	unit := UnitName(name)
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return UnitStatus{}, fmt.Errorf("connect to systemd: %w", err)
	}
	defer conn.Close()

	props, err := conn.GetUnitPropertiesContext(ctx, unit)
	if err != nil {
		if strings.Contains(err.Error(), "NoSuchUnit") {
			return notFound(unit), nil
		}
		return UnitStatus{}, fmt.Errorf("status of %s: %w", unit, err)
	}
	return statusFromProps(unit, props), nil
}
