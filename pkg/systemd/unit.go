package systemd

import (
	"strings"
	"time"
)

// UnitStatus is the subset of unit properties shown to operators.
type UnitStatus struct {
	Name        string
	Active      string // active, inactive, failed, ...
	SubState    string // running, dead, ...
	LoadState   string // loaded, not-found, ...
	Description string
	ActiveSince time.Time
	StateChange time.Time
}

// Found reports whether systemd knows the unit.
func (s UnitStatus) Found() bool { return s.LoadState != "not-found" }

// UnitName appends ".service" when name has no unit suffix.
func UnitName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		switch name[i+1:] {
		case "service", "timer", "socket", "target":
			return name
		}
	}
	return name + ".service"
}

func statusFromProps(name string, props map[string]any) UnitStatus {
	st := UnitStatus{
		Name:        name,
		Active:      stringProp(props, "ActiveState"),
		SubState:    stringProp(props, "SubState"),
		LoadState:   stringProp(props, "LoadState"),
		Description: stringProp(props, "Description"),
		ActiveSince: timestampProp(props, "ActiveEnterTimestamp"),
		StateChange: timestampProp(props, "StateChangeTimestamp"),
	}
	if st.LoadState == "not-found" {
		st.Active, st.SubState = "unknown", "not-found"
	}
	return st
}

// systemd timestamps are microseconds since the Unix epoch.
func timestampProp(props map[string]any, key string) time.Time {
	if ts, ok := props[key].(uint64); ok && ts > 0 {
		return time.UnixMicro(int64(ts))
	}
	return time.Time{}
}

func stringProp(props map[string]any, key string) string {
	v, _ := props[key].(string)
	return v
}

func notFound(name string) UnitStatus {
	return UnitStatus{Name: name, Active: "unknown", SubState: "not-found", LoadState: "not-found"}
}
