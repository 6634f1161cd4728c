// Package systemd integrates the daemon with systemd: readiness and
// shutdown notifications (sd_notify) and a D-Bus lookup of the unit state
// for `desirebot state`.
package systemd

import "github.com/coreos/go-systemd/v22/daemon"

// Ready reports READY=1. It is a no-op (false, nil) outside systemd.
func Ready() (bool, error) { return daemon.SdNotify(false, daemon.SdNotifyReady) }

// Stopping reports STOPPING=1.
func Stopping() (bool, error) { return daemon.SdNotify(false, daemon.SdNotifyStopping) }

// Status publishes a free-form status line shown by `systemctl status`.
func Status(msg string) (bool, error) { return daemon.SdNotify(false, "STATUS="+msg) }
