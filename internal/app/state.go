package app

import (
	"context"
	"time"

	"desirebot/internal/mentions"
	"desirebot/internal/posting"
	"desirebot/internal/storage"
)

// StateView is the persisted bot state as the next run would see it.
type StateView struct {
	Driver   string
	Path     string
	State    posting.State
	Defaults posting.Defaults
	Cursor   mentions.Cursor
	// LastExecuted is zero when unset or not RFC3339; see LastExecutedRaw.
	LastExecuted    time.Time
	LastExecutedRaw string
}

// State reads the settings store without writing to it.
func (a *App) State(ctx context.Context) (StateView, error) {
	cfg := a.cfgm.Get()
	store, err := openStore(cfg, a.log)
	if err != nil {
		return StateView{}, err
	}
	defer store.Close()

	v := StateView{Driver: cfg.Storage.Driver, Path: cfg.ResolvePath(cfg.Storage.Path)}
	if v.State, v.Defaults, err = storage.LoadSchedulerState(ctx, store); err != nil {
		return v, err
	}
	if v.Cursor, err = storage.LoadCursor(ctx, store); err != nil {
		return v, err
	}
	v.LastExecuted, v.LastExecutedRaw, err = storage.LastExecuted(ctx, store)
	return v, err
}
