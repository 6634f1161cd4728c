// Package scheduler triggers the bot run in daemon mode.
//
// One job is registered on a robfig/cron instance. Ticks never overlap: a
// tick that fires while the previous run is still going is skipped.
package scheduler
