// Package storage is the flat settings store that carries bot state between
// runs.
//
// Values are JSON documents addressed by key. Reads and writes happen in
// memory; Flush persists every pending change at once:
//   - file: one JSON object, written to a temp file and renamed into place
//     (the desireBot.json layout)
//   - sqlite: a settings(key, value) table, written in one transaction
package storage
