// Package ui provides the Bubble Tea terminal front end for lumen.
//
// The UI is a consumer of the model store, the fingerprint tracker and the
// notification queue. It polls them on a short tick and renders one
// consistent snapshot per frame. Key bindings call the same Editor
// operations a graphical front end would: local-first edits run inline,
// calls that wait on the engine (add, copy, calculate, new model) run as
// tea commands so the screen never blocks.
//
// Files:
//
//   - app.go: Model, Update loop and Run
//   - actions.go: key to mutation mapping
//   - view.go: header, room summary, lamp and zone lists, notifications
//   - help.go: help overlay
//   - keys.go: key bindings (bubbles/key) shared with the help line
//   - theme.go: color themes, cycled with T and saved to prefs
package ui
