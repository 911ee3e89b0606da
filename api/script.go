// File: api/script.go
//
// Opaque script-engine contract. The scripting bridge is an external
// collaborator; only its entry points are consumed here.

package api

// ScriptEngine is the minimal surface of an embedded scripting runtime.
type ScriptEngine interface {
	// Init loads and prepares the engine with its configuration.
	Init(cfg map[string]any) error
	// Call invokes a named script entry point.
	Call(fn string, args ...any) ([]any, error)
	// Uninit releases the engine. The engine must not be used after.
	Uninit() error
}
