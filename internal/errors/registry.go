package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Ordering Errors (H001-H019)
	// ============================================

	"H001": {
		Category: CategoryOrdering,
		Message:  "Hook order changed between renders",
		Detail:   "Hooks must be declared unconditionally and in the same order on every render of an instance. Slot identity is the position of the declaration.",
		DocURL:   "https://hooks.vango.dev/errors/H001",
	},
	"H002": {
		Category: CategoryOrdering,
		Message:  "Dependency list arity changed",
		Detail:   "An effect's dependency list must keep the same length on every render, and must not switch between a list and no list.",
		DocURL:   "https://hooks.vango.dev/errors/H002",
	},
	"H008": {
		Category: CategoryOrdering,
		Message:  "Hook declared outside render",
		Detail:   "UseState, UseEffect and UseRef may only be called between BeginRender and CommitRender.",
		DocURL:   "https://hooks.vango.dev/errors/H008",
	},

	// ============================================
	// Lifecycle Errors (H020-H039)
	// ============================================

	"H003": {
		Category: CategoryLifecycle,
		Message:  "Write to torn-down instance",
		Detail:   "A setter or effect registration ran after its instance was torn down. This is usually an asynchronous completion racing an unmount and is ignored.",
		DocURL:   "https://hooks.vango.dev/errors/H003",
	},
	"H006": {
		Category: CategoryLifecycle,
		Message:  "Reentrant commit",
		Detail:   "CommitRender was called while a commit pass for the same instance was already running. State writes inside effects schedule a new render instead.",
		DocURL:   "https://hooks.vango.dev/errors/H006",
	},
	"H007": {
		Category: CategoryLifecycle,
		Message:  "Render pass budget exceeded",
		Detail:   "The host ran more render passes than allowed in a single flush. An effect without a dependency list that sets state unconditionally loops forever.",
		DocURL:   "https://hooks.vango.dev/errors/H007",
	},
	"H009": {
		Category: CategoryLifecycle,
		Message:  "Render failed",
		Detail:   "The component body panicked. The instance keeps its last committed state.",
		DocURL:   "https://hooks.vango.dev/errors/H009",
	},

	// ============================================
	// Effect Errors (H040-H059)
	// ============================================

	"H004": {
		Category: CategoryEffect,
		Message:  "Effect body failed",
		Detail:   "The effect body panicked. The slot is treated as having run and holds no cleanup.",
		DocURL:   "https://hooks.vango.dev/errors/H004",
	},
	"H005": {
		Category: CategoryEffect,
		Message:  "Effect cleanup failed",
		Detail:   "The cleanup returned by an effect panicked. It is treated as consumed and is never invoked again.",
		DocURL:   "https://hooks.vango.dev/errors/H005",
	},

	// ============================================
	// Config Errors (H120-H139)
	// ============================================

	"H120": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "The hooks.json configuration file could not be read or parsed.",
		DocURL:   "https://hooks.vango.dev/errors/H120",
	},
	"H121": {
		Category: CategoryConfig,
		Message:  "Configuration not found",
		Detail:   "No hooks.json was found in the given directory.",
		DocURL:   "https://hooks.vango.dev/errors/H121",
	},

	// ============================================
	// Scenario Errors (H160-H179)
	// ============================================

	"H160": {
		Category: CategoryScenario,
		Message:  "Scenario parse failed",
		Detail:   "The scenario file is not valid YAML or does not match the scenario schema.",
		DocURL:   "https://hooks.vango.dev/errors/H160",
	},
	"H161": {
		Category: CategoryScenario,
		Message:  "Invalid scenario",
		Detail:   "The scenario references an unknown component, slot or step kind.",
		DocURL:   "https://hooks.vango.dev/errors/H161",
	},
	"H162": {
		Category: CategoryScenario,
		Message:  "Write to unrendered instance",
		Detail:   "A set or update step targets an instance whose first render has not run, so it has no state slots yet. Add a flush step before writing, or enable autoFlush.",
		DocURL:   "https://hooks.vango.dev/errors/H162",
	},

	// ============================================
	// Export Errors (H180-H199)
	// ============================================

	"H180": {
		Category: CategoryExport,
		Message:  "Event log export failed",
		Detail:   "The event log could not be uploaded to object storage.",
		DocURL:   "https://hooks.vango.dev/errors/H180",
	},

	// ============================================
	// CLI Errors (H140-H159)
	// ============================================

	"H140": {
		Category: CategoryCLI,
		Message:  "Invalid arguments",
		Detail:   "The command was called with missing or invalid arguments.",
		DocURL:   "https://hooks.vango.dev/errors/H140",
	},
	"H141": {
		Category: CategoryCLI,
		Message:  "Inspector server failed",
		Detail:   "The inspector HTTP server could not start or stopped unexpectedly. Check that the listen address is free.",
		DocURL:   "https://hooks.vango.dev/errors/H141",
	},
}

// GetAllCodes returns all registered error codes in ascending order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
