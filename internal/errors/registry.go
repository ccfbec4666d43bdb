package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Cache errors (E100-E199)

	"E101": {
		Category: CategoryCache,
		Message:  "Cache adapter read failed",
		Detail:   "The configured cache adapter returned an error while reading an entry.",
	},
	"E102": {
		Category: CategoryCache,
		Message:  "Cache adapter write failed",
		Detail:   "The configured cache adapter returned an error while storing an entry.",
	},
	"E103": {
		Category: CategoryCache,
		Message:  "Cache entry not found",
		Detail:   "No cache entry exists for the requested path.",
	},

	// Revalidation errors (E200-E299)

	"E201": {
		Category: CategoryRevalidate,
		Message:  "Render function failed",
		Detail:   "The render callback returned an error during background revalidation. The entry is marked with error status and will be retried with backoff.",
	},
	"E202": {
		Category: CategoryRevalidate,
		Message:  "Retries exhausted",
		Detail:   "The maximum number of revalidation retries was reached. The entry stays in error status until an explicit force revalidation.",
	},
	"E203": {
		Category: CategoryRevalidate,
		Message:  "Revalidator stopped",
		Detail:   "The revalidation manager has been shut down and no longer accepts requests.",
	},

	// Config errors (E300-E399)

	"E301": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "philjs.json could not be parsed.",
	},
	"E302": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration field has a value outside its allowed range.",
	},

	// Render errors (E400-E499)

	"E401": {
		Category: CategoryRender,
		Message:  "No render function configured",
		Detail:   "ISR needs a render function to regenerate pages. Set Config.Render before starting the app.",
	},
}
