package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category  Category
	Message   string
	Detail    string
	Retryable bool
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E100-E139)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "The configuration file could not be read or parsed.",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No uireg.json was found in the directory or any parent directory.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid port",
		Detail:   "Port must be between 0 and 65535.",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid storage configuration",
		Detail:   "The storage section is incomplete for the selected driver.",
	},
	"E104": {
		Category: CategoryConfig,
		Message:  "Invalid duration",
		Detail:   "Durations use Go syntax, for example \"500ms\" or \"30m\".",
	},
	"E105": {
		Category: CategoryConfig,
		Message:  "Invalid navigation sections file",
		Detail:   "The sections file must be a YAML list of sections with items.",
	},
	"E106": {
		Category: CategoryConfig,
		Message:  "Database migration failed",
		Detail:   "The database schema could not be brought up to date.",
	},
	"E107": {
		Category: CategoryConfig,
		Message:  "Invalid logging configuration",
		Detail:   "log.level must be debug, info, warn or error and log.format text or json.",
	},

	"E108": {
		Category: CategoryConfig,
		Message:  "Invalid tracing configuration",
		Detail:   "tracing.exporter must be stdout, file or none. The file exporter needs tracing.file.",
	},

	// ============================================
	// Collaborator Errors (E200-E239)
	// ============================================

	"E200": {
		Category:  CategoryCollaborator,
		Message:   "Upload failed",
		Detail:    "The component source could not be stored.",
		Retryable: true,
	},
	"E201": {
		Category:  CategoryCollaborator,
		Message:   "Saving component failed",
		Detail:    "The component record could not be inserted.",
		Retryable: true,
	},
	"E202": {
		Category:  CategoryCollaborator,
		Message:   "Slug check failed",
		Detail:    "Slug availability could not be determined.",
		Retryable: true,
	},
	"E203": {
		Category:  CategoryCollaborator,
		Message:   "Search failed",
		Detail:    "The search backend returned an error.",
		Retryable: true,
	},
	"E204": {
		Category:  CategoryCollaborator,
		Message:   "Attaching tags failed",
		Detail:    "The component was saved but its tags could not be attached.",
		Retryable: true,
	},
	"E205": {
		Category:  CategoryCollaborator,
		Message:   "Database error",
		Detail:    "The database returned an unexpected error.",
		Retryable: true,
	},
	"E206": {
		Category:  CategoryCollaborator,
		Message:   "Fetching component file failed",
		Detail:    "A stored component file could not be read back.",
		Retryable: true,
	},
	"E210": {
		Category: CategoryCollaborator,
		Message:  "Unexpected response shape",
		Detail:   "A remote service returned data that does not match the expected schema.",
	},

	// ============================================
	// Validation Errors (E300-E339)
	// ============================================

	"E300": {
		Category: CategoryValidation,
		Message:  "Required field missing",
	},
	"E301": {
		Category: CategoryValidation,
		Message:  "Demo imports the component it demonstrates",
		Detail:   "The preview injects the component itself, so the demo must not import it.",
	},
	"E302": {
		Category: CategoryValidation,
		Message:  "Internal dependency slug missing",
		Detail:   "Every internal import must be mapped to a registry component.",
	},
	"E303": {
		Category: CategoryValidation,
		Message:  "Slug not available",
	},
	"E304": {
		Category: CategoryValidation,
		Message:  "Invalid slug",
		Detail:   "Slugs use lowercase letters, digits and single dashes.",
	},
	"E305": {
		Category: CategoryValidation,
		Message:  "No exported component found",
		Detail:   "The component code must export at least one component.",
	},
	"E306": {
		Category: CategoryValidation,
		Message:  "Invalid field value",
	},
	"E307": {
		Category: CategoryValidation,
		Message:  "Invalid tag",
	},
	"E308": {
		Category: CategoryValidation,
		Message:  "Invalid upload",
	},
	"E309": {
		Category: CategoryValidation,
		Message:  "Malformed request",
		Detail:   "The request body is not valid JSON for this endpoint.",
	},

	// ============================================
	// Session Errors (E340-E359)
	// ============================================

	"E340": {
		Category: CategoryNotFound,
		Message:  "Submission not found",
		Detail:   "The submission session does not exist or has expired.",
	},
	"E341": {
		Category: CategorySession,
		Message:  "Submission already in progress",
		Detail:   "Wait for the running submission to finish.",
	},
	"E342": {
		Category: CategorySession,
		Message:  "Preview not ready",
		Detail:   "Code, demo and all dependencies must be resolved before a preview can be assembled.",
	},
	"E343": {
		Category: CategorySession,
		Message:  "Submission closed",
		Detail:   "The submission session was abandoned.",
	},
	"E344": {
		Category: CategorySession,
		Message:  "Too many open submissions",
		Detail:   "Close an existing submission before starting another one.",
	},
	"E345": {
		Category: CategoryAuth,
		Message:  "Authentication required",
		Detail:   "You must be signed in to add a component.",
	},
	"E346": {
		Category: CategoryNotFound,
		Message:  "Component not found",
	},
	"E347": {
		Category: CategorySession,
		Message:  "Submission already completed",
		Detail:   "Reset the form to add another component.",
	},

	// ============================================
	// CLI Errors (E360-E379)
	// ============================================

	"E360": {
		Category: CategoryCLI,
		Message:  "Cannot read source file",
	},
	"E361": {
		Category: CategoryCLI,
		Message:  "Config file already exists",
	},
}

// GetAllCodes returns all registered error codes, sorted.
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
