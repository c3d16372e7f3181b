// Package diag names the fatal-error and warning codes shared across the
// Loader, Linker and Chunker.
package diag

// BuildError is a fatal error: it aborts Graph.Build. Every fatal condition
// is raised as one of these, carrying its user-visible code.
type BuildError struct {
	Code    string
	Message string
}

func (e *BuildError) Error() string { return e.Message }

func NewError(code, message string) *BuildError {
	return &BuildError{Code: code, Message: message}
}

// Fatal error codes.
const (
	CodeDuplicateEntryPoints = "DUPLICATE_ENTRY_POINTS"
	CodeUnresolvedEntry      = "UNRESOLVED_ENTRY"
	CodeUnresolvedImport     = "UNRESOLVED_IMPORT"
	CodeBadLoader            = "BAD_LOADER"
	CodeInvalidExternalID    = "INVALID_EXTERNAL_ID"
	CodeInternalError        = "INTERNAL_ERROR"
)

// Warning codes.
const (
	CodeCircularDependency = "CIRCULAR_DEPENDENCY"
	CodeNonExistentExport  = "NON_EXISTENT_EXPORT"
	CodeNamespaceConflict  = "NAMESPACE_CONFLICT"
	CodeUnresolvedImportW  = "UNRESOLVED_IMPORT" // warning form, bare external specifiers
)
