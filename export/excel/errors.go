package excel

import "errors"

var (
	// ErrMissingFilePath is returned when file path is not specified
	ErrMissingFilePath = errors.New("file path is required")

	// ErrMissingSheetName is returned when sheet name is not specified
	ErrMissingSheetName = errors.New("sheet name is required")

	// ErrSheetNotFound is returned when the specified sheet doesn't exist
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrNoHeader is returned when the sheet to import has no header row
	ErrNoHeader = errors.New("sheet has no header row")
)
