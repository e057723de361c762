package excel

// Config holds the workbook location used by Exporter and Importer
type Config struct {
	FilePath  string // Path to the .xlsx file
	SheetName string // Name of the sheet to write or read
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.FilePath == "" {
		return ErrMissingFilePath
	}
	if c.SheetName == "" {
		return ErrMissingSheetName
	}
	return nil
}
