package main

import (
	"context"
	"fmt"
	"log"

	sheetfeed "github.com/ideamans/go-sheetfeed"
	"github.com/ideamans/go-sheetfeed/auth"
	"github.com/ideamans/go-sheetfeed/export/excel"
)

func main() {
	ctx := context.Background()

	provider, err := auth.FromJSONKeyFile(ctx, "")
	if err != nil {
		log.Fatalf("Failed to load credentials: %v", err)
	}
	svc := sheetfeed.New(provider, nil)

	sp, err := svc.Spreadsheet(ctx, "Example")
	if err != nil {
		log.Fatalf("Failed to find spreadsheet: %v", err)
	}
	ws, err := sp.Worksheet(ctx, "users")
	if err != nil {
		log.Fatalf("Failed to find worksheet: %v", err)
	}

	// 1. Copy the worksheet into a local workbook
	exporter, err := excel.NewExporter(&excel.Config{
		FilePath:  "./example_data.xlsx",
		SheetName: "users",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to create exporter: %v", err)
	}

	cursor, err := ws.Rows(ctx, sheetfeed.RowQuery{OrderBy: "name"})
	if err != nil {
		log.Fatalf("Failed to read rows: %v", err)
	}
	n, err := exporter.Export(ctx, cursor, nil)
	if err != nil {
		log.Fatalf("Failed to export: %v", err)
	}
	fmt.Printf("Exported %d rows\n", n)

	// 2. Upload the workbook into a fresh worksheet
	importer, err := excel.NewImporter(&excel.Config{
		FilePath:  "./example_data.xlsx",
		SheetName: "users",
	})
	if err != nil {
		log.Fatalf("Failed to create importer: %v", err)
	}
	header, items, err := importer.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to read workbook: %v", err)
	}

	copySheet, err := sp.AddWorksheet(ctx, "users-copy", header)
	if err != nil {
		log.Fatalf("Failed to add worksheet: %v", err)
	}
	if err := copySheet.Populate(ctx, items); err != nil {
		log.Fatalf("Failed to upload: %v", err)
	}
	fmt.Printf("Uploaded %d rows to %s\n", len(items), copySheet.Title)
}
