package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	sheetfeed "github.com/ideamans/go-sheetfeed"
	"github.com/ideamans/go-sheetfeed/auth"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx := context.Background()

	// Credentials from a service account key (or GOOGLE_APPLICATION_CREDENTIALS)
	provider, err := auth.FromJSONKeyFile(ctx, "./service-account.json")
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	config := sheetfeed.DefaultConfig()
	config.ApplicationName = "sheetfeed-example"
	config.Logger = logger
	svc := sheetfeed.New(provider, config)

	sp, err := svc.Spreadsheet(ctx, "Example")
	if err != nil {
		return fmt.Errorf("failed to find spreadsheet: %w", err)
	}

	// Create a worksheet with a header row
	ws, err := sp.AddWorksheet(ctx, "users", []string{"name", "email", "age"})
	if err != nil {
		return fmt.Errorf("failed to add worksheet: %w", err)
	}

	// Append a row
	if _, err := ws.AddRow(ctx, map[string]string{
		"name":  "John Doe",
		"email": "john@example.com",
		"age":   "30",
	}); err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}

	// Bulk upload rows 3 and 4, retrying cells the server rejects
	if err := ws.Populate(ctx, []*sheetfeed.BatchItem{
		sheetfeed.NewBatchItem(3, "Jane Roe", "jane@example.com", "27"),
		sheetfeed.NewBatchItem(4, "Max Mustermann", "max@example.com", "41"),
	}); err != nil {
		return fmt.Errorf("failed to populate: %w", err)
	}

	// Query rows and update them one at a time
	cursor, err := ws.Rows(ctx, sheetfeed.RowQuery{
		Conditions: []sheetfeed.Condition{
			{Column: "age", Operator: "between", Value: []interface{}{25, 35}},
		},
		OrderBy: "age",
	})
	if err != nil {
		return fmt.Errorf("failed to query: %w", err)
	}
	defer cursor.Close()

	for {
		row, err := cursor.Next(ctx)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return err
		}

		age := row.GetAsInt64("age", 0)
		fmt.Printf("  %s (age: %d)\n", row.Get("name"), age)

		row.Set("age", strconv.FormatInt(age+1, 10))
		outcome, err := row.Commit(ctx)
		if err != nil {
			return fmt.Errorf("failed to update %s: %w", row.Get("name"), err)
		}
		if outcome == sheetfeed.Conflict {
			fmt.Printf("  %s changed on the server, skipped\n", row.Get("name"))
		}
	}

	// Conditional re-read: nothing is transferred while the feed is unchanged
	again, err := ws.Rows(ctx, sheetfeed.RowQuery{IfNoneMatch: cursor.ETag()})
	if err != nil {
		return err
	}
	defer again.Close()
	fmt.Printf("feed changed since last read: %v\n", !again.NotModified())

	return nil
}
