package main

import (
	"context"
	"flag"
	"fmt"
	"interest-chat/infrastructure/storage"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	// Secondary indexes live under idx: and are hidden unless -indexes is set
	prefix := flag.String("prefix", "", "Prefix to scan (msg:, interest:, user:, category:)")
	indexes := flag.Bool("indexes", false, "Show secondary index keys")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Entity ID", "Namespace", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rows := 0
	err = storage.Scan(context.Background(), db, *prefix, func(row database.InspectRow) {
		if row.Type == "INDEX" && !*indexes {
			return
		}
		rows++
		table.Append([]string{
			row.Key,
			row.Type,
			row.Timestamp,
			shortID(row.EntityID),
			shortID(row.Namespace),
			row.Detail,
		})
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
	fmt.Printf("\n%d rows\n", rows)
}

// shortID keeps the first 8 characters of an identifier for readability.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		// A crashed writer leaves a log that needs truncating before a read-only open succeeds
		if strings.Contains(err.Error(), "Log truncate required") {
			fmt.Println("Value log needs truncating, reopening in write mode first")

			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}

			_ = db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
