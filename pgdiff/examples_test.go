package pgdiff_test

import (
	"context"
	"fmt"
	"log"

	"github.com/pgschema/pgdiff/pgdiff"
)

// ExampleDumpSchemaToFile demonstrates how to dump a database schema to a file.
func ExampleDumpSchemaToFile() {
	ctx := context.Background()

	dbConfig := pgdiff.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		Database: "myapp",
		User:     "postgres",
		Password: "password",
		Schema:   "public",
	}

	if err := pgdiff.DumpSchemaToFile(ctx, dbConfig, "dump.from"); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Schema dumped to dump.from")
}

// ExampleCompareDumps demonstrates how to generate a migration script from
// two dump files.
func ExampleCompareDumps() {
	script, err := pgdiff.CompareDumps("dump.from", "dump.to")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Print(script)
}

// ExampleClient demonstrates using the client for several operations.
func ExampleClient() {
	ctx := context.Background()

	client := pgdiff.NewClient(pgdiff.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		Database: "staging",
		User:     "postgres",
		Password: "password",
	})

	snap, err := client.Dump(ctx, pgdiff.DumpOptions{})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Read %d objects\n", snap.Len())

	m, err := client.CompareWith(ctx, pgdiff.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		Database: "production",
		User:     "postgres",
		Password: "password",
	}, pgdiff.CompareOptions{UseDrop: false})
	if err != nil {
		log.Fatal(err)
	}

	if m.Empty() {
		fmt.Println("Schemas match")
		return
	}
	fmt.Print(m.Script())
}
