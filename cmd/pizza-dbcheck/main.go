package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"pizzaservice/internal/server"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <dbfile>\n", os.Args[0])
		os.Exit(1)
	}
	dbPath := os.Args[1]

	db, err := server.OpenDB(dbPath)
	if err != nil {
		log.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	if err := server.RunMigrations(db, zap.NewNop()); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	ctx := context.Background()
	store := server.NewSQLiteStore(db)

	tables, err := store.Tables(ctx)
	if err != nil {
		log.Fatalf("list tables: %v", err)
	}
	fmt.Println("Tables:")
	for _, name := range tables {
		fmt.Println(" -", name)
	}

	n, err := store.OrderCount(ctx)
	if err != nil {
		log.Fatalf("count orders: %v", err)
	}
	fmt.Println("Orders:", n)

	catalog, err := store.Catalog(ctx)
	if err != nil {
		log.Fatalf("read catalog: %v", err)
	}
	fmt.Println("Catalog:")
	for _, p := range catalog {
		fmt.Printf(" %3d  %-20s %6.2f\n", p.PizzaID, p.Description, p.Price)
	}
}
