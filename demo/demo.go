package main

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sirnewton01/sqlbind"
)

//go:embed queries
var queriesFS embed.FS

type CreatePlaces struct {
	Execute func() error
}

type InsertPlace struct {
	SetName       func(string) `pos:"1"`
	SetPopulation func(int64)  `pos:"2"`
	ExecuteUpdate func() (int64, error)
	Close         func() error
}

type PlaceRows struct {
	sqlbind.ResultRow
	Next          func() bool
	Close         func() error
	GetTown_name  func() string
	GetPopulation func() int64
}

type PlacesBiggerThan struct {
	SetPopulation func(int64) `pos:"1"`
	ExecuteQuery  func(context.Context) (*PlaceRows, error)
	Close         func() error
}

type place struct {
	name       string
	population int64
}

func example() error {
	ctx := context.Background()

	sqldb, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return err
	}
	defer sqldb.Close()
	sqldb.SetMaxOpenConns(1)

	queries, err := fs.Sub(queriesFS, "queries")
	if err != nil {
		return err
	}
	db := sqlbind.NewDB(sqldb, sqlbind.NewCatalog(queries))

	// Create the table.
	create := CreatePlaces{}
	if err := db.Bind(ctx, &create); err != nil {
		return err
	}
	if err := create.Execute(); err != nil {
		return err
	}

	// Cross-check every statement type against the live schema.
	for _, proxy := range []any{CreatePlaces{}, InsertPlace{}, PlacesBiggerThan{}} {
		if err := db.Validate(ctx, proxy); err != nil {
			return err
		}
	}

	// Insert the places.
	places := []place{
		{"Kabul", 13000000},
		{"Berlin", 3677472},
		{"Brasília", 3039444},
		{"Cape Town", 4710000},
	}
	insert := InsertPlace{}
	if err := db.Bind(ctx, &insert); err != nil {
		return err
	}
	for _, p := range places {
		insert.SetName(p.name)
		insert.SetPopulation(p.population)
		if _, err := insert.ExecuteUpdate(); err != nil {
			return err
		}
	}
	if err := insert.Close(); err != nil {
		return err
	}

	// Find the places bigger than Berlin.
	bigger := PlacesBiggerThan{}
	if err := db.Bind(ctx, &bigger); err != nil {
		return err
	}
	defer bigger.Close()

	bigger.SetPopulation(3677472)
	rows, err := bigger.ExecuteQuery(ctx)
	if err != nil {
		return err
	}
	for rows.Next() {
		fmt.Printf("%s has %d people.\n", rows.GetTown_name(), rows.GetPopulation())
	}
	return rows.Close()
}

func main() {
	if err := example(); err != nil {
		panic(err)
	}
}
