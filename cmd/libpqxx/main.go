package main

import "github.com/llar-formulas/libpqxx/cmd/libpqxx/internal"

func main() {
	internal.Execute()
}
