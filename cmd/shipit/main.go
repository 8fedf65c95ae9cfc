package main

import (
	"log"

	"github.com/familyevents/shipit/cmd/shipit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
