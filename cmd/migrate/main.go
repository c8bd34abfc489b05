package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/hackgods/vaidya/internal/config"
	"github.com/hackgods/vaidya/internal/db"
)

func main() {
	force := flag.Int("force", -1, "force the schema version (clears the dirty flag)")
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	mg, err := db.NewMigrator(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("migrator: %v", err)
	}
	defer mg.Close()

	if *force >= 0 {
		if err := mg.Force(*force); err != nil {
			log.Fatalf("force version %d: %v", *force, err)
		}
	}

	switch cmd {
	case "up":
		err = mg.Up()
	case "down":
		err = mg.Down()
	case "version":
	default:
		log.Fatalf("unknown command %q (up, down, version)", cmd)
	}
	if err != nil {
		log.Fatal(err)
	}

	v, dirty, err := mg.Version()
	if err != nil {
		log.Fatalf("read version: %v", err)
	}
	fmt.Printf("schema version %d dirty=%t\n", v, dirty)
}
