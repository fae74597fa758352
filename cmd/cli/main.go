package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/ticketdesk/internal/buildinfo"
	"github.com/dmitrijs2005/ticketdesk/internal/client/app"
	"github.com/dmitrijs2005/ticketdesk/internal/client/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := loadConfig()

	a, err := app.NewApp(ctx, cfg, app.Options{})
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	if err := a.Run(ctx, os.Stdin); err != nil {
		log.Fatalf("%v", err)
	}

}

func loadConfig() (cfg *config.Config) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "%v\n\n%s", r, config.Usage())
			os.Exit(2)
		}
	}()
	return config.LoadConfig()
}
