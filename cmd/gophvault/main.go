package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophvault/internal/cli"
	"github.com/dmitrijs2005/gophvault/internal/config"
)

func main() {

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, closeDB, err := cli.Open(ctx, cfg, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer closeDB()

	initSignalHandler(app, closeDB)

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}

}

// initSignalHandler wipes the session and clipboard on interrupt. The REPL
// may be blocked reading stdin, so the process exits from here.
func initSignalHandler(app *cli.App, closeDB func() error) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		if err := app.Shutdown(context.Background()); err != nil {
			log.Printf("%v", err)
		}
		_ = closeDB()
		os.Exit(130)
	}()
}
