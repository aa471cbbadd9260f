package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/user"
	"github.com/trezcool/masomo-portal/services/apiclient"
	logsvc "github.com/trezcool/masomo-portal/services/logger"
	"github.com/trezcool/masomo-portal/storage/kv/file"
)

func main() {
	os.Exit(run())
}

func run() int {
	conf := core.NewConfig()

	stdLogger := log.New(os.Stderr, "CLI : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up storage
	path := conf.Storage.FilePath
	if path == "" {
		var err error
		if path, err = filekv.DefaultPath(); err != nil {
			stdLogger.Printf("error: %v", err)
			return 1
		}
	}
	kv, err := filekv.Open(path)
	if err != nil {
		stdLogger.Printf("error: %v", err)
		return 1
	}
	defer func() {
		if err := kv.Close(); err != nil {
			stdLogger.Printf("closing storage: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// start CLI
	cli := commandLine{
		conf: conf,
		sess: apiclient.NewSession(ctx, apiclient.SessionOptions{
			Conf:       conf,
			KV:         kv,
			Validate:   validate,
			Translator: translator,
			Logger:     logger,
		}),
		validate:   validate,
		out:        os.Stdout,
		passwdFile: stdinFd(),
	}
	if err := cli.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", errorMessage(err))
		return 1
	}
	return 0
}
