package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"

	echoportal "github.com/trezcool/masomo-portal/apps/portal/echo"
	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/user"
	"github.com/trezcool/masomo-portal/services/apiclient"
	logsvc "github.com/trezcool/masomo-portal/services/logger"
	"github.com/trezcool/masomo-portal/storage/kv"
)

type StorageLoggerParam struct {
	dig.In
	Logger core.Logger `name:"storageLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "PORTAL : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStorageLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "STORAGE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newValidator(conf *core.Config, translator ut.Translator, logger core.Logger) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	if err := conf.Validate(validate); err != nil {
		logger.Fatal(fmt.Sprintf("invalid configuration: %v", err), err)
	}
	return validate
}

// newStorage returns the client storage both as a closable backend and as a plain store.
func newStorage(conf *core.Config, loggerParam StorageLoggerParam) (core.KeyValueBackend, core.KeyValueStore) {
	backend, err := kv.Open(context.Background(), conf.Storage)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("opening %s storage: %v", conf.Storage.Engine, err), err)
	}
	return backend, backend
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newMetrics(reg *prometheus.Registry) *apiclient.Metrics {
	return apiclient.NewMetrics(reg)
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	store core.KeyValueStore,
	validate *validator.Validate,
	translator ut.Translator,
	metrics *apiclient.Metrics,
) echoportal.Server {
	return echoportal.NewServer(&echoportal.Options{
		Conf:       conf,
		Logger:     logger,
		KV:         store,
		Validate:   validate,
		Translator: translator,
		Metrics:    metrics,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newStorageLogger, dig.Name("storageLogger")))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newStorage))
	must(c.Provide(newRegistry))
	must(c.Provide(newMetrics))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
